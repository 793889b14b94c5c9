package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Store writes snapshots as matcher_state.<product>.<n>.json under one
// directory. Numbers increase monotonically and are never reused;
// superseded files are retained for audit, only the highest counts.
type Store struct {
	Dir     string
	Product string
}

func NewStore(dir, product string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{Dir: dir, Product: product}, nil
}

func (s *Store) filename(stateNum int64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("matcher_state.%s.%d.json", s.Product, stateNum))
}

// Save persists snap under stateNum. Write goes through a temp file and
// rename so a crash mid-write can never leave a truncated file as the
// highest-numbered snapshot.
func (s *Store) Save(stateNum int64, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	path := s.filename(stateNum)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", tmp, err)
	}
	return nil
}

var stateFileRe = regexp.MustCompile(`\.(\d+)\.json$`)

// LoadLatest returns the snapshot with the highest number for this
// product, or (0, nil, nil) on a first run with no snapshots at all.
func (s *Store) LoadLatest() (int64, *Snapshot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, nil, fmt.Errorf("snapshot: read dir %s: %w", s.Dir, err)
	}

	prefix := fmt.Sprintf("matcher_state.%s.", s.Product)
	best := int64(-1)
	var bestName string

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) < len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		m := stateFileRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if num > best {
			best = num
			bestName = name
		}
	}

	if best < 0 {
		return 0, nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.Dir, bestName))
	if err != nil {
		return 0, nil, fmt.Errorf("snapshot: read %s: %w", bestName, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, nil, fmt.Errorf("snapshot: decode %s: %w", bestName, err)
	}
	return best, &snap, nil
}
