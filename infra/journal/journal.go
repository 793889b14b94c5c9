// Package journal is the append-only system of record for one product.
// Every accepted request is journaled before its effects become visible;
// replaying the log deterministically reproduces book state. Frames are
// length-prefixed with a CRC so a crash mid-write loses at most the torn
// tail, never a committed record.
package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const frameHeaderSize = 8

var errClosed = errors.New("journal: closed")

type appendReq struct {
	frame []byte
	done  chan error
}

// Journal appends records durably, in order. Append hands back a
// completion channel that fires only after the record is flushed and
// fsynced; completions fire in append order, which is what makes the log
// a valid replay source. A write failure is terminal: the journal refuses
// further appends and the owner is expected to fail-stop.
type Journal struct {
	path string
	file *os.File

	reqs chan appendReq
	stop chan struct{}
	done chan struct{}

	closeOnce sync.Once

	failed error
}

// Open opens (or creates) the journal for product at dir, scanning the
// existing file and truncating any torn tail left by a crash.
func Open(dir, product string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fmt.Sprintf("matcher.%s.log", product))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	valid, err := validPrefix(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(valid); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(valid, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	j := &Journal{
		path: path,
		file: f,
		reqs: make(chan appendReq, 256),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go j.commitLoop()
	return j, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Append enqueues a record. The returned channel receives exactly one
// value: nil once the record is durably on disk, or the write error.
// Callers must not apply the record's effects before the channel fires.
func (j *Journal) Append(rec *Record) <-chan error {
	done := make(chan error, 1)

	data, err := json.Marshal(rec)
	if err != nil {
		done <- fmt.Errorf("journal: encode record: %w", err)
		return done
	}

	frame := make([]byte, frameHeaderSize+len(data))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(data))
	copy(frame[frameHeaderSize:], data)

	select {
	case j.reqs <- appendReq{frame: frame, done: done}:
	case <-j.stop:
		done <- errClosed
	}
	return done
}

// Reader opens a fresh handle at the start of the log. Used only by
// recovery; the sequence is finite and not restartable once consumed.
func (j *Journal) Reader() (*Reader, error) {
	return OpenReader(j.path)
}

// Close drains in-flight appends, flushes, and closes the file.
// Safe to call more than once.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.stop)
		<-j.done
		err = j.file.Close()
	})
	return err
}

// commitLoop group-commits queued frames: write the batch, one fsync,
// then fire every completion. Completion order equals append order.
func (j *Journal) commitLoop() {
	defer close(j.done)

	w := bufio.NewWriterSize(j.file, 1<<20)

	for {
		var first appendReq
		select {
		case first = <-j.reqs:
		case <-j.stop:
			j.drainClosed()
			return
		}

		batch := []appendReq{first}
	fill:
		for len(batch) < 128 {
			select {
			case req := <-j.reqs:
				batch = append(batch, req)
			default:
				break fill
			}
		}

		err := j.failed
		if err == nil {
			err = commit(w, j.file, batch)
			if err != nil {
				j.failed = err
			}
		}
		for _, req := range batch {
			req.done <- err
		}
	}
}

func (j *Journal) drainClosed() {
	for {
		select {
		case req := <-j.reqs:
			err := j.failed
			if err == nil {
				err = commit(bufio.NewWriter(j.file), j.file, []appendReq{req})
			}
			req.done <- err
		default:
			return
		}
	}
}

func commit(w *bufio.Writer, f *os.File, batch []appendReq) error {
	for _, req := range batch {
		if _, err := w.Write(req.frame); err != nil {
			return fmt.Errorf("journal: write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("journal: fsync: %w", err)
	}
	return nil
}

// validPrefix scans frames from the start and returns the byte length of
// the longest valid prefix. A short header, short payload or CRC mismatch
// marks the torn tail; everything before it is committed data.
func validPrefix(f *os.File) (int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	r := bufio.NewReader(f)
	var valid int64
	var header [frameHeaderSize]byte

	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return valid, nil
			}
			return 0, err
		}
		payloadLen := binary.LittleEndian.Uint32(header[:4])
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return valid, nil
			}
			return 0, err
		}
		if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(header[4:8]) {
			return valid, nil
		}
		valid += int64(frameHeaderSize) + int64(payloadLen)
	}
}
