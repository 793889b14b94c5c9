package service

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"matchd/infra/journal"
)

// Recover rebuilds the exact pre-crash state before any request is
// accepted: restore the latest snapshot, find its state marker in the
// journal, replay everything strictly after it through the same handlers
// the live path uses, with publication suppressed.
//
// Reaching end-of-journal without the marker means snapshot and journal
// disagree; safe recovery is impossible and guessing is not an option.
func (m *Matcher) Recover() error {
	num, snap, err := m.snaps.LoadLatest()
	if err != nil {
		return err
	}

	if snap == nil {
		// First run: empty book, state_num 0, output_seq 1.
		m.stateNum = 0
		m.seq.Reset(0)
		m.log.Info("no snapshot found, starting with an empty book",
			zap.String("product", m.product))
		return nil
	}

	if err := snap.Restore(m.book, m.sc); err != nil {
		return err
	}
	m.stateNum = snap.StateNum
	if snap.OutputSeq > 0 {
		m.seq.Reset(snap.OutputSeq - 1)
	}
	m.ticker = snap.Ticker

	// The marker written just before this snapshot was captured.
	anchor := snap.StateNum - 1

	m.log.Info("snapshot restored, replaying journal",
		zap.String("product", m.product),
		zap.Int64("state_num", snap.StateNum),
		zap.Int64("anchor", anchor),
		zap.Int("resting_orders", m.book.Len()))

	r, err := m.jnl.Reader()
	if err != nil {
		return fmt.Errorf("recovery: open journal: %w", err)
	}
	defer r.Close()

	m.replaying = true
	defer func() { m.replaying = false }()

	found := false
	replayed := 0

	for r.Next() {
		rec := r.Record()

		if !found {
			if rec.Type != journal.TypeState {
				continue
			}
			var n int64
			if err := json.Unmarshal(rec.Payload, &n); err != nil {
				return fmt.Errorf("recovery: bad state marker: %w", err)
			}
			if n == anchor {
				found = true
			}
			continue
		}

		switch rec.Type {
		case journal.TypeOrder:
			var p journal.OrderPayload
			if err := json.Unmarshal(rec.Payload, &p); err != nil {
				return fmt.Errorf("recovery: bad order record: %w", err)
			}
			m.applyOrder(p)
			replayed++

		case journal.TypeCancel:
			var p journal.CancelPayload
			if err := json.Unmarshal(rec.Payload, &p); err != nil {
				return fmt.Errorf("recovery: bad cancel record: %w", err)
			}
			m.applyCancel(p)
			replayed++

		case journal.TypeState:
			// A marker written after our snapshot, whose own snapshot
			// never made it to disk. Keep numbering past it so the next
			// snapshot does not reuse the number.
			var n int64
			if err := json.Unmarshal(rec.Payload, &n); err != nil {
				return fmt.Errorf("recovery: bad state marker: %w", err)
			}
			m.stateNum = n + 1

		default:
			m.log.Warn("skipping unknown journal record type",
				zap.String("type", rec.Type))
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("recovery: journal corrupt: %w", err)
	}
	if !found {
		return fmt.Errorf("recovery: state marker %d not found in journal (snapshot %d from %s)",
			anchor, num, m.snaps.Dir)
	}

	m.log.Info("recovery complete",
		zap.String("product", m.product),
		zap.Int("replayed", replayed),
		zap.Int64("state_num", m.stateNum),
		zap.Uint64("output_seq", m.seq.Current()))
	return nil
}
