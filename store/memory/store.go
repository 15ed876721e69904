package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/payable"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/types"
)

type vendorAmount struct {
	amount types.Money
	at     time.Time
}

type Store struct {
	mu sync.RWMutex

	// Run storage
	runs map[string]*run.Run

	// Vendor amount history, ordered oldest first
	history map[string][]vendorAmount

	// Audit trail, ordered by append
	audits map[string][]*run.AuditRecord

	closed bool
}

func New() *Store {
	return &Store{
		runs:    make(map[string]*run.Run),
		history: make(map[string][]vendorAmount),
		audits:  make(map[string][]*run.AuditRecord),
	}
}

// Run Store implementation

func (s *Store) CreateRun(_ context.Context, r *run.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return payable.ErrStoreClosed
	}
	if _, exists := s.runs[r.ID.String()]; exists {
		return payable.ErrAlreadyExists
	}
	s.runs[r.ID.String()] = r
	return nil
}

func (s *Store) GetRun(_ context.Context, runID id.RunID) (*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, payable.ErrStoreClosed
	}
	if r, ok := s.runs[runID.String()]; ok {
		return r, nil
	}
	return nil, payable.ErrRunNotFound
}

func (s *Store) ListRuns(_ context.Context, opts run.ListOpts) ([]*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, payable.ErrStoreClosed
	}

	result := make([]*run.Run, 0)
	for _, r := range s.runs {
		if opts.VendorID != "" && r.VendorID != opts.VendorID {
			continue
		}
		if opts.State != "" && r.State != opts.State {
			continue
		}
		if opts.Decision != "" && r.Decision != opts.Decision {
			continue
		}
		if !opts.Start.IsZero() && r.StartedAt.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && r.StartedAt.After(opts.End) {
			continue
		}
		result = append(result, r)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) FinishRun(_ context.Context, r *run.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return payable.ErrStoreClosed
	}
	// Upsert: archiving may land before or after CreateRun depending on
	// worker timing.
	s.runs[r.ID.String()] = r
	return nil
}

// Vendor history implementation

func (s *Store) RecordAmount(_ context.Context, vendorID string, amount types.Money, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return payable.ErrStoreClosed
	}
	if vendorID == "" {
		return payable.ErrUnknownVendor
	}
	s.history[vendorID] = append(s.history[vendorID], vendorAmount{amount: amount, at: at})
	return nil
}

func (s *Store) VendorHistory(_ context.Context, vendorID string, limit int) ([]types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, payable.ErrStoreClosed
	}
	entries, ok := s.history[vendorID]
	if !ok || len(entries) == 0 {
		return nil, payable.ErrNoVendorHistory
	}

	// Most recent entries, returned oldest first.
	start := 0
	if limit > 0 && len(entries) > limit {
		start = len(entries) - limit
	}
	result := make([]types.Money, 0, len(entries)-start)
	for _, e := range entries[start:] {
		result = append(result, e.amount)
	}
	return result, nil
}

// Audit trail implementation

func (s *Store) AppendAudit(_ context.Context, rec *run.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return payable.ErrStoreClosed
	}
	key := rec.RunID.String()
	s.audits[key] = append(s.audits[key], rec)
	return nil
}

func (s *Store) ListAudit(_ context.Context, runID id.RunID) ([]*run.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, payable.ErrStoreClosed
	}
	records := s.audits[runID.String()]
	result := make([]*run.AuditRecord, len(records))
	copy(result, records)
	return result, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return payable.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
