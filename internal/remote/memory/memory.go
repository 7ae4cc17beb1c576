package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"backoffice/internal/core"
	"backoffice/internal/remote"
)

// Ensure interface conformance
var _ remote.MutationClient = (*Store)(nil)

// ErrNotFound is returned when an update or delete addresses a missing record.
var ErrNotFound = errors.New("record not found")

// Op names one backend call, in the form used by the REST API
// ("create_activity", "delete_valuation", "recalculate_irr", ...).
type Op string

const (
	OpCreateActivity  Op = "create_activity"
	OpUpdateActivity  Op = "update_activity"
	OpDeleteActivity  Op = "delete_activity"
	OpCreateValuation Op = "create_valuation"
	OpUpdateValuation Op = "update_valuation"
	OpDeleteValuation Op = "delete_valuation"
	OpRecalculateIRR  Op = "recalculate_irr"
)

// Call is one recorded backend call.
type Call struct {
	Op       Op
	FundID   int64
	RecordID int64
	Date     string
}

// FailFunc decides whether a call should fail. Returning nil lets it through.
type FailFunc func(c Call) error

// Store is an in-process back office. It records every call so callers can
// inspect ordering.
type Store struct {
	mu         sync.Mutex
	nextID     int64
	activities map[int64]core.Activity
	valuations map[int64]core.Valuation
	calls      []Call
	fail       FailFunc
}

func New() *Store {
	return &Store{
		activities: make(map[int64]core.Activity),
		valuations: make(map[int64]core.Valuation),
	}
}

// FailWhen installs a failure hook. Pass nil to remove it.
func (s *Store) FailWhen(f FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = f
}

// SeedActivity stores an existing activity and returns its id.
func (s *Store) SeedActivity(a core.Activity) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	s.activities[a.ID] = a
	return a.ID
}

// SeedValuation stores an existing valuation and returns its id.
func (s *Store) SeedValuation(v core.Valuation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	v.ID = s.nextID
	s.valuations[v.ID] = v
	return v.ID
}

// Calls returns every call made so far, in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Activities returns stored activities ordered by id.
func (s *Store) Activities() []core.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Activity, 0, len(s.activities))
	for _, a := range s.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Valuations returns stored valuations ordered by id.
func (s *Store) Valuations() []core.Valuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Valuation, 0, len(s.valuations))
	for _, v := range s.valuations {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// record logs the call and runs the failure hook. Caller holds mu.
func (s *Store) record(ctx context.Context, c Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.calls = append(s.calls, c)
	if s.fail != nil {
		return s.fail(c)
	}
	return nil
}

func (s *Store) CreateActivity(ctx context.Context, a core.Activity) (core.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, Call{Op: OpCreateActivity, FundID: a.PortfolioFundID, Date: a.ActivityTimestamp}); err != nil {
		return core.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	s.nextID++
	a.ID = s.nextID
	s.activities[a.ID] = a
	return a, nil
}

func (s *Store) UpdateActivity(ctx context.Context, id int64, a core.Activity) (core.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, Call{Op: OpUpdateActivity, FundID: a.PortfolioFundID, RecordID: id, Date: a.ActivityTimestamp}); err != nil {
		return core.Activity{}, fmt.Errorf("update activity %d: %w", id, err)
	}
	if _, ok := s.activities[id]; !ok {
		return core.Activity{}, fmt.Errorf("update activity %d: %w", id, ErrNotFound)
	}
	a.ID = id
	s.activities[id] = a
	return a, nil
}

func (s *Store) DeleteActivity(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.activities[id]
	if err := s.record(ctx, Call{Op: OpDeleteActivity, FundID: existing.PortfolioFundID, RecordID: id}); err != nil {
		return fmt.Errorf("delete activity %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("delete activity %d: %w", id, ErrNotFound)
	}
	delete(s.activities, id)
	return nil
}

func (s *Store) CreateValuation(ctx context.Context, v core.Valuation) (core.Valuation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, Call{Op: OpCreateValuation, FundID: v.PortfolioFundID, Date: v.ValuationDate}); err != nil {
		return core.Valuation{}, fmt.Errorf("create valuation: %w", err)
	}
	s.nextID++
	v.ID = s.nextID
	s.valuations[v.ID] = v
	return v, nil
}

func (s *Store) UpdateValuation(ctx context.Context, id int64, v core.Valuation) (core.Valuation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, Call{Op: OpUpdateValuation, FundID: v.PortfolioFundID, RecordID: id, Date: v.ValuationDate}); err != nil {
		return core.Valuation{}, fmt.Errorf("update valuation %d: %w", id, err)
	}
	if _, ok := s.valuations[id]; !ok {
		return core.Valuation{}, fmt.Errorf("update valuation %d: %w", id, ErrNotFound)
	}
	v.ID = id
	s.valuations[id] = v
	return v, nil
}

func (s *Store) DeleteValuation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.valuations[id]
	if err := s.record(ctx, Call{Op: OpDeleteValuation, FundID: existing.PortfolioFundID, RecordID: id}); err != nil {
		return fmt.Errorf("delete valuation %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("delete valuation %d: %w", id, ErrNotFound)
	}
	delete(s.valuations, id)
	return nil
}

// RecalculateIRR reports one recomputed value per distinct valuation date of
// the fund on or after activityDate, which is what the real backend stores
// IRR against.
func (s *Store) RecalculateIRR(ctx context.Context, fundID int64, activityDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, Call{Op: OpRecalculateIRR, FundID: fundID, Date: activityDate}); err != nil {
		return 0, fmt.Errorf("recalculate IRR for fund %d: %w", fundID, err)
	}
	dates := make(map[string]struct{})
	for _, v := range s.valuations {
		if v.PortfolioFundID == fundID && v.ValuationDate >= activityDate {
			dates[v.ValuationDate] = struct{}{}
		}
	}
	return len(dates), nil
}
