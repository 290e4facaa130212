// Package memory provides an in-process implementation of the persistence ports.
// It honours the same compare-and-swap contract as the SQLite repositories and
// rolls a transaction's writes back when the transaction function fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/permission"
)

type txMarker struct{}

type state struct {
	reports      map[int64]*entity.Report
	comments     map[int64][]entity.Comment
	history      map[int64][]*entity.ReportHistory
	nextReport   int64
	nextComment  int64
	nextHistory  int64
	cities       map[int64]entity.City
	subdistricts map[int64]entity.Subdistrict
	branches     map[int64]entity.Branch
	actors       map[int64]entity.Actor
}

func (s *state) clone() state {
	c := *s
	c.reports = make(map[int64]*entity.Report, len(s.reports))
	for id, r := range s.reports {
		c.reports[id] = r.Clone()
	}
	c.comments = make(map[int64][]entity.Comment, len(s.comments))
	for id, list := range s.comments {
		c.comments[id] = append([]entity.Comment(nil), list...)
	}
	c.history = make(map[int64][]*entity.ReportHistory, len(s.history))
	for id, list := range s.history {
		c.history[id] = append([]*entity.ReportHistory(nil), list...)
	}
	return c
}

// Store is a concurrency-safe in-memory database
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{st: state{
		reports:      make(map[int64]*entity.Report),
		comments:     make(map[int64][]entity.Comment),
		history:      make(map[int64][]*entity.ReportHistory),
		cities:       make(map[int64]entity.City),
		subdistricts: make(map[int64]entity.Subdistrict),
		branches:     make(map[int64]entity.Branch),
		actors:       make(map[int64]entity.Actor),
	}}
}

// AddCity seeds a city
func (s *Store) AddCity(c entity.City) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cities[c.ID] = c
}

// AddSubdistrict seeds a subdistrict
func (s *Store) AddSubdistrict(sd entity.Subdistrict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.subdistricts[sd.ID] = sd
}

// AddBranch seeds a branch
func (s *Store) AddBranch(b entity.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.branches[b.ID] = b
}

// AddActor seeds an actor
func (s *Store) AddActor(a entity.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.actors[a.ID] = a
}

// WithTransaction implements port.TransactionManager.
// Transactions are serialized; a failed fn restores the state it started from.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn under the state lock, joining an open transaction when ctx carries one
func (s *Store) write(ctx context.Context, fn func() error) error {
	if ctx.Value(txMarker{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) inFlightOf(creator, exceptID int64) int {
	n := 0
	for id, r := range s.st.reports {
		if id != exceptID && r.CreatedBy == creator && r.IsInFlight() {
			n++
		}
	}
	return n
}

// Create implements port.ReportRepository
func (s *Store) Create(ctx context.Context, report *entity.Report) error {
	return s.write(ctx, func() error {
		if s.inFlightOf(report.CreatedBy, 0) > 0 {
			return port.ErrInFlightReportExists
		}
		s.st.nextReport++
		report.ID = s.st.nextReport
		stored := report.Clone()
		stored.Comments = nil
		s.st.reports[report.ID] = stored
		return nil
	})
}

// GetByID implements port.ReportRepository
func (s *Store) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.st.reports[id]
	if !ok {
		return nil, apperr.NotFound("report %d", id)
	}
	out := r.Clone()
	out.Comments = append([]entity.Comment{}, s.st.comments[id]...)
	return out, nil
}

// Save implements port.ReportRepository
func (s *Store) Save(ctx context.Context, report *entity.Report, expectedPrior string) error {
	return s.write(ctx, func() error {
		current, ok := s.st.reports[report.ID]
		if !ok {
			return apperr.NotFound("report %d", report.ID)
		}
		if current.Status != expectedPrior {
			return apperr.Conflict("report %d is %s, expected %s", report.ID, current.Status, expectedPrior)
		}
		if report.IsInFlight() && !entity.IsInFlightStatus(expectedPrior) &&
			s.inFlightOf(current.CreatedBy, report.ID) > 0 {
			return port.ErrInFlightReportExists
		}

		stored := report.Clone()
		stored.Comments = nil
		stored.CreatedBy = current.CreatedBy
		stored.CreatedAt = current.CreatedAt
		s.st.reports[report.ID] = stored
		return nil
	})
}

// Delete implements port.ReportRepository
func (s *Store) Delete(ctx context.Context, id int64, expectedStatus string) error {
	if !entity.IsEditableStatus(expectedStatus) {
		return fmt.Errorf("%w: report %d cannot be deleted while %s", apperr.ErrInvalidTransition, id, expectedStatus)
	}
	return s.write(ctx, func() error {
		current, ok := s.st.reports[id]
		if !ok {
			return apperr.NotFound("report %d", id)
		}
		if current.Status != expectedStatus {
			return apperr.Conflict("report %d is %s, expected %s", id, current.Status, expectedStatus)
		}
		delete(s.st.reports, id)
		delete(s.st.comments, id)
		delete(s.st.history, id)
		return nil
	})
}

// CountInFlight implements port.ReportRepository
func (s *Store) CountInFlight(ctx context.Context, actorID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlightOf(actorID, 0), nil
}

// List implements port.ReportRepository
func (s *Store) List(ctx context.Context, scope permission.Scope, filter port.ReportFilter) ([]*entity.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Report
	for _, r := range s.st.reports {
		if !scope.Matches(r) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Period != "" && r.Period != filter.Period {
			continue
		}
		if filter.BranchID != 0 && r.BranchID != filter.BranchID {
			continue
		}
		c := r.Clone()
		c.Comments = append([]entity.Comment{}, s.st.comments[r.ID]...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset >= len(out) {
		return []*entity.Report{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CommentStore exposes the comment port of a Store
type CommentStore struct{ *Store }

// Append implements port.CommentRepository
func (c CommentStore) Append(ctx context.Context, comment *entity.Comment) error {
	return c.write(ctx, func() error {
		if _, ok := c.st.reports[comment.ReportID]; !ok {
			return apperr.NotFound("report %d", comment.ReportID)
		}
		c.st.nextComment++
		comment.ID = c.st.nextComment
		c.st.comments[comment.ReportID] = append(c.st.comments[comment.ReportID], *comment)
		return nil
	})
}

// ListByReport implements port.CommentRepository
func (c CommentStore) ListByReport(ctx context.Context, reportID int64) ([]entity.Comment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]entity.Comment{}, c.st.comments[reportID]...), nil
}

// HistoryStore exposes the history port of a Store
type HistoryStore struct{ *Store }

// Create implements port.HistoryRepository
func (h HistoryStore) Create(ctx context.Context, history *entity.ReportHistory) error {
	return h.write(ctx, func() error {
		h.st.nextHistory++
		history.ID = h.st.nextHistory
		copied := *history
		h.st.history[history.ReportID] = append(h.st.history[history.ReportID], &copied)
		return nil
	})
}

// GetByReportID implements port.HistoryRepository
func (h HistoryStore) GetByReportID(ctx context.Context, reportID int64) ([]*entity.ReportHistory, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*entity.ReportHistory, 0, len(h.st.history[reportID]))
	for _, rec := range h.st.history[reportID] {
		copied := *rec
		out = append(out, &copied)
	}
	return out, nil
}

// HasAction implements port.HistoryRepository
func (h HistoryStore) HasAction(ctx context.Context, reportID int64, actions ...string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, rec := range h.st.history[reportID] {
		for _, a := range actions {
			if rec.Action == a {
				return true, nil
			}
		}
	}
	return false, nil
}

// GetChain implements port.LocationRepository
func (s *Store) GetChain(ctx context.Context, branchID int64) (*entity.LocationChain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.st.branches[branchID]
	if !ok {
		return nil, apperr.NotFound("branch %d", branchID)
	}
	sd, ok := s.st.subdistricts[b.SubdistrictID]
	if !ok {
		return nil, apperr.NotFound("subdistrict %d", b.SubdistrictID)
	}
	city, ok := s.st.cities[sd.CityID]
	if !ok {
		return nil, apperr.NotFound("city %d", sd.CityID)
	}

	return &entity.LocationChain{
		BranchID:        b.ID,
		BranchName:      b.Name,
		SubdistrictID:   sd.ID,
		SubdistrictName: sd.Name,
		CityID:          city.ID,
		CityName:        city.Name,
	}, nil
}

// GetSubdistrict implements port.LocationRepository
func (s *Store) GetSubdistrict(ctx context.Context, id int64) (*entity.Subdistrict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.st.subdistricts[id]
	if !ok {
		return nil, apperr.NotFound("subdistrict %d", id)
	}
	return &sd, nil
}

// GetCity implements port.LocationRepository
func (s *Store) GetCity(ctx context.Context, id int64) (*entity.City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	city, ok := s.st.cities[id]
	if !ok {
		return nil, apperr.NotFound("city %d", id)
	}
	return &city, nil
}

// ActorStore exposes the actor port of a Store
type ActorStore struct{ *Store }

// GetByID implements port.ActorRepository
func (a ActorStore) GetByID(ctx context.Context, id int64) (*entity.Actor, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	actor, ok := a.st.actors[id]
	if !ok {
		return nil, apperr.NotFound("actor %d", id)
	}
	return &actor, nil
}

// Verify interface compliance
var (
	_ port.ReportRepository   = (*Store)(nil)
	_ port.LocationRepository = (*Store)(nil)
	_ port.TransactionManager = (*Store)(nil)
	_ port.CommentRepository  = CommentStore{}
	_ port.HistoryRepository  = HistoryStore{}
	_ port.ActorRepository    = ActorStore{}
)
