package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/event"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/memory"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockDeletePolicy struct {
	canDeleteFunc func(ctx context.Context, actorID, reportID int64) (bool, error)
}

func (m *mockDeletePolicy) CanDelete(ctx context.Context, actorID, reportID int64) (bool, error) {
	if m.canDeleteFunc != nil {
		return m.canDeleteFunc(ctx, actorID, reportID)
	}
	return true, nil
}

type mockLocker struct {
	obtainFunc func(ctx context.Context, key string, ttl time.Duration) (port.Lock, error)
}

func (m *mockLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (port.Lock, error) {
	if m.obtainFunc != nil {
		return m.obtainFunc(ctx, key, ttl)
	}
	return mockLock{}, nil
}

type mockLock struct{}

func (mockLock) Release(ctx context.Context) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) Types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type mockMessageSender struct {
	mu       sync.Mutex
	sent     []port.Recipient
	messages []string
	sendFunc func(ctx context.Context, to port.Recipient, content string) error
}

func (m *mockMessageSender) SendMessage(ctx context.Context, to port.Recipient, content string) error {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, to, content)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	m.messages = append(m.messages, content)
	return nil
}

// barrierRepo holds every GetByID until n readers have loaded the report
type barrierRepo struct {
	port.ReportRepository
	arrived *sync.WaitGroup
}

func newBarrierRepo(inner port.ReportRepository, n int) *barrierRepo {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	return &barrierRepo{ReportRepository: inner, arrived: wg}
}

func (b *barrierRepo) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	r, err := b.ReportRepository.GetByID(ctx, id)
	b.arrived.Done()
	b.arrived.Wait()
	return r, err
}

// Jakarta fixture: Blok M and Senayan in Kebayoran Baru (Jakarta Selatan), Cikini in Menteng (Jakarta Pusat)
var (
	sari = entity.Actor{
		ID: 1, Name: "Sari", Role: entity.RoleBranchUser,
		BranchID: 10, BranchName: "Blok M",
		SubdistrictID: 3, SubdistrictName: "Kebayoran Baru",
		CityID: 1, CityName: "Jakarta Selatan",
	}
	budi = entity.Actor{
		ID: 2, Name: "Budi", Role: entity.RoleBranchUser,
		BranchID: 12, BranchName: "Cikini",
		SubdistrictID: 4, SubdistrictName: "Menteng",
		CityID: 2, CityName: "Jakarta Pusat",
	}
	kebayoranAdmin = entity.Actor{ID: 20, Name: "Rina", Role: entity.RoleSubdistrictAdmin, SubdistrictID: 3, SubdistrictName: "Kebayoran Baru"}
	mentengAdmin   = entity.Actor{ID: 21, Name: "Agus", Role: entity.RoleSubdistrictAdmin, SubdistrictID: 4, SubdistrictName: "Menteng"}
	selatanAdmin   = entity.Actor{ID: 30, Name: "Dewi", Role: entity.RoleCityAdmin, CityID: 1, CityName: "Jakarta Selatan"}
	pusatAdmin     = entity.Actor{ID: 31, Name: "Eko", Role: entity.RoleCityAdmin, CityID: 2, CityName: "Jakarta Pusat"}
	superAdmin     = entity.Actor{ID: 99, Name: "Root", Role: entity.RoleSuperAdmin}
)

func money(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func completeInput() ReportInput {
	return ReportInput{
		Period:   "2024-05",
		Stock:    money(120),
		Expenses: money(4500000),
		Income:   money(9800000),
		Notes:    "monthly close",
	}
}

func newTestStore() *memory.Store {
	store := memory.NewStore()
	store.AddCity(entity.City{ID: 1, Name: "Jakarta Selatan"})
	store.AddCity(entity.City{ID: 2, Name: "Jakarta Pusat"})
	store.AddSubdistrict(entity.Subdistrict{ID: 3, Name: "Kebayoran Baru", CityID: 1})
	store.AddSubdistrict(entity.Subdistrict{ID: 4, Name: "Menteng", CityID: 2})
	store.AddBranch(entity.Branch{ID: 10, Name: "Blok M", SubdistrictID: 3})
	store.AddBranch(entity.Branch{ID: 11, Name: "Senayan", SubdistrictID: 3})
	store.AddBranch(entity.Branch{ID: 12, Name: "Cikini", SubdistrictID: 4})
	return store
}

type fixture struct {
	store     *memory.Store
	svc       ReportService
	publisher *recordingPublisher
}

func newFixture(t *testing.T, opts ...ReportOption) *fixture {
	t.Helper()
	store := newTestStore()
	return newFixtureWithRepo(t, store, store, opts...)
}

func newFixtureWithRepo(t *testing.T, store *memory.Store, reports port.ReportRepository, opts ...ReportOption) *fixture {
	t.Helper()
	publisher := &recordingPublisher{}
	opts = append([]ReportOption{WithPublisher(publisher)}, opts...)

	svc := NewReportService(
		reports,
		memory.CommentStore{Store: store},
		memory.HistoryStore{Store: store},
		NewLocationService(store, &mockLogger{}),
		store,
		&mockLogger{},
		opts...,
	)
	return &fixture{store: store, svc: svc, publisher: publisher}
}
