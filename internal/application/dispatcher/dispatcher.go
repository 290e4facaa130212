package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/sales-reports/internal/domain/event"
)

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher routes report events to registered handlers
type Dispatcher interface {
	// Subscribe registers handler under name for eventType (or AnyEvent).
	// Registering a name twice for the same type replaces the earlier handler.
	Subscribe(eventType event.Type, name string, handler Handler)

	// Unsubscribe removes a handler by name and reports whether it existed
	Unsubscribe(eventType event.Type, name string) bool

	// Dispatch runs every matching handler in registration order and joins their errors
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs matching handlers in the background on a context
	// detached from ctx's cancellation and bounded by the handler timeout
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns the handlers registered for exactly eventType
	ListHandlers(eventType event.Type) []HandlerInfo

	// Stats reports delivery counters
	Stats() Stats

	// Close rejects new events and waits for running async handlers
	Close() error
}

// Stats counts handler runs
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	InFlight  int64  `json:"in_flight"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	seq      int

	logger         Logger
	handlerTimeout time.Duration
	slots          chan struct{}

	wg     sync.WaitGroup
	closed atomic.Bool

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	inFlight  atomic.Int64
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHandlerTimeout bounds each async handler run
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *eventDispatcher) {
		if timeout > 0 {
			d.handlerTimeout = timeout
		}
	}
}

// WithMaxInFlight caps how many async handlers run at once; 0 means unbounded
func WithMaxInFlight(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.slots = make(chan struct{}, n)
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers:       make(map[event.Type][]HandlerInfo),
		logger:         nopLogger{},
		handlerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name == "" {
		d.seq++
		name = fmt.Sprintf("handler-%d", d.seq)
	}
	info := HandlerInfo{Name: name, EventType: eventType, Handler: handler}

	list := d.handlers[eventType]
	for i := range list {
		if list[i].Name == name {
			list[i] = info
			d.logger.Info("Handler replaced", "event_type", eventType, "handler_name", name)
			return
		}
	}
	d.handlers[eventType] = append(list, info)
	d.logger.Info("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.handlers[eventType]
	for i := range list {
		if list[i].Name == name {
			d.handlers[eventType] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (d *eventDispatcher) matching(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.matchingLocked(eventType)
}

// matchingLocked returns the handlers for eventType followed by the wildcard ones.
// The caller holds d.mu.
func (d *eventDispatcher) matchingLocked(eventType event.Type) []HandlerInfo {
	out := append([]HandlerInfo(nil), d.handlers[eventType]...)
	if eventType != AnyEvent {
		out = append(out, d.handlers[AnyEvent]...)
	}
	return out
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	var errs []error
	for _, h := range d.matching(evt.Type) {
		if err := d.run(ctx, evt, h); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", h.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	// Close flips closed under the write lock, so no Add can follow its Wait
	d.mu.RLock()
	if d.closed.Load() {
		d.mu.RUnlock()
		d.dropped.Add(1)
		d.logger.Error("Event dropped, dispatcher closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}
	handlers := d.matchingLocked(evt.Type)
	d.wg.Add(len(handlers))
	d.mu.RUnlock()

	// request contexts are cancelled as soon as the response is written
	base := context.WithoutCancel(ctx)

	for _, h := range handlers {
		go func(h HandlerInfo) {
			defer d.wg.Done()

			if d.slots != nil {
				d.slots <- struct{}{}
				defer func() { <-d.slots }()
			}

			hctx, cancel := context.WithTimeout(base, d.handlerTimeout)
			defer cancel()
			_ = d.run(hctx, evt, h)
		}(h)
	}
}

// run executes one handler, converting a panic into an error and counting the outcome
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, h HandlerInfo) (err error) {
	d.inFlight.Add(1)
	defer func() {
		d.inFlight.Add(-1)
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("Event handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"report_id", evt.ReportID,
				"handler_name", h.Name,
				"error", err,
			)
			return
		}
		d.delivered.Add(1)
	}()

	return h.Handler(ctx, evt)
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]HandlerInfo, len(d.handlers[eventType]))
	for i, h := range d.handlers[eventType] {
		out[i] = HandlerInfo{Name: h.Name, EventType: h.EventType}
	}
	return out
}

func (d *eventDispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		InFlight:  d.inFlight.Load(),
	}
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.mu.Unlock()

	d.logger.Info("Closing dispatcher, draining async handlers")
	d.wg.Wait()

	s := d.Stats()
	d.logger.Info("Dispatcher closed", "delivered", s.Delivered, "failed", s.Failed, "dropped", s.Dropped)
	return nil
}
