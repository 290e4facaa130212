package dispatcher

import (
	"context"

	"github.com/garyjia/sales-reports/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// AnyEvent subscribes a handler to every event type
const AnyEvent event.Type = "*"
