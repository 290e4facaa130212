package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/event"
)

// DeletePolicy is the delegated business rule consulted before a report is deleted
type DeletePolicy interface {
	CanDelete(ctx context.Context, actorID, reportID int64) (bool, error)
}

// ErrLockNotObtained is returned when a lock is held elsewhere past the retry budget
var ErrLockNotObtained = errors.New("lock not obtained")

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes work on a key across callers
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// EventPublisher publishes domain events after a change is committed
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// Recipient addresses a notification to one actor or to the reviewers of an area
type Recipient struct {
	ActorID       int64
	Role          entity.Role
	SubdistrictID int64
	CityID        int64
}

// MessageSender delivers notification text
type MessageSender interface {
	SendMessage(ctx context.Context, to Recipient, content string) error
}
