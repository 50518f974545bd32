package service

import (
	"context"

	"loantrack/internal/domain"
)

// Notifier fans core events out to the notification/audit layer. Delivery is
// best-effort; implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event)
}

// NopNotifier drops all events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, domain.Event) {}
