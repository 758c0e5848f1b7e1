// Package presence maintains the soft isActive/lastActive flags on users.
//
// isActive means "recently logged in", not "holds a live connection": a user
// who closes the tab without logging out stays active until the sweep runs.
// Live connectivity is only known to the chat server's hub.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is the slice of the user repository the tracker writes through.
type Store interface {
	SetActive(ctx context.Context, id string, active bool) error
	SetLastActive(ctx context.Context, id string, at time.Time) error
	DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tracker updates user presence.
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

func (t *Tracker) Activate(ctx context.Context, userID string) error {
	if err := t.store.SetActive(ctx, userID, true); err != nil {
		return fmt.Errorf("activate %s: %w", userID, err)
	}
	return nil
}

func (t *Tracker) Deactivate(ctx context.Context, userID string) error {
	if err := t.store.SetActive(ctx, userID, false); err != nil {
		return fmt.Errorf("deactivate %s: %w", userID, err)
	}
	return nil
}

// Touch stamps lastActive with the current time.
func (t *Tracker) Touch(ctx context.Context, userID string) error {
	if err := t.store.SetLastActive(ctx, userID, t.now().UTC()); err != nil {
		return fmt.Errorf("touch %s: %w", userID, err)
	}
	return nil
}

// SweepInactive deactivates active users whose lastActive is older than
// maxInactive and returns how many were changed.
func (t *Tracker) SweepInactive(ctx context.Context, maxInactive time.Duration) (int64, error) {
	cutoff := t.now().UTC().Add(-maxInactive)
	n, err := t.store.DeactivateInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep inactive users: %w", err)
	}
	return n, nil
}

// RunSweeper calls SweepInactive every interval until ctx is done.
// A non-positive interval or maxInactive disables the sweep.
func (t *Tracker) RunSweeper(ctx context.Context, interval, maxInactive time.Duration, log *slog.Logger) {
	if interval <= 0 || maxInactive <= 0 {
		log.Info("presence sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := t.SweepInactive(ctx, maxInactive)
			if err != nil {
				log.Error("presence sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("presence sweep deactivated users", "count", n)
			}
		}
	}
}
