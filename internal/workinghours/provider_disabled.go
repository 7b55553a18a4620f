//go:build !protogen

package workinghours

import (
	"context"
	"time"
)

// DayWindow is a provider's open/close window for one date.
type DayWindow struct {
	Working bool
	Open    time.Time
	Close   time.Time
}

// Remote fetches hours from the schedule-configuration service.
type Remote interface {
	GetDayWindow(ctx context.Context, providerID string, date time.Time) (DayWindow, error)
}

// NewRemote returns no client in builds without generated protobuf
// stubs; the resolver falls back to the local hours cache.
func NewRemote(_ string) (Remote, error) {
	return nil, nil
}
