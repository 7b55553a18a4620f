//go:build protogen

package workinghours

import (
	"context"
	"time"

	"github.com/slotline/schedcore/libs/grpcx"
	schedulev1 "github.com/slotline/schedcore/protos/gen/schedule/v1"
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

type grpcRemote struct {
	client schedulev1.ScheduleServiceClient
}

func NewRemote(addr string) (Remote, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcRemote{client: schedulev1.NewScheduleServiceClient(conn)}, nil
}

func (r *grpcRemote) GetDayWindow(ctx context.Context, providerID string, date time.Time) (DayWindow, error) {
	resp, err := r.client.GetDayWindow(ctx, &schedulev1.DayWindowRequest{
		ProviderId: providerID,
		Date:       date.Format("2006-01-02"),
	})
	if err != nil {
		return DayWindow{}, err
	}
	w := DayWindow{Working: resp.GetIsWorking()}
	if resp.GetOpenUtc() != nil {
		w.Open = resp.GetOpenUtc().AsTime()
	}
	if resp.GetCloseUtc() != nil {
		w.Close = resp.GetCloseUtc().AsTime()
	}
	if !w.Close.After(w.Open) {
		w.Working = false
	}
	return w, nil
}
