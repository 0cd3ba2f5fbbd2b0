//go:build protogen

// Package schedule provides an optional remote ScheduleProvider backed by a
// central scheduling service over gRPC. When no address is configured (or the
// binary is built without protogen), the service falls back to the local
// clinic_hours tables.
package schedule

import (
	"context"
	"time"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/libs/grpcx"
	schedulev1 "github.com/clinicboard/clinicboard/protos/gen/schedule/v1"
)

type grpcProvider struct {
	client schedulev1.ScheduleServiceClient
}

// NewProvider dials the scheduling service. An empty address yields a nil
// provider, which callers treat as "use the local schedule".
func NewProvider(addr string) (availability.ScheduleProvider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: schedulev1.NewScheduleServiceClient(conn)}, nil
}

func (p *grpcProvider) PeriodsOn(ctx context.Context, date string) ([]availability.PeriodWindow, error) {
	resp, err := p.client.GetClinicHours(ctx, &schedulev1.ClinicHoursRequest{Date: date})
	if err != nil {
		return nil, err
	}
	var windows []availability.PeriodWindow
	for _, w := range resp.GetWindows() {
		if w.GetOpenTime() == "" || w.GetCloseTime() == "" {
			continue
		}
		windows = append(windows, availability.PeriodWindow{
			Period: availability.Period(w.GetPeriod()),
			Start:  w.GetOpenTime(),
			End:    w.GetCloseTime(),
		})
	}
	return windows, nil
}
