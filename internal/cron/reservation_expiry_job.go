package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/logger"
)

const ReservationExpiryJobName = "reservation-expiry"

type reservationSweeper interface {
	ExpireSweep(ctx context.Context, tenantID *uuid.UUID) (int64, error)
}

type reservationExpiryJob struct {
	logg    *logger.Logger
	sweeper reservationSweeper
}

// NewReservationExpiryJob sweeps expired holds for every tenant as the system actor.
func NewReservationExpiryJob(logg *logger.Logger, sweeper reservationSweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("reservation sweeper required")
	}
	return &reservationExpiryJob{logg: logg, sweeper: sweeper}, nil
}

func (j *reservationExpiryJob) Name() string { return ReservationExpiryJobName }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	ctx = tenancy.WithActor(ctx, tenancy.SystemActor(uuid.Nil))
	removed, err := j.sweeper.ExpireSweep(ctx, nil)
	if err != nil {
		return fmt.Errorf("expire reservations: %w", err)
	}
	if removed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "removed", removed), "expired reservations swept")
	}
	return nil
}
