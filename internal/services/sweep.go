package services

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/example/atelier/internal/metrics"
)

// Sweeper runs the order-expiry sweep on a cron schedule. Expiry is also
// checked lazily at accept/reject time; the sweep exists so stale PENDING
// orders transition even when nobody touches them.
type Sweeper struct {
	orders   *OrderService
	cron     *cron.Cron
	schedule string
	log      zerolog.Logger
}

// NewSweeper constructs a Sweeper with the given cron spec.
func NewSweeper(orders *OrderService, schedule string, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		orders:   orders,
		cron:     cron.New(),
		schedule: schedule,
		log:      log.With().Str("component", "sweep").Logger(),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.run)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("deadline sweep scheduled")
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	count, err := s.orders.ExpireOverdue(context.Background())
	if err != nil {
		s.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if count > 0 {
		metrics.OrdersExpired.Add(float64(count))
	}
}
