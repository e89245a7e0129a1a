package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Reclaimer periodically releases the slots of unverified bookings whose
// hold has lapsed. Submission also reclaims lazily, so a stopped sweep only
// delays cleanup of pairs nobody is booking.
type Reclaimer struct {
	scheduler gocron.Scheduler
	service   Service
	interval  time.Duration
}

func NewReclaimer(service Service, interval time.Duration) (*Reclaimer, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	r := &Reclaimer{scheduler: sched, service: service, interval: interval}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.sweep),
		gocron.WithName("reclaim-expired-bookings"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reclaim job: %w", err)
	}
	return r, nil
}

func (r *Reclaimer) Start() {
	r.scheduler.Start()
	logrus.WithField("interval", r.interval.String()).Info("reclaim sweep started")
}

func (r *Reclaimer) Stop() error {
	return r.scheduler.Shutdown()
}

func (r *Reclaimer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	n, err := r.service.ReclaimExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("reclaim sweep failed")
		return
	}
	if n > 0 {
		logrus.WithField("count", n).Debug("reclaim sweep finished")
	}
}
