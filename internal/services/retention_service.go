package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/core"
)

// RetentionService trims the heartbeat and activity-ping time series, which
// otherwise grow without bound. Dashboard queries are interval-bounded, so
// dropping old rows is invisible to readers.
type RetentionService struct {
	bots     core.BotStore
	activity core.ActivityStore
	days     int
	log      *logrus.Logger
	sched    gocron.Scheduler
}

func NewRetentionService(bots core.BotStore, activity core.ActivityStore, days int, log *logrus.Logger) *RetentionService {
	return &RetentionService{bots: bots, activity: activity, days: days, log: log}
}

// Start schedules a daily sweep. The first run happens immediately so a
// long-stopped deployment catches up on startup.
func (s *RetentionService) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(s.Sweep),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}
	sched.Start()
	s.sched = sched
	return nil
}

func (s *RetentionService) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

func (s *RetentionService) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.days)

	hb, err := s.bots.DeleteHeartbeatsBefore(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("heartbeat retention sweep failed")
	}
	pings, err := s.activity.DeletePingsBefore(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("activity ping retention sweep failed")
	}

	s.log.WithFields(logrus.Fields{
		"cutoff":     cutoff,
		"heartbeats": hb,
		"pings":      pings,
	}).Info("retention sweep done")
}
