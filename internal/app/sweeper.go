/**
 * @description
 * Cron scheduler that evicts idle transfer sessions.
 */
package app

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweeper once a minute.
const DefaultSweepSchedule = "@every 1m"

// Sweeper periodically evicts idle sessions from a Service.
type Sweeper struct {
	cron     *cron.Cron
	service  *Service
	schedule string
}

// NewSweeper creates a new sweeper instance.
func NewSweeper(service *Service, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	cronLogger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Sweeper{
		cron:     c,
		service:  service,
		schedule: schedule,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		log.Printf("level=error component=sweeper msg=\"failed to schedule session sweep\" schedule=%q err=%v", s.schedule, err)
		return err
	}
	log.Printf("level=info component=sweeper msg=\"scheduled session sweep\" schedule=%q", s.schedule)
	s.cron.Start()
	return nil
}

func (s *Sweeper) sweep() {
	s.service.EvictIdle()
}

// Stop gracefully stops the cron scheduler.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
