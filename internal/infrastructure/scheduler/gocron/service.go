package scheduler

import (
	"math"
	"time"

	"github.com/arkade-os/lotteryd/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
	s.scheduler.Clear()
}

// ScheduleTaskOnce runs task once at the given time, or right away if it is
// already past.
func (s *service) ScheduleTaskOnce(at time.Time, task func()) error {
	delay := int(math.Ceil(time.Until(at).Seconds()))
	if delay <= 0 {
		go task()
		return nil
	}

	_, err := s.scheduler.Every(delay).Seconds().WaitForSchedule().LimitRunsTo(1).Do(task)
	return err
}
