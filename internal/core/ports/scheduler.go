package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()
	ScheduleTaskOnce(at time.Time, task func()) error
}
