package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MetricKey identifies one computed metric result. The signal count is part
// of the key, so newly ingested signals produce a fresh entry instead of
// needing an explicit invalidation.
func MetricKey(softwareID uuid.UUID, metric string, windowDays int, stage string, day time.Time, signalCount int) string {
	if stage == "" {
		stage = "all"
	}
	return fmt.Sprintf("metric:%s:%s:w%d:%s:%s:n%d", softwareID, metric, windowDays, stage, day.Format(time.DateOnly), signalCount)
}

func TrajectoryKey(softwareID uuid.UUID, day time.Time, signalCount int) string {
	return fmt.Sprintf("trajectory:%s:%s:n%d", softwareID, day.Format(time.DateOnly), signalCount)
}

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
