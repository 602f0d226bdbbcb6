package cron

import (
	"context"
	"fmt"
	"strings"

	cronlib "github.com/robfig/cron/v3"
)

// Task is one named maintenance sweep.
type Task struct {
	// Name labels the sweep in logs, metrics and ext.SweepCompleted.
	Name string

	// Schedule is a cron expression or descriptor, e.g. "@every 5m".
	Schedule string

	// Run performs the sweep and returns the number of rows it changed.
	Run func(ctx context.Context) (int, error)
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

func (t Task) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("cron: task name is required")
	}
	if t.Run == nil {
		return fmt.Errorf("cron: task %q has no run function", t.Name)
	}
	if _, err := ParseSchedule(t.Schedule); err != nil {
		return fmt.Errorf("cron: task %q: invalid schedule %q: %w", t.Name, t.Schedule, err)
	}
	return nil
}
