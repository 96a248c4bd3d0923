package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// newScheduler registers job on spec behind an overlap guard. The returned
// trigger runs the guarded job once, so a manual run and a cron tick never
// overlap.
func newScheduler(spec string, job func()) (*cron.Cron, func(), error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := c.AddFunc(spec, job)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid SCHEDULE %q: %w", spec, err)
	}
	trigger := func() { c.Entry(id).WrappedJob.Run() }
	return c, trigger, nil
}
