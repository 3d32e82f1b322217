package dashboard

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// startReconciler refetches the snapshot and records fresh analytics on
// schedule. The returned function stops the scheduler and waits for a
// running job.
func (s *Server) startReconciler(spec string) (func(), error) {
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.reconcile); err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", spec, err)
	}
	c.Start()
	s.log.WithField("schedule", spec).Info("reconciler started")
	return func() { <-c.Stop().Done() }, nil
}

// reconcile is one scheduled pass.
func (s *Server) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.ctrl.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("scheduled refetch failed")
		return
	}
	if _, err := s.backend.RecordAnalytics(ctx); err != nil {
		s.log.WithError(err).Warn("recording analytics failed")
		return
	}
	s.log.WithField("version", s.snapshot().Version).Debug("reconciled")
}
