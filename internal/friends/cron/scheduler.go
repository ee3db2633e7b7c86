package cronjob

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/sonenae10-blip/todo/internal/friends"
)

// DefaultSpec runs the audit nightly at 03:00.
const DefaultSpec = "0 3 * * *"

// Auditor is the part of the friends service the scheduler drives.
type Auditor interface {
	Audit(ctx context.Context, repair bool) (friends.AuditReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	auditor Auditor
	spec    string
	repair  bool
	timeout time.Duration
	log     *log.Logger
}

func NewScheduler(auditor Auditor, spec string, repair bool, loc *time.Location, logger *log.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		auditor: auditor,
		spec:    spec,
		repair:  repair,
		timeout: 5 * time.Minute,
		log:     logger,
	}
}

// Start registers the audit job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runAudit); err != nil {
		return fmt.Errorf("add friend audit job: %w", err)
	}
	s.cron.Start()
	s.log.Info("cron scheduler started", "job", "friend-audit", "spec", s.spec, "repair", s.repair)
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("cron scheduler stopped")
}

func (s *Scheduler) runAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	report, err := s.auditor.Audit(ctx, s.repair)
	if err != nil {
		s.log.Error("friend audit failed", "err", err)
		return
	}
	if len(report.Orphans) > 0 {
		s.log.Warn("friend audit found one-sided relationships",
			"checked", report.Checked, "orphans", len(report.Orphans), "repaired", report.Repaired)
		return
	}
	s.log.Info("friend audit completed", "checked", report.Checked, "took", time.Since(started))
}
