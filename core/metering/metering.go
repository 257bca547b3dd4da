package metering

import (
	"context"
	"time"

	"github.com/cloudverse/metering-center/config"
	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/cloudverse/metering-center/core/pricing"
	"github.com/cloudverse/metering-center/core/tasklock"
	logging "github.com/ipfs/go-log/v2"
	"github.com/robfig/cron/v3"
)

var log = logging.Logger("metering")

const defaultLockExpire = 2 * time.Hour

// Manager owns the periodic settlement jobs. An external multi-host
// scheduler (every service instance runs the same crontab) triggers each
// job; the per-task lock decides which instance actually executes a cycle.
type Manager struct {
	ctx     context.Context
	cfg     config.MeteringConfig
	cron    *cron.Cron
	locks   *tasklock.Registry
	pricing *pricing.PriceManager
	mailer  tasklock.Mailer
}

func New(cfg config.MeteringConfig, locks *tasklock.Registry, mailer tasklock.Mailer) *Manager {
	return &Manager{
		ctx:     context.Background(),
		cfg:     cfg,
		cron:    cron.New(cron.WithLocation(time.Local)),
		locks:   locks,
		pricing: pricing.NewPriceManager(),
		mailer:  mailer,
	}
}

// Run registers the cron entries and starts the scheduler.
func (m *Manager) Run() error {
	if m.cfg.Disable {
		return nil
	}

	entries := []struct {
		spec string
		task model.TaskName
		job  func(ctx context.Context) error
	}{
		{m.cfg.MeteringCrontab, model.TaskMetering, m.runMeteringCycle},
		{m.cfg.ExpiryCrontab, model.TaskAlertEmail, m.runExpiryCycle},
		{m.cfg.ReportCrontab, model.TaskReportMonthly, m.runReportCycle},
	}

	for _, entry := range entries {
		if entry.spec == "" {
			continue
		}
		if _, err := m.cron.AddFunc(entry.spec, m.withTaskLock(entry.task, entry.job)); err != nil {
			return err
		}
	}

	m.cron.Start()
	return nil
}

func (m *Manager) Close() {
	<-m.cron.Stop().Done()
}

func (m *Manager) lockExpirePeriod() time.Duration {
	if m.cfg.LockExpireMinutes > 0 {
		return time.Duration(m.cfg.LockExpireMinutes) * time.Minute
	}
	return defaultLockExpire
}

// withTaskLock wraps a job in the documented lock protocol: acquire, mark
// start, run, and always release with the run outcome. Contention is a
// normal early return, another host owns this cycle. The release happens
// even when the job fails; a failed release triggers the unreleased-lock
// notification.
func (m *Manager) withTaskLock(task model.TaskName, job func(ctx context.Context) error) func() {
	return func() {
		lock, err := m.locks.Get(task)
		if err != nil {
			log.Errorf("get task lock %s: %v", task, err)
			return
		}

		expireTime := time.Now().Add(m.lockExpirePeriod())
		ok, err := lock.Acquire(m.ctx, expireTime)
		if !ok {
			if errors.IsCode(err, errors.LockContention) {
				taskLockContentionTotal.WithLabelValues(string(task)).Inc()
				log.Debugf("task %s: %v", task, err)
			} else {
				log.Errorf("acquire task lock %s: %v", task, err)
			}
			return
		}

		if ok, err := lock.MarkStartTask(m.ctx, nil); !ok {
			log.Errorf("mark task %s start: %v", task, err)
		}

		started := time.Now()
		runDesc := "success"
		if err := job(m.ctx); err != nil {
			log.Errorf("task %s: %v", task, err)
			runDesc = err.Error()
		}
		result := "success"
		if runDesc != "success" {
			result = "failure"
		}
		taskRunSeconds.WithLabelValues(string(task)).Set(time.Since(started).Seconds())
		taskRunTotal.WithLabelValues(string(task), result).Inc()

		if ok, err := lock.Release(m.ctx, runDesc); !ok {
			log.Errorf("release task lock %s: %v", task, err)
			if err := lock.NotifyUnreleased(m.ctx); err != nil {
				log.Errorf("notify unreleased lock %s: %v", task, err)
			}
		}
	}
}

// runMeteringCycle meters the previous day, settles it into daily
// statements, then re-checks owners for arrears against the new totals.
// The price table is re-read every cycle.
func (m *Manager) runMeteringCycle(ctx context.Context) error {
	m.pricing.Refresh()
	date := time.Now().AddDate(0, 0, -1)

	if err := MeterServers(ctx, m.pricing, date); err != nil {
		return err
	}
	if err := GenerateDailyStatements(ctx, date); err != nil {
		return err
	}
	return DetectArrears(ctx)
}

func (m *Manager) runExpiryCycle(ctx context.Context) error {
	return NotifyExpiring(ctx, m.mailer, m.cfg.ExpiryAheadDays)
}

func (m *Manager) runReportCycle(ctx context.Context) error {
	return SendMonthlyReport(ctx, m.mailer)
}
