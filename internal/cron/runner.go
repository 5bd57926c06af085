package cronrunner

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner wraps robfig/cron with named jobs, a shared base context and an
// overlap guard so a slow sweep never stacks on top of itself.
type Runner struct {
	cron    *cron.Cron
	log     *zap.Logger
	baseCtx context.Context
}

func New(log *zap.Logger, baseCtx context.Context) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		log:     log,
		baseCtx: baseCtx,
	}
}

// Add schedules a job. A tick is skipped when the previous invocation of
// the same job is still running.
func (r *Runner) Add(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	var running atomic.Bool
	return r.cron.AddFunc(spec, func() {
		if !running.CompareAndSwap(false, true) {
			r.log.Warn("cron job still running, tick skipped", zap.String("job", name))
			return
		}
		defer running.Store(false)

		if err := job(r.baseCtx); err != nil {
			r.log.Error("cron job failed", zap.String("job", name), zap.Error(err))
		}
	})
}

func (r *Runner) Start() {
	r.log.Info("cron started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("cron stopped")
}
