package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunNow(ctx context.Context, name string) error
	Start(ctx context.Context)
	Stop()
}

type scheduledJob struct {
	job     Job
	entryID cron.EntryID
	running atomic.Bool
}

// CronScheduler runs maintenance jobs on standard five field cron specs.
// A job never overlaps with itself, whether triggered by cron or RunNow.
type CronScheduler struct {
	cron *cron.Cron
	mu   sync.Mutex
	jobs map[string]*scheduledJob
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]*scheduledJob),
		ctx:  context.Background(),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	sj := &scheduledJob{job: job}
	entryID, err := c.cron.AddFunc(spec, func() {
		_ = c.run(c.context(), sj, spec)
	})
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	sj.entryID = entryID
	c.jobs[name] = sj
	logger.Info("job scheduled")
	return nil
}

// RunNow runs a scheduled job synchronously, outside its cron slot.
func (c *CronScheduler) RunNow(ctx context.Context, name string) error {
	c.mu.Lock()
	sj, ok := c.jobs[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return c.run(ctx, sj, "manual")
}

// Jobs returns the registered job names, sorted.
func (c *CronScheduler) Jobs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.jobs))
	for name := range c.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *CronScheduler) run(ctx context.Context, sj *scheduledJob, spec string) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", sj.job.Name()),
		zap.String("spec", spec),
	)
	if !sj.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return nil
	}
	defer sj.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	err := sj.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
	return nil
}
