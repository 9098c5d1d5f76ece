package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"herald/internal/logging"
)

// ParseCron parses a standard five-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(expr)
}

// NextRuns returns the next n fire times across all expressions, in order.
func NextRuns(exprs []string, from time.Time, n int) ([]time.Time, error) {
	var out []time.Time
	for _, e := range exprs {
		s, err := ParseCron(e)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %w", e, err)
		}
		t := from
		for i := 0; i < n; i++ {
			t = s.Next(t)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Cron fires job on every schedule. A firing that lands while the previous
// one is still running is skipped.
type Cron struct {
	c   *cron.Cron
	job func(context.Context)
	ctx context.Context
}

func NewCron(exprs []string, job func(context.Context)) (*Cron, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("no cron schedules configured")
	}
	l := cronLogger{}
	cr := &Cron{
		c: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		job: job,
		ctx: context.Background(),
	}
	for _, e := range exprs {
		if _, err := cr.c.AddFunc(e, func() { cr.job(cr.ctx) }); err != nil {
			return nil, fmt.Errorf("cron %q: %w", e, err)
		}
	}
	return cr, nil
}

// Run starts the scheduler and blocks until ctx is cancelled and the
// running job, if any, has returned.
func (c *Cron) Run(ctx context.Context) error {
	c.ctx = ctx
	c.c.Start()
	logging.Info("cron_started", map[string]any{"next": c.Next()})
	<-ctx.Done()
	<-c.c.Stop().Done()
	logging.Info("cron_stopped", nil)
	return ctx.Err()
}

// Next returns the next fire time of every entry.
func (c *Cron) Next() []time.Time {
	var out []time.Time
	for _, e := range c.c.Entries() {
		out = append(out, e.Next)
	}
	return out
}

// cronLogger routes robfig/cron logs into the service logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("cron_"+msg, kv(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	f := kv(keysAndValues)
	f["error"] = err
	logging.Error("cron_"+msg, f)
}

func kv(keysAndValues []interface{}) map[string]any {
	f := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			f[k] = keysAndValues[i+1]
		}
	}
	return f
}
