// Package orchestrator implements the Orchestrator (§4.11): the long-lived
// process that ticks the scanning pipeline's five job types on independent
// schedules, isolating each job's failures from the others. Grounded on
// the teacher's internal/scheduler.Scheduler — its YAML-driven JobConfig
// list, enabled flag, and RunJob(ctx, name, dryRun) ad hoc entry point are
// kept; its single 1-minute poll-every-job loop is generalized into one
// ticker goroutine per job, since this pipeline's job intervals span
// seconds to a day and a single one-minute poll cannot serve a
// tens-of-seconds cadence without starving it.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Job types dispatched by RunJob and the scheduled loops.
const (
	JobTickerDiscovery   = "ticker_discovery"
	JobPriceMonitor      = "price_monitor"
	JobOrderbookAnalysis = "orderbook_analysis"
	JobConvergence       = "convergence"
	JobSafetyAlert       = "safety_alert"
)

// errorBackoff is how long a job loop pauses after its run function
// returns an error before trying again (§4.11).
const errorBackoff = 60 * time.Second

// JobConfig is one configured job: its type selects which dispatch
// function runs, and Interval is its own schedule, independent of every
// other job's.
type JobConfig struct {
	Name     string        `yaml:"name"`
	Type     string        `yaml:"type"`
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// FileConfig is the on-disk shape of the job list, with Interval expressed
// as a YAML duration string ("30s", "1h") rather than a raw
// time.Duration, which yaml.v3 cannot unmarshal directly.
type FileConfig struct {
	Jobs []struct {
		Name     string `yaml:"name"`
		Type     string `yaml:"type"`
		Interval string `yaml:"interval"`
		Enabled  bool   `yaml:"enabled"`
	} `yaml:"jobs"`
}

// LoadJobConfig reads and parses a job list YAML file.
func LoadJobConfig(path string) ([]JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read job config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("orchestrator: parse job config: %w", err)
	}
	jobs := make([]JobConfig, 0, len(fc.Jobs))
	for _, j := range fc.Jobs {
		interval, err := time.ParseDuration(j.Interval)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: job %s: invalid interval %q: %w", j.Name, j.Interval, err)
		}
		jobs = append(jobs, JobConfig{Name: j.Name, Type: j.Type, Interval: interval, Enabled: j.Enabled})
	}
	return jobs, nil
}

// DefaultJobs is the standard five-job pipeline from §4.11, used when no
// job config file is supplied.
func DefaultJobs() []JobConfig {
	return []JobConfig{
		{Name: "ticker-discovery", Type: JobTickerDiscovery, Interval: 24 * time.Hour, Enabled: true},
		{Name: "price-monitor", Type: JobPriceMonitor, Interval: 5 * time.Second, Enabled: true},
		{Name: "orderbook-analysis", Type: JobOrderbookAnalysis, Interval: 30 * time.Second, Enabled: true},
		{Name: "convergence", Type: JobConvergence, Interval: 2 * time.Minute, Enabled: true},
		{Name: "safety-alert", Type: JobSafetyAlert, Interval: 10 * time.Second, Enabled: true},
	}
}

// JobResult is the outcome of a single job run, returned by RunJob and
// used by the CLI's `schedule run` subcommand.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// runFunc is one job type's dispatch body. dryRun jobs must not mutate
// external state (no writes, no alert emission).
type runFunc func(ctx context.Context, dryRun bool) error

// Orchestrator runs the configured job list, each on its own ticker, with
// per-job panic/error isolation so a failing job never takes the others
// down with it.
type Orchestrator struct {
	jobs     []JobConfig
	dispatch map[string]runFunc
	recorder JobRecorder

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// JobRecorder is the narrow metrics contract the orchestrator needs —
// satisfied by *metrics.Registry, kept as an interface here so this
// package never imports internal/metrics directly.
type JobRecorder interface {
	RecordJob(job, result string, d time.Duration)
}

// New builds an Orchestrator over jobs, dispatching each configured job
// type via deps' Run* methods.
func New(jobs []JobConfig, deps *Deps, recorder JobRecorder) *Orchestrator {
	return &Orchestrator{
		jobs:    jobs,
		lastRun: make(map[string]time.Time),
		recorder: recorder,
		dispatch: map[string]runFunc{
			JobTickerDiscovery:   deps.RunTickerDiscovery,
			JobPriceMonitor:      deps.RunPriceMonitor,
			JobOrderbookAnalysis: deps.RunOrderbookAnalysis,
			JobConvergence:       deps.RunConvergence,
			JobSafetyAlert:       deps.RunSafetyAlert,
		},
	}
}

// Start runs every enabled job on its own ticker until ctx is cancelled.
// Each job's loop recovers from panics and backs off errorBackoff after an
// error, so no single job's failure can stop the others or the process.
func (o *Orchestrator) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range o.jobs {
		if !job.Enabled {
			log.Info().Str("job", job.Name).Msg("orchestrator: job disabled, skipping")
			continue
		}
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.loop(ctx, job)
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) loop(ctx context.Context, job JobConfig) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := o.runOnce(ctx, job, false)
			if !result.Success {
				log.Warn().Str("job", job.Name).Str("error", result.Error).
					Dur("backoff", errorBackoff).Msg("orchestrator: job failed, backing off")
				select {
				case <-ctx.Done():
					return
				case <-time.After(errorBackoff):
				}
			}
		}
	}
}

// RunJob executes one configured job by name immediately, outside its
// regular schedule — the `schedule run` CLI subcommand's entry point.
func (o *Orchestrator) RunJob(ctx context.Context, name string, dryRun bool) (*JobResult, error) {
	for _, job := range o.jobs {
		if job.Name == name {
			result := o.runOnce(ctx, job, dryRun)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("orchestrator: job not found: %s", name)
}

func (o *Orchestrator) runOnce(ctx context.Context, job JobConfig, dryRun bool) JobResult {
	fn, ok := o.dispatch[job.Type]
	if !ok {
		return JobResult{JobName: job.Name, StartedAt: time.Now(), Success: false,
			Error: fmt.Sprintf("unknown job type: %s", job.Type)}
	}

	start := time.Now()
	result := JobResult{JobName: job.Name, StartedAt: start, Success: true}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Success = false
				result.Error = fmt.Sprintf("panic: %v", r)
			}
		}()
		if err := fn(ctx, dryRun); err != nil {
			result.Success = false
			result.Error = err.Error()
		}
	}()

	result.Duration = time.Since(start)

	o.mu.Lock()
	o.lastRun[job.Name] = start
	o.mu.Unlock()

	outcome := "ok"
	if !result.Success {
		outcome = "error"
	}
	if o.recorder != nil {
		o.recorder.RecordJob(job.Name, outcome, result.Duration)
	}
	if result.Success {
		log.Info().Str("job", job.Name).Dur("duration", result.Duration).Msg("orchestrator: job completed")
	} else {
		log.Error().Str("job", job.Name).Str("error", result.Error).Msg("orchestrator: job failed")
	}
	return result
}

// LastRun returns when job last ran, if it has run at all.
func (o *Orchestrator) LastRun(name string) (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.lastRun[name]
	return t, ok
}
