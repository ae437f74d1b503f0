// Package jobs runs the scheduled background tasks a project declares
// under src/jobs/**/job.ts. Each schedule string a discovered job.ts
// exports gets one cron subscription, matching spec §4.H's description of the
// collaborator contract `Cron(expression, {protect: true}, callback)`:
// robfig/cron/v3's SkipIfStillRunning wrapper is this module's
// `protect: true`, and a recovering, error-logging job wrapper is its
// try/catch so one job's failure never stops the scheduler.
package jobs

import (
	"context"
	"path"
	"strings"

	"github.com/robfig/cron/v3"

	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/platform"
)

// Descriptor is one discovered job.ts module. Its schedule is read by
// invoking the module's exported `schedule` value at registration
// time, since discovery only walks the filesystem.
type Descriptor struct {
	// Name is the directory-relative path to the job file, with the
	// trailing "/job.ts" removed, e.g. "cleanup/expired-sessions".
	Name       string
	ModulePath string
}

// Invoker runs one job's exported handler to completion. It is
// satisfied by an *internal/jsruntime.Runtime in production and by a
// fake in tests.
type Invoker interface {
	Invoke(ctx context.Context, module, export string, args, out any) error
}

// Discover walks root looking for job.ts files and returns one
// Descriptor per file. It does not read any schedule: that requires
// executing the module, so the caller resolves it at registration
// time.
func Discover(fsys platform.FileSystem, root string) ([]Descriptor, error) {
	var out []Descriptor
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			full := path.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if e.Name() != "job.ts" {
				continue
			}
			rel := strings.TrimPrefix(full, root)
			rel = strings.TrimPrefix(rel, "/")
			name := strings.TrimSuffix(rel, "/job.ts")
			out = append(out, Descriptor{Name: name, ModulePath: full})
		}
		return nil
	}
	if !fsys.Exists(root) {
		return nil, nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// Scheduler owns one robfig/cron instance and the overlap-protected,
// panic-contained subscriptions registered on it.
type Scheduler struct {
	cron *cron.Cron
}

// New returns a Scheduler using the standard five-field cron spec
// parser.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Register subscribes fn to run on schedule under the display name
// name. Overlapping runs are skipped rather than queued; a panic or
// returned error from fn is logged against name and does not
// propagate.
func (s *Scheduler) Register(name, schedule string, fn func(ctx context.Context) error) error {
	chain := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger))
	job := chain.Then(&jobRunner{name: name, fn: fn})
	_, err := s.cron.AddJob(schedule, job)
	return err
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler without waiting; the returned context is
// done once any in-flight job has finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

type jobRunner struct {
	name string
	fn   func(ctx context.Context) error
}

func (r *jobRunner) Run() {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("job %s panicked: %v", r.name, rec)
		}
	}()
	if err := r.fn(context.Background()); err != nil {
		logging.Error("job %s failed: %v", r.name, err)
	}
}
