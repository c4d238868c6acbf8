// Package tasks runs named build tasks after their dependencies.
//
// A task declares the tasks that must finish before it starts. Running a task
// executes its whole dependency closure once, in topological order, on the
// calling goroutine.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/logfields"
)

// Func is the body of a task. A nil Func is allowed for pure aggregate tasks.
type Func func(ctx context.Context) error

// Task is a named unit of work with prerequisites.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Run         Func
}

// Registry holds the defined tasks.
type Registry struct {
	tasks  map[string]*Task
	order  []string
	logger *slog.Logger
}

// NewRegistry returns an empty registry logging to slog.Default().
func NewRegistry() *Registry {
	return &Registry{tasks: map[string]*Task{}, logger: slog.Default()}
}

// WithLogger sets the logger used for task start/finish lines.
func (r *Registry) WithLogger(l *slog.Logger) *Registry {
	r.logger = l
	return r
}

// Define adds a task. Names must be unique.
func (r *Registry) Define(t Task) error {
	if t.Name == "" {
		return ferrors.ValidationError("task name cannot be empty").Build()
	}
	if _, exists := r.tasks[t.Name]; exists {
		return ferrors.ValidationError(fmt.Sprintf("task %q already defined", t.Name)).Build()
	}
	task := t
	r.tasks[t.Name] = &task
	r.order = append(r.order, t.Name)
	return nil
}

// MustDefine is Define for static task tables.
func (r *Registry) MustDefine(t Task) {
	if err := r.Define(t); err != nil {
		panic(err)
	}
}

// Names returns the defined task names in definition order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Lookup returns the task with the given name.
func (r *Registry) Lookup(name string) (*Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Plan returns the execution order for target without running anything.
func (r *Registry) Plan(target string) ([]string, error) {
	ordered, err := r.plan(target)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ordered))
	for i, t := range ordered {
		names[i] = t.Name
	}
	return names, nil
}

// Run executes target and its dependency closure. Each task runs once; the
// first error stops the run.
func (r *Registry) Run(ctx context.Context, target string) error {
	ordered, err := r.plan(target)
	if err != nil {
		return err
	}

	for _, task := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if task.Run == nil {
			continue
		}
		start := time.Now()
		r.logger.Info("Starting task", logfields.Task(task.Name))
		if err := task.Run(ctx); err != nil {
			r.logger.Error("Task failed", logfields.Task(task.Name), logfields.Error(err))
			return fmt.Errorf("%s: %w", task.Name, err)
		}
		r.logger.Info("Finished task", logfields.Task(task.Name),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1e3))
	}
	return nil
}
