package pipeline

import "context"

// Notifier is told once per finished compile, on both arms, after the bundle is written.
type Notifier interface {
	NotifyReload(ctx context.Context, result BuildResult)
}

// NotifierFunc adapts a zero-argument callback to Notifier.
type NotifierFunc func()

func (f NotifierFunc) NotifyReload(context.Context, BuildResult) { f() }

// Notifiers fans one notification out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) NotifyReload(ctx context.Context, result BuildResult) {
	for _, n := range ns {
		if n != nil {
			n.NotifyReload(ctx, result)
		}
	}
}

type noopNotifier struct{}

func (noopNotifier) NotifyReload(context.Context, BuildResult) {}
