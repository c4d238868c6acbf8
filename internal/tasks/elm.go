package tasks

import (
	"context"

	"git.home.luguber.info/inful/elmtasks/internal/compiler"
	"git.home.luguber.info/inful/elmtasks/internal/pipeline"
	"git.home.luguber.info/inful/elmtasks/internal/watch"
)

// Elm task names as exposed on the command line.
const (
	TaskInit    = "elm:init"
	TaskClean   = "elm:clean"
	TaskCompile = "elm:compile"
	TaskWatch   = "elm:watch"
	TaskMain    = "elm:main"
)

// ElmDeps are the collaborators the elm tasks operate on.
type ElmDeps struct {
	Pipeline *pipeline.Pipeline
	Compiler compiler.Compiler
	// Watcher is optional; when nil one is created for the pipeline's source glob.
	Watcher      *watch.Watcher
	WatchOptions []watch.Option
}

// Elm returns the registry of elm:* tasks:
//
//	elm:init
//	elm:clean
//	elm:compile  <- elm:clean
//	elm:watch    <- elm:compile
//	elm:main     <- elm:clean, elm:compile, elm:watch
//
// elm:compile never fails on compiler errors; they land in the pipeline's
// error log. Changes seen by elm:watch re-run the compile step only, so
// stale output removal happens once per invocation.
func Elm(d ElmDeps) *Registry {
	r := NewRegistry()
	p := d.Pipeline

	r.MustDefine(Task{
		Name:        TaskInit,
		Description: "Make sure the Elm compiler is installed and the project initialized",
		Run:         d.Compiler.Init,
	})
	r.MustDefine(Task{
		Name:        TaskClean,
		Description: "Remove previously generated output",
		Run:         p.Clean,
	})
	r.MustDefine(Task{
		Name:        TaskCompile,
		Description: "Compile the application bundle",
		Deps:        []string{TaskClean},
		Run: func(ctx context.Context) error {
			p.Compile(ctx)
			return nil
		},
	})
	r.MustDefine(Task{
		Name:        TaskWatch,
		Description: "Watch sources and recompile on change",
		Deps:        []string{TaskCompile},
		Run: func(ctx context.Context) error {
			w := d.Watcher
			if w == nil {
				var err error
				if w, err = watch.New(p.SourceGlob(), d.WatchOptions...); err != nil {
					return err
				}
			}
			p.BeginWatch()
			defer p.EndWatch()
			return w.Run(ctx, func(ctx context.Context, _ watch.Event) {
				p.Compile(ctx)
			})
		},
	})
	r.MustDefine(Task{
		Name:        TaskMain,
		Description: "Clean, compile and watch",
		Deps:        []string{TaskClean, TaskCompile, TaskWatch},
	})
	return r
}
