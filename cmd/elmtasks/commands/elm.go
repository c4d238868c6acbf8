package commands

import (
	"fmt"

	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/tasks"
)

// ElmInitCmd implements 'elm:init'.
type ElmInitCmd struct {
	WriteConfig bool `name:"write-config" help:"Also write an example configuration file"`
	Force       bool `help:"Overwrite an existing configuration file"`
}

func (c *ElmInitCmd) Run(_ *Global, root *CLI) error {
	if c.WriteConfig {
		if err := config.Init(root.Config, c.Force); err != nil {
			return err
		}
		fmt.Printf("Wrote configuration to %s\n", root.Config)
	}
	s, err := newSession(root, false)
	if err != nil {
		return err
	}
	return s.run(tasks.TaskInit)
}

// ElmCleanCmd implements 'elm:clean'.
type ElmCleanCmd struct{}

func (c *ElmCleanCmd) Run(_ *Global, root *CLI) error {
	s, err := newSession(root, false)
	if err != nil {
		return err
	}
	return s.run(tasks.TaskClean)
}

// ElmCompileCmd implements 'elm:compile'.
type ElmCompileCmd struct {
	Strict bool `default:"true" negatable:"" help:"Exit non-zero when the compile fails"`
}

func (c *ElmCompileCmd) Run(_ *Global, root *CLI) error {
	s, err := newSession(root, false)
	if err != nil {
		return err
	}
	if err := s.run(tasks.TaskCompile); err != nil {
		return err
	}
	return c.check(s)
}

// check turns a failed compile into an error for scripted use.
func (c *ElmCompileCmd) check(s *session) error {
	if !c.Strict {
		return nil
	}
	msgs := s.pipeline.Errors().Messages()
	if len(msgs) == 0 {
		return nil
	}
	return ferrors.CompileError(msgs[len(msgs)-1]).Build()
}

// ElmWatchCmd implements 'elm:watch'.
type ElmWatchCmd struct{}

func (c *ElmWatchCmd) Run(_ *Global, root *CLI) error {
	s, err := newSession(root, true)
	if err != nil {
		return err
	}
	return s.run(tasks.TaskWatch)
}

// ElmMainCmd implements 'elm:main', the default command.
type ElmMainCmd struct{}

func (c *ElmMainCmd) Run(_ *Global, root *CLI) error {
	s, err := newSession(root, true)
	if err != nil {
		return err
	}
	return s.run(tasks.TaskMain)
}
