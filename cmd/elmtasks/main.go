package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/elmtasks/cmd/elmtasks/commands"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("elmtasks"),
		kong.Description("Compile, minify and watch Elm sources into a single bundle."),
		kong.UsageOnError(),
		kong.Bind(&commands.Global{}),
		kong.Vars{"version": version.String()},
	)

	if err := parser.Run(cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
