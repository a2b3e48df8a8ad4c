package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/mirbf/unzipper/cmd/extract"
	"github.com/mirbf/unzipper/cmd/formats"
	"github.com/mirbf/unzipper/cmd/version"
)

func main() {
	// Register subcommands
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&extract.Command{}, "")
	subcommands.Register(&formats.Command{}, "")
	subcommands.Register(&version.Command{}, "")

	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
