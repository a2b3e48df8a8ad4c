package formats

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/mirbf/unzipper"
)

type Command struct {
	check bool
}

func (*Command) Name() string     { return "formats" }
func (*Command) Synopsis() string { return "List supported archive formats" }
func (*Command) Usage() string {
	return `formats [-check] [files...]:
  Print the supported archive formats and extensions. With -check, report
  the detected format of each given file name.
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.check, "check", false, "resolve the format of each argument")
}

func (c *Command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.check {
		fmt.Printf("formats:    %s\n", strings.Join(unzipper.GetSupportedFormats(), ", "))
		fmt.Printf("extensions: %s\n", strings.Join(unzipper.SupportedExtensions(), ", "))
		return subcommands.ExitSuccess
	}

	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		format, err := unzipper.ResolveFormat(name)
		if err != nil {
			fmt.Printf("%s\tunsupported\n", name)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("%s\t%s -> %s/\n", name, format, unzipper.ArchiveBaseName(name))
	}
	return status
}
