package extract

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/mirbf/unzipper"
)

type Command struct {
	outputDir string
	passwords string
	delete    bool
	overwrite bool
	parallel  int
	verify    bool
	trace     bool
	quiet     bool
}

func (*Command) Name() string     { return "extract" }
func (*Command) Synopsis() string { return "Extract one or more archives" }
func (*Command) Usage() string {
	return `extract [-o <dir>] [-p <pw1,pw2,...>] [-delete] [-overwrite] [-j <n>] [-verify] [-trace] <archive>...:
  Extract archives into <dir>/<archive name>/. Passwords are matched to
  archives by position; use an empty item to skip one (e.g. -p ",secret").
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.outputDir, "o", ".", "destination root directory")
	f.StringVar(&c.passwords, "p", "", "comma separated passwords, one per archive")
	f.BoolVar(&c.delete, "delete", false, "delete source archives after a successful extraction")
	f.BoolVar(&c.overwrite, "overwrite", false, "overwrite existing files")
	f.IntVar(&c.parallel, "j", 0, "max parallel jobs (1-8, default min(8, CPUs))")
	f.BoolVar(&c.verify, "verify", false, "verify archives before deleting them (with -delete)")
	f.BoolVar(&c.trace, "trace", false, "print OpenTelemetry spans to stdout")
	f.BoolVar(&c.quiet, "q", false, "do not render a progress bar")
}

func (c *Command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	if c.trace {
		tp, err := initTracer()
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Printf("Error shutting down tracer provider: %v", err)
			}
		}()
	}

	archives := f.Args()
	for _, archive := range archives {
		if !unzipper.IsSupported(archive) {
			log.Printf("Warning: %s has an unsupported extension", archive)
		}
	}

	cfg := unzipper.DefaultConfig()
	cfg.DestinationRoot = c.outputDir
	cfg.DeleteSourceAfter = c.delete
	cfg.Overwrite = c.overwrite
	cfg.MaxParallel = unzipper.EffectiveParallelism(c.parallel)
	cfg.VerifyAfterExtract = c.verify

	if err := unzipper.ValidateConfig(cfg); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return subcommands.ExitUsageError
	}

	var passwords []string
	if c.passwords != "" {
		passwords = strings.Split(c.passwords, ",")
	}

	observer := newConsoleObserver(os.Stderr, !c.quiet)
	session := unzipper.NewSession(cfg, observer)
	setupSignalHandling(session)

	start := time.Now()
	summary := session.Run(ctx, unzipper.BuildJobs(archives, passwords, c.verify))

	var total uint64
	for _, o := range summary.Outcomes {
		total += o.BytesWritten
	}
	log.Printf("%d/%d archives, %s written in %s", summary.SuccessCount, summary.TotalCount,
		unzipper.FormatBytes(total), time.Since(start).Round(time.Millisecond))

	if !summary.Success() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// setupSignalHandling cancels the session on the first signal and exits on a second one within 5 seconds
func setupSignalHandling(session *unzipper.Session) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var forceQuit atomic.Bool

	go func() {
		for sig := range sigChan {
			log.Printf("Received signal: %v", sig)
			if forceQuit.Load() {
				log.Println("Forcing immediate shutdown...")
				os.Exit(1)
			}

			forceQuit.Store(true)
			log.Println("Press Ctrl+C again to force quit. Waiting for running jobs to stop...")
			session.Cancel()

			go func() {
				time.Sleep(5 * time.Second)
				forceQuit.Store(false)
			}()
		}
	}()
}
