package extract

import (
	"fmt"
	"io"
	"log"

	"github.com/schollz/progressbar/v3"

	"github.com/mirbf/unzipper"
)

// consoleObserver prints log lines and renders a byte progress bar.
// All methods run on the session's dispatcher goroutine.
type consoleObserver struct {
	out     io.Writer
	showBar bool
	bar     *progressbar.ProgressBar
}

func newConsoleObserver(out io.Writer, showBar bool) *consoleObserver {
	return &consoleObserver{out: out, showBar: showBar}
}

func (o *consoleObserver) OnLog(message string) {
	o.clearBar()
	log.Println(message)
}

func (o *consoleObserver) OnArchiveStarted(index, total int, name string) {
	if o.bar != nil {
		o.bar.Describe(fmt.Sprintf("[%d/%d] %s", index, total, name))
	}
}

func (o *consoleObserver) OnProgress(p unzipper.ProgressSnapshot) {
	if !o.showBar || p.EstimatedTotalBytes == 0 {
		return
	}
	if o.bar == nil {
		o.bar = progressbar.NewOptions64(int64(p.EstimatedTotalBytes),
			progressbar.OptionSetWriter(o.out),
			progressbar.OptionSetDescription("Extracting"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer: "█", SaucerHead: "█", SaucerPadding: "░",
				BarStart: "[", BarEnd: "]",
			}),
		)
	}

	// the total is an estimate; keep the bar below 100% until finished
	current := p.BytesExtracted
	if current >= p.EstimatedTotalBytes {
		current = p.EstimatedTotalBytes - 1
	}
	o.bar.Set64(int64(current))
}

func (o *consoleObserver) OnError(message string) {
	o.clearBar()
	log.Printf("Error: %s", message)
}

func (o *consoleObserver) OnFinished(success bool, message string) {
	if o.bar != nil {
		o.bar.Finish()
		fmt.Fprintln(o.out)
		o.bar = nil
	}
	if success {
		log.Println(message)
	} else {
		log.Printf("Failed: %s", message)
	}
}

func (o *consoleObserver) clearBar() {
	if o.bar != nil {
		o.bar.Clear()
	}
}
