package unzipper

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestExtractArchivesMixedResults(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.zip")
	b := filepath.Join(dir, "b.tar.gz")
	bad := filepath.Join(dir, "bad.zip")
	writeZip(t, a, sampleEntries, "")
	writeTar(t, b, FilterGzip, sampleEntries)
	writeZip(t, bad, sampleEntries, "secret")
	out := filepath.Join(dir, "out")

	rec := &recordingObserver{}
	cfg := Config{DestinationRoot: out, MaxParallel: 2}
	summary := ExtractArchives(context.Background(), []string{a, b, bad}, []string{"", "", "wrong"}, cfg, rec)

	if summary.SuccessCount != 2 || summary.TotalCount != 3 {
		t.Errorf("summary = %d/%d, want 2/3", summary.SuccessCount, summary.TotalCount)
	}
	if summary.Cancelled || summary.Success() {
		t.Errorf("summary flags wrong: %+v", summary)
	}
	wantErr := "bad.zip: Wrong password or decryption failed"
	if summary.LastError != wantErr {
		t.Errorf("LastError = %q, want %q", summary.LastError, wantErr)
	}

	if want := []int{1, 2, 3}; !slices.Equal(rec.started, want) {
		t.Errorf("started = %v, want %v", rec.started, want)
	}
	if want := []string{"a.zip", "b.tar.gz", "bad.zip"}; !slices.Equal(rec.names, want) {
		t.Errorf("names = %v, want %v", rec.names, want)
	}
	if !slices.Contains(rec.errors, wantErr) {
		t.Errorf("errors = %v, want %q", rec.errors, wantErr)
	}

	if len(rec.finished) != 1 {
		t.Fatalf("finished fired %d times, want 1", len(rec.finished))
	}
	if rec.success[0] {
		t.Error("finished success = true")
	}
	if want := "Extracted 2/3 archives. Last error: " + wantErr; rec.finished[0] != want {
		t.Errorf("finished = %q, want %q", rec.finished[0], want)
	}

	for _, line := range []string{"Extracting 1/3: a.zip", "Extracting 3/3: bad.zip", "  ✗ bad.zip - " + wantErr} {
		if !slices.Contains(rec.logs, line) {
			t.Errorf("missing log line %q in %v", line, rec.logs)
		}
	}
	if !hasPrefix(rec.logs, "  ✓ a.zip (") || !hasPrefix(rec.logs, "Done: 2/3 archives in ") {
		t.Errorf("missing summary log lines in %v", rec.logs)
	}

	assertSampleTree(t, filepath.Join(out, "a"))
	assertSampleTree(t, filepath.Join(out, "b"))
}

func TestExtractArchivesAllSuccess(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"one.zip", "two.zip", "three.tar"} {
		p := filepath.Join(dir, name)
		if strings.HasSuffix(name, ".zip") {
			writeZip(t, p, sampleEntries, "")
		} else {
			writeTar(t, p, FilterNone, sampleEntries)
		}
		paths = append(paths, p)
	}

	rec := &recordingObserver{}
	summary := ExtractArchives(context.Background(), paths, nil, Config{DestinationRoot: filepath.Join(dir, "out"), MaxParallel: 8}, rec)

	if !summary.Success() {
		t.Fatalf("summary = %+v", summary)
	}
	if len(rec.finished) != 1 || !rec.success[0] {
		t.Fatalf("finished = %v/%v", rec.finished, rec.success)
	}
	if !strings.HasPrefix(rec.finished[0], "Successfully extracted 3 archive(s) in ") {
		t.Errorf("finished = %q", rec.finished[0])
	}
	if len(rec.errors) != 0 {
		t.Errorf("unexpected errors: %v", rec.errors)
	}
}

func TestSessionProgressMonotonic(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.zip", "b.zip", "c.tar.gz", "d.tar"} {
		p := filepath.Join(dir, name)
		switch filepath.Ext(name) {
		case ".zip":
			writeZip(t, p, sampleEntries, "")
		case ".gz":
			writeTar(t, p, FilterGzip, sampleEntries)
		default:
			writeTar(t, p, FilterNone, sampleEntries)
		}
		paths = append(paths, p)
	}

	rec := &recordingObserver{}
	cfg := Config{
		DestinationRoot:  filepath.Join(dir, "out"),
		MaxParallel:      4,
		ChunkSize:        512,
		ThrottleInterval: time.Nanosecond,
	}
	summary := NewSession(cfg, rec).Run(context.Background(), BuildJobs(paths, nil, false))
	if !summary.Success() {
		t.Fatalf("summary = %+v", summary)
	}

	if len(rec.progress) == 0 {
		t.Fatal("no progress events")
	}
	var total uint64
	for _, o := range summary.Outcomes {
		total += o.BytesWritten
	}
	var prev uint64
	for i, p := range rec.progress {
		if p.BytesExtracted < prev {
			t.Fatalf("progress %d went backwards: %d < %d", i, p.BytesExtracted, prev)
		}
		if p.BytesExtracted > total {
			t.Fatalf("progress %d = %d exceeds total %d", i, p.BytesExtracted, total)
		}
		if p.EstimatedTotalBytes == 0 {
			t.Fatalf("progress %d has no estimate", i)
		}
		prev = p.BytesExtracted
	}
}

func TestSessionCancelBeforeRun(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.zip")
	writeZip(t, a, sampleEntries, "")

	rec := &recordingObserver{}
	s := NewSession(Config{DestinationRoot: filepath.Join(dir, "out")}, rec)
	s.Cancel()
	s.Cancel()
	summary := s.Run(context.Background(), BuildJobs([]string{a, a}, nil, false))

	if !summary.Cancelled || summary.SuccessCount != 0 {
		t.Errorf("summary = %+v", summary)
	}
	for _, o := range summary.Outcomes {
		if !o.Cancelled {
			t.Errorf("outcome %s not cancelled", o.Archive)
		}
	}
	if len(rec.started) != 0 {
		t.Errorf("started = %v, want none", rec.started)
	}
	if len(rec.finished) != 1 || rec.finished[0] != "Extraction cancelled by user" || rec.success[0] {
		t.Errorf("finished = %v/%v", rec.finished, rec.success)
	}
}

func TestSessionCancelledContext(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.zip")
	writeZip(t, a, sampleEntries, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recordingObserver{}
	summary := NewSession(Config{DestinationRoot: filepath.Join(dir, "out")}, rec).Run(ctx, BuildJobs([]string{a}, nil, false))

	if !summary.Cancelled || summary.SuccessCount != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(rec.finished) != 1 || rec.finished[0] != "Extraction cancelled by user" {
		t.Errorf("finished = %v", rec.finished)
	}
}

func TestSessionCancelBetweenWaves(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.zip", "b.zip", "c.zip"} {
		p := filepath.Join(dir, name)
		writeZip(t, p, sampleEntries, "")
		paths = append(paths, p)
	}
	out := filepath.Join(dir, "out")

	rec := &recordingObserver{}
	cfg := Config{DestinationRoot: out, MaxParallel: 1, DeleteSourceAfter: true, VerifyAfterExtract: true}
	s := NewSession(cfg, rec)
	s.verify = func(context.Context, string, ArchiveFormat, string) error {
		s.Cancel()
		return nil
	}
	summary := s.Run(context.Background(), BuildJobs(paths, nil, true))

	if summary.SuccessCount != 1 || !summary.Cancelled {
		t.Fatalf("summary = %+v", summary)
	}
	if !summary.Outcomes[0].Success {
		t.Errorf("first job = %+v, want success", summary.Outcomes[0])
	}
	for _, o := range summary.Outcomes[1:] {
		if !o.Cancelled || o.Err != nil {
			t.Errorf("outcome %s = %+v, want cancelled", o.Archive, o)
		}
	}

	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Error("first source should be deleted")
	}
	for _, p := range paths[1:] {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("cancelled source %s must be kept: %v", p, err)
		}
	}
	assertSampleTree(t, filepath.Join(out, "a"))
	assertNoStaging(t, out)

	if want := []int{1}; !slices.Equal(rec.started, want) {
		t.Errorf("started = %v, want %v", rec.started, want)
	}
	if len(rec.finished) != 1 || rec.finished[0] != "Extraction cancelled by user" {
		t.Errorf("finished = %v", rec.finished)
	}
}

func TestSessionInvalidConfig(t *testing.T) {
	rec := &recordingObserver{}
	summary := NewSession(Config{}, rec).Run(context.Background(), BuildJobs([]string{"a.zip"}, nil, false))

	if summary.Success() || summary.LastError == "" {
		t.Errorf("summary = %+v", summary)
	}
	if len(rec.finished) != 1 || rec.success[0] {
		t.Errorf("finished = %v/%v", rec.finished, rec.success)
	}
}

func TestSessionEmptyBatch(t *testing.T) {
	rec := &recordingObserver{}
	summary := NewSession(Config{DestinationRoot: t.TempDir()}, rec).Run(context.Background(), nil)

	if !summary.Success() || summary.TotalCount != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(rec.finished) != 1 || !rec.success[0] {
		t.Errorf("finished = %v/%v", rec.finished, rec.success)
	}
}

func TestQuickExtract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "quick.tar.xz")
	writeTar(t, src, FilterXz, sampleEntries)

	outcome, err := QuickExtract(src, "")
	if err != nil {
		t.Fatalf("QuickExtract() error: %v", err)
	}
	if outcome.Destination != filepath.Join(dir, "quick") {
		t.Errorf("Destination = %q", outcome.Destination)
	}
	assertSampleTree(t, outcome.Destination)

	if _, err := QuickExtract(filepath.Join(dir, "nope.zip"), ""); err == nil {
		t.Error("QuickExtract() on missing archive should fail")
	}
}

func hasPrefix(lines []string, prefix string) bool {
	return slices.ContainsFunc(lines, func(l string) bool {
		return strings.HasPrefix(l, prefix)
	})
}
