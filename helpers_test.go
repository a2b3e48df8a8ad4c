package unzipper

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"github.com/yeka/zip"
)

type fixtureEntry struct {
	name     string
	body     string
	dir      bool
	linkname string // symlink target (tar only)
}

var sampleEntries = []fixtureEntry{
	{name: "docs/", dir: true},
	{name: "docs/readme.txt", body: "hello from the archive\n"},
	{name: "hello.txt", body: "hello"},
	{name: "nested/deep/data.bin", body: strings.Repeat("0123456789", 4096)},
}

// writeZip 生成ZIP，password 非空时使用 AES-256 加密所有文件
func writeZip(t *testing.T, path string, entries []fixtureEntry, password string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		var (
			fw  io.Writer
			err error
		)
		switch {
		case e.dir:
			fw, err = w.Create(strings.TrimSuffix(e.name, "/") + "/")
		case password != "":
			fw, err = w.Encrypt(e.name, password, zip.AES256Encryption)
		default:
			fw, err = w.Create(e.name)
		}
		if err != nil {
			t.Fatalf("add %s: %v", e.name, err)
		}
		if !e.dir {
			if _, err := io.WriteString(fw, e.body); err != nil {
				t.Fatalf("write %s: %v", e.name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// writeTar 生成TAR，filter 决定外层压缩
func writeTar(t *testing.T, path string, filter CompressionFilter, entries []fixtureEntry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	var (
		out    io.Writer = f
		closer io.Closer
	)
	switch filter {
	case FilterGzip:
		gz := pgzip.NewWriter(f)
		out, closer = gz, gz
	case FilterXz:
		xw, err := xz.NewWriter(f)
		if err != nil {
			t.Fatalf("xz writer: %v", err)
		}
		out, closer = xw, xw
	case FilterNone:
	default:
		t.Fatalf("no writer for filter %s", filter)
	}

	tw := tar.NewWriter(out)
	mtime := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, ModTime: mtime, Mode: 0644}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
		case e.linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.linkname
			hdr.Mode = 0777
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", e.name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, e.body); err != nil {
				t.Fatalf("tar write %s: %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			t.Fatalf("close filter: %v", err)
		}
	}
}

// copyFixture 把 testdata 下的压缩包复制到 path
func copyFixture(t *testing.T, fixture, path string) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", fixture))
	if err != nil {
		t.Fatalf("read fixture %s: %v", fixture, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// readTree 返回 root 下所有普通文件的相对路径和内容
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return files
}

func assertSampleTree(t *testing.T, root string) {
	t.Helper()

	got := readTree(t, root)
	for _, e := range sampleEntries {
		if e.dir {
			continue
		}
		if got[e.name] != e.body {
			t.Errorf("%s: got %d bytes, want %d", e.name, len(got[e.name]), len(e.body))
		}
	}
	if info, err := os.Stat(filepath.Join(root, "docs")); err != nil || !info.IsDir() {
		t.Errorf("docs directory missing: %v", err)
	}
}

// recordingObserver 记录所有事件
type recordingObserver struct {
	mu       sync.Mutex
	logs     []string
	started  []int
	names    []string
	progress []ProgressSnapshot
	errors   []string
	finished []string
	success  []bool
}

func (r *recordingObserver) OnLog(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, message)
}

func (r *recordingObserver) OnArchiveStarted(index, total int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, index)
	r.names = append(r.names, name)
}

func (r *recordingObserver) OnProgress(p ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingObserver) OnError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recordingObserver) OnFinished(success bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, success)
	r.finished = append(r.finished, message)
}

// newTestRunner 创建带记录器的任务执行器，返回的 close 函数等待事件分发完毕
func newTestRunner(t *testing.T, cfg Config, cancelled func() bool, verify verifyFunc) (*jobRunner, *recordingObserver, func()) {
	t.Helper()
	return newTestRunnerWithUtils(t, cfg, NewArchiveUtils(), cancelled, verify)
}

// newTestRunnerWithUtils 与 newTestRunner 相同，但可替换文件系统工具
func newTestRunnerWithUtils(t *testing.T, cfg Config, utils ArchiveUtils, cancelled func() bool, verify verifyFunc) (*jobRunner, *recordingObserver, func()) {
	t.Helper()

	rec := &recordingObserver{}
	events := newDispatcher(rec, 64)
	formats := NewFormatExtractorManager()
	if verify == nil {
		verify = formats.VerifyArchive
	}
	throttle := newProgressThrottle(time.Millisecond, 0, events.progress)
	runner := newJobRunnerWithDeps(cfg, NewFormatDetector(), formats, utils,
		throttle, events, nil, cancelled, verify)
	return runner, rec, events.close
}
