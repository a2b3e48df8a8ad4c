package unzipper

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// dirTime 目录的修改时间在所有条目写完后才设置，否则会被子条目的写入覆盖
type dirTime struct {
	path    string
	mode    fs.FileMode
	modTime time.Time
}

// diskWriter 把一个任务的条目写到 root 之下，每个任务独占一个实例
type diskWriter struct {
	root        string
	archivePath string
	overwrite   bool

	validator SecurityValidator
	utils     ArchiveUtils
	progress  ProgressReporter

	// cancelled 在每个数据块前检查
	cancelled func() bool
	// skipped 条目被跳过时调用（例如逃逸的符号链接）
	skipped func(message string)

	buf      []byte
	written  uint64
	dirTimes []dirTime
}

func newDiskWriter(root, archivePath string, cfg Config, progress ProgressReporter, cancelled func() bool, skipped func(string)) *diskWriter {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	if skipped == nil {
		skipped = func(string) {}
	}
	return &diskWriter{
		root:        filepath.Clean(root),
		archivePath: archivePath,
		overwrite:   cfg.Overwrite,
		validator:   NewSecurityValidator(),
		utils:       NewArchiveUtils(),
		progress:    progress,
		cancelled:   cancelled,
		skipped:     skipped,
		buf:         make([]byte, cfg.WithDefaults().ChunkSize),
	}
}

// writeEntry 按条目类型创建文件、目录或链接。返回 errCancelled 表示在块之间观察到取消。
func (w *diskWriter) writeEntry(entry *Entry, src io.Reader) error {
	target := w.validator.SanitizeEntryPath(entry.Name, w.root)

	switch entry.Kind {
	case EntryDir:
		return w.writeDir(entry, target)
	case EntrySymlink:
		return w.writeSymlink(entry, target)
	case EntryHardlink:
		return w.writeHardlink(entry, target)
	default:
		if target == w.root {
			w.skipped(fmt.Sprintf("%s: Skipped entry with empty path", filepath.Base(w.archivePath)))
			return nil
		}
		return w.writeFile(entry, target, src)
	}
}

func (w *diskWriter) writeDir(entry *Entry, target string) error {
	if !w.contained(entry, target) {
		return nil
	}
	if err := w.utils.EnsureDirectoryExists(target); err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}
	if target != w.root {
		w.dirTimes = append(w.dirTimes, dirTime{path: target, mode: entry.Mode, modTime: entry.ModTime})
	}
	return nil
}

func (w *diskWriter) writeFile(entry *Entry, target string, src io.Reader) error {
	if !w.contained(entry, filepath.Dir(target)) {
		return nil
	}
	if err := w.utils.EnsureDirectoryExists(filepath.Dir(target)); err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}
	if err := HandleFileConflict(target, w.overwrite, w.archivePath); err != nil {
		return err
	}

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}

	// 复制失败时删除已创建的文件
	var copySuccess bool
	defer func() {
		if !copySuccess {
			dst.Close()
			os.Remove(target)
		}
	}()

	for {
		if w.cancelled() {
			return errCancelled
		}

		n, readErr := src.Read(w.buf)
		if n > 0 {
			if _, err := dst.Write(w.buf[:n]); err != nil {
				return classifyError(err, w.archivePath, ErrWrite)
			}
			w.written += uint64(n)
			if w.progress != nil {
				w.progress.Add(uint64(n))
				w.progress.Report(entry.Name)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return classifyError(readErr, w.archivePath, ErrRead)
		}
	}

	if err := dst.Close(); err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}
	copySuccess = true

	// 权限和时间设置失败不是致命错误
	mode := entry.Mode
	if mode == 0 {
		mode = 0644
	}
	os.Chmod(target, mode)
	if !entry.ModTime.IsZero() {
		os.Chtimes(target, entry.ModTime, entry.ModTime)
	}
	return nil
}

// writeSymlink 目标会逃出根目录的链接被跳过，不中止任务
func (w *diskWriter) writeSymlink(entry *Entry, target string) error {
	if err := w.validator.ValidateLinkTarget(target, entry.LinkTarget, w.root); err != nil {
		w.skipped(fmt.Sprintf("%s: Skipped unsafe symlink %s -> %s", filepath.Base(w.archivePath), entry.Name, entry.LinkTarget))
		return nil
	}
	if !w.contained(entry, filepath.Dir(target)) {
		return nil
	}
	if err := w.utils.EnsureDirectoryExists(filepath.Dir(target)); err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}
	if err := HandleFileConflict(target, w.overwrite, w.archivePath); err != nil {
		return err
	}
	if err := os.Symlink(filepath.FromSlash(entry.LinkTarget), target); err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}
	return nil
}

// writeHardlink 链接源是同一压缩包内之前写出的条目
func (w *diskWriter) writeHardlink(entry *Entry, target string) error {
	source := w.validator.SanitizeEntryPath(entry.LinkTarget, w.root)
	info, err := os.Lstat(source)
	if err != nil || !info.Mode().IsRegular() || !w.validator.ResolvesWithinRoot(source, w.root) {
		w.skipped(fmt.Sprintf("%s: Skipped hard link %s -> %s", filepath.Base(w.archivePath), entry.Name, entry.LinkTarget))
		return nil
	}
	if !w.contained(entry, filepath.Dir(target)) {
		return nil
	}
	if err := w.utils.EnsureDirectoryExists(filepath.Dir(target)); err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}
	if err := HandleFileConflict(target, w.overwrite, w.archivePath); err != nil {
		return err
	}
	if err := os.Link(source, target); err != nil {
		return classifyError(err, w.archivePath, ErrWrite)
	}
	return nil
}

// contained 目录经已写出的符号链接解析后必须仍在根目录内，否则跳过该条目
func (w *diskWriter) contained(entry *Entry, dir string) bool {
	if w.validator.ResolvesWithinRoot(dir, w.root) {
		return true
	}
	w.skipped(fmt.Sprintf("%s: Skipped entry outside destination %s", filepath.Base(w.archivePath), entry.Name))
	return false
}

// finish 由深到浅设置目录的权限和时间
func (w *diskWriter) finish() {
	for i := len(w.dirTimes) - 1; i >= 0; i-- {
		d := w.dirTimes[i]
		if d.mode != 0 {
			os.Chmod(d.path, d.mode|0700)
		}
		if !d.modTime.IsZero() {
			os.Chtimes(d.path, d.modTime, d.modTime)
		}
	}
}

// bytesWritten 本任务写入的字节数
func (w *diskWriter) bytesWritten() uint64 {
	return w.written
}
