package unzipper

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// HandleFileConflict 处理文件冲突。目标不存在或允许覆盖时返回 nil；
// 允许覆盖时先删除旧文件，避免透过已有的符号链接写到别处。
func HandleFileConflict(targetPath string, overwrite bool, archivePath string) error {
	info, err := os.Lstat(targetPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return classifyError(err, archivePath, ErrWrite)
	}

	if info.IsDir() {
		return NewExtractError(ErrWrite,
			fmt.Sprintf("%s: Cannot replace directory %s with a file", filepath.Base(archivePath), targetPath),
			targetPath, nil)
	}

	if !overwrite {
		return NewExtractError(ErrFileExists,
			fmt.Sprintf("%s: File already exists: %s", filepath.Base(archivePath), targetPath),
			targetPath, nil)
	}

	if err := os.Remove(targetPath); err != nil {
		return classifyError(err, archivePath, ErrWrite)
	}
	return nil
}

// FormatBytes 人类可读的字节数
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}
