package unzipper

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// ArchiveUtils 文件系统工具接口
type ArchiveUtils interface {
	// EnsureDirectoryExists 确保目录存在
	EnsureDirectoryExists(dirPath string) error

	// MoveDirectory 把目录移动到目标位置，跨文件系统时退化为复制后删除
	MoveDirectory(src, dst string) error

	// RemoveDirectory 删除整棵目录树
	RemoveDirectory(path string) error

	// ArchiveSize 返回压缩包大小，无法读取时为0
	ArchiveSize(path string) uint64
}

// defaultArchiveUtils 默认文件系统工具实现
type defaultArchiveUtils struct{}

// NewArchiveUtils 创建新的文件系统工具
func NewArchiveUtils() ArchiveUtils {
	return &defaultArchiveUtils{}
}

// EnsureDirectoryExists 确保目录存在，路径被文件占用时报错
func (u *defaultArchiveUtils) EnsureDirectoryExists(dirPath string) error {
	if dirPath == "" {
		return nil
	}

	info, err := os.Stat(dirPath)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", dirPath)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dirPath, 0755)
}

// MoveDirectory 重命名失败且原因是跨设备时复制整棵目录树
func (u *defaultArchiveUtils) MoveDirectory(src, dst string) error {
	if err := u.EnsureDirectoryExists(filepath.Dir(dst)); err != nil {
		return err
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copyTree(src, dst); err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

// RemoveDirectory 删除目录树，路径不存在时不报错
func (u *defaultArchiveUtils) RemoveDirectory(path string) error {
	return os.RemoveAll(path)
}

// ArchiveSize 返回压缩包大小
func (u *defaultArchiveUtils) ArchiveSize(path string) uint64 {
	info, err := os.Stat(path)
	if err != nil || info.Size() < 0 {
		return 0
	}
	return uint64(info.Size())
}

// copyTree 复制目录树，保留权限和修改时间
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			if err := copyFile(path, target, info.Mode().Perm()); err != nil {
				return err
			}
			return os.Chtimes(target, info.ModTime(), info.ModTime())
		}
		return nil
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
