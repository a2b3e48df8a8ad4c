package unzipper

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"
)

// errCancelled 任务在检查点观察到取消标志。只在内部传递，不作为错误上报。
var errCancelled = errors.New("unzipper: cancelled")

// classifyError 把编解码器/文件系统的原始错误归入有限的错误分类。
// fallback 决定无法识别时使用 ErrRead 还是 ErrWrite。
func classifyError(err error, archivePath string, fallback ErrorType) *ExtractError {
	if err == nil {
		return nil
	}

	var extractErr *ExtractError
	if errors.As(err, &extractErr) {
		return extractErr
	}

	name := filepath.Base(archivePath)
	msg := strings.ToLower(err.Error())

	// 系统错误码优先，错误信息中可能包含文件路径
	switch {
	case errors.Is(err, fs.ErrPermission):
		return NewExtractError(ErrAccess, name+": Permission denied", archivePath, err)

	case errors.Is(err, fs.ErrNotExist):
		return NewExtractError(ErrMissingFile, name+": File not found", archivePath, err)

	case errors.Is(err, syscall.ENOSPC):
		return NewExtractError(ErrDiskFull, name+": No space left on disk", archivePath, err)

	case containsAny(msg, "password", "passphrase", "decrypt", "crypt", "authentication failed"):
		return NewExtractError(ErrCredential, name+": Wrong password or decryption failed", archivePath, err)

	case strings.Contains(msg, "permission denied"):
		return NewExtractError(ErrAccess, name+": Permission denied", archivePath, err)

	case strings.Contains(msg, "no space left"):
		return NewExtractError(ErrDiskFull, name+": No space left on disk", archivePath, err)

	case errors.Is(err, io.ErrUnexpectedEOF) ||
		containsAny(msg, "corrupt", "truncated", "invalid", "not a valid", "checksum", "damaged"):
		return NewExtractError(ErrIntegrity, name+": Archive may be corrupted", archivePath, err)
	}

	if err.Error() == "" {
		return NewExtractError(fallback, name+": Unknown error", archivePath, err)
	}
	return NewExtractError(fallback, fmt.Sprintf("%s: %v", name, err), archivePath, err)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
