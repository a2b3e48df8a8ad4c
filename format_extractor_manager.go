package unzipper

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// EntryKind 条目类型
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDir
	EntrySymlink
	EntryHardlink
)

// Entry 解码器产出的条目元数据
type Entry struct {
	// Name 条目在压缩包内声明的路径（已转为UTF-8，未经清理）
	Name string

	Kind    EntryKind
	Mode    fs.FileMode
	ModTime time.Time
	Size    int64

	// LinkTarget 符号链接/硬链接的目标
	LinkTarget string
}

// entryDecoder 条目流解码器。Read 读取当前条目的内容，Next 返回 io.EOF 表示结束。
type entryDecoder interface {
	Next() (*Entry, error)
	Read(p []byte) (int, error)
	Close() error
}

// FormatExtractorManager 格式解码器管理器接口
type FormatExtractorManager interface {
	// OpenDecoder 按格式打开解码器
	OpenDecoder(archivePath string, format ArchiveFormat, password string) (entryDecoder, error)

	// VerifyArchive 完整读取压缩包的所有条目，只报告成功或失败
	VerifyArchive(ctx context.Context, archivePath string, format ArchiveFormat, password string) error

	// GetSupportedFormats 获取支持的格式列表
	GetSupportedFormats() []ArchiveFormat
}

// defaultFormatExtractorManager 默认格式解码器管理器实现
type defaultFormatExtractorManager struct {
	passwords       *passwordManager
	encodingHandler EncodingHandler
}

// NewFormatExtractorManager 创建新的格式解码器管理器
func NewFormatExtractorManager() FormatExtractorManager {
	return &defaultFormatExtractorManager{
		passwords:       newPasswordManager(),
		encodingHandler: NewEncodingHandler(),
	}
}

// OpenDecoder 只对支持加密的格式传递密码
func (m *defaultFormatExtractorManager) OpenDecoder(archivePath string, format ArchiveFormat, password string) (entryDecoder, error) {
	password = m.passwords.passwordFor(format, password)

	switch format {
	case FormatZIP:
		return newZipDecoder(archivePath, password, m.encodingHandler)
	case Format7Z:
		return newSevenZDecoder(archivePath, password, m.encodingHandler)
	case FormatRAR:
		return newRarDecoder(archivePath, password, m.encodingHandler)
	case FormatTAR, FormatTARGZ, FormatTARBZ2, FormatTARXZ:
		return newTarDecoder(archivePath, format.Filter(), m.encodingHandler)
	default:
		return nil, NewExtractError(ErrUnsupportedFormat,
			fmt.Sprintf("unsupported archive format: %s", format), archivePath, nil)
	}
}

// VerifyArchive 读取所有条目头和内容并丢弃
func (m *defaultFormatExtractorManager) VerifyArchive(ctx context.Context, archivePath string, format ArchiveFormat, password string) error {
	dec, err := m.OpenDecoder(archivePath, format, password)
	if err != nil {
		return err
	}
	defer dec.Close()

	buf := make([]byte, DefaultChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := dec.Next(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if _, err := io.CopyBuffer(io.Discard, readerOnly{dec}, buf); err != nil {
			return err
		}
	}
}

// GetSupportedFormats 获取支持的格式列表
func (m *defaultFormatExtractorManager) GetSupportedFormats() []ArchiveFormat {
	return []ArchiveFormat{FormatZIP, Format7Z, FormatRAR, FormatTAR, FormatTARGZ, FormatTARBZ2, FormatTARXZ}
}

// readerOnly 隐藏 WriterTo/ReaderFrom，保证按块读取
type readerOnly struct {
	io.Reader
}
