package unzipper

import (
	"fmt"
	"time"
)

// ArchiveJob 单个解压任务，提交后不可修改
type ArchiveJob struct {
	// SourcePath 压缩包路径
	SourcePath string

	// Password 密码（可选，仅对ZIP/7Z/RAR生效）
	Password string

	// VerifyAfterExtract 解压后是否完整校验压缩包
	VerifyAfterExtract bool
}

// ArchiveFormat 压缩格式枚举
type ArchiveFormat string

const (
	FormatZIP     ArchiveFormat = "zip"
	Format7Z      ArchiveFormat = "7z"
	FormatRAR     ArchiveFormat = "rar"
	FormatTAR     ArchiveFormat = "tar"
	FormatTARGZ   ArchiveFormat = "tar.gz"
	FormatTARBZ2  ArchiveFormat = "tar.bz2"
	FormatTARXZ   ArchiveFormat = "tar.xz"
	FormatUnknown ArchiveFormat = "unknown"
)

// String 返回格式字符串
func (f ArchiveFormat) String() string {
	return string(f)
}

// CompressionFilter 容器外层的压缩过滤器
type CompressionFilter string

const (
	FilterNone  CompressionFilter = "none"
	FilterGzip  CompressionFilter = "gzip"
	FilterBzip2 CompressionFilter = "bzip2"
	FilterXz    CompressionFilter = "xz"
)

// Filter 返回该格式使用的压缩过滤器。ZIP/7Z/RAR 的压缩在容器内部完成。
func (f ArchiveFormat) Filter() CompressionFilter {
	switch f {
	case FormatTARGZ:
		return FilterGzip
	case FormatTARBZ2:
		return FilterBzip2
	case FormatTARXZ:
		return FilterXz
	default:
		return FilterNone
	}
}

// SupportsPassword 是否支持加密
func (f ArchiveFormat) SupportsPassword() bool {
	return f == FormatZIP || f == Format7Z || f == FormatRAR
}

// ExtractionOutcome 单个任务的结果
type ExtractionOutcome struct {
	// Archive 压缩包路径
	Archive string

	// Success 是否成功
	Success bool

	// Cancelled 任务因取消而中止（不是错误）
	Cancelled bool

	// BytesWritten 已写入磁盘的字节数
	BytesWritten uint64

	// Destination 最终输出目录
	Destination string

	// RetainedPath 失败时保留的暂存目录（为空表示未保留）
	RetainedPath string

	// Err 失败原因
	Err *ExtractError
}

// ErrorDetail 返回失败信息，成功或取消时为空
func (o ExtractionOutcome) ErrorDetail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Message
}

// BatchSummary 批量解压汇总
type BatchSummary struct {
	SuccessCount int
	TotalCount   int
	LastError    string
	Cancelled    bool
	Duration     time.Duration
	Outcomes     []ExtractionOutcome
}

// Success 全部成功
func (s BatchSummary) Success() bool {
	return !s.Cancelled && s.SuccessCount == s.TotalCount
}

// ProgressSnapshot 进度快照
type ProgressSnapshot struct {
	BytesExtracted      uint64
	EstimatedTotalBytes uint64
	CurrentEntryPath    string
	SpeedMBps           float64
}

// Percent 返回估算的百分比（0-100）
func (p ProgressSnapshot) Percent() int {
	if p.EstimatedTotalBytes == 0 {
		return 0
	}
	if p.BytesExtracted >= p.EstimatedTotalBytes {
		return 100
	}
	return int(p.BytesExtracted * 100 / p.EstimatedTotalBytes)
}

// ExtractError 解压错误类型
type ExtractError struct {
	Type    ErrorType
	Message string
	Path    string
	Cause   error
}

// Error 实现error接口
func (e *ExtractError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Type, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap 返回原始错误
func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// ErrorType 错误类型枚举
type ErrorType string

const (
	// ErrUnsupportedFormat 不支持的格式
	ErrUnsupportedFormat ErrorType = "UNSUPPORTED_FORMAT"

	// ErrCredential 密码错误或缺少密码
	ErrCredential ErrorType = "CREDENTIAL_ERROR"

	// ErrAccess 权限拒绝
	ErrAccess ErrorType = "ACCESS_DENIED"

	// ErrMissingFile 压缩包不存在
	ErrMissingFile ErrorType = "MISSING_FILE"

	// ErrDiskFull 磁盘空间不足
	ErrDiskFull ErrorType = "DISK_FULL"

	// ErrIntegrity 压缩包损坏或被截断
	ErrIntegrity ErrorType = "INTEGRITY_ERROR"

	// ErrWrite 写入失败
	ErrWrite ErrorType = "WRITE_ERROR"

	// ErrRead 读取失败
	ErrRead ErrorType = "READ_ERROR"

	// ErrFileExists 目标文件已存在且不允许覆盖
	ErrFileExists ErrorType = "FILE_EXISTS"

	// ErrStaging 暂存目录移动失败，输出已保留
	ErrStaging ErrorType = "STAGING_ERROR"

	// ErrVerification 校验失败
	ErrVerification ErrorType = "VERIFICATION_FAILED"

	// ErrInternal 内部错误
	ErrInternal ErrorType = "INTERNAL_ERROR"
)

// String 返回错误类型字符串
func (et ErrorType) String() string {
	return string(et)
}

// NewExtractError 创建解压错误
func NewExtractError(errType ErrorType, message, path string, cause error) *ExtractError {
	return &ExtractError{
		Type:    errType,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}
