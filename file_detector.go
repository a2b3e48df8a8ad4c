package unzipper

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FormatDetector 格式检测器接口
type FormatDetector interface {
	// ResolveFormat 根据文件名确定格式，不打开文件
	ResolveFormat(filePath string) (ArchiveFormat, error)

	// DetectFromBytes 根据魔数检测格式
	DetectFromBytes(data []byte) ArchiveFormat

	// VerifyMagic 检查文件头是否与格式一致
	VerifyMagic(filePath string, expected ArchiveFormat) (bool, error)
}

// defaultFormatDetector 默认格式检测器实现
type defaultFormatDetector struct {
	maxMagicBytes int // 读取用于魔数检测的最大字节数
}

// NewFormatDetector 创建新的格式检测器
func NewFormatDetector() FormatDetector {
	return &defaultFormatDetector{
		maxMagicBytes: 512,
	}
}

// ResolveFormat 包级快捷方式
func ResolveFormat(filePath string) (ArchiveFormat, error) {
	return NewFormatDetector().ResolveFormat(filePath)
}

// ResolveFormat 通过扩展名检测格式。
// 复合扩展名必须针对完整文件名判断，.tar.gz 与 .gz 共享后缀。
func (d *defaultFormatDetector) ResolveFormat(filePath string) (ArchiveFormat, error) {
	filename := strings.ToLower(filepath.Base(filePath))
	ext := filepath.Ext(filename)

	switch ext {
	case ".zip":
		return FormatZIP, nil
	case ".7z":
		return Format7Z, nil
	case ".rar", ".cbr":
		return FormatRAR, nil
	case ".tar":
		return FormatTAR, nil
	case ".tgz":
		return FormatTARGZ, nil
	case ".gz":
		if strings.HasSuffix(filename, ".tar.gz") {
			return FormatTARGZ, nil
		}
	case ".bz2":
		if strings.HasSuffix(filename, ".tar.bz2") {
			return FormatTARBZ2, nil
		}
	case ".xz":
		if strings.HasSuffix(filename, ".tar.xz") {
			return FormatTARXZ, nil
		}
	}

	return FormatUnknown, NewExtractError(ErrUnsupportedFormat,
		fmt.Sprintf("%s: Unsupported archive format", filepath.Base(filePath)), filePath, nil)
}

// DetectFromBytes 从字节数组检测格式。
// 压缩过滤器只能说明外层格式，gzip/bzip2/xz 一律视为对应的 tar 变体。
func (d *defaultFormatDetector) DetectFromBytes(data []byte) ArchiveFormat {
	switch {
	case d.isZipFormat(data):
		return FormatZIP
	case d.isRarFormat(data):
		return FormatRAR
	case d.is7zFormat(data):
		return Format7Z
	case d.isTarFormat(data):
		return FormatTAR
	case d.isGzipFormat(data):
		return FormatTARGZ
	case d.isBzip2Format(data):
		return FormatTARBZ2
	case d.isXzFormat(data):
		return FormatTARXZ
	}
	return FormatUnknown
}

// VerifyMagic 验证文件魔数是否匹配期望格式
func (d *defaultFormatDetector) VerifyMagic(filePath string, expected ArchiveFormat) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, d.maxMagicBytes)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}

	return d.DetectFromBytes(buffer[:n]) == expected, nil
}

// isZipFormat PK\x03\x04 / PK\x05\x06（空包）/ PK\x07\x08（分卷）
func (d *defaultFormatDetector) isZipFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) ||
		bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x05, 0x06}) ||
		bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x07, 0x08})
}

// isRarFormat RAR v4 和 v5
func (d *defaultFormatDetector) isRarFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}) ||
		bytes.HasPrefix(data, []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00})
}

func (d *defaultFormatDetector) is7zFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C})
}

// isTarFormat ustar 标识位于偏移257
func (d *defaultFormatDetector) isTarFormat(data []byte) bool {
	if len(data) < 512 {
		return false
	}
	return bytes.Equal(data[257:262], []byte("ustar")) && d.validateTarChecksum(data)
}

func (d *defaultFormatDetector) isGzipFormat(data []byte) bool {
	return len(data) >= 3 && data[0] == 0x1F && data[1] == 0x8B && data[2] == 0x08
}

func (d *defaultFormatDetector) isBzip2Format(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0x42, 0x5A, 0x68})
}

func (d *defaultFormatDetector) isXzFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00})
}

// validateTarChecksum 验证TAR头的校验和，校验和字段（148-155）按空格计算
func (d *defaultFormatDetector) validateTarChecksum(data []byte) bool {
	var sum int64
	for i := 0; i < 512; i++ {
		if i >= 148 && i < 156 {
			sum += int64(' ')
		} else {
			sum += int64(data[i])
		}
	}

	checksumStr := strings.Trim(string(data[148:156]), "\x00 ")
	if checksumStr == "" {
		return false
	}
	stored, err := parseOctal(checksumStr)
	if err != nil {
		return false
	}
	return sum == stored
}

// parseOctal 解析八进制字符串
func parseOctal(s string) (int64, error) {
	var result int64
	for _, char := range s {
		if char < '0' || char > '7' {
			return 0, fmt.Errorf("invalid octal digit: %c", char)
		}
		result = result*8 + int64(char-'0')
	}
	return result, nil
}
