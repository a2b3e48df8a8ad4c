package unzipper

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FilenameSanitizer 文件名安全化处理器
type FilenameSanitizer struct {
	// 全角及其他问题字符的替换表
	dangerousChars *strings.Replacer
	// 非法字符正则表达式
	illegalPattern *regexp.Regexp
}

// NewFilenameSanitizer 创建文件名安全化处理器
func NewFilenameSanitizer() *FilenameSanitizer {
	return &FilenameSanitizer{
		dangerousChars: strings.NewReplacer(
			"？", "_",
			"｜", "_",
			"＊", "_",
			"＜", "_",
			"＞", "_",
			"\x00", "",
		),
		illegalPattern: regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`),
	}
}

// SanitizeComponent 清理单个路径组件，不改变正常文件名
func (fs *FilenameSanitizer) SanitizeComponent(name string) string {
	sanitized := fs.dangerousChars.Replace(name)
	sanitized = fs.illegalPattern.ReplaceAllString(sanitized, "_")
	sanitized = strings.TrimRight(sanitized, " ")

	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return "_"
	}
	return fs.truncate(sanitized)
}

// SanitizeFilename 只保留文件名部分
func (fs *FilenameSanitizer) SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	if filename == "" || filename == "." || filename == ".." || filename == "/" {
		return "unnamed_file"
	}

	sanitized := fs.SanitizeComponent(filename)
	sanitized = strings.Trim(sanitized, " .")
	if sanitized == "" || sanitized == "_" {
		return "unnamed_file"
	}
	return sanitized
}

// truncate 限制长度（保留扩展名）
func (fs *FilenameSanitizer) truncate(name string) string {
	if len(name) <= 255 {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > 32 {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)
	return base[:255-len(ext)] + ext
}
