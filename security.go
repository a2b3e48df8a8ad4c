package unzipper

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SecurityValidator 路径安全验证器接口
type SecurityValidator interface {
	// SanitizeEntryPath 把条目路径约束在根目录之内
	SanitizeEntryPath(entryPath, root string) string

	// IsWithinRoot 判断路径是否位于根目录之内
	IsWithinRoot(path, root string) bool

	// ResolvesWithinRoot 解析磁盘上已存在的符号链接后，路径是否仍在根目录之内
	ResolvesWithinRoot(path, root string) bool

	// ValidateLinkTarget 检查符号链接目标是否会逃出根目录
	ValidateLinkTarget(linkPath, target, root string) error
}

// defaultSecurityValidator 默认安全验证器实现
type defaultSecurityValidator struct {
	sanitizer *FilenameSanitizer
}

// NewSecurityValidator 创建新的安全验证器
func NewSecurityValidator() SecurityValidator {
	return &defaultSecurityValidator{
		sanitizer: NewFilenameSanitizer(),
	}
}

// SanitizeEntryPath 包级快捷方式
func SanitizeEntryPath(entryPath, root string) string {
	return NewSecurityValidator().SanitizeEntryPath(entryPath, root)
}

// SanitizeEntryPath 拼接、规范化，结果不在根目录下时退回到
// 去掉 ..、卷标和前导分隔符后的相对路径。单个恶意条目不会中断整个批次。
func (v *defaultSecurityValidator) SanitizeEntryPath(entryPath, root string) string {
	cleanRoot := filepath.Clean(root)
	normalized := filepath.FromSlash(strings.ReplaceAll(entryPath, "\\", "/"))

	joined := filepath.Join(cleanRoot, normalized)
	if !filepath.IsAbs(normalized) && v.IsWithinRoot(joined, cleanRoot) {
		return joined
	}

	return filepath.Join(cleanRoot, v.relativeFallback(entryPath))
}

// relativeFallback 只保留安全的路径组件
func (v *defaultSecurityValidator) relativeFallback(entryPath string) string {
	p := strings.ReplaceAll(entryPath, "\\", "/")
	if vol := filepath.VolumeName(p); vol != "" {
		p = p[len(vol):]
	}
	// Windows 盘符在非 Windows 平台上不会被识别为卷标
	if len(p) >= 2 && p[1] == ':' && unicode.IsLetter(rune(p[0])) {
		p = p[2:]
	}

	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		parts = append(parts, v.sanitizer.SanitizeComponent(part))
	}

	if len(parts) == 0 {
		return v.sanitizer.SanitizeFilename(entryPath)
	}
	return filepath.Join(parts...)
}

// IsWithinRoot 判断路径是否为根目录本身或其后代
func (v *defaultSecurityValidator) IsWithinRoot(path, root string) bool {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(path)

	rel, err := filepath.Rel(cleanRoot, cleanPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ResolvesWithinRoot 已写出的符号链接可能把后续条目引到根目录之外，
// 因此按磁盘上的真实路径判断
func (v *defaultSecurityValidator) ResolvesWithinRoot(path, root string) bool {
	realRoot, err := resolveExisting(root)
	if err != nil {
		return false
	}
	realPath, err := resolveExisting(path)
	if err != nil {
		return false
	}
	return v.IsWithinRoot(realPath, realRoot)
}

// ValidateLinkTarget 逐个组件解析链接目标。经过已存在的符号链接时按其真实位置继续，
// 任何一步离开根目录都拒绝，因此 q -> . 之后的 p -> q/.. 也会被识别。
func (v *defaultSecurityValidator) ValidateLinkTarget(linkPath, target, root string) error {
	if target == "" {
		return NewExtractError(ErrWrite, "empty symlink target", linkPath, nil)
	}
	target = strings.ReplaceAll(target, "\\", "/")
	if filepath.IsAbs(target) || strings.HasPrefix(target, "/") {
		return NewExtractError(ErrWrite, "symlink target is absolute: "+target, linkPath, nil)
	}

	escapes := NewExtractError(ErrWrite, "symlink target escapes destination: "+target, linkPath, nil)

	realRoot, err := resolveExisting(root)
	if err != nil {
		return escapes
	}
	cur, err := resolveExisting(filepath.Dir(linkPath))
	if err != nil || !v.IsWithinRoot(cur, realRoot) {
		return escapes
	}

	for _, part := range strings.Split(target, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
			if info, err := os.Lstat(cur); err == nil && info.Mode()&fs.ModeSymlink != 0 {
				if cur, err = filepath.EvalSymlinks(cur); err != nil {
					return escapes
				}
			}
		}
		if !v.IsWithinRoot(cur, realRoot) {
			return escapes
		}
	}
	return nil
}

// resolveExisting 解析路径中已存在部分的符号链接，不存在的部分原样拼接
func resolveExisting(path string) (string, error) {
	path = filepath.Clean(path)
	cur, rest := path, ""
	for {
		if _, err := os.Lstat(cur); err == nil {
			real, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			return filepath.Join(real, rest), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}
