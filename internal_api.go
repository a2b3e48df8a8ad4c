package unzipper

import (
	"path/filepath"
	"strings"
)

// BuildJobs 把压缩包路径与平行的密码数组配对为任务列表：
// 缺失的密码为空，多余的密码被丢弃
func BuildJobs(archivePaths, passwords []string, verify bool) []ArchiveJob {
	paired := newPasswordManager().pairPasswords(archivePaths, passwords)

	jobs := make([]ArchiveJob, len(archivePaths))
	for i, path := range archivePaths {
		jobs[i] = ArchiveJob{
			SourcePath:         path,
			Password:           paired[i],
			VerifyAfterExtract: verify,
		}
	}
	return jobs
}

// compoundSuffixes 需要整体去掉的复合扩展名
var compoundSuffixes = []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz"}

// ArchiveBaseName 输出子目录名：去掉复合扩展名，否则只去掉最后一个扩展名。
// 结果总是单个合法的路径组件，"...zip" 之类的名字不会得到 "." 或 ".."。
func ArchiveBaseName(archivePath string) string {
	return NewFilenameSanitizer().SanitizeComponent(stripArchiveExt(filepath.Base(archivePath)))
}

func stripArchiveExt(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range compoundSuffixes {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)]
		}
	}

	if ext := filepath.Ext(name); ext != "" && len(name) > len(ext) {
		return strings.TrimSuffix(name, ext)
	}
	return name
}
