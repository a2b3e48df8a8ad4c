package unzipper

import (
	"context"
	"path/filepath"
)

// ExtractArchives 批量解压 - 主要入口点
//
// 参数:
//
//	archivePaths: 压缩包路径列表
//	passwords: 与 archivePaths 平行的密码数组，缺失的位置视为无密码
//	cfg: 解压配置（DestinationRoot 必填）
//	observer: 事件接收者，可以为nil
//
// 功能:
//   - 按扩展名识别 ZIP/7Z/RAR/CBR/TAR/TAR.GZ/TGZ/TAR.BZ2/TAR.XZ
//   - 每个压缩包解压到 DestinationRoot/<去掉扩展名的文件名>/
//   - 最多 8 个任务并行，按波次调度
//   - 可选：校验后删除源压缩包
//
// 返回的汇总与 OnFinished 事件内容一致。
func ExtractArchives(ctx context.Context, archivePaths, passwords []string, cfg Config, observer Observer) BatchSummary {
	jobs := BuildJobs(archivePaths, passwords, cfg.VerifyAfterExtract)
	return NewSession(cfg, observer).Run(ctx, jobs)
}

// QuickExtract 解压单个压缩包，destRoot 为空时使用压缩包所在目录
func QuickExtract(archivePath, destRoot string) (ExtractionOutcome, error) {
	if destRoot == "" {
		destRoot = filepath.Dir(archivePath)
	}

	cfg := DefaultConfig()
	cfg.DestinationRoot = destRoot
	cfg.MaxParallel = 1

	summary := NewSession(cfg, nil).Run(context.Background(), BuildJobs([]string{archivePath}, nil, false))
	if len(summary.Outcomes) == 0 {
		return ExtractionOutcome{Archive: archivePath}, NewExtractError(ErrInternal, summary.LastError, archivePath, nil)
	}

	outcome := summary.Outcomes[0]
	if outcome.Err != nil {
		return outcome, outcome.Err
	}
	return outcome, nil
}

// IsSupported 检查文件扩展名是否受支持
func IsSupported(filePath string) bool {
	_, err := ResolveFormat(filePath)
	return err == nil
}

// GetSupportedFormats 获取支持的格式列表
func GetSupportedFormats() []string {
	formats := NewFormatExtractorManager().GetSupportedFormats()
	names := make([]string, len(formats))
	for i, format := range formats {
		names[i] = format.String()
	}
	return names
}

// SupportedExtensions 可识别的扩展名
func SupportedExtensions() []string {
	return []string{"zip", "7z", "rar", "cbr", "tar", "tgz", "tar.gz", "tar.bz2", "tar.xz"}
}
