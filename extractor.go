package unzipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// verifyFunc 完整校验压缩包
type verifyFunc func(ctx context.Context, archivePath string, format ArchiveFormat, password string) error

// jobRunner 单个压缩包的状态机：
// Start -> Decode/Write -> [Verify] -> [Stage+Move] -> [DeleteSource] -> Done
type jobRunner struct {
	cfg       Config
	detector  FormatDetector
	formats   FormatExtractorManager
	utils     ArchiveUtils
	progress  ProgressReporter
	events    *dispatcher
	tracer    trace.Tracer
	cancelled func() bool
	verify    verifyFunc
}

// newJobRunner 创建任务执行器
func newJobRunner(cfg Config, progress ProgressReporter, events *dispatcher, tracer trace.Tracer, cancelled func() bool) *jobRunner {
	formats := NewFormatExtractorManager()
	return newJobRunnerWithDeps(cfg, NewFormatDetector(), formats, NewArchiveUtils(), progress, events, tracer, cancelled, formats.VerifyArchive)
}

// newJobRunnerWithDeps 创建带依赖的任务执行器
func newJobRunnerWithDeps(
	cfg Config,
	detector FormatDetector,
	formats FormatExtractorManager,
	utils ArchiveUtils,
	progress ProgressReporter,
	events *dispatcher,
	tracer trace.Tracer,
	cancelled func() bool,
	verify verifyFunc,
) *jobRunner {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &jobRunner{
		cfg:       cfg.WithDefaults(),
		detector:  detector,
		formats:   formats,
		utils:     utils,
		progress:  progress,
		events:    events,
		tracer:    tracer,
		cancelled: cancelled,
		verify:    verify,
	}
}

// run 执行一个任务。取消不是错误：返回 Cancelled=true 且 Err 为空。
func (r *jobRunner) run(ctx context.Context, job ArchiveJob) (outcome ExtractionOutcome) {
	name := filepath.Base(job.SourcePath)
	outcome.Archive = job.SourcePath

	ctx, span := r.tracer.Start(ctx, "unzipper.archive",
		trace.WithAttributes(attribute.String("archive.name", name)))
	defer func() {
		span.SetAttributes(
			attribute.Int64("archive.bytes", int64(outcome.BytesWritten)),
			attribute.Bool("archive.success", outcome.Success),
			attribute.Bool("archive.cancelled", outcome.Cancelled),
		)
		if outcome.Err != nil {
			span.SetStatus(codes.Error, outcome.Err.Message)
		}
		span.End()
	}()

	defer func() {
		if p := recover(); p != nil {
			outcome.Success = false
			outcome.Err = NewExtractError(ErrInternal,
				fmt.Sprintf("%s: Internal error: %v", name, p), job.SourcePath,
				fmt.Errorf("panic: %v\n%s", p, debug.Stack()))
		}
	}()

	if r.isCancelled(ctx) {
		outcome.Cancelled = true
		return outcome
	}

	format, err := r.detector.ResolveFormat(job.SourcePath)
	if err != nil {
		outcome.Err = classifyError(err, job.SourcePath, ErrUnsupportedFormat)
		return outcome
	}
	span.SetAttributes(attribute.String("archive.format", format.String()))

	if _, err := os.Stat(job.SourcePath); err != nil {
		outcome.Err = classifyError(err, job.SourcePath, ErrRead)
		return outcome
	}

	// 内容与扩展名不一致只提示，不改变格式
	if ok, err := r.detector.VerifyMagic(job.SourcePath, format); err == nil && !ok {
		r.events.log("  ⚠ %s: content does not look like %s", name, format)
	}

	baseName := ArchiveBaseName(job.SourcePath)
	dest, ok := jobDestination(r.cfg.DestinationRoot, baseName)
	if !ok {
		outcome.Err = NewExtractError(ErrWrite,
			fmt.Sprintf("%s: Invalid destination folder %s", name, dest), job.SourcePath, nil)
		return outcome
	}
	outcome.Destination = dest

	if !r.cfg.DeleteSourceAfter {
		written, err := r.extractInto(ctx, job, format, outcome.Destination)
		outcome.BytesWritten = written
		return r.finish(outcome, err)
	}

	return r.runStaged(ctx, job, format, baseName, outcome)
}

// jobDestination 目标目录必须是输出根目录下的直接子目录，
// 不能是根目录本身，也不能落在根目录之外
func jobDestination(root, baseName string) (string, bool) {
	cleanRoot := filepath.Clean(root)
	dest := filepath.Join(cleanRoot, baseName)
	rel, err := filepath.Rel(cleanRoot, dest)
	if err != nil || rel == "." || rel == ".." || strings.ContainsRune(rel, filepath.Separator) {
		return dest, false
	}
	return dest, true
}

// runStaged 先解压到暂存目录，校验通过后移动到位并删除源文件
func (r *jobRunner) runStaged(ctx context.Context, job ArchiveJob, format ArchiveFormat, baseName string, outcome ExtractionOutcome) ExtractionOutcome {
	name := filepath.Base(job.SourcePath)

	if err := r.utils.EnsureDirectoryExists(r.cfg.DestinationRoot); err != nil {
		outcome.Err = classifyError(err, job.SourcePath, ErrWrite)
		return outcome
	}

	staging, err := newStagingDir(r.cfg.DestinationRoot)
	if err != nil {
		outcome.Err = classifyError(err, job.SourcePath, ErrWrite)
		return outcome
	}
	defer staging.Cleanup()

	stagedPath := filepath.Join(staging.Path(), baseName)
	written, err := r.extractInto(ctx, job, format, stagedPath)
	outcome.BytesWritten = written
	if err != nil {
		return r.finish(outcome, err)
	}

	if job.VerifyAfterExtract {
		if err := r.runVerify(ctx, job, format); err != nil {
			if errors.Is(err, errCancelled) {
				return r.finish(outcome, err)
			}
			staging.Retain()
			detail := classifyError(err, job.SourcePath, ErrIntegrity).Message
			r.events.log("  ⚠ %s: Verification failed - %s", name, detail)
			outcome.RetainedPath = stagedPath
			outcome.Err = NewExtractError(ErrVerification,
				fmt.Sprintf("%s: Verification failed - %s. Extracted files kept in %s", name, detail, stagedPath),
				job.SourcePath, err)
			return outcome
		}
	}

	if _, err := os.Lstat(outcome.Destination); err == nil {
		if err := r.utils.RemoveDirectory(outcome.Destination); err != nil {
			staging.Retain()
			outcome.RetainedPath = stagedPath
			outcome.Err = NewExtractError(ErrStaging,
				fmt.Sprintf("Cannot replace %s. Extracted files kept in %s", outcome.Destination, stagedPath),
				job.SourcePath, err)
			return outcome
		}
	}

	if err := r.utils.MoveDirectory(stagedPath, outcome.Destination); err != nil {
		staging.Retain()
		outcome.RetainedPath = stagedPath
		outcome.Err = NewExtractError(ErrStaging,
			fmt.Sprintf("Cannot move to %s. Extracted files kept in %s", outcome.Destination, stagedPath),
			job.SourcePath, err)
		return outcome
	}

	if err := os.Remove(job.SourcePath); err != nil {
		r.events.log("  ⚠ %s: Could not delete source archive - %v", name, err)
	}

	outcome.Success = true
	return outcome
}

// runVerify 校验过程不报告进度
func (r *jobRunner) runVerify(ctx context.Context, job ArchiveJob, format ArchiveFormat) error {
	ctx, span := r.tracer.Start(ctx, "unzipper.verify",
		trace.WithAttributes(attribute.String("archive.name", filepath.Base(job.SourcePath))))
	defer span.End()

	err := r.verify(ctx, job.SourcePath, format, job.Password)
	if err != nil && r.isCancelled(ctx) {
		return errCancelled
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// extractInto 打开解码器并把所有条目写到 target 之下
func (r *jobRunner) extractInto(ctx context.Context, job ArchiveJob, format ArchiveFormat, target string) (uint64, error) {
	if r.isCancelled(ctx) {
		return 0, errCancelled
	}

	dec, err := r.formats.OpenDecoder(job.SourcePath, format, job.Password)
	if err != nil {
		return 0, classifyError(err, job.SourcePath, ErrRead)
	}
	defer dec.Close()

	if err := r.utils.EnsureDirectoryExists(target); err != nil {
		return 0, classifyError(err, job.SourcePath, ErrWrite)
	}

	writer := newDiskWriter(target, job.SourcePath, r.cfg, r.progress,
		func() bool { return r.isCancelled(ctx) },
		r.events.reportError)
	defer writer.finish()

	for {
		if r.isCancelled(ctx) {
			return writer.bytesWritten(), errCancelled
		}

		entry, err := dec.Next()
		if err == io.EOF {
			return writer.bytesWritten(), nil
		}
		if err != nil {
			return writer.bytesWritten(), classifyError(err, job.SourcePath, ErrRead)
		}

		if err := writer.writeEntry(entry, dec); err != nil {
			return writer.bytesWritten(), err
		}
	}
}

// finish 把 extractInto 的结果转换为任务结果
func (r *jobRunner) finish(outcome ExtractionOutcome, err error) ExtractionOutcome {
	switch {
	case err == nil:
		outcome.Success = true
	case errors.Is(err, errCancelled):
		outcome.Cancelled = true
	default:
		outcome.Err = classifyError(err, outcome.Archive, ErrRead)
	}
	return outcome
}

func (r *jobRunner) isCancelled(ctx context.Context) bool {
	if r.cancelled != nil && r.cancelled() {
		return true
	}
	return ctx.Err() != nil
}
