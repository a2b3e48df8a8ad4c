package unzipper

import (
	"runtime"
	"time"
)

const (
	// MaxParallelLimit 并发上限
	MaxParallelLimit = 8

	// DefaultChunkSize 单次读写的缓冲区大小
	DefaultChunkSize = 256 * 1024

	// DefaultThrottleInterval 进度事件的最小间隔
	DefaultThrottleInterval = 150 * time.Millisecond

	// DefaultExpansionFactor 压缩包大小到解压后大小的估算倍数
	DefaultExpansionFactor = 3
)

// Config 一次批量解压的配置，构造后按值传递，不在运行中修改
type Config struct {
	// DestinationRoot 输出根目录
	DestinationRoot string

	// DeleteSourceAfter 解压成功并移动到位后删除源压缩包
	DeleteSourceAfter bool

	// Overwrite 是否覆盖已存在的文件
	Overwrite bool

	// MaxParallel 并发数，<=0 时使用 min(8, CPU数)
	MaxParallel int

	// VerifyAfterExtract 删除源文件前完整校验压缩包
	VerifyAfterExtract bool

	// ChunkSize 读写缓冲区大小，0表示默认值
	ChunkSize int

	// ThrottleInterval 进度事件间隔，0表示默认值
	ThrottleInterval time.Duration

	// ExpansionFactor 估算解压总量时的倍数，0表示默认值
	ExpansionFactor uint64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxParallel:      DefaultMaxParallel(),
		ChunkSize:        DefaultChunkSize,
		ThrottleInterval: DefaultThrottleInterval,
		ExpansionFactor:  DefaultExpansionFactor,
	}
}

// WithDefaults 返回填充默认值后的副本
func (c Config) WithDefaults() Config {
	c.MaxParallel = EffectiveParallelism(c.MaxParallel)
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ThrottleInterval <= 0 {
		c.ThrottleInterval = DefaultThrottleInterval
	}
	if c.ExpansionFactor == 0 {
		c.ExpansionFactor = DefaultExpansionFactor
	}
	return c
}

// DefaultMaxParallel min(8, max(1, CPU数))
func DefaultMaxParallel() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > MaxParallelLimit {
		n = MaxParallelLimit
	}
	return n
}

// EffectiveParallelism 把调用方给出的并发数限制在 [1, 8]，未指定时取默认值
func EffectiveParallelism(maxParallel int) int {
	if maxParallel <= 0 {
		return DefaultMaxParallel()
	}
	if maxParallel > MaxParallelLimit {
		return MaxParallelLimit
	}
	return maxParallel
}

// ValidateConfig 验证解压配置
func ValidateConfig(config Config) error {
	if config.DestinationRoot == "" {
		return NewExtractError(ErrWrite, "destination root must not be empty", "", nil)
	}
	if config.ChunkSize < 0 {
		return NewExtractError(ErrInternal, "chunk size must not be negative", "", nil)
	}
	if config.ThrottleInterval < 0 {
		return NewExtractError(ErrInternal, "throttle interval must not be negative", "", nil)
	}
	return nil
}
