package unzipper

import (
	"os"
	"sync"
)

// stagingPattern 暂存目录名模板
const stagingPattern = ".unzipper_temp_"

// stagingDir 每个任务独占的暂存目录。Cleanup 默认删除目录，
// 调用 Retain 后保留，用于必须把输出留给用户的失败路径。
type stagingDir struct {
	path string

	mu       sync.Mutex
	retained bool
}

// newStagingDir 优先在输出目录下创建，保证后续重命名在同一文件系统内；失败时退回系统临时目录
func newStagingDir(destinationRoot string) (*stagingDir, error) {
	path, err := os.MkdirTemp(destinationRoot, stagingPattern)
	if err != nil {
		path, err = os.MkdirTemp("", stagingPattern)
		if err != nil {
			return nil, err
		}
	}
	return &stagingDir{path: path}, nil
}

// Path 暂存目录路径
func (s *stagingDir) Path() string {
	return s.path
}

// Retain 取消自动删除
func (s *stagingDir) Retain() {
	s.mu.Lock()
	s.retained = true
	s.mu.Unlock()
}

// Retained 是否已保留
func (s *stagingDir) Retained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retained
}

// Cleanup 未保留时删除整个暂存目录
func (s *stagingDir) Cleanup() error {
	if s.Retained() {
		return nil
	}
	return os.RemoveAll(s.path)
}
