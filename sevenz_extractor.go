package unzipper

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/bodgit/sevenzip"
)

// sevenZDecoder 7Z格式解码器
type sevenZDecoder struct {
	reader          *sevenzip.ReadCloser
	encodingHandler EncodingHandler

	index   int
	current io.ReadCloser
}

// newSevenZDecoder 打开7Z文件，密码为空时不启用解密
func newSevenZDecoder(archivePath, password string, encodingHandler EncodingHandler) (entryDecoder, error) {
	var (
		reader *sevenzip.ReadCloser
		err    error
	)
	if password == "" {
		reader, err = sevenzip.OpenReader(archivePath)
	} else {
		reader, err = sevenzip.OpenReaderWithPassword(archivePath, password)
	}
	if err != nil {
		return nil, wrap7zError(err)
	}

	return &sevenZDecoder{
		reader:          reader,
		encodingHandler: encodingHandler,
	}, nil
}

// Next 关闭上一个条目并打开下一个
func (d *sevenZDecoder) Next() (*Entry, error) {
	d.closeCurrent()

	if d.index >= len(d.reader.File) {
		return nil, io.EOF
	}
	file := d.reader.File[d.index]
	d.index++

	info := file.FileInfo()
	entry := &Entry{
		Name:    d.encodingHandler.DecodeEntryName(file.Name),
		Mode:    info.Mode().Perm(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}

	if info.IsDir() {
		entry.Kind = EntryDir
		return entry, nil
	}

	rc, err := file.Open()
	if err != nil {
		return nil, wrap7zError(err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := readLinkTarget(rc)
		rc.Close()
		if err != nil {
			return nil, wrap7zError(err)
		}
		entry.Kind = EntrySymlink
		entry.LinkTarget = target
		entry.Size = 0
		return entry, nil
	}

	entry.Kind = EntryFile
	d.current = rc
	return entry, nil
}

// Read 读取当前条目
func (d *sevenZDecoder) Read(p []byte) (int, error) {
	if d.current == nil {
		return 0, io.EOF
	}
	n, err := d.current.Read(p)
	if err != nil && err != io.EOF {
		return n, wrap7zError(err)
	}
	return n, err
}

// Close 关闭解码器
func (d *sevenZDecoder) Close() error {
	d.closeCurrent()
	return d.reader.Close()
}

func (d *sevenZDecoder) closeCurrent() {
	if d.current != nil {
		d.current.Close()
		d.current = nil
	}
}

// wrap7zError 加密数据上的读错误几乎都是密码错误
func wrap7zError(err error) error {
	var readErr *sevenzip.ReadError
	if errors.As(err, &readErr) && readErr.Encrypted {
		return fmt.Errorf("7z: decrypt failed, wrong password: %w", err)
	}
	return err
}
