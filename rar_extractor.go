package unzipper

import (
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"
)

// rarDecoder RAR/CBR格式解码器。只处理目录和普通文件。
type rarDecoder struct {
	file            *os.File
	reader          *rardecode.Reader
	encodingHandler EncodingHandler
	hasEntry        bool
	encrypted       bool
}

// newRarDecoder 打开RAR文件
func newRarDecoder(archivePath, password string, encodingHandler EncodingHandler) (entryDecoder, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}

	var reader *rardecode.Reader
	if password == "" {
		reader, err = rardecode.NewReader(file)
	} else {
		reader, err = rardecode.NewReader(file, rardecode.Password(password))
	}
	if err != nil {
		file.Close()
		return nil, err
	}

	return &rarDecoder{
		file:            file,
		reader:          reader,
		encodingHandler: encodingHandler,
	}, nil
}

// Next 未读完的条目内容由 rardecode 自动跳过
func (d *rarDecoder) Next() (*Entry, error) {
	d.hasEntry = false
	d.encrypted = false

	header, err := d.reader.Next()
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Name:    d.encodingHandler.DecodeEntryName(header.Name),
		Mode:    header.Mode().Perm(),
		ModTime: header.ModificationTime,
		Size:    header.UnPackedSize,
	}
	if header.IsDir {
		entry.Kind = EntryDir
		return entry, nil
	}

	entry.Kind = EntryFile
	d.hasEntry = true
	d.encrypted = header.Encrypted
	return entry, nil
}

// Read 读取当前条目。RAR4 密码错误时解出的是乱码，只在条目末尾报校验和错误，
// 因此加密条目上的读错误按密码错误处理
func (d *rarDecoder) Read(p []byte) (int, error) {
	if !d.hasEntry {
		return 0, io.EOF
	}
	n, err := d.reader.Read(p)
	if err != nil && err != io.EOF && d.encrypted {
		return n, fmt.Errorf("rar: decrypt failed, wrong password: %w", err)
	}
	return n, err
}

// Close 关闭解码器
func (d *rarDecoder) Close() error {
	return d.file.Close()
}
