package unzipper

import (
	"io"
	"io/fs"
	"strings"

	encryptedzip "github.com/yeka/zip"
)

// zip 通用标志位第11位：文件名为UTF-8
const zipFlagUTF8 = 0x800

// zipDecoder ZIP格式解码器，支持 ZipCrypto 和 AES 加密
type zipDecoder struct {
	reader          *encryptedzip.ReadCloser
	password        string
	encodingHandler EncodingHandler

	index   int
	current io.ReadCloser
}

// newZipDecoder 打开ZIP文件
func newZipDecoder(archivePath, password string, encodingHandler EncodingHandler) (entryDecoder, error) {
	reader, err := encryptedzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	return &zipDecoder{
		reader:          reader,
		password:        password,
		encodingHandler: encodingHandler,
	}, nil
}

// Next 关闭上一个条目并打开下一个
func (d *zipDecoder) Next() (*Entry, error) {
	d.closeCurrent()

	if d.index >= len(d.reader.File) {
		return nil, io.EOF
	}
	file := d.reader.File[d.index]
	d.index++

	name := file.Name
	if file.Flags&zipFlagUTF8 == 0 {
		name = d.encodingHandler.DecodeEntryName(name)
	}

	info := file.FileInfo()
	entry := &Entry{
		Name:    name,
		Mode:    info.Mode().Perm(),
		ModTime: info.ModTime(),
		Size:    int64(file.UncompressedSize64),
	}

	if info.IsDir() || strings.HasSuffix(name, "/") {
		entry.Kind = EntryDir
		return entry, nil
	}

	// 加密条目必须设置密码，未设置时 yeka/zip 无法打开
	if file.IsEncrypted() {
		file.SetPassword(d.password)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, err
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := readLinkTarget(rc)
		rc.Close()
		if err != nil {
			return nil, err
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
func (d *zipDecoder) Read(p []byte) (int, error) {
	if d.current == nil {
		return 0, io.EOF
	}
	return d.current.Read(p)
}

// Close 关闭解码器
func (d *zipDecoder) Close() error {
	d.closeCurrent()
	return d.reader.Close()
}

func (d *zipDecoder) closeCurrent() {
	if d.current != nil {
		d.current.Close()
		d.current = nil
	}
}

// readLinkTarget 符号链接的目标存放在条目内容中
func readLinkTarget(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
