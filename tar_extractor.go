package unzipper

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// tarDecoder TAR系列解码器，外层压缩过滤器由 CompressionFilter 决定
type tarDecoder struct {
	file            *os.File
	filter          io.Closer
	reader          *tar.Reader
	encodingHandler EncodingHandler
	hasEntry        bool
}

// newTarDecoder 打开TAR文件并套上压缩过滤器
func newTarDecoder(archivePath string, filter CompressionFilter, encodingHandler EncodingHandler) (entryDecoder, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}

	d := &tarDecoder{
		file:            file,
		encodingHandler: encodingHandler,
	}

	stream, err := d.openFilter(filter, bufio.NewReaderSize(file, DefaultChunkSize))
	if err != nil {
		file.Close()
		return nil, err
	}
	d.reader = tar.NewReader(stream)
	return d, nil
}

// openFilter 创建解压过滤器
func (d *tarDecoder) openFilter(filter CompressionFilter, r io.Reader) (io.Reader, error) {
	switch filter {
	case FilterNone:
		return r, nil
	case FilterGzip:
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip stream: %w", err)
		}
		d.filter = gz
		return gz, nil
	case FilterBzip2:
		return bzip2.NewReader(r), nil
	case FilterXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("invalid xz stream: %w", err)
		}
		return xr, nil
	default:
		return nil, fmt.Errorf("unknown compression filter: %s", filter)
	}
}

// Next 跳过设备文件、FIFO 等无法安全还原的条目
func (d *tarDecoder) Next() (*Entry, error) {
	d.hasEntry = false

	for {
		header, err := d.reader.Next()
		if err != nil {
			return nil, err
		}

		entry := &Entry{
			Name:    d.encodingHandler.DecodeEntryName(header.Name),
			Mode:    header.FileInfo().Mode().Perm(),
			ModTime: header.ModTime,
			Size:    header.Size,
		}

		switch header.Typeflag {
		case tar.TypeDir:
			entry.Kind = EntryDir
		case tar.TypeReg, tar.TypeGNUSparse:
			entry.Kind = EntryFile
			d.hasEntry = true
		case tar.TypeSymlink:
			entry.Kind = EntrySymlink
			entry.LinkTarget = d.encodingHandler.DecodeEntryName(header.Linkname)
			entry.Size = 0
		case tar.TypeLink:
			entry.Kind = EntryHardlink
			entry.LinkTarget = d.encodingHandler.DecodeEntryName(header.Linkname)
			entry.Size = 0
		default:
			continue
		}
		return entry, nil
	}
}

// Read 读取当前条目
func (d *tarDecoder) Read(p []byte) (int, error) {
	if !d.hasEntry {
		return 0, io.EOF
	}
	return d.reader.Read(p)
}

// Close 关闭过滤器和文件
func (d *tarDecoder) Close() error {
	if d.filter != nil {
		d.filter.Close()
	}
	return d.file.Close()
}
