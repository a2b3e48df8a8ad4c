package unzipper

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// EncodingHandler 条目名编码处理器接口
type EncodingHandler interface {
	// DecodeEntryName 把非UTF-8的条目名转换为UTF-8，已是UTF-8则原样返回
	DecodeEntryName(name string) string

	// DetectEncoding 检测文件名编码
	DetectEncoding(name string) string
}

// defaultEncodingHandler 默认编码处理器实现
type defaultEncodingHandler struct {
	// 检测失败时依次尝试的编码
	fallbackEncodings []string
}

// NewEncodingHandler 创建新的编码处理器
func NewEncodingHandler() EncodingHandler {
	return &defaultEncodingHandler{
		fallbackEncodings: []string{"GBK", "BIG5", "SHIFT_JIS", "EUC-KR", "CP866"},
	}
}

// DecodeEntryName 自动检测编码后解码。所有尝试都失败时把非法字节替换为 U+FFFD，
// 保证返回值总是合法的UTF-8。
func (h *defaultEncodingHandler) DecodeEntryName(name string) string {
	if utf8.ValidString(name) {
		return name
	}

	if enc := h.DetectEncoding(name); enc != "" {
		if decoded, ok := h.decode(name, enc); ok {
			return decoded
		}
	}

	for _, enc := range h.fallbackEncodings {
		if decoded, ok := h.decode(name, enc); ok {
			return decoded
		}
	}

	return strings.ToValidUTF8(name, "�")
}

// DetectEncoding 使用chardet检测，置信度不足时返回空字符串
func (h *defaultEncodingHandler) DetectEncoding(name string) string {
	if utf8.ValidString(name) {
		return "UTF-8"
	}

	result, err := chardet.NewTextDetector().DetectBest([]byte(name))
	if err != nil || result.Confidence < 50 {
		return ""
	}

	switch strings.ToUpper(result.Charset) {
	case "GB2312", "GBK", "GB18030":
		return "GBK"
	case "BIG5":
		return "BIG5"
	case "SHIFT_JIS", "SJIS":
		return "SHIFT_JIS"
	case "EUC-KR":
		return "EUC-KR"
	case "ISO-8859-1", "WINDOWS-1252":
		return "CP1252"
	case "IBM866":
		return "CP866"
	}
	return ""
}

// decode 解码并检查结果是否像一个合理的文件名
func (h *defaultEncodingHandler) decode(name, encoding string) (string, bool) {
	decoder := h.getDecoder(encoding)
	if decoder == nil {
		return "", false
	}

	out, _, err := transform.String(decoder, name)
	if err != nil || !utf8.ValidString(out) || strings.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return out, true
}

// getDecoder 根据编码名称获取解码器
func (h *defaultEncodingHandler) getDecoder(encoding string) transform.Transformer {
	switch strings.ToUpper(encoding) {
	case "GBK", "GB2312":
		return simplifiedchinese.GBK.NewDecoder()
	case "BIG5":
		return traditionalchinese.Big5.NewDecoder()
	case "SHIFT_JIS", "SJIS":
		return japanese.ShiftJIS.NewDecoder()
	case "EUC-KR":
		return korean.EUCKR.NewDecoder()
	case "CP866":
		return charmap.CodePage866.NewDecoder()
	case "CP1252", "WINDOWS-1252", "ISO-8859-1", "LATIN1":
		return charmap.Windows1252.NewDecoder()
	default:
		return nil
	}
}
