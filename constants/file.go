package constants

import "strings"

// FileFormat identifies a supported document container.
type FileFormat string

const (
	DOCX FileFormat = "DOCX" // zipped OOXML, word/document.xml
	ODT  FileFormat = "ODT"  // zipped ODF, content.xml
	TXT  FileFormat = "TXT"  // plain text
)

// AllowedExtensions holds the file extensions accepted at intake.
var AllowedExtensions = map[string]struct{}{
	"docx": {},
	"odt":  {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a (possibly dotted) extension to its format, or ""
// when the extension is not supported.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "docx":
		return DOCX
	case "odt":
		return ODT
	case "txt":
		return TXT
	default:
		return ""
	}
}
