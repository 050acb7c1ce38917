package constants

import "strings"

// MaxDocumentBytes is the largest upload accepted before recognition.
const MaxDocumentBytes = 10 << 20

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// AllowedMediaTypes holds the media types accepted for invoice documents.
var AllowedMediaTypes = map[string]string{
	"image/jpeg":      IMAGE,
	"image/jpg":       IMAGE,
	"image/png":       IMAGE,
	"application/pdf": PDF,
}

// AllowedExtensions holds the file extensions picked up by batch extraction.
var AllowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMediaType lowercases and drops parameters ("; charset=...").
func NormalizeMediaType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// SourceTypeFor maps an allowed media type to PDF or IMAGE.
func SourceTypeFor(mediaType string) (string, bool) {
	st, ok := AllowedMediaTypes[NormalizeMediaType(mediaType)]
	return st, ok
}

// ExtForMediaType returns the canonical file extension for an allowed media type.
func ExtForMediaType(mediaType string) string {
	switch NormalizeMediaType(mediaType) {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}
