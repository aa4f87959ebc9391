package constants

import "strings"

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// MaxUploadBytes is the boundary size limit for a receipt file.
const MaxUploadBytes int64 = 10 << 20

// AllowedExtensions holds the file extensions accepted by the pipeline.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
}

// AllowedMIMETypes holds the sniffed content types accepted at the boundary.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/gif":       {},
	"image/bmp":       {},
	"application/pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF, IMAGE or "" for an extension (with or without dot).
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "gif", "bmp":
		return IMAGE
	default:
		return ""
	}
}
