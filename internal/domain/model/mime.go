package model

import (
	"path"
	"strings"
)

// DefaultMimeType is assumed for names without a known image extension.
const DefaultMimeType = "image/png"

// MimeTypeForName infers an image MIME type from a file name or URL path.
func MimeTypeForName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	default:
		return DefaultMimeType
	}
}

// ImageExtForURL returns the image extension of a URL path, or ".png".
func ImageExtForURL(u string) string {
	s := strings.ToLower(u)
	if strings.HasPrefix(s, "data:") {
		switch {
		case strings.HasPrefix(s, "data:image/jpeg"):
			return ".jpg"
		case strings.HasPrefix(s, "data:image/webp"):
			return ".webp"
		case strings.HasPrefix(s, "data:image/gif"):
			return ".gif"
		}
		return ".png"
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	switch ext := path.Ext(s); ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return ext
	}
	return ".png"
}
