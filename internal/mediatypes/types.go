package mediatypes

import (
	"sort"
	"strings"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions lists the supported still image formats.
var ImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"webp": true,
	"tiff": true,
	"tif":  true,
	"heic": true,
	"heif": true,
	"dng":  true,
	"cr2":  true,
	"nef":  true,
	"arw":  true,
}

// VideoExtensions lists the supported video container formats.
var VideoExtensions = map[string]bool{
	"mp4":  true,
	"mov":  true,
	"m4v":  true,
	"3gp":  true,
	"avi":  true,
	"mkv":  true,
	"mts":  true,
	"m2ts": true,
	"mpg":  true,
	"mpeg": true,
	"wmv":  true,
}

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{
	"jpg", "jpeg", "png", "heic", "heif", "tif", "tiff", "webp", "gif",
	"mp4", "mov", "m4v", "3gp", "avi", "mkv",
}

// Ext returns the normalized extension of a file name: the text after the
// last dot, lowercased. Names without a dot, or ending in one, yield "".
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// NormalizeExt lowercases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// GetFileType returns the FileType for a normalized extension.
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// IsMediaFile returns true if the extension is a known image or video format.
func IsMediaFile(ext string) bool {
	return GetFileType(ext) != FileTypeOther
}

// AllowList is a set of normalized extensions.
type AllowList map[string]bool

// NewAllowList builds an AllowList, normalizing each entry. Blank entries
// are ignored.
func NewAllowList(exts []string) AllowList {
	allow := make(AllowList, len(exts))
	for _, e := range exts {
		if n := NormalizeExt(e); n != "" {
			allow[n] = true
		}
	}
	return allow
}

// Allows reports whether ext is in the list.
func (a AllowList) Allows(ext string) bool {
	return a[ext]
}

// Sorted returns the entries in lexical order.
func (a AllowList) Sorted() []string {
	out := make([]string, 0, len(a))
	for e := range a {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
