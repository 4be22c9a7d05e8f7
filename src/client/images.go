package client

import "strings"

const (
	FallbackImage = "/logo.svg"
	StoragePrefix = "/storage/"
)

// ImageURL turns a stored image path into something an <img> can load.
func ImageURL(path string) string {
	switch {
	case path == "":
		return FallbackImage
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	default:
		return StoragePrefix + path
	}
}

// ImageURLPtr is ImageURL for optional columns.
func ImageURLPtr(path *string) string {
	if path == nil {
		return FallbackImage
	}
	return ImageURL(*path)
}
