package sync

// images.go holds the attachment path conventions. Stored attachment values
// are relative paths of the form "<collection>/<opaque-id>.<ext>", resolved
// against the configured endpoint's storage path. A resized variant inserts a
// manipulations segment carrying the requested dimensions.

import (
	"fmt"
	"strings"
)

// storageSegment is the path segment between the endpoint and an attachment's
// relative path.
const storageSegment = "/storage/"

// ResolveImageURL resolves a stored relative attachment path to an absolute
// URL on the configured endpoint.
func ResolveImageURL(endpoint, relPath string) string {
	return strings.TrimSuffix(endpoint, "/") + storageSegment + relPath
}

// ResolveImageURLs resolves a list of stored relative attachment paths.
func ResolveImageURLs(endpoint string, relPaths []string) []string {
	urls := make([]string, len(relPaths))
	for i, p := range relPaths {
		urls[i] = ResolveImageURL(endpoint, p)
	}
	return urls
}

// ResizedImagePath derives the resized-variant relative path for a stored
// attachment path: "folder/name.ext" becomes
// "folder/manipulations/name-resize-<w>x<h>.ext". Height may be 0 to
// preserve aspect ratio.
func ResizedImagePath(relPath string, width, height int) string {
	folder, file, ok := strings.Cut(relPath, "/")
	if !ok {
		return relPath
	}
	name, ext, ok := strings.Cut(file, ".")
	if !ok {
		return relPath
	}
	h := ""
	if height > 0 {
		h = fmt.Sprintf("%d", height)
	}
	return fmt.Sprintf("%s/manipulations/%s-resize-%dx%s.%s", folder, name, width, h, ext)
}
