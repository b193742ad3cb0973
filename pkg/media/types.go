// Package media implements the tiered media storage coordinator for
// MediaVault.
//
// Media objects (originals and derived thumbnails) live in a local
// on-disk cache and may be replicated to an ordered list of pluggable
// storage backends. The coordinator in this package owns the write,
// read and cache-population flows; the backends themselves live in
// pkg/backend.
package media

import "fmt"

// FileInfo describes a single stored media object or rendition.
//
// The four namespace dimensions compose orthogonally:
//   - UrlCache selects the time-bounded URL preview cache namespace
//   - ServerName (when set) selects the remote-origin namespace
//   - neither selects the local namespace
//   - Thumbnail is a modifier applicable to any of the above, switching
//     the descriptor from the original to a derived rendition
//
// Distinct descriptors always resolve to distinct relative paths, so a
// stored object is never mutated in place.
type FileInfo struct {
	// FileID is an opaque identifier, unique within its namespace.
	FileID string

	// ServerName is the remote federation peer the media originated
	// from. Empty for locally uploaded media.
	ServerName string

	// Thumbnail identifies a derived rendition instead of the original
	// when non-nil.
	Thumbnail *ThumbnailInfo

	// UrlCache marks media living in the URL preview cache namespace.
	UrlCache bool
}

// ThumbnailInfo carries the parameters a thumbnail was generated with.
// Together with the parent FileInfo they uniquely name one rendition.
type ThumbnailInfo struct {
	Width       int
	Height      int
	ContentType string
	Method      string
}

// String returns a compact human-readable form used in log lines.
func (fi *FileInfo) String() string {
	origin := "local"
	if fi.UrlCache {
		origin = "url_cache"
	} else if fi.ServerName != "" {
		origin = fi.ServerName
	}
	if fi.Thumbnail != nil {
		return fmt.Sprintf("%s/%s (thumbnail %dx%d %s %s)",
			origin, fi.FileID,
			fi.Thumbnail.Width, fi.Thumbnail.Height,
			fi.Thumbnail.ContentType, fi.Thumbnail.Method)
	}
	return fmt.Sprintf("%s/%s", origin, fi.FileID)
}
