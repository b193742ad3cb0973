package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// FilePaths maps FileInfo descriptors to relative storage paths.
//
// The mapping is pure and deterministic: the same descriptor always
// resolves to the same relative path, and descriptors differing in any
// namespace dimension resolve under disjoint path prefixes. Paths are
// relative so that the same value addresses both the local cache (under
// the base directory) and remote backends (as an object key).
//
// Every identifier that ends up in a path is validated first, so a
// hostile media ID or server name can never escape the base directory.
type FilePaths struct{}

// NewFilePaths returns a FilePaths resolver.
func NewFilePaths() FilePaths {
	return FilePaths{}
}

var (
	// safeComponent matches identifiers that are safe to embed in a
	// path: media IDs, server names and thumbnail methods.
	safeComponent = regexp.MustCompile(`^[0-9A-Za-z_=.-]+$`)

	// urlCacheDateID matches the date-prefixed URL cache media ID
	// format ("2016-06-21_randompart"). Older URL cache IDs use the
	// same shape as ordinary media IDs.
	urlCacheDateID = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// RelativePath resolves a descriptor to its primary relative path.
//
// Resolution order: URL cache namespace first, then remote origin, then
// local, with the thumbnail overlay applied within whichever namespace
// matched.
func (FilePaths) RelativePath(info *FileInfo) (string, error) {
	switch {
	case info.UrlCache:
		if info.Thumbnail != nil {
			return urlCacheThumbnailRel(info.FileID, info.Thumbnail)
		}
		return urlCacheFilepathRel(info.FileID)

	case info.ServerName != "":
		if info.Thumbnail != nil {
			return remoteMediaThumbnailRel(info.ServerName, info.FileID, info.Thumbnail)
		}
		return remoteMediaFilepathRel(info.ServerName, info.FileID)

	default:
		if info.Thumbnail != nil {
			return localMediaThumbnailRel(info.FileID, info.Thumbnail)
		}
		return localMediaFilepathRel(info.FileID)
	}
}

// LegacyRemoteThumbnailPath resolves the older remote-thumbnail naming
// scheme whose filename omits the thumbnailing method.
//
// It exists only as a read-time fallback for thumbnails written before
// the method was part of the name; it is never a write target. Returns
// an error for descriptors that are not remote-origin thumbnails.
func (FilePaths) LegacyRemoteThumbnailPath(info *FileInfo) (string, error) {
	if info.ServerName == "" || info.Thumbnail == nil {
		return "", fmt.Errorf("legacy thumbnail path requires a remote-origin thumbnail descriptor")
	}

	dir, err := remoteThumbnailDir(info.ServerName, info.FileID)
	if err != nil {
		return "", err
	}

	top, sub, err := splitContentType(info.Thumbnail.ContentType)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%d-%s-%s", info.Thumbnail.Width, info.Thumbnail.Height, top, sub)
	return filepath.Join(dir, name), nil
}

// ----------------------------------------------------------------------------
// Namespace helpers
// ----------------------------------------------------------------------------

func localMediaFilepathRel(mediaID string) (string, error) {
	a, b, rest, err := splitMediaID(mediaID)
	if err != nil {
		return "", err
	}
	return filepath.Join("local_content", a, b, rest), nil
}

func localMediaThumbnailRel(mediaID string, t *ThumbnailInfo) (string, error) {
	a, b, rest, err := splitMediaID(mediaID)
	if err != nil {
		return "", err
	}
	name, err := thumbnailFilename(t)
	if err != nil {
		return "", err
	}
	return filepath.Join("local_thumbnails", a, b, rest, name), nil
}

func remoteMediaFilepathRel(serverName, fileID string) (string, error) {
	if err := validateComponent("server name", serverName); err != nil {
		return "", err
	}
	a, b, rest, err := splitMediaID(fileID)
	if err != nil {
		return "", err
	}
	return filepath.Join("remote_content", serverName, a, b, rest), nil
}

func remoteMediaThumbnailRel(serverName, fileID string, t *ThumbnailInfo) (string, error) {
	dir, err := remoteThumbnailDir(serverName, fileID)
	if err != nil {
		return "", err
	}
	name, err := thumbnailFilename(t)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func remoteThumbnailDir(serverName, fileID string) (string, error) {
	if err := validateComponent("server name", serverName); err != nil {
		return "", err
	}
	a, b, rest, err := splitMediaID(fileID)
	if err != nil {
		return "", err
	}
	return filepath.Join("remote_thumbnail", serverName, a, b, rest), nil
}

func urlCacheFilepathRel(mediaID string) (string, error) {
	if urlCacheDateID.MatchString(mediaID) {
		date, rest, err := splitURLCacheDateID(mediaID)
		if err != nil {
			return "", err
		}
		return filepath.Join("url_cache", date, rest), nil
	}
	a, b, rest, err := splitMediaID(mediaID)
	if err != nil {
		return "", err
	}
	return filepath.Join("url_cache", a, b, rest), nil
}

func urlCacheThumbnailRel(mediaID string, t *ThumbnailInfo) (string, error) {
	name, err := thumbnailFilename(t)
	if err != nil {
		return "", err
	}
	if urlCacheDateID.MatchString(mediaID) {
		date, rest, err := splitURLCacheDateID(mediaID)
		if err != nil {
			return "", err
		}
		return filepath.Join("url_cache_thumbnails", date, rest, name), nil
	}
	a, b, rest, err := splitMediaID(mediaID)
	if err != nil {
		return "", err
	}
	return filepath.Join("url_cache_thumbnails", a, b, rest, name), nil
}

// ----------------------------------------------------------------------------
// Component validation and splitting
// ----------------------------------------------------------------------------

// validateComponent rejects values that could escape the base directory
// once joined into a path.
func validateComponent(what, value string) error {
	if value == "" {
		return fmt.Errorf("%s is empty", what)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("%s %q is not a valid path component", what, value)
	}
	if !safeComponent.MatchString(value) {
		return fmt.Errorf("%s %q contains characters unsafe for a path", what, value)
	}
	return nil
}

// splitMediaID breaks a media ID into the aa/bb/rest directory layout
// used to keep directory fanout manageable.
func splitMediaID(mediaID string) (string, string, string, error) {
	if err := validateComponent("media ID", mediaID); err != nil {
		return "", "", "", err
	}
	if len(mediaID) < 5 {
		return "", "", "", fmt.Errorf("media ID %q is too short", mediaID)
	}
	return mediaID[0:2], mediaID[2:4], mediaID[4:], nil
}

// splitURLCacheDateID breaks a date-prefixed URL cache media ID
// ("YYYY-MM-DD_rest") into its date directory and remainder.
func splitURLCacheDateID(mediaID string) (string, string, error) {
	if err := validateComponent("media ID", mediaID); err != nil {
		return "", "", err
	}
	if len(mediaID) < 12 || mediaID[10] != '_' {
		return "", "", fmt.Errorf("media ID %q is not a valid URL cache ID", mediaID)
	}
	return mediaID[:10], mediaID[11:], nil
}

// thumbnailFilename builds the per-rendition filename within a
// thumbnail directory: "{width}-{height}-{type}-{subtype}-{method}".
func thumbnailFilename(t *ThumbnailInfo) (string, error) {
	top, sub, err := splitContentType(t.ContentType)
	if err != nil {
		return "", err
	}
	if err := validateComponent("thumbnail method", t.Method); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d-%s-%s-%s", t.Width, t.Height, top, sub, t.Method), nil
}

func splitContentType(contentType string) (string, string, error) {
	top, sub, ok := strings.Cut(contentType, "/")
	if !ok {
		return "", "", fmt.Errorf("content type %q is not of the form type/subtype", contentType)
	}
	if err := validateComponent("content type", top); err != nil {
		return "", "", err
	}
	if err := validateComponent("content type", sub); err != nil {
		return "", "", err
	}
	return top, sub, nil
}
