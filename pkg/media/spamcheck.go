package media

import (
	"context"
	"errors"
	"fmt"
)

// Verdict is the result of a spam check over freshly stored media.
// Anything other than VerdictNotSpam blocks persistence.
type Verdict string

// VerdictNotSpam is the only verdict that allows media to be kept and
// replicated. All other values are opaque rejection codes owned by the
// checker.
const VerdictNotSpam Verdict = "NOT_SPAM"

// SpamChecker is the external content-safety gate consulted after a
// local write completes and before any backend replication begins.
//
// Implementations receive the file through a ChunkedFileReader so large
// media is scanned without being duplicated into memory.
type SpamChecker interface {
	CheckMediaForSpam(ctx context.Context, file *ChunkedFileReader, info *FileInfo) (Verdict, error)
}

// NoopSpamChecker accepts everything. It is the default when no checker
// is configured.
type NoopSpamChecker struct{}

func (NoopSpamChecker) CheckMediaForSpam(_ context.Context, _ *ChunkedFileReader, _ *FileInfo) (Verdict, error) {
	return VerdictNotSpam, nil
}

// ErrMediaNotFound is returned when neither the local cache nor any
// backend holds the requested media. HTTP surfaces map it to 404.
var ErrMediaNotFound = errors.New("media not found")

// SpamMediaError reports media blocked by the spam checker.
//
// It matches ErrMediaNotFound under errors.Is: blocked media is served
// to end clients exactly like quarantined or missing media, so the
// rejection code never leaks to the requester.
type SpamMediaError struct {
	Code Verdict
}

func (e *SpamMediaError) Error() string {
	return fmt.Sprintf("media blocked by spam checker (code %s)", e.Code)
}

func (e *SpamMediaError) Is(target error) bool {
	return target == ErrMediaNotFound
}
