package git

import (
	"encoding/hex"
	"strings"
	"time"
)

// shortIDLen is the number of hex characters shown for an abbreviated commit id.
const shortIDLen = 7

// CommitID is a 20-byte git object id. It converts directly to and from
// go-git's plumbing.Hash.
type CommitID [20]byte

// String returns the full lowercase hex form.
func (id CommitID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the abbreviated hex form used in list views.
func (id CommitID) Short() string {
	return id.String()[:shortIDLen]
}

// IsZero reports whether id is the all-zero id.
func (id CommitID) IsZero() bool {
	return id == CommitID{}
}

// CommitInfo is the immutable record the filter engine and the log cache work on.
type CommitInfo struct {
	ID      CommitID
	Author  string // author name
	Message string // summary line
	Time    int64  // committer time, unix seconds
}

// When returns the commit time as a time.Time in the local zone.
func (c CommitInfo) When() time.Time {
	return time.Unix(c.Time, 0)
}

// Tag is a single tag pointing at a commit.
type Tag struct {
	Name       string
	Annotation string // empty for lightweight tags
}

// CommitTags are the tags attached to one commit, sorted by name.
type CommitTags []Tag

// Names returns the tag names in order.
func (t CommitTags) Names() []string {
	names := make([]string, len(t))
	for i, tag := range t {
		names[i] = tag.Name
	}
	return names
}

// String joins the tag names with a space.
func (t CommitTags) String() string {
	return strings.Join(t.Names(), " ")
}

// Tags maps commit ids to their tags. A Tags value is treated as an immutable
// snapshot once published.
type Tags map[CommitID]CommitTags

// summary returns the first line of a commit message.
func summary(message string) string {
	message = strings.TrimLeft(message, "\n")
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	return strings.TrimRight(message, "\r ")
}
