// Package ids generates and parses the prefixed entity identifiers used
// throughout squawk (msn-, srt-, chk-, lock-, evt-, spc-, mbx-, msg-, cur-).
//
// Generalized to an arbitrary registered prefix set rather than a few
// hard-coded entity types.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix identifies the entity kind encoded in an ID.
type Prefix string

const (
	Mission    Prefix = "msn"
	Sortie     Prefix = "srt"
	Checkpoint Prefix = "chk"
	Lock       Prefix = "lock"
	Event      Prefix = "evt"
	Specialist Prefix = "spc"
	Mailbox    Prefix = "mbx"
	Message    Prefix = "msg"
	Cursor     Prefix = "cur"
	Conflict   Prefix = "cft"
)

// New generates a new identifier of the given prefix, e.g. "msn-<uuid>".
func New(p Prefix) string {
	return fmt.Sprintf("%s-%s", p, uuid.New().String())
}

// HasPrefix reports whether id is a validly-formed identifier of prefix p.
func HasPrefix(id string, p Prefix) bool {
	return strings.HasPrefix(id, string(p)+"-")
}

// ParsePrefix extracts the prefix from an identifier, or "" if malformed.
func ParsePrefix(id string) Prefix {
	idx := strings.Index(id, "-")
	if idx <= 0 {
		return ""
	}
	return Prefix(id[:idx])
}
