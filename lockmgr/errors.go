package lockmgr

import "errors"

// ErrIgnoredPath is returned by Acquire when the requested file matches
// the manager's ignore list (VCS metadata, build output) and is refused
// a lock outright.
var ErrIgnoredPath = errors.New("lockmgr: path is in the ignore list")
