package daemon

import "errors"

// ErrNoSuchService indicates the daemon has no entries for a requested
// service kind.
var ErrNoSuchService = errors.New("daemon: no such service")
