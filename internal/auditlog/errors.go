package auditlog

import "errors"

// ErrOpen is returned by New when the log file's parent directory could not
// be created or the file could not be opened for append.
var ErrOpen = errors.New("auditlog: failed to open log file")
