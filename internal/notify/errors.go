package notify

import "errors"

var (
	// ErrDropped is reported when a full queue rejects a job.
	ErrDropped = errors.New("notification dropped")
	// ErrUnknownKind is reported for jobs with an unrecognized Kind.
	ErrUnknownKind = errors.New("unknown notification kind")
)
