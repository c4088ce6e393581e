// Package trust implements reputation scoring, time decay, circular
// vouch detection, and trust path discovery over the vouch graph.
package trust

import "errors"

// Validation failures are detected before any mutation; a returned error
// means nothing was written.
var (
	ErrSelfVouch              = errors.New("cannot vouch for yourself")
	ErrInsufficientReputation = errors.New("reputation too low to vouch")
	ErrAccountTooNew          = errors.New("account too new to vouch")
	ErrRateLimited            = errors.New("daily vouch limit reached")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTaskState       = errors.New("task is not in a terminal state")
	ErrNotParticipant         = errors.New("reviewer is not a task participant")
	ErrDuplicateReview        = errors.New("task already reviewed by this reviewer")
	ErrValidation             = errors.New("invalid argument")
)
