package ranking

import "errors"

// ErrNoCandidatesFound reports that no attribute surfaced any candidate.
var ErrNoCandidatesFound = errors.New("no candidates found")
