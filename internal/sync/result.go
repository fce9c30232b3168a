package sync

// Result is the aggregate outcome of one user's sync attempt.
//
// The counters always satisfy 0 <= Saved <= Classified <= Fetched.
// Success reports that the mailbox connection succeeded and message
// processing was attempted; a run with per-message failures in Errors
// is still a successful run. Duplicates (messages already stored from
// an earlier sync) are neither saved nor errors.
type Result struct {
	// Account is the mailbox address the sync was submitted for. It is
	// always populated, including for task-level failures, so callers
	// can attribute every result to its user.
	Account string

	Success    bool
	Fetched    int
	Classified int
	Saved      int

	// Errors holds one entry per message-level failure, in processing
	// order, plus any connection-level failure.
	Errors []string
}
