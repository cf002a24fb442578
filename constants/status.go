package constants

// JobStatus is the canonical lifecycle status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB and on the wire).
const (
	JobStatusQueued     JobStatus = "queued"     // accepted, waiting for a worker
	JobStatusProcessing JobStatus = "processing" // claimed by a worker
	JobStatusCompleted  JobStatus = "completed"  // terminal success, result present
	JobStatusFailed     JobStatus = "failed"     // terminal failure
)

// IsTerminal reports whether s is a final state. Terminal jobs are never
// re-processed; a redelivered descriptor for a terminal job is dropped.
func IsTerminal(s JobStatus) bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
