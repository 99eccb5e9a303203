package crosspost

import (
	"encoding/json"
	"time"
)

// JobState is the state of a queued job row.
type JobState string

// The possible states for a job. A queued row is delivered at most once per
// enqueue: retry scheduling is owned by the job processor (see the post's
// RetryCount), which re-queues the same row with a new not_before.
//
//	Queued───►Success
//	  │ ▲
//	  │ └──(retry re-queue)
//	  ├─────►Failure
//	  └─────►Cancelled
const (
	JobStateQueued    JobState = "queued"
	JobStateSuccess   JobState = "success"
	JobStateFailure   JobState = "failure"
	JobStateCancelled JobState = "cancelled"
)

// Job describes an asynchronous job scheduled via the worker package. Its id
// is the id of the post it publishes, so cancelling a post cancels exactly
// its job. The args payload is minimal on purpose: processors re-read current
// state from the datastore rather than trusting stale payload data.
type Job struct {
	ID        string           `json:"id" db:"id"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at" db:"updated_at"`
	Name      string           `json:"name" db:"name"`
	Args      *json.RawMessage `json:"args" db:"args"`
	State     JobState         `json:"state" db:"state"`
	NotBefore time.Time        `json:"not_before" db:"not_before"`
	Error     string           `json:"error" db:"error"`
}
