package models

import "time"

// Embedding task states. A task starts in TaskStateWait and moves through
// TaskStateProcessing to exactly one terminal state.
const (
	TaskStateWait       = "wait"
	TaskStateProcessing = "processing"
	TaskStateSuccess    = "success"
	TaskStateFailed     = "failed"
	TaskStateCancelled  = "cancelled"
)

// ActiveTaskStates are the non-terminal states. At most one task per
// document may be in one of these at any time; the embedding_tasks partial
// unique index enforces it.
var ActiveTaskStates = []string{TaskStateWait, TaskStateProcessing}

// EmbeddingTask tracks one document's vectorization attempt.
type EmbeddingTask struct {
	ID         string `json:"id" bson:"_id"`
	DocumentID string `json:"document_id" bson:"document_id"`
	WikiID     string `json:"wiki_id" bson:"wiki_id"`

	// TaskTag is an opaque correlation string carried through the queue
	// so worker logs can be joined back to the submitting request.
	TaskTag string `json:"task_tag" bson:"task_tag"`

	State   string `json:"state" bson:"state"`
	Message string `json:"message,omitempty" bson:"message,omitempty"`

	MaxTokensPerChunk int    `json:"max_tokens_per_chunk" bson:"max_tokens_per_chunk"`
	OverlapTokens     int    `json:"overlap_tokens" bson:"overlap_tokens"`
	TokenizerSpec     string `json:"tokenizer_spec" bson:"tokenizer_spec"`

	Deleted   bool      `json:"-" bson:"deleted"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsTerminal reports whether the task has finished (successfully or not).
func (t *EmbeddingTask) IsTerminal() bool {
	switch t.State {
	case TaskStateSuccess, TaskStateFailed, TaskStateCancelled:
		return true
	}
	return false
}
