package models

import "time"

// Model capability constants. A wiki must have at least one model with
// CapabilityEmbedding before documents can be vectorized.
const (
	CapabilityEmbedding = "Embedding"
	CapabilityChat      = "Chat"
)

// ModelConfig describes one AI model attached to a wiki.
type ModelConfig struct {
	ID         string `json:"id" bson:"id"`
	Provider   string `json:"provider" bson:"provider"`
	Name       string `json:"name" bson:"name"`
	Capability string `json:"capability" bson:"capability"`
	// Dimensions is the embedding vector size; only meaningful for
	// CapabilityEmbedding models.
	Dimensions int `json:"dimensions,omitempty" bson:"dimensions,omitempty"`
}

// Wiki is one knowledge base. All of its chunk embeddings live in a single
// vector index addressed by the wiki ID.
type Wiki struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`

	// IsLock is true while any embedding task for this wiki is in the
	// wait or processing state.
	IsLock bool `json:"is_lock" bson:"is_lock"`

	Models []ModelConfig `json:"models" bson:"models"`

	// PreprocessKinds selects which derivation strategies run for each
	// source chunk during vectorization. Empty means source chunks only.
	PreprocessKinds []string `json:"preprocess_kinds,omitempty" bson:"preprocess_kinds,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// EmbeddingModel returns the first model configured with the Embedding
// capability, or false if none exists.
func (w *Wiki) EmbeddingModel() (ModelConfig, bool) {
	for _, m := range w.Models {
		if m.Capability == CapabilityEmbedding {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// ChatModel returns the model with the given id if it has the Chat
// capability. An empty id selects the first chat-capable model.
func (w *Wiki) ChatModel(id string) (ModelConfig, bool) {
	for _, m := range w.Models {
		if m.Capability != CapabilityChat {
			continue
		}
		if id == "" || m.ID == id {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// Document is one uploaded document belonging to a wiki. Text extraction
// happens upstream; Content holds the already-extracted text.
type Document struct {
	ID       string `json:"id" bson:"_id"`
	WikiID   string `json:"wiki_id" bson:"wiki_id"`
	FileName string `json:"file_name" bson:"file_name"`
	FileType string `json:"file_type" bson:"file_type"`

	// FilePath references the raw file in object storage. A document
	// without a file reference cannot be vectorized.
	FilePath string `json:"file_path" bson:"file_path"`

	Content string `json:"content,omitempty" bson:"content"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
