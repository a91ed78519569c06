package models

import "time"

// ChunkEmbedding is one embedded unit. Its ID doubles as the vector-store
// record key. The hierarchy is exactly two levels deep: a source chunk has
// an empty ChunkID; a derived chunk points at its source chunk and never at
// another derived chunk.
type ChunkEmbedding struct {
	ID         string `json:"id" bson:"_id"`
	WikiID     string `json:"wiki_id" bson:"wiki_id"`
	DocumentID string `json:"document_id" bson:"document_id"`

	// ChunkID references the source chunk when this record is a derived
	// chunk (a preprocessing output). Empty for source chunks.
	ChunkID string `json:"chunk_id,omitempty" bson:"chunk_id,omitempty"`

	// MetadataContent is the exact text that was embedded.
	MetadataContent string `json:"metadata_content" bson:"metadata_content"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// IsSource reports whether this record is a source chunk.
func (c *ChunkEmbedding) IsSource() bool { return c.ChunkID == "" }
