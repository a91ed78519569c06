// Package vector abstracts the vector index engine. The engine has its own
// failure domain: its mutations are never grouped into a relational
// transaction, so callers sequence vector writes before the metadata writes
// they accompany.
package vector

import "context"

// Record is one stored embedding. ID is the chunk embedding id, which makes
// hierarchy resolution a straight lookup from a search hit.
type Record struct {
	ID         string    `bson:"_id"`
	DocumentID string    `bson:"document_id"`
	Vector     []float32 `bson:"vector"`
}

// Filter is an equality constraint on record metadata.
type Filter struct {
	Key   string
	Value string
}

// Match is one similarity hit.
type Match struct {
	ID    string
	Score float64
}

// Store is the vector index engine interface.
type Store interface {
	ListIndexes(ctx context.Context) ([]string, error)

	// CreateIndex creates a named index accepting vectors of the given
	// dimensionality. Creating an existing index with the same
	// dimensionality is a no-op; with a different one it is a conflict.
	CreateIndex(ctx context.Context, name string, dimensions int) error

	DeleteIndex(ctx context.Context, name string) error

	// DeleteDocument removes every record tagged with the document id.
	DeleteDocument(ctx context.Context, indexName, documentID string) error

	Upsert(ctx context.Context, indexName string, records []Record) error

	// SimilaritySearch returns up to limit matches scoring at least
	// minRelevance, ordered by score descending (id ascending on ties).
	SimilaritySearch(ctx context.Context, indexName string, query []float32, filters []Filter, minRelevance float64, limit int) ([]Match, error)
}
