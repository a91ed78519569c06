package models

// SearchResult is one retrieval hit after hierarchy resolution.
//
// Text is the matched record's own content (for a derived chunk this is the
// outline/questions/summary the query actually matched). ChunkText is always
// the source chunk's content, which is what answer synthesis grounds on.
type SearchResult struct {
	ChunkEmbeddingID string  `json:"chunk_embedding_id"`
	DocumentID       string  `json:"document_id"`
	FileName         string  `json:"file_name"`
	FileType         string  `json:"file_type"`
	Text             string  `json:"text"`
	ChunkText        string  `json:"chunk_text"`
	Relevance        float64 `json:"relevance"`
}

// SearchResponse is the full answer of a document text search. Query echoes
// the effective query, which differs from the submitted one when query
// optimization rewrote it.
type SearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results"`
}
