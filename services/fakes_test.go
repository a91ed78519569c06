package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"wiki-knowledge-platform/internal/ai"
	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/internal/vector"
	"wiki-knowledge-platform/models"
)

// In-memory store fakes. Each one keeps the same error contract as the
// Mongo implementation so the services under test cannot tell them apart.

type memWikiStore struct {
	mu    sync.Mutex
	wikis map[string]*models.Wiki
}

func newMemWikiStore() *memWikiStore {
	return &memWikiStore{wikis: map[string]*models.Wiki{}}
}

func (s *memWikiStore) GetWiki(_ context.Context, id string) (*models.Wiki, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wikis[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "wiki %s not found", id)
	}
	copied := *w
	return &copied, nil
}

func (s *memWikiStore) CreateWiki(_ context.Context, wiki *models.Wiki) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *wiki
	s.wikis[wiki.ID] = &copied
	return nil
}

func (s *memWikiStore) SetWikiLock(_ context.Context, id string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wikis[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "wiki %s not found", id)
	}
	w.IsLock = locked
	return nil
}

func (s *memWikiStore) locked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wikis[id].IsLock
}

type memDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocumentStore() *memDocumentStore {
	return &memDocumentStore{docs: map[string]*models.Document{}}
}

func (s *memDocumentStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "document %s not found", id)
	}
	copied := *d
	return &copied, nil
}

func (s *memDocumentStore) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

func (s *memDocumentStore) ListDocuments(_ context.Context, wikiID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, d := range s.docs {
		if d.WikiID == wikiID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memDocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return apperr.Newf(apperr.KindNotFound, "document %s not found", id)
	}
	delete(s.docs, id)
	return nil
}

func (s *memDocumentStore) CountDocuments(_ context.Context, wikiID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.docs {
		if d.WikiID == wikiID {
			n++
		}
	}
	return n, nil
}

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.EmbeddingTask
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: map[string]*models.EmbeddingTask{}}
}

func (s *memTaskStore) CreateTask(_ context.Context, task *models.EmbeddingTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.DocumentID == task.DocumentID && !t.Deleted &&
			(t.State == models.TaskStateWait || t.State == models.TaskStateProcessing) {
			return apperr.Newf(apperr.KindConflict, "document %s already has a pending task", task.DocumentID)
		}
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *memTaskStore) GetTask(_ context.Context, id string) (*models.EmbeddingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Deleted {
		return nil, apperr.Newf(apperr.KindNotFound, "task %s not found", id)
	}
	copied := *t
	return &copied, nil
}

func (s *memTaskStore) LatestTaskForDocument(_ context.Context, documentID string) (*models.EmbeddingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.EmbeddingTask
	for _, t := range s.tasks {
		if t.DocumentID != documentID || t.Deleted {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "no task for document %s", documentID)
	}
	copied := *latest
	return &copied, nil
}

func (s *memTaskStore) UpdateTaskState(_ context.Context, id, state, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "task %s not found", id)
	}
	t.State = state
	t.Message = message
	t.UpdatedAt = time.Now()
	return nil
}

func (s *memTaskStore) HasActiveTasks(_ context.Context, wikiID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.WikiID == wikiID && !t.Deleted &&
			(t.State == models.TaskStateWait || t.State == models.TaskStateProcessing) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memTaskStore) SoftDeleteTasksByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.DocumentID == documentID {
			t.Deleted = true
		}
	}
	return nil
}

func (s *memTaskStore) SoftDeleteTasksByWiki(_ context.Context, wikiID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.WikiID == wikiID {
			t.Deleted = true
		}
	}
	return nil
}

func (s *memTaskStore) StaleActiveTasks(_ context.Context, olderThanMinutes int) ([]models.EmbeddingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(olderThanMinutes) * time.Minute)
	var out []models.EmbeddingTask
	for _, t := range s.tasks {
		active := t.State == models.TaskStateWait || t.State == models.TaskStateProcessing
		if active && !t.Deleted && t.UpdatedAt.Before(cutoff) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTaskStore) state(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].State
}

type memChunkStore struct {
	mu     sync.Mutex
	chunks map[string]models.ChunkEmbedding
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{chunks: map[string]models.ChunkEmbedding{}}
}

func (s *memChunkStore) InsertChunks(_ context.Context, chunks []models.ChunkEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *memChunkStore) GetChunksByIDs(_ context.Context, ids []string) (map[string]models.ChunkEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.ChunkEmbedding, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *memChunkStore) DeleteChunksByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *memChunkStore) DeleteChunksByWiki(_ context.Context, wikiID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.WikiID == wikiID {
			delete(s.chunks, id)
		}
	}
	return nil
}

type memVectorIndex struct {
	dimensions int
	records    map[string]vector.Record
}

type memVectorStore struct {
	mu      sync.Mutex
	indexes map[string]*memVectorIndex
}

func newMemVectorStore() *memVectorStore {
	return &memVectorStore{indexes: map[string]*memVectorIndex{}}
}

func (s *memVectorStore) ListIndexes(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memVectorStore) CreateIndex(_ context.Context, name string, dimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[name]; ok {
		if idx.dimensions != dimensions {
			return apperr.Newf(apperr.KindConflict, "index %s exists with %d dimensions", name, idx.dimensions)
		}
		return nil
	}
	s.indexes[name] = &memVectorIndex{dimensions: dimensions, records: map[string]vector.Record{}}
	return nil
}

func (s *memVectorStore) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return apperr.Newf(apperr.KindNotFound, "index %s not found", name)
	}
	delete(s.indexes, name)
	return nil
}

func (s *memVectorStore) DeleteDocument(_ context.Context, indexName, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "index %s not found", indexName)
	}
	for id, r := range idx.records {
		if r.DocumentID == documentID {
			delete(idx.records, id)
		}
	}
	return nil
}

func (s *memVectorStore) Upsert(_ context.Context, indexName string, records []vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "index %s not found", indexName)
	}
	for _, r := range records {
		if len(r.Vector) != idx.dimensions {
			return apperr.Newf(apperr.KindConflict, "record %s has %d dimensions, index wants %d", r.ID, len(r.Vector), idx.dimensions)
		}
		idx.records[r.ID] = r
	}
	return nil
}

func (s *memVectorStore) SimilaritySearch(_ context.Context, indexName string, query []float32, filters []vector.Filter, minRelevance float64, limit int) ([]vector.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "index %s not found", indexName)
	}

	var matches []vector.Match
	for _, r := range idx.records {
		skip := false
		for _, f := range filters {
			if f.Key == "document_id" && r.DocumentID != f.Value {
				skip = true
			}
		}
		if skip {
			continue
		}
		score, err := ai.CosineSimilarity(query, r.Vector)
		if err != nil {
			continue
		}
		if score >= minRelevance {
			matches = append(matches, vector.Match{ID: r.ID, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *memVectorStore) count(indexName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return 0
	}
	return len(idx.records)
}

type memPublisher struct {
	mu        sync.Mutex
	published []string
	failWith  error
}

func (p *memPublisher) PublishEmbedTask(_ context.Context, task *models.EmbeddingTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, task.ID)
	return nil
}

type memFileStore struct {
	mu      sync.Mutex
	deleted []string
}

func (f *memFileStore) DeleteFile(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	return nil
}
