package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/internal/logger"
	"wiki-knowledge-platform/internal/vector"
	"wiki-knowledge-platform/models"
)

const (
	defaultSearchLimit       = 10
	defaultVectorDimensions  = 768
	queryOptimizeInstruction = "你是检索查询优化助手。请将下面的问题压缩为简洁、适合向量搜索的关键词短语，直接输出结果，不要解释："
	noInformationAnswer      = "未找到相关信息"
)

// SearchParams are the inputs of one document text search.
type SearchParams struct {
	WikiID        string
	Query         string
	DocumentID    string
	MinRelevance  float64
	Limit         int
	OptimizeQuery bool
	Answer        bool
	ChatModelID   string
}

// SearchCache caches full search responses. Implementations are best-effort:
// a miss or a failed write only costs a recomputation.
type SearchCache interface {
	Get(ctx context.Context, key string) (*models.SearchResponse, bool)
	Set(ctx context.Context, key string, resp *models.SearchResponse)
}

// RetrievalEngine answers queries against one wiki's chunk hierarchy.
type RetrievalEngine struct {
	wikis     WikiStore
	documents DocumentStore
	chunks    ChunkStore
	vectors   vector.Store
	ai        AIClient
	cache     SearchCache // nil disables caching
}

func NewRetrievalEngine(
	wikis WikiStore,
	documents DocumentStore,
	chunks ChunkStore,
	vectors vector.Store,
	aiClient AIClient,
	cache SearchCache,
) *RetrievalEngine {
	return &RetrievalEngine{
		wikis:     wikis,
		documents: documents,
		chunks:    chunks,
		vectors:   vectors,
		ai:        aiClient,
		cache:     cache,
	}
}

// Search runs the full retrieval pipeline: optional query rewrite, vector
// similarity search, hierarchy resolution and optional answer synthesis.
// Zero hits are a successful empty response, never an error.
func (e *RetrievalEngine) Search(ctx context.Context, params SearchParams) (*models.SearchResponse, error) {
	tracer := otel.Tracer("retrieval-engine")
	ctx, span := tracer.Start(ctx, "retrieval.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.wiki_id", params.WikiID),
		attribute.Bool("search.optimize_query", params.OptimizeQuery),
		attribute.Bool("search.answer", params.Answer),
	)

	wiki, err := e.wikis.GetWiki(ctx, params.WikiID)
	if err != nil {
		return nil, err
	}
	embModel, ok := wiki.EmbeddingModel()
	if !ok {
		return nil, apperr.Newf(apperr.KindConflict, "wiki %s has no model with the Embedding capability", params.WikiID)
	}

	cacheKey := searchCacheKey(params)
	if e.cache != nil {
		if cached, hit := e.cache.Get(ctx, cacheKey); hit {
			span.SetAttributes(attribute.Bool("search.cache_hit", true))
			return cached, nil
		}
	}

	query := strings.TrimSpace(params.Query)
	if params.OptimizeQuery {
		rewritten, err := e.ai.GenerateText(ctx, queryOptimizeInstruction+"\n\n"+query)
		if err != nil {
			return nil, err
		}
		query = strings.TrimSpace(rewritten)
	}

	if err := e.ensureIndex(ctx, params.WikiID, embModel); err != nil {
		return nil, err
	}

	queryVec, err := e.ai.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var filters []vector.Filter
	if params.DocumentID != "" {
		filters = append(filters, vector.Filter{Key: "document_id", Value: params.DocumentID})
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	matches, err := e.vectors.SimilaritySearch(ctx, params.WikiID, queryVec, filters, params.MinRelevance, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.hits", len(matches)))

	response := &models.SearchResponse{
		Query:   query,
		Results: []models.SearchResult{},
	}
	if len(matches) == 0 {
		if e.cache != nil {
			e.cache.Set(ctx, cacheKey, response)
		}
		return response, nil
	}

	results, err := e.resolveHierarchy(ctx, matches)
	if err != nil {
		return nil, err
	}
	response.Results = results

	if params.Answer && len(results) > 0 {
		answer, err := e.synthesizeAnswer(ctx, wiki, params.ChatModelID, query, results)
		if err != nil {
			return nil, err
		}
		response.Answer = answer
	}

	if e.cache != nil {
		e.cache.Set(ctx, cacheKey, response)
	}
	return response, nil
}

// ensureIndex lazily creates the wiki's vector index with the embedding
// model's dimensionality.
func (e *RetrievalEngine) ensureIndex(ctx context.Context, wikiID string, embModel models.ModelConfig) error {
	names, err := e.vectors.ListIndexes(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == wikiID {
			return nil
		}
	}

	dims := embModel.Dimensions
	if dims <= 0 {
		dims = defaultVectorDimensions
	}
	return e.vectors.CreateIndex(ctx, wikiID, dims)
}

// resolveHierarchy loads the hit rows and, for derived chunks, the source
// chunks they reference. The result text shown to the caller is the matched
// record's content; the answer-grounding text is always the source chunk's
// content. Hits whose rows cannot be resolved are stale index entries and
// are skipped, not errors.
func (e *RetrievalEngine) resolveHierarchy(ctx context.Context, matches []vector.Match) ([]models.SearchResult, error) {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}

	rows, err := e.chunks.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Second lookup for source chunks referenced by derived hits.
	var sourceIDs []string
	for _, row := range rows {
		if !row.IsSource() {
			if _, loaded := rows[row.ChunkID]; !loaded {
				sourceIDs = append(sourceIDs, row.ChunkID)
			}
		}
	}
	sources := map[string]models.ChunkEmbedding{}
	if len(sourceIDs) > 0 {
		sources, err = e.chunks.GetChunksByIDs(ctx, sourceIDs)
		if err != nil {
			return nil, err
		}
	}

	docCache := map[string]*models.Document{}
	results := make([]models.SearchResult, 0, len(matches))
	for _, match := range matches {
		row, ok := rows[match.ID]
		if !ok {
			logger.Debug("skipping stale vector hit", "id", match.ID)
			continue
		}

		chunkText := row.MetadataContent
		if !row.IsSource() {
			source, ok := rows[row.ChunkID]
			if !ok {
				source, ok = sources[row.ChunkID]
			}
			if !ok {
				logger.Debug("skipping derived chunk with missing source", "id", match.ID, "chunk_id", row.ChunkID)
				continue
			}
			chunkText = source.MetadataContent
		}

		doc, ok := docCache[row.DocumentID]
		if !ok {
			loaded, err := e.documents.GetDocument(ctx, row.DocumentID)
			if err != nil {
				if apperr.IsKind(err, apperr.KindNotFound) {
					docCache[row.DocumentID] = nil
					continue
				}
				return nil, err
			}
			doc = loaded
			docCache[row.DocumentID] = doc
		}
		if doc == nil {
			continue
		}

		results = append(results, models.SearchResult{
			ChunkEmbeddingID: row.ID,
			DocumentID:       row.DocumentID,
			FileName:         doc.FileName,
			FileType:         doc.FileType,
			Text:             row.MetadataContent,
			ChunkText:        chunkText,
			Relevance:        match.Score,
		})
	}
	return results, nil
}

// synthesizeAnswer asks the chat model to answer from the distinct source
// chunk texts. Deduplication is exact string match on the source text, so
// two textually different chunks saying the same thing are both enumerated.
func (e *RetrievalEngine) synthesizeAnswer(ctx context.Context, wiki *models.Wiki, chatModelID, query string, results []models.SearchResult) (string, error) {
	if _, ok := wiki.ChatModel(chatModelID); !ok {
		return "", apperr.Newf(apperr.KindConflict, "wiki %s has no usable chat model %q", wiki.ID, chatModelID)
	}

	seen := make(map[string]bool, len(results))
	var facts []string
	for _, r := range results {
		if seen[r.ChunkText] {
			continue
		}
		seen[r.ChunkText] = true
		facts = append(facts, r.ChunkText)
	}

	var sb strings.Builder
	sb.WriteString("请仅根据下列资料回答问题。如果资料不足以回答，请回答“")
	sb.WriteString(noInformationAnswer)
	sb.WriteString("”。\n\n资料：\n")
	for i, fact := range facts {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, fact))
	}
	sb.WriteString("\n问题：")
	sb.WriteString(query)

	answer, err := e.ai.GenerateText(ctx, sb.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func searchCacheKey(params SearchParams) string {
	return fmt.Sprintf("search:%s:%x", params.WikiID, fnvHash(fmt.Sprintf(
		"%s|%s|%s|%f|%d|%t|%t|%s",
		params.WikiID, params.Query, params.DocumentID,
		params.MinRelevance, params.Limit,
		params.OptimizeQuery, params.Answer, params.ChatModelID,
	)))
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
