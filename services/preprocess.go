package services

import (
	"context"
	"strings"
	"sync"

	"wiki-knowledge-platform/internal/apperr"
)

// TextGenerator is the chat-completion capability consumed by strategies and
// the retrieval engine.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Embedder is the embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AIClient bundles both capabilities; internal/ai.GeminiClient implements it.
type AIClient interface {
	TextGenerator
	Embedder
}

// StrategyKind identifies one text-derivation strategy.
type StrategyKind string

const (
	StrategyOutlineGeneration    StrategyKind = "OutlineGeneration"
	StrategyQuestionGeneration   StrategyKind = "QuestionGeneration"
	StrategyKeywordSummaryFusion StrategyKind = "KeywordSummaryFusion"
	StrategySemanticAggregation  StrategyKind = "SemanticAggregation"
)

// AllStrategyKinds lists every built-in kind.
var AllStrategyKinds = []StrategyKind{
	StrategyOutlineGeneration,
	StrategyQuestionGeneration,
	StrategyKeywordSummaryFusion,
	StrategySemanticAggregation,
}

// KnownStrategyKind reports whether kind names a built-in strategy.
func KnownStrategyKind(kind StrategyKind) bool {
	for _, k := range AllStrategyKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// MetadataEntry is one ordered key/value pair attached to a result.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PreprocessResult is the immutable output of running one strategy over one
// paragraph.
type PreprocessResult struct {
	OriginalText  string          `json:"original_text"`
	ProcessedText string          `json:"processed_text"`
	StrategyKind  StrategyKind    `json:"strategy_kind"`
	Metadata      []MetadataEntry `json:"metadata,omitempty"`
}

// Strategy turns one paragraph into derived text plus metadata. Every
// implementation must treat empty or whitespace-only input as a no-op and
// never call the AI client for it.
type Strategy interface {
	Kind() StrategyKind
	Process(ctx context.Context, paragraph string) (PreprocessResult, error)
}

// emptyResult is the shared no-op path for blank paragraphs.
func emptyResult(kind StrategyKind, paragraph string) PreprocessResult {
	return PreprocessResult{
		OriginalText: paragraph,
		StrategyKind: kind,
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// PreprocessOrchestrator dispatches paragraphs to registered strategies and
// fans work out across strategies or paragraph batches.
type PreprocessOrchestrator struct {
	mu         sync.RWMutex
	strategies map[StrategyKind]Strategy
}

// NewPreprocessOrchestrator builds an orchestrator from a construction-time
// strategy table. Registering two strategies with the same kind keeps the
// later one.
func NewPreprocessOrchestrator(strategies ...Strategy) *PreprocessOrchestrator {
	o := &PreprocessOrchestrator{strategies: make(map[StrategyKind]Strategy, len(strategies))}
	for _, s := range strategies {
		o.Register(s)
	}
	return o
}

// Register adds or replaces the strategy for its kind.
func (o *PreprocessOrchestrator) Register(s Strategy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.strategies[s.Kind()] = s
}

func (o *PreprocessOrchestrator) strategy(kind StrategyKind) (Strategy, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.strategies[kind]
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "strategy %q not registered", kind)
	}
	return s, nil
}

// Run applies one strategy to one paragraph.
func (o *PreprocessOrchestrator) Run(ctx context.Context, paragraph string, kind StrategyKind) (PreprocessResult, error) {
	s, err := o.strategy(kind)
	if err != nil {
		return PreprocessResult{}, err
	}
	return s.Process(ctx, paragraph)
}

// RunMany applies the requested strategies to one paragraph concurrently.
// Results come back in the order of the kinds argument regardless of which
// strategy finishes last. Any strategy failure fails the whole call; the
// error of the earliest requested kind wins.
func (o *PreprocessOrchestrator) RunMany(ctx context.Context, paragraph string, kinds []StrategyKind) ([]PreprocessResult, error) {
	// Resolve everything up front so an unregistered kind fails before
	// any work starts.
	resolved := make([]Strategy, len(kinds))
	for i, kind := range kinds {
		s, err := o.strategy(kind)
		if err != nil {
			return nil, err
		}
		resolved[i] = s
	}

	results := make([]PreprocessResult, len(kinds))
	errs := make([]error, len(kinds))

	var wg sync.WaitGroup
	for i, s := range resolved {
		wg.Add(1)
		go func(idx int, strat Strategy) {
			defer wg.Done()
			results[idx], errs[idx] = strat.Process(ctx, paragraph)
		}(i, s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// RunBatch applies one strategy to many keyed paragraphs concurrently. The
// returned map has exactly the input key set. Any failure aborts the batch;
// with several failures the error of the smallest key wins so retries see a
// stable error.
func (o *PreprocessOrchestrator) RunBatch(ctx context.Context, paragraphs map[string]string, kind StrategyKind) (map[string]PreprocessResult, error) {
	s, err := o.strategy(kind)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		key    string
		result PreprocessResult
		err    error
	}

	out := make(chan keyed, len(paragraphs))
	var wg sync.WaitGroup
	for key, paragraph := range paragraphs {
		wg.Add(1)
		go func(k, p string) {
			defer wg.Done()
			res, perr := s.Process(ctx, p)
			out <- keyed{key: k, result: res, err: perr}
		}(key, paragraph)
	}
	wg.Wait()
	close(out)

	results := make(map[string]PreprocessResult, len(paragraphs))
	var firstErr error
	var firstErrKey string
	for item := range out {
		if item.err != nil {
			if firstErr == nil || item.key < firstErrKey {
				firstErr = item.err
				firstErrKey = item.key
			}
			continue
		}
		results[item.key] = item.result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// NewDefaultOrchestrator registers all built-in strategies against one AI
// client. Zero values fall back to the strategy defaults.
func NewDefaultOrchestrator(client AIClient, questionCount, keywordTopK, maxSubLen int, threshold float64) *PreprocessOrchestrator {
	return NewPreprocessOrchestrator(
		NewOutlineStrategy(client),
		NewQuestionStrategy(client, questionCount),
		NewKeywordSummaryStrategy(client, keywordTopK),
		NewSemanticAggregationStrategy(client, maxSubLen, threshold),
	)
}
