package services

import (
	"context"
	"strings"

	"wiki-knowledge-platform/internal/ai"
)

// sentence-ending punctuation, CJK and Latin variants
var sentenceEnders = map[rune]bool{
	'。': true, '！': true, '？': true, '．': true,
	'.': true, '!': true, '?': true,
}

// SemanticAggregationStrategy splits a paragraph into sub-paragraphs and
// regroups adjacent ones whose embeddings are similar. Grouping is greedy and
// sequential: each sub-paragraph is compared only against the last member
// appended to the current group, so a paragraph of n sub-paragraphs costs
// exactly n embedding calls.
type SemanticAggregationStrategy struct {
	embedder  Embedder
	maxSubLen int
	threshold float64
}

func NewSemanticAggregationStrategy(embedder Embedder, maxSubLen int, threshold float64) *SemanticAggregationStrategy {
	if maxSubLen <= 0 {
		maxSubLen = 100
	}
	if threshold <= 0 {
		threshold = 0.75
	}
	return &SemanticAggregationStrategy{
		embedder:  embedder,
		maxSubLen: maxSubLen,
		threshold: threshold,
	}
}

func (s *SemanticAggregationStrategy) Kind() StrategyKind { return StrategySemanticAggregation }

func (s *SemanticAggregationStrategy) Process(ctx context.Context, paragraph string) (PreprocessResult, error) {
	if isBlank(paragraph) {
		return emptyResult(s.Kind(), paragraph), nil
	}

	subs := s.splitSubParagraphs(paragraph)

	if len(subs) <= 1 {
		metadata := make([]MetadataEntry, 0, len(subs))
		for _, sub := range subs {
			metadata = append(metadata, MetadataEntry{Key: "SubParagraph", Value: sub})
		}
		return PreprocessResult{
			OriginalText:  paragraph,
			ProcessedText: paragraph,
			StrategyKind:  s.Kind(),
			Metadata:      metadata,
		}, nil
	}

	groups, err := s.cluster(ctx, subs)
	if err != nil {
		return PreprocessResult{}, err
	}

	aggregated := make([]string, 0, len(groups))
	metadata := make([]MetadataEntry, 0, len(groups))
	for _, group := range groups {
		text := strings.Join(group, " ")
		aggregated = append(aggregated, text)
		metadata = append(metadata, MetadataEntry{Key: "AggregatedParagraph", Value: text})
	}

	return PreprocessResult{
		OriginalText:  paragraph,
		ProcessedText: strings.Join(aggregated, "\n"),
		StrategyKind:  s.Kind(),
		Metadata:      metadata,
	}, nil
}

// cluster greedily walks the sub-paragraphs in order. A sub-paragraph joins
// the current group when its similarity against the group's last appended
// member reaches the threshold, otherwise it starts a new group.
func (s *SemanticAggregationStrategy) cluster(ctx context.Context, subs []string) ([][]string, error) {
	lastVec, err := s.embedder.Embed(ctx, subs[0])
	if err != nil {
		return nil, err
	}

	groups := [][]string{{subs[0]}}
	for _, sub := range subs[1:] {
		vec, err := s.embedder.Embed(ctx, sub)
		if err != nil {
			return nil, err
		}

		similarity, err := ai.CosineSimilarity(vec, lastVec)
		if err != nil {
			return nil, err
		}

		if similarity >= s.threshold {
			current := len(groups) - 1
			groups[current] = append(groups[current], sub)
		} else {
			groups = append(groups, []string{sub})
		}
		lastVec = vec
	}
	return groups, nil
}

// splitSubParagraphs cuts the paragraph at sentence boundaries, then hard
// splits any sentence longer than maxSubLen runes into fixed-length slices.
func (s *SemanticAggregationStrategy) splitSubParagraphs(paragraph string) []string {
	var sentences []string
	var current []rune
	for _, r := range paragraph {
		current = append(current, r)
		if sentenceEnders[r] {
			if sentence := strings.TrimSpace(string(current)); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current = current[:0]
		}
	}
	if sentence := strings.TrimSpace(string(current)); sentence != "" {
		sentences = append(sentences, sentence)
	}

	var subs []string
	for _, sentence := range sentences {
		runes := []rune(sentence)
		for len(runes) > s.maxSubLen {
			subs = append(subs, string(runes[:s.maxSubLen]))
			runes = runes[s.maxSubLen:]
		}
		if len(runes) > 0 {
			subs = append(subs, string(runes))
		}
	}
	return subs
}
