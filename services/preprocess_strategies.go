package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// OutlineStrategy asks for a short structured outline of the paragraph.
type OutlineStrategy struct {
	generator TextGenerator
}

func NewOutlineStrategy(generator TextGenerator) *OutlineStrategy {
	return &OutlineStrategy{generator: generator}
}

func (s *OutlineStrategy) Kind() StrategyKind { return StrategyOutlineGeneration }

func (s *OutlineStrategy) Process(ctx context.Context, paragraph string) (PreprocessResult, error) {
	if isBlank(paragraph) {
		return emptyResult(s.Kind(), paragraph), nil
	}

	prompt := fmt.Sprintf("请为以下段落生成一个结构化大纲，不超过50个字，直接输出大纲内容：\n\n%s", paragraph)
	raw, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return PreprocessResult{}, err
	}

	outline := strings.TrimSpace(whitespaceRegex.ReplaceAllString(raw, " "))

	return PreprocessResult{
		OriginalText:  paragraph,
		ProcessedText: outline,
		StrategyKind:  s.Kind(),
		Metadata: []MetadataEntry{
			{Key: "Strategy", Value: string(s.Kind())},
		},
	}, nil
}

// QuestionStrategy derives the questions a reader would ask this paragraph.
// Embedding questions next to the source improves recall for interrogative
// queries.
type QuestionStrategy struct {
	generator TextGenerator
	count     int
}

func NewQuestionStrategy(generator TextGenerator, count int) *QuestionStrategy {
	if count <= 0 {
		count = 2
	}
	return &QuestionStrategy{generator: generator, count: count}
}

func (s *QuestionStrategy) Kind() StrategyKind { return StrategyQuestionGeneration }

func (s *QuestionStrategy) Process(ctx context.Context, paragraph string) (PreprocessResult, error) {
	if isBlank(paragraph) {
		return emptyResult(s.Kind(), paragraph), nil
	}

	prompt := fmt.Sprintf("请根据以下段落生成%d个可以由该段落回答的问题，每行一个，每个问题不超过30个字：\n\n%s", s.count, paragraph)
	raw, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return PreprocessResult{}, err
	}

	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == s.count {
			break
		}
	}

	metadata := make([]MetadataEntry, 0, len(questions))
	for _, q := range questions {
		metadata = append(metadata, MetadataEntry{Key: "Question", Value: q})
	}

	return PreprocessResult{
		OriginalText:  paragraph,
		ProcessedText: strings.Join(questions, " | "),
		StrategyKind:  s.Kind(),
		Metadata:      metadata,
	}, nil
}

// KeywordSummaryStrategy fuses extracted keywords, a short summary and the
// head of the paragraph into one dense matching text.
type KeywordSummaryStrategy struct {
	generator TextGenerator
	topK      int
}

func NewKeywordSummaryStrategy(generator TextGenerator, topK int) *KeywordSummaryStrategy {
	if topK <= 0 {
		topK = 5
	}
	return &KeywordSummaryStrategy{generator: generator, topK: topK}
}

func (s *KeywordSummaryStrategy) Kind() StrategyKind { return StrategyKeywordSummaryFusion }

func (s *KeywordSummaryStrategy) Process(ctx context.Context, paragraph string) (PreprocessResult, error) {
	if isBlank(paragraph) {
		return emptyResult(s.Kind(), paragraph), nil
	}

	keywordPrompt := fmt.Sprintf("请从以下段落中提取最重要的%d个关键词，用逗号分隔输出：\n\n%s", s.topK, paragraph)
	keywords, err := s.generator.GenerateText(ctx, keywordPrompt)
	if err != nil {
		return PreprocessResult{}, err
	}
	keywords = strings.TrimSpace(keywords)

	summaryPrompt := fmt.Sprintf("请用不超过80个字概括以下段落的核心内容：\n\n%s", paragraph)
	summary, err := s.generator.GenerateText(ctx, summaryPrompt)
	if err != nil {
		return PreprocessResult{}, err
	}
	summary = strings.TrimSpace(summary)

	processed := fmt.Sprintf("关键词：%s | 摘要：%s | 核心内容：%s", keywords, summary, headOfParagraph(paragraph, 100))

	return PreprocessResult{
		OriginalText:  paragraph,
		ProcessedText: processed,
		StrategyKind:  s.Kind(),
		Metadata: []MetadataEntry{
			{Key: "Keywords", Value: keywords},
			{Key: "Summary", Value: summary},
		},
	}, nil
}

// headOfParagraph returns the first maxRunes runes with an ellipsis when the
// paragraph was truncated.
func headOfParagraph(paragraph string, maxRunes int) string {
	runes := []rune(paragraph)
	if len(runes) <= maxRunes {
		return paragraph
	}
	return string(runes[:maxRunes]) + "..."
}
