package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
	"github.com/angelmondragon/receiptvault-backend/pkg/metrics"
	"github.com/angelmondragon/receiptvault-backend/pkg/qdrant"
)

const (
	maxQueryLength = 2000

	// FallbackAnswer is returned verbatim when retrieval finds nothing for
	// this owner. The generator is never consulted in that case.
	FallbackAnswer = "I do not have enough information to answer that."

	// DegradedAnswer replaces an empty generation result. The provider
	// answered but produced no candidates, which is not an error.
	DegradedAnswer = "Unable to generate answer."

	contextSeparator = "\n---\n"
)

type embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type retriever interface {
	Search(ctx context.Context, vector []float32, limit int, ownerID uuid.UUID) ([]qdrant.ScoredChunk, error)
}

type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service answers natural language questions over an owner's receipts.
type Service interface {
	Answer(ctx context.Context, ownerID uuid.UUID, question string) (*AnswerOutput, error)
}

type service struct {
	embedder  embedder
	retriever retriever
	generator generator
	metrics   *metrics.PipelineMetrics
	logg      *logger.Logger
	topK      int
}

// NewService constructs the answer pipeline.
func NewService(emb embedder, ret retriever, gen generator, m *metrics.PipelineMetrics, logg *logger.Logger, topK int) (Service, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if ret == nil {
		return nil, fmt.Errorf("retriever required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator required")
	}
	if topK <= 0 {
		topK = 5
	}
	return &service{
		embedder:  emb,
		retriever: ret,
		generator: gen,
		metrics:   m,
		logg:      logg,
		topK:      topK,
	}, nil
}

// AnswerOutput is the pipeline result. Sources lists the receipt IDs whose
// chunks informed the answer, in first-appearance order.
type AnswerOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Answer runs validate, embed, retrieve, assemble and generate. Every
// retrieval call carries the owner filter; there is no cross-tenant path.
func (s *service) Answer(ctx context.Context, ownerID uuid.UUID, question string) (*AnswerOutput, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner identity missing")
	}
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query is required")
	}
	if len(trimmed) > maxQueryLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query must be at most %d characters", maxQueryLength))
	}

	vector, err := timedStage(ctx, s.metrics, metrics.StageEmbed, func(ctx context.Context) ([]float32, error) {
		return s.embedder.EmbedText(ctx, trimmed)
	})
	if err != nil {
		return nil, err
	}

	chunks, err := timedStage(ctx, s.metrics, metrics.StageRetrieve, func(ctx context.Context) ([]qdrant.ScoredChunk, error) {
		return s.retriever.Search(ctx, vector, s.topK, ownerID)
	})
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &AnswerOutput{Answer: FallbackAnswer, Sources: []string{}}, nil
	}

	prompt := buildPrompt(trimmed, chunks)
	answer, err := timedStage(ctx, s.metrics, metrics.StageGenerate, func(ctx context.Context) (string, error) {
		return s.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(answer) == "" {
		if s.logg != nil {
			s.logg.Warn(ctx, "generation returned no candidates, degrading answer")
		}
		answer = DegradedAnswer
	}

	return &AnswerOutput{
		Answer:  answer,
		Sources: collectSources(chunks),
	}, nil
}

// timedStage records per-stage metrics around fn.
func timedStage[T any](ctx context.Context, m *metrics.PipelineMetrics, stage string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	m.ObserveDuration(stage, time.Since(start))
	if err != nil {
		m.IncFailure(stage)
		return out, err
	}
	m.IncSuccess(stage)
	return out, nil
}

func buildPrompt(question string, chunks []qdrant.ScoredChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		blocks = append(blocks, chunk.Text)
	}

	var b strings.Builder
	b.WriteString("You answer questions using only the receipt excerpts below. ")
	// The model must use this exact sentence when the excerpts fall short;
	// callers match on it and it is the only hallucination defense.
	b.WriteString("If the excerpts do not contain the answer, reply with exactly: ")
	b.WriteString(FallbackAnswer)
	b.WriteString("\n\nReceipt excerpts:\n")
	b.WriteString(strings.Join(blocks, contextSeparator))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// collectSources dedupes receipt IDs preserving first-appearance order.
func collectSources(chunks []qdrant.ScoredChunk) []string {
	seen := make(map[string]bool, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.ReceiptID == "" || seen[chunk.ReceiptID] {
			continue
		}
		seen[chunk.ReceiptID] = true
		sources = append(sources, chunk.ReceiptID)
	}
	return sources
}
