package query

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
	"github.com/angelmondragon/receiptvault-backend/pkg/qdrant"
)

var errTest = fmt.Errorf("boom")

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

type stubRetriever struct {
	chunks    []qdrant.ScoredChunk
	err       error
	lastOwner uuid.UUID
	lastLimit int
}

func (s *stubRetriever) Search(ctx context.Context, vector []float32, limit int, ownerID uuid.UUID) ([]qdrant.ScoredChunk, error) {
	s.lastOwner = ownerID
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

type stubGenerator struct {
	answer     string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func newTestService(t *testing.T, emb *stubEmbedder, ret *stubRetriever, gen *stubGenerator) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(emb, ret, gen, nil, logg, 5)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestAnswerHappyPath(t *testing.T) {
	t.Parallel()

	emb := &stubEmbedder{vector: []float32{0.1, 0.2}}
	ret := &stubRetriever{chunks: []qdrant.ScoredChunk{
		{Text: "coffee 4.50", ReceiptID: "r-1"},
		{Text: "bagel 3.25", ReceiptID: "r-2"},
		{Text: "tip 1.00", ReceiptID: "r-1"},
	}}
	gen := &stubGenerator{answer: "You spent $4.50 on coffee."}
	svc := newTestService(t, emb, ret, gen)

	ownerID := uuid.New()
	out, err := svc.Answer(context.Background(), ownerID, "how much was the coffee?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if out.Answer != gen.answer {
		t.Fatalf("unexpected answer %q", out.Answer)
	}
	if len(out.Sources) != 2 || out.Sources[0] != "r-1" || out.Sources[1] != "r-2" {
		t.Fatalf("expected deduped sources in order, got %v", out.Sources)
	}
	if ret.lastOwner != ownerID {
		t.Fatalf("retrieval was not owner scoped: %s", ret.lastOwner)
	}
	if ret.lastLimit != 5 {
		t.Fatalf("unexpected top-k %d", ret.lastLimit)
	}
	if !strings.Contains(gen.lastPrompt, "coffee 4.50") || !strings.Contains(gen.lastPrompt, "\n---\n") {
		t.Fatalf("prompt missing context blocks: %q", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "how much was the coffee?") {
		t.Fatalf("prompt missing question: %q", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, FallbackAnswer) {
		t.Fatalf("prompt instruction missing verbatim fallback sentence: %q", gen.lastPrompt)
	}
}

func TestAnswerEmptyRetrievalSkipsGenerator(t *testing.T) {
	t.Parallel()

	emb := &stubEmbedder{vector: []float32{0.1}}
	ret := &stubRetriever{chunks: nil}
	gen := &stubGenerator{answer: "should not be used"}
	svc := newTestService(t, emb, ret, gen)

	out, err := svc.Answer(context.Background(), uuid.New(), "anything?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if out.Answer != FallbackAnswer {
		t.Fatalf("expected fallback answer, got %q", out.Answer)
	}
	if len(out.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", out.Sources)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not be called on empty retrieval, called %d times", gen.calls)
	}
}

func TestAnswerDegradesOnEmptyGeneration(t *testing.T) {
	t.Parallel()

	emb := &stubEmbedder{vector: []float32{0.1}}
	ret := &stubRetriever{chunks: []qdrant.ScoredChunk{{Text: "coffee 4.50", ReceiptID: "r-1"}}}
	gen := &stubGenerator{answer: ""}
	svc := newTestService(t, emb, ret, gen)

	out, err := svc.Answer(context.Background(), uuid.New(), "question?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if out.Answer != DegradedAnswer {
		t.Fatalf("expected degraded answer, got %q", out.Answer)
	}
	if len(out.Sources) != 1 || out.Sources[0] != "r-1" {
		t.Fatalf("degraded answer keeps sources, got %v", out.Sources)
	}
}

func TestAnswerValidation(t *testing.T) {
	t.Parallel()

	emb := &stubEmbedder{vector: []float32{0.1}}
	svc := newTestService(t, emb, &stubRetriever{}, &stubGenerator{})

	cases := []struct {
		name     string
		ownerID  uuid.UUID
		question string
	}{
		{name: "missing owner", ownerID: uuid.Nil, question: "q"},
		{name: "blank question", ownerID: uuid.New(), question: "   "},
		{name: "oversized question", ownerID: uuid.New(), question: strings.Repeat("a", maxQueryLength+1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Answer(context.Background(), tc.ownerID, tc.question)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code got %v", pkgerrors.As(err).Code())
			}
		})
	}
	if emb.calls != 0 {
		t.Fatalf("embedder must not run for invalid input, called %d times", emb.calls)
	}
}

func TestAnswerPropagatesStageErrors(t *testing.T) {
	t.Parallel()

	t.Run("embed failure", func(t *testing.T) {
		emb := &stubEmbedder{err: pkgerrors.Wrap(pkgerrors.CodeEmbedding, errTest, "embed")}
		svc := newTestService(t, emb, &stubRetriever{}, &stubGenerator{})
		_, err := svc.Answer(context.Background(), uuid.New(), "q")
		if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeEmbedding {
			t.Fatalf("expected embedding code, got %v", err)
		}
	})

	t.Run("retrieve failure", func(t *testing.T) {
		emb := &stubEmbedder{vector: []float32{0.1}}
		ret := &stubRetriever{err: pkgerrors.Wrap(pkgerrors.CodeRetrieval, errTest, "search")}
		svc := newTestService(t, emb, ret, &stubGenerator{})
		_, err := svc.Answer(context.Background(), uuid.New(), "q")
		if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeRetrieval {
			t.Fatalf("expected retrieval code, got %v", err)
		}
	})

	t.Run("generate failure", func(t *testing.T) {
		emb := &stubEmbedder{vector: []float32{0.1}}
		ret := &stubRetriever{chunks: []qdrant.ScoredChunk{{Text: "x", ReceiptID: "r-1"}}}
		gen := &stubGenerator{err: pkgerrors.Wrap(pkgerrors.CodeGeneration, errTest, "generate")}
		svc := newTestService(t, emb, ret, gen)
		_, err := svc.Answer(context.Background(), uuid.New(), "q")
		if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeGeneration {
			t.Fatalf("expected generation code, got %v", err)
		}
	})
}
