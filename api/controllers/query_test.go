package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/receiptvault-backend/internal/query"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
)

type testQueryService struct {
	answerFn func(ctx context.Context, ownerID uuid.UUID, question string) (*query.AnswerOutput, error)
}

func (s *testQueryService) Answer(ctx context.Context, ownerID uuid.UUID, question string) (*query.AnswerOutput, error) {
	if s.answerFn != nil {
		return s.answerFn(ctx, ownerID, question)
	}
	return nil, nil
}

func TestQueryAnswerSuccess(t *testing.T) {
	ownerID := uuid.New()
	svc := &testQueryService{
		answerFn: func(ctx context.Context, oid uuid.UUID, question string) (*query.AnswerOutput, error) {
			if oid != ownerID {
				t.Fatalf("unexpected owner %s", oid)
			}
			if question != "how much did I spend on coffee?" {
				t.Fatalf("unexpected question %q", question)
			}
			return &query.AnswerOutput{
				Answer:  "You spent $42.10 on coffee.",
				Sources: []string{uuid.NewString()},
			}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/ai/query", `{"query":"how much did I spend on coffee?"}`, ownerID)
	resp := httptest.NewRecorder()
	QueryAnswer(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body=%s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data query.AnswerOutput `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Answer == "" || len(envelope.Data.Sources) != 1 {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestQueryAnswerRejectsMissingQuery(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/ai/query", `{}`, uuid.New())
	resp := httptest.NewRecorder()
	QueryAnswer(&testQueryService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestQueryAnswerRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/query", nil)
	resp := httptest.NewRecorder()
	QueryAnswer(&testQueryService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestQueryAnswerMapsPipelineFailure(t *testing.T) {
	svc := &testQueryService{
		answerFn: func(ctx context.Context, oid uuid.UUID, question string) (*query.AnswerOutput, error) {
			return nil, pkgerrors.New(pkgerrors.CodeRetrieval, "vector search unavailable")
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/ai/query", `{"query":"anything"}`, uuid.New())
	resp := httptest.NewRecorder()
	QueryAnswer(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
