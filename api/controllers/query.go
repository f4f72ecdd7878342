package controllers

import (
	"net/http"

	"github.com/angelmondragon/receiptvault-backend/api/responses"
	"github.com/angelmondragon/receiptvault-backend/api/validators"
	"github.com/angelmondragon/receiptvault-backend/internal/query"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
)

type queryRequest struct {
	Query string `json:"query" validate:"required"`
}

// QueryAnswer runs the retrieval pipeline over the caller's receipts.
func QueryAnswer(svc query.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "query service unavailable"))
			return
		}

		ownerID, err := ownerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload queryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Answer(r.Context(), ownerID, payload.Query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, out)
	}
}
