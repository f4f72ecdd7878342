package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/receiptvault-backend/api/responses"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
)

const internalSecretHeader = "X-Internal-Secret"

// InternalSecret authenticates pipeline callbacks with a shared secret. The
// comparison is constant time and happens before any lookup, so an attacker
// probing receipt IDs learns nothing without the secret.
func InternalSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "internal endpoint disabled"))
				return
			}

			presented := strings.TrimSpace(r.Header.Get(internalSecretHeader))
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid internal secret"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
