package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/boardbalance/internal/infrastructure/auth"
)

// WebhookSignature rejects deliveries whose Authorization header is not a
// token signed with the app signing secret.
func WebhookSignature(verifier *auth.WebhookVerifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := verifier.Verify(r.Header.Get("Authorization")); err != nil {
				logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("rejected unsigned webhook")
				writeJSONError(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
