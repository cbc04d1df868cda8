package auth

import (
	"log/slog"
	"net/http"

	"validbus/pkg/platform/httputil"
	"validbus/pkg/requestcontext"
)

// HeaderAPIKey is the header callers present their key in.
const HeaderAPIKey = "X-API-Key"

// RequireAPIKey rejects requests without a registered API key and injects the
// resolved caller identity into the request context.
func RequireAPIKey(keys *KeyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			identity, err := keys.Resolve(r.Header.Get(HeaderAPIKey))
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "unauthorized request",
						"request_id", requestcontext.RequestID(ctx),
						"path", r.URL.Path,
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(ctx, identity)))
		})
	}
}
