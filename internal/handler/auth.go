package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

// HeaderAPIKey carries the back office API key.
const HeaderAPIKey = "api_key"

// requireUser authenticates the customer bearer token.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			fail(w, r, auth.ErrUnauthorized)
			return
		}
		userID, err := h.Tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			zctx.From(r.Context()).Debug("Rejected bearer token", zap.Error(err))
			fail(w, r, auth.ErrUnauthorized)
			return
		}

		ctx := auth.WithUser(r.Context(), userID)
		ctx = zctx.With(ctx, zap.String("user_id", userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin authenticates the api_key header and checks the admin scope.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.APIKeys.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
		if err != nil {
			fail(w, r, auth.ErrUnauthorized)
			return
		}
		if !info.HasScope(auth.ScopeAdmin) {
			fail(w, r, errForbidden)
			return
		}
		ctx := zctx.With(r.Context(), zap.String("api_key", info.Name))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	return auth.UserFrom(r.Context())
}
