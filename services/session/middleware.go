package session

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/skala-commerce/storefront/lib/mycontext"
	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/myhttp"
	"github.com/skala-commerce/storefront/lib/mylog"
)

// BearerAuth rejects requests without a valid bearer token with a 401 so
// that the caller knows to drop its session and re-authenticate
func BearerAuth(tokenizer Tokenizer, logger mylog.Logger) mux.MiddlewareFunc {
	errorWriter := myhttp.NewWriter(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := mycontext.ContextFromHTTPRequest(r)

			tokenString, found := bearerToken(r)
			if !found {
				errorWriter.WriteError(c, w, 1, myerrors.NewUnauthorizedError(fmt.Errorf("missing bearer token")))
				return
			}

			session, err := tokenizer.Verify(tokenString)
			if err != nil {
				errorWriter.WriteError(c, w, 2, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// AdminOnly must be stacked on top of BearerAuth
func AdminOnly(logger mylog.Logger) mux.MiddlewareFunc {
	errorWriter := myhttp.NewWriter(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := mycontext.ContextFromHTTPRequest(r)

			session, found := FromContext(r.Context())
			if !found || !session.IsAdmin {
				errorWriter.WriteError(c, w, 1, myerrors.NewAuthenticationError(fmt.Errorf("admin role required")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", false
	}

	return token, true
}
