package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"collecta/internal/registration/models"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/httputil"
	"collecta/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the account it was
// issued to.
type TokenValidator interface {
	Validate(tokenString string) (id.AccountID, error)
}

// AccountResolver resolves the authenticated account so the actor carries
// collecta's own role and scope, never claims baked into the token.
type AccountResolver interface {
	FindAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

// RequireAuth validates the bearer token, resolves the account and injects
// the actor into the request context. Pending and rejected accounts hold no
// credentials worth honouring.
func RequireAuth(validator TokenValidator, resolver AccountResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			accountID, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "rejected invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			account, err := resolver.FindAccount(ctx, accountID)
			if err != nil {
				logger.WarnContext(ctx, "rejected token for unknown account",
					"account_id", accountID.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "account not found"))
				return
			}
			if account.Status != models.StatusActive {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "account is not active"))
				return
			}

			actor := requestcontext.ActorInfo{
				ID:    account.ID,
				Role:  account.Role,
				Scope: account.City,
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
