package middleware

import (
	"context"
	"net/http"
	"parkd/pkg/logger"
	"parkd/pkg/model"
)

const (
	employeeIDHeader   = "X-Employee-Id"
	employeeRoleHeader = "X-Employee-Role"
)

const principalKey contextKey = "principal"

// AuthContext trusts the verified identity headers the upstream authenticator
// sets and parses them once into a typed principal. Requests without a valid
// pair never reach a handler.
func AuthContext(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			employeeID := r.Header.Get(employeeIDHeader)
			roleStr := r.Header.Get(employeeRoleHeader)

			if employeeID == "" || roleStr == "" {
				reject(w, "Missing identity headers")
				return
			}

			role, err := model.ParseRole(roleStr)
			if err != nil {
				requestID := ""
				if rid := r.Context().Value(RequestIDKey); rid != nil {
					if id, ok := rid.(string); ok {
						requestID = id
					}
				}
				log.Warn("Unknown role in identity header",
					"request_id", requestID,
					"role", roleStr,
					"path", r.URL.Path,
				)
				reject(w, "Unknown role")
				return
			}

			principal := model.Principal{
				EmployeeID: employeeID,
				Role:       role,
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}

func reject(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
