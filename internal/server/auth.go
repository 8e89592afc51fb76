package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"worklist/internal/domain"
)

type AuthConfig struct {
	JWTSecret string
	// AllowHeaderContext accepts X-User-Id style headers without a token.
	// Development only.
	AllowHeaderContext bool
	Logger             *slog.Logger
}

type principalKey struct{}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func withPrincipal(ctx context.Context, pc domain.PermissionContext) context.Context {
	return context.WithValue(ctx, principalKey{}, pc)
}

func principalFromContext(ctx context.Context) (domain.PermissionContext, bool) {
	pc, ok := ctx.Value(principalKey{}).(domain.PermissionContext)
	return pc, ok
}

func requester(ctx context.Context) (domain.PermissionContext, huma.StatusError) {
	if pc, ok := principalFromContext(ctx); ok && pc.UserID != "" {
		return pc, nil
	}
	return domain.PermissionContext{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	TenantID     string `json:"tenant_id"`
	LocationID   string `json:"location_id"`
	IsManager    bool   `json:"is_manager,omitempty"`
	CanViewAll   bool   `json:"can_view_all,omitempty"`
	CanManageAll bool   `json:"can_manage_all,omitempty"`
}

// IssueToken signs an HS256 token carrying pc, valid for ttl.
func IssueToken(secret string, pc domain.PermissionContext, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   pc.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID:     pc.TenantID,
		LocationID:   pc.LocationID,
		IsManager:    pc.IsManager,
		CanViewAll:   pc.CanViewAll,
		CanManageAll: pc.CanManageAll,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateJWT(token string, secret string) (domain.PermissionContext, error) {
	if strings.TrimSpace(secret) == "" {
		return domain.PermissionContext{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return domain.PermissionContext{}, err
	}
	if !parsed.Valid {
		return domain.PermissionContext{}, errors.New("invalid token")
	}
	if claims.Subject == "" || claims.TenantID == "" || claims.LocationID == "" {
		return domain.PermissionContext{}, errors.New("sub, tenant_id and location_id claims required")
	}
	return domain.PermissionContext{
		UserID:       claims.Subject,
		TenantID:     claims.TenantID,
		LocationID:   claims.LocationID,
		IsManager:    claims.IsManager,
		CanViewAll:   claims.CanViewAll,
		CanManageAll: claims.CanManageAll,
	}, nil
}

func headerContext(req *http.Request) (domain.PermissionContext, bool) {
	pc := domain.PermissionContext{
		UserID:     strings.TrimSpace(req.Header.Get("X-User-Id")),
		TenantID:   strings.TrimSpace(req.Header.Get("X-Tenant-Id")),
		LocationID: strings.TrimSpace(req.Header.Get("X-Location-Id")),
	}
	if pc.UserID == "" {
		return pc, false
	}
	pc.IsManager, _ = strconv.ParseBool(req.Header.Get("X-Is-Manager"))
	pc.CanViewAll, _ = strconv.ParseBool(req.Header.Get("X-Can-View-All"))
	pc.CanManageAll, _ = strconv.ParseBool(req.Header.Get("X-Can-Manage-All"))
	return pc, true
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	specPath := path.Join(basePath, "openapi.json")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath || req.URL.Path == specPath {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				pc, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					cfg.logger().Debug("rejected bearer token", "error", err)
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), pc)))
				return
			}

			if pc, ok := headerContext(req); ok && cfg.AllowHeaderContext {
				cfg.logger().Warn("using header permission context without auth; this path is deprecated and ignored when Authorization is present",
					"user_id", pc.UserID, "tenant_id", pc.TenantID)
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), pc)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
