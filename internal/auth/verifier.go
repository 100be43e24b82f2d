package auth

import (
	"context"
	"strings"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/hospitaldata/explorer/pkg/logger"
	"github.com/hospitaldata/explorer/pkg/middleware"
)

// FromConfig picks a verifier for mutating routes: Keycloak OIDC first, then a
// shared JWT secret, then the insecure verifier when explicitly allowed.
// It returns nil when none is configured, leaving the routes open.
func FromConfig(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		issuer := cfg.Keycloak.URL
		if cfg.Keycloak.Realm != "" {
			issuer = strings.TrimRight(cfg.Keycloak.URL, "/") + "/realms/" + cfg.Keycloak.Realm
		}
		ver, err := NewOIDCVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err == nil {
			return ver
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.JWT.Secret != "" {
		ver, err := NewHMACVerifier(cfg.JWT.Secret)
		if err == nil {
			return ver
		}
		logger.Warnf("failed to initialize JWT verifier: %v", err)
	}
	if cfg.JWT.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		return NewInsecureVerifier()
	}
	return nil
}
