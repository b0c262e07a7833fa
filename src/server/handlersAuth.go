package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"

	cfg "vibemint/src/configuration"
)

// AuthHandler guards the upload endpoint with OIDC bearer tokens when an
// issuer is configured. There is no login flow here: tokens are issued
// elsewhere and only verified.
type AuthHandler struct {
	verifier *oidc.IDTokenVerifier
}

func NewAuthHandler(ctx context.Context, config *cfg.Properties) (*AuthHandler, error) {
	provider, err := oidc.NewProvider(ctx, config.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("can not create OIDC provider: %w", err)
	}
	log.Printf("auth enabled, issuer endpoint is %v", provider.Endpoint())
	return &AuthHandler{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.Auth.ClientID}),
	}, nil
}

// Require aborts the request unless it carries a valid bearer ID token.
func (a *AuthHandler) Require(c *gin.Context) {
	raw := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(raw, "Bearer ")
	if !found || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	if _, err := a.verifier.Verify(c.Request.Context(), token); err != nil {
		log.Printf("rejected bearer token: %v", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
		return
	}
	c.Next()
}
