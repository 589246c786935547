package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"boxledger/internal/core/apperror"
	appctx "boxledger/internal/core/context"
)

// TokenValidator validates a bearer token and resolves the acting operator.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Actor middleware validates the bearer token and puts the operator identity
// into the request context. Every movement endpoint requires a known actor.
func Actor(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		actor, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		// Store in gin context for easy access
		c.Set("operator_id", actor.OperatorID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}

// actorClaims is the token payload issued by the terminal login service.
type actorClaims struct {
	jwt.RegisteredClaims
	Terminal string `json:"terminal,omitempty"`
}

// HMACValidator validates HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret []byte
}

// NewHMACValidator creates a validator for the given signing secret.
func NewHMACValidator(secret string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret)}
}

// ValidateToken parses and verifies the token, returning the actor it names.
func (v *HMACValidator) ValidateToken(tokenString string) (*appctx.Actor, error) {
	var claims actorClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &appctx.Actor{
		OperatorID: claims.Subject,
		Terminal:   claims.Terminal,
	}, nil
}

// Ensure interface compliance.
var _ TokenValidator = (*HMACValidator)(nil)
