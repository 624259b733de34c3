package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const hostCodeKey = "host_code"

// HostTokens issues and verifies host tokens. A token is an HS256 JWT whose
// subject is the room code it controls.
type HostTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHostTokens(secret string, ttl time.Duration) *HostTokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &HostTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token for the host of code.
func (t *HostTokens) Issue(code string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   app.NormalizeCode(code),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify returns the room code carried by a valid token.
func (t *HostTokens) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no game", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Authorize checks that raw is a host token for code.
func (t *HostTokens) Authorize(raw, code string) error {
	subject, err := t.Verify(raw)
	if err != nil {
		return err
	}
	if subject != app.NormalizeCode(code) {
		return fmt.Errorf("%w: token is for another game", domain.ErrUnauthorized)
	}
	return nil
}

// RequireHost rejects requests without a bearer host token for the :code in
// the route.
func RequireHost(tokens *HostTokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.Request)
		if err == nil {
			err = tokens.Authorize(raw, c.Param("code"))
		}
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(hostCodeKey, app.NormalizeCode(c.Param("code")))
		c.Next()
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing Authorization header", domain.ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: expected a Bearer token", domain.ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}
