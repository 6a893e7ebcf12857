package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/boardbalance/internal/domain"
)

// WebhookClaims are the claims the board platform puts in the Authorization
// header of webhook deliveries.
type WebhookClaims struct {
	AccountID int64 `json:"accountId,omitempty"`
	UserID    int64 `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// WebhookVerifier checks webhook signatures against the app signing secret.
type WebhookVerifier struct {
	secretKey []byte
}

// NewWebhookVerifier creates a new WebhookVerifier.
func NewWebhookVerifier(secretKey string) *WebhookVerifier {
	return &WebhookVerifier{secretKey: []byte(secretKey)}
}

// Sign issues a token with the given claims. A zero ttl issues a token
// without expiry.
func (v *WebhookVerifier) Sign(claims WebhookClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secretKey)
}

// Verify checks an Authorization header value, raw or with a Bearer prefix.
func (v *WebhookVerifier) Verify(header string) (*WebhookClaims, error) {
	tokenString := strings.TrimSpace(header)
	if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "bearer ") {
		tokenString = strings.TrimSpace(tokenString[7:])
	}
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrInvalidSignature)
	}

	claims := &WebhookClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrInvalidSignature)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidSignature
	}

	return claims, nil
}
