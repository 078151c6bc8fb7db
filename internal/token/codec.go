// Токены погашения: подписанный JWT (HS256) с одноразовым nonce
package credits

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const nonceBytes = 32

type tokenClaims struct {
	AccountRef string `json:"account_ref"`
	HolderID   string `json:"holder_id"`
	Nonce      string `json:"nonce"`
	TokenType  string `json:"token_type"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

type Option func(*Codec)

// Часы для тестов
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(secret string, issuer string, audience string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: token signing key is not set", model.ErrConfig)
	}
	c := &Codec{[]byte(secret), issuer, audience, time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Выпуск токена. nonce регистрирует вызывающий
func (c *Codec) Issue(accountRef string, holderId string, ttl time.Duration) (string, model.Claims, error) {
	if c == nil || len(c.secret) == 0 {
		return "", model.Claims{}, fmt.Errorf("%w: token signing key is not set", model.ErrConfig)
	}
	if ttl <= 0 {
		return "", model.Claims{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if accountRef == "" || holderId == "" {
		return "", model.Claims{}, fmt.Errorf("%w: accountRef and holderId are required", model.ErrInvalidAccount)
	}
	nonce, err := NewNonce()
	if err != nil {
		return "", model.Claims{}, err
	}

	// точность NumericDate - секунды
	now := c.now().UTC().Truncate(time.Second)
	claims := model.Claims{
		AccountRef: accountRef,
		HolderID:   holderId,
		Nonce:      nonce,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		TokenType:  model.TokenTypeRedemption,
	}

	tc := tokenClaims{
		AccountRef: claims.AccountRef,
		HolderID:   claims.HolderID,
		Nonce:      claims.Nonce,
		TokenType:  claims.TokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}
	if c.audience != "" {
		tc.Audience = jwt.ClaimStrings{c.audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(c.secret)
	if err != nil {
		return "", model.Claims{}, err
	}
	return token, claims, nil
}

// Разбор и проверка подписи/срока. Погашение nonce не проверяется
func (c *Codec) Parse(token string) (model.Claims, error) {
	if c == nil || len(c.secret) == 0 {
		return model.Claims{}, fmt.Errorf("%w: token signing key is not set", model.ErrConfig)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	// лишние поля в payload игнорируются: разбор только в типизированную структуру
	tc := &tokenClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, tc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return model.Claims{}, fmt.Errorf("%w: %w", model.ErrExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return model.Claims{}, fmt.Errorf("%w: %w", model.ErrBadSignature, err)
		default:
			return model.Claims{}, fmt.Errorf("%w: %w", model.ErrMalformed, err)
		}
	}

	if tc.TokenType != model.TokenTypeRedemption {
		return model.Claims{}, fmt.Errorf("%w: unexpected token type %q", model.ErrMalformed, tc.TokenType)
	}
	if tc.Nonce == "" || tc.AccountRef == "" || tc.HolderID == "" || tc.IssuedAt == nil {
		return model.Claims{}, fmt.Errorf("%w: required claims are missing", model.ErrMalformed)
	}

	return model.Claims{
		AccountRef: tc.AccountRef,
		HolderID:   tc.HolderID,
		Nonce:      tc.Nonce,
		IssuedAt:   tc.IssuedAt.Time.UTC(),
		ExpiresAt:  tc.ExpiresAt.Time.UTC(),
		TokenType:  tc.TokenType,
	}, nil
}
