package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sketchlab/internal/domain"
)

// Propositos de token. Un token de reset jamas autoriza endpoints de
// sesion, y viceversa.
const (
	PurposeSession       = "session"
	PurposePasswordReset = "password-reset"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenWrongPurpose = errors.New("token purpose mismatch")
)

// TokenService emite y valida tokens JWT firmados con HS256.
// El secreto se inyecta al construir y no rota durante el proceso.
type TokenService struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	resetTTL   time.Duration
}

type TokenClaims struct {
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func NewTokenService(secret string, sessionTTL, resetTTL time.Duration) *TokenService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	if resetTTL <= 0 {
		resetTTL = 10 * time.Minute
	}
	return &TokenService{
		secret:     []byte(secret),
		issuer:     "sketchlab",
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
	}
}

// IssueSession firma un token de sesion para una cuenta autenticada.
func (s *TokenService) IssueSession(account domain.Account) (string, error) {
	return s.sign(account.ID, account.Email, PurposeSession, s.sessionTTL)
}

// IssueReset firma un token de proposito password-reset, corto, para
// el paso final del protocolo de reset.
func (s *TokenService) IssueReset(accountID string) (string, error) {
	return s.sign(accountID, "", PurposePasswordReset, s.resetTTL)
}

// Verify parsea y valida un token, exigiendo el proposito dado.
// La discrepancia de proposito es un error distinto, nunca se acepta
// en silencio.
func (s *TokenService) Verify(token, purpose string) (TokenClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(token) == "" {
		return TokenClaims{}, ErrTokenMalformed
	}
	var claims TokenClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return TokenClaims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return TokenClaims{}, ErrTokenBadSignature
		default:
			return TokenClaims{}, ErrTokenMalformed
		}
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Issuer != s.issuer {
		return TokenClaims{}, ErrTokenMalformed
	}
	if claims.Purpose != purpose {
		return TokenClaims{}, ErrTokenWrongPurpose
	}
	return claims, nil
}

func (s *TokenService) sign(subject, email, purpose string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenMalformed
	}
	now := time.Now().UTC()
	claims := TokenClaims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
