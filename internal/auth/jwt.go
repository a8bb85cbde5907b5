package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	Issuer = "brewqueue-api"

	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour

	// Audiences keep a refresh token from being replayed as an access token
	// and the other way around.
	audienceAccess  = "staff-console"
	audienceRefresh = "token-refresh"
)

// ErrInvalidToken wraps every validation failure.
var ErrInvalidToken = errors.New("invalid token")

// Claims identify a staff or admin account on the queue console.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair is what login and refresh hand back to the console.
type TokenPair struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// IssuePair signs a fresh access and refresh token for an account.
func IssuePair(secret string, userID uuid.UUID, email, role string) (TokenPair, error) {
	now := time.Now()
	access, err := sign(secret, Claims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		RegisteredClaims: registered(userID, audienceAccess, now, accessTTL),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := sign(secret, registered(userID, audienceRefresh, now, refreshTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh, ExpiresAt: now.Add(accessTTL)}, nil
}

// GenerateToken signs an access token only.
func GenerateToken(secret string, userID uuid.UUID, email, role string) (string, error) {
	return sign(secret, Claims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		RegisteredClaims: registered(userID, audienceAccess, time.Now(), accessTTL),
	})
}

// GenerateRefreshToken signs a refresh token only.
func GenerateRefreshToken(secret string, userID uuid.UUID) (string, error) {
	return sign(secret, registered(userID, audienceRefresh, time.Now(), refreshTTL))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, err := parse(secret, tokenStr, audienceAccess, claims); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: no user", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateRefreshToken returns the account a refresh token was issued for.
func ValidateRefreshToken(secret, tokenStr string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := parse(secret, tokenStr, audienceRefresh, claims); err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return userID, nil
}

func registered(userID uuid.UUID, audience string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func sign(secret string, claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parse(secret, tokenStr, audience string, claims jwt.Claims) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return token, nil
}
