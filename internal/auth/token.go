package auth

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/middleware"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the JWT claims issued by the auth service. The subject is the
// user's matricule.
type Claims struct {
	UserID         string `json:"user_id,omitempty"`
	Role           string `json:"role,omitempty"`
	ClearanceLevel string `json:"clearance_level,omitempty"`
	TokenType      string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates JWTs. It signs with HS256 using the
// shared secret by default, or RS256 when RSA keys are configured.
type TokenManager struct {
	secret     []byte
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// TokenManagerConfig configures a TokenManager.
type TokenManagerConfig struct {
	Secret          string
	PrivateKeyFile  string
	PublicKeyFile   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// NewTokenManager creates a token manager. RSA signing is enabled when a
// private key file is given; a public key file alone enables verify-only mode
// (the gateway uses this).
func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	tm := &TokenManager{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
	if tm.accessTTL == 0 {
		tm.accessTTL = time.Hour
	}
	if tm.refreshTTL == 0 {
		tm.refreshTTL = 7 * 24 * time.Hour
	}

	if cfg.PrivateKeyFile != "" {
		pem, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read JWT private key: %w", err)
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("parse JWT private key: %w", err)
		}
		tm.privateKey = key
		tm.publicKey = &key.PublicKey
	}

	if cfg.PublicKeyFile != "" && tm.publicKey == nil {
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read JWT public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("parse JWT public key: %w", err)
		}
		tm.publicKey = key
	}

	return tm, nil
}

// AccessTokenTTL returns the access token lifetime.
func (tm *TokenManager) AccessTokenTTL() time.Duration { return tm.accessTTL }

// IssueAccessToken creates a signed access token for the user.
func (tm *TokenManager) IssueAccessToken(user User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:         user.ID,
		Role:           string(user.Role),
		ClearanceLevel: string(user.ClearanceLevel),
		TokenType:      TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Matricule,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return tm.sign(claims)
}

// IssueRefreshToken creates a signed refresh token for the user.
func (tm *TokenManager) IssueRefreshToken(user User) (string, error) {
	now := time.Now()
	claims := &Claims{
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Matricule,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return tm.sign(claims)
}

func (tm *TokenManager) sign(claims *Claims) (string, error) {
	if tm.privateKey != nil {
		return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(tm.privateKey)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// ParseToken validates a token's signature and expiry and returns its claims.
func (tm *TokenManager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if tm.publicKey != nil {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return tm.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, errors.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.InvalidToken(nil)
	}
	return claims, nil
}

// ParseAccessToken validates a token and requires it to be an access token.
func (tm *TokenManager) ParseAccessToken(tokenString string) (*Claims, error) {
	claims, err := tm.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "not an access token")
	}
	return claims, nil
}

// ParseRefreshToken validates a token and requires it to be a refresh token.
func (tm *TokenManager) ParseRefreshToken(tokenString string) (*Claims, error) {
	claims, err := tm.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "not a refresh token")
	}
	return claims, nil
}

// Validate implements middleware.TokenValidator over access tokens.
func (tm *TokenManager) Validate(tokenString string) (middleware.Identity, error) {
	claims, err := tm.ParseAccessToken(tokenString)
	if err != nil {
		return middleware.Identity{}, err
	}
	return middleware.Identity{
		UserID:    claims.UserID,
		Matricule: claims.Subject,
		Role:      claims.Role,
		Clearance: claims.ClearanceLevel,
	}, nil
}
