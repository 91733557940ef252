package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService handles JWT token creation, validation, and management.
// Tokens are tracked in memory: the authoritative store for this service is
// process memory, so sessions do not survive a restart.
type TokenService struct {
	users     *UserStore
	secretKey []byte

	// Configurable token durations
	AccessTokenDuration  time.Duration // Default: 15 minutes
	RefreshTokenDuration time.Duration // Default: 30 days

	mu       sync.Mutex
	sessions map[string]*tokenRecord // access-token hash -> record
	refresh  map[string]*tokenRecord // refresh-token hash -> record
}

type tokenRecord struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // "Bearer"
}

// JWTClaims represents the claims in our JWT tokens
type JWTClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenHash string `json:"token_hash"` // Reference to the session record
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(users *UserStore, secretKey string) *TokenService {
	return &TokenService{
		users:                users,
		secretKey:            []byte(secretKey),
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 30 * 24 * time.Hour,
		sessions:             make(map[string]*tokenRecord),
		refresh:              make(map[string]*tokenRecord),
	}
}

// generateRandomToken creates a cryptographically secure random token
func (ts *TokenService) generateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA256 hash of the token for registry storage
func (ts *TokenService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CreateTokenPair creates both access and refresh tokens for a user
func (ts *TokenService) CreateTokenPair(user *User) (*TokenPair, error) {
	refreshToken, err := ts.generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	accessToken, err := ts.generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	accessTokenHash := ts.hashToken(accessToken)
	accessExpiresAt := time.Now().Add(ts.AccessTokenDuration)

	ts.mu.Lock()
	ts.refresh[ts.hashToken(refreshToken)] = &tokenRecord{
		userID:    user.ID,
		expiresAt: time.Now().Add(ts.RefreshTokenDuration),
	}
	ts.sessions[accessTokenHash] = &tokenRecord{
		userID:    user.ID,
		expiresAt: accessExpiresAt,
	}
	ts.mu.Unlock()

	// Create JWT access token
	claims := &JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: accessTokenHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "autogram",
			Subject:   fmt.Sprintf("user_%s", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtString, err := token.SignedString(ts.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return &TokenPair{
		AccessToken:  jwtString,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExpiresAt,
		TokenType:    "Bearer",
	}, nil
}

// ValidateAccessToken validates a JWT access token and returns the user
func (ts *TokenService) ValidateAccessToken(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	// Check the session registry for revocation and expiry
	ts.mu.Lock()
	record, ok := ts.sessions[claims.TokenHash]
	valid := ok && !record.revoked && record.expiresAt.After(time.Now()) && record.userID == claims.UserID
	ts.mu.Unlock()

	if !valid {
		return nil, fmt.Errorf("token not found or expired")
	}

	user, err := ts.users.GetByID(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// RefreshTokenPair creates a new token pair using a valid refresh token.
// The old refresh token is revoked, so each refresh token is single-use.
func (ts *TokenService) RefreshTokenPair(refreshToken string) (*TokenPair, error) {
	hash := ts.hashToken(refreshToken)

	ts.mu.Lock()
	record, ok := ts.refresh[hash]
	valid := ok && !record.revoked && record.expiresAt.After(time.Now())
	if valid {
		record.revoked = true
	}
	ts.mu.Unlock()

	if !valid {
		return nil, fmt.Errorf("invalid or expired refresh token")
	}

	user, err := ts.users.GetByID(record.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return ts.CreateTokenPair(user)
}

// RevokeAccessToken revokes the session behind an access token (logout).
func (ts *TokenService) RevokeAccessToken(tokenString string) {
	claims, err := ts.parseTokenClaims(tokenString)
	if err != nil {
		return
	}

	ts.mu.Lock()
	if record, ok := ts.sessions[claims.TokenHash]; ok {
		record.revoked = true
	}
	ts.mu.Unlock()
}

// RevokeAllUserTokens revokes every session and refresh token for a user
// (logout from all devices).
func (ts *TokenService) RevokeAllUserTokens(userID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for _, record := range ts.sessions {
		if record.userID == userID {
			record.revoked = true
		}
	}
	for _, record := range ts.refresh {
		if record.userID == userID {
			record.revoked = true
		}
	}
}

// CleanupExpiredTokens removes expired and revoked entries from the
// registries. Called periodically by the scheduler.
func (ts *TokenService) CleanupExpiredTokens() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	removed := 0
	now := time.Now()
	for hash, record := range ts.sessions {
		if record.revoked || record.expiresAt.Before(now) {
			delete(ts.sessions, hash)
			removed++
		}
	}
	for hash, record := range ts.refresh {
		if record.revoked || record.expiresAt.Before(now) {
			delete(ts.refresh, hash)
			removed++
		}
	}
	return removed
}

// parseTokenClaims parses a JWT token and returns the claims without
// consulting the session registry. Used internally for revocation.
func (ts *TokenService) parseTokenClaims(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// StartCleanupScheduler starts a background task to clean up expired tokens.
// The returned stop function terminates the scheduler.
func (ts *TokenService) StartCleanupScheduler() (stop func()) {
	ticker := time.NewTicker(1 * time.Hour)
	done := make(chan struct{})

	go func() {
		ts.CleanupExpiredTokens()
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				ts.CleanupExpiredTokens()
			}
		}
	}()

	return func() { close(done) }
}
