package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the authentication endpoints.
type Handlers struct {
	users  *UserStore
	tokens *TokenService
}

// NewHandlers creates the auth handler set.
func NewHandlers(users *UserStore, tokens *TokenService) *Handlers {
	return &Handlers{users: users, tokens: tokens}
}

// Register mounts the auth routes on the given group.
func (h *Handlers) Register(g *echo.Group) {
	g.POST("/register", h.handleRegister)
	g.POST("/login", h.handleLogin)
	g.POST("/refresh", h.handleRefresh)
	g.POST("/logout", h.handleLogout)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *Handlers) handleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.users.Register(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return echo.NewHTTPError(http.StatusConflict, "User already exists")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	log.Info().Str("email", user.Email).Msg("Registered user")
	return c.JSON(http.StatusCreated, user)
}

func (h *Handlers) handleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.users.Authenticate(req.Email, req.Password)
	if err != nil {
		log.Warn().Str("email", req.Email).Msg("Failed login attempt")
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	pair, err := h.tokens.CreateTokenPair(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		UserID:       user.ID,
		Email:        user.Email,
		ExpiresAt:    pair.ExpiresAt,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handlers) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	pair, err := h.tokens.RefreshTokenPair(req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token")
	}

	return c.JSON(http.StatusOK, pair)
}

func (h *Handlers) handleLogout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		h.tokens.RevokeAccessToken(parts[1])
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Logged out successfully",
		"status":  "success",
	})
}
