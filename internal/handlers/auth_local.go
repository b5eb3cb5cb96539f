package handlers

import (
	"campusbot/internal/models"
	"campusbot/internal/services"
	"campusbot/pkg/auth"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LocalAuthHandler handles local JWT authentication endpoints
type LocalAuthHandler struct {
	jwtAuth     *auth.LocalJWTAuth
	userService *services.UserService
}

// NewLocalAuthHandler creates a new local auth handler
func NewLocalAuthHandler(jwtAuth *auth.LocalJWTAuth, userService *services.UserService) *LocalAuthHandler {
	return &LocalAuthHandler{
		jwtAuth:     jwtAuth,
		userService: userService,
	}
}

// RegisterRequest is the request body for registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the request body for login. Login accepts an email or username.
type LoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshTokenRequest is the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is the response for successful authentication
type AuthResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	User         models.UserResponse `json:"user"`
	ExpiresIn    int                 `json:"expires_in"` // seconds
}

func (h *LocalAuthHandler) issue(c *fiber.Ctx, status int, user *models.User) error {
	accessToken, refreshToken, err := h.jwtAuth.GenerateTokens(user.ID, user.Email, user.Role)
	if err != nil {
		log.Printf("❌ [AUTH] Failed to generate tokens: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate authentication tokens",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Expires:  time.Now().Add(h.jwtAuth.RefreshTokenExpiry),
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: "Strict",
		Path:     "/api/auth",
	})

	return c.Status(status).JSON(AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.ToResponse(),
		ExpiresIn:    int(h.jwtAuth.AccessTokenExpiry.Seconds()),
	})
}

// Register creates a new user account
// POST /api/auth/register
func (h *LocalAuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || services.EmailDomain(req.Email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Valid email address is required",
		})
	}
	if len(req.Username) < 3 || len(req.Username) > 64 || strings.Contains(req.Username, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username must be 3-64 characters and must not contain @",
		})
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if !h.userService.DomainAllowed(req.Email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Registration is restricted to university email addresses",
		})
	}

	passwordHash, err := h.jwtAuth.HashPassword(req.Password)
	if err != nil {
		log.Printf("❌ [AUTH] Failed to hash password: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create account",
		})
	}

	user, err := h.userService.CreateUser(c.UserContext(), req.Email, req.Username, passwordHash)
	switch {
	case errors.Is(err, services.ErrUserExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A user with this email or username already exists",
		})
	case errors.Is(err, services.ErrDomainNotAllowed):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Registration is restricted to university email addresses",
		})
	case err != nil:
		log.Printf("❌ [AUTH] Failed to create user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create account",
		})
	}

	return h.issue(c, fiber.StatusCreated, user)
}

// Login authenticates a user
// POST /api/auth/login
func (h *LocalAuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	login := strings.TrimSpace(req.Login)
	if login == "" {
		login = strings.TrimSpace(req.Email)
	}
	if login == "" {
		login = strings.TrimSpace(req.Username)
	}
	if login == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Login and password are required",
		})
	}

	ctx := c.UserContext()
	user, err := h.userService.GetUserByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, services.ErrUserNotFound) {
			log.Printf("❌ [AUTH] Failed to load user: %v", err)
		}
		// Use constant-time response to prevent account enumeration
		time.Sleep(200 * time.Millisecond)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	valid, err := h.jwtAuth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !valid {
		log.Printf("⚠️  [AUTH] Failed login attempt for user: %s", user.Email)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	// Imported bcrypt hashes are replaced with Argon2id on first login
	if auth.IsLegacyHash(user.PasswordHash) {
		if newHash, err := h.jwtAuth.HashPassword(req.Password); err == nil {
			if err := h.userService.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
				log.Printf("⚠️  [AUTH] Failed to upgrade password hash for %s: %v", user.Email, err)
			}
		}
	}

	if err := h.userService.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Printf("⚠️  [AUTH] Failed to update last login time: %v", err)
	}

	log.Printf("✅ [AUTH] User logged in: %s (%s)", user.Email, user.ID)
	return h.issue(c, fiber.StatusOK, user)
}

// RefreshToken generates a new access token from a refresh token
// POST /api/auth/refresh
func (h *LocalAuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		var req RefreshTokenRequest
		if err := c.BodyParser(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Refresh token is required",
		})
	}

	claims, err := h.jwtAuth.VerifyRefreshToken(refreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired refresh token",
		})
	}

	// Role changes (promote-admins) take effect on refresh
	user, err := h.userService.GetUserByID(c.UserContext(), claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	newAccessToken, _, err := h.jwtAuth.GenerateTokens(user.ID, user.Email, user.Role)
	if err != nil {
		log.Printf("❌ [AUTH] Failed to generate new access token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to refresh token",
		})
	}

	return c.JSON(fiber.Map{
		"access_token": newAccessToken,
		"expires_in":   int(h.jwtAuth.AccessTokenExpiry.Seconds()),
	})
}

// Logout clears the refresh token cookie
// POST /api/auth/logout
func (h *LocalAuthHandler) Logout(c *fiber.Ctx) error {
	c.ClearCookie("refresh_token")
	return c.JSON(fiber.Map{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the currently authenticated user
// GET /api/auth/me
func (h *LocalAuthHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	user, err := h.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	return c.JSON(user.ToResponse())
}
