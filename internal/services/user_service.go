package services

import (
	"campusbot/internal/database"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User errors surfaced to handlers
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("email or username already registered")
	ErrDomainNotAllowed = errors.New("email domain is not allowed to register")
)

// UserService handles user accounts in the relational database
type UserService struct {
	db           *database.DB
	allowDomains []string
	adminDomains []string
}

// NewUserService creates a user service. An empty allowDomains accepts any domain.
func NewUserService(db *database.DB, allowDomains, adminDomains []string) *UserService {
	return &UserService{
		db:           db,
		allowDomains: allowDomains,
		adminDomains: adminDomains,
	}
}

// EmailDomain returns the lower-cased domain part of email
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

func domainIn(email string, domains []string) bool {
	d := EmailDomain(email)
	if d == "" {
		return false
	}
	for _, allowed := range domains {
		if d == allowed {
			return true
		}
	}
	return false
}

// DomainAllowed reports whether email may register
func (s *UserService) DomainAllowed(email string) bool {
	if len(s.allowDomains) == 0 {
		return EmailDomain(email) != ""
	}
	return domainIn(email, s.allowDomains)
}

// IsAdminDomain reports whether email belongs to an admin domain
func (s *UserService) IsAdminDomain(email string) bool {
	return domainIn(email, s.adminDomains)
}

const userColumns = "id, email, username, password_hash, role, ai_provider, created_at, last_login_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var (
		u         models.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.AIProvider, &u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// CreateUser registers a new account. The role is derived from the email domain.
func (s *UserService) CreateUser(ctx context.Context, email, username, passwordHash string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if !s.DomainAllowed(email) {
		return nil, ErrDomainNotAllowed
	}

	role := models.RoleUser
	if s.IsAdminDomain(email) {
		role = models.RoleAdmin
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = ? OR username = ?", email, username,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists > 0 {
		return nil, ErrUserExists
	}

	u := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, username, password_hash, role, ai_provider, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Email, u.Username, u.PasswordHash, u.Role, "", u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("✅ [USERS] Registered %s (role=%s)", u.Email, u.Role)
	return u, nil
}

func (s *UserService) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" = ?", arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByID finds a user by id
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getOne(ctx, "id", id)
}

// GetUserByEmail finds a user by email, case-insensitively
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByLogin finds a user by email or username
func (s *UserService) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	if strings.Contains(login, "@") {
		return s.GetUserByEmail(ctx, login)
	}
	return s.getOne(ctx, "username", strings.TrimSpace(login))
}

// UpdateLastLogin records a successful login
func (s *UserService) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", time.Now().UTC(), id)
	return err
}

// UpdatePasswordHash replaces a stored hash, used to upgrade legacy bcrypt hashes
func (s *UserService) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	return err
}

// GetPreference returns the user's saved provider selection, "" when unset
func (s *UserService) GetPreference(ctx context.Context, id string) (string, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.AIProvider, nil
}

// SetPreference saves the user's provider selection. An empty value clears it.
func (s *UserService) SetPreference(ctx context.Context, id, selection string) error {
	selection = strings.ToLower(strings.TrimSpace(selection))
	if selection != "" {
		if _, err := providers.ParseSelection(selection); err != nil {
			return err
		}
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET ai_provider = ? WHERE id = ?", selection, id)
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUserCount returns the total number of registered users
func (s *UserService) GetUserCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// PromoteAdmins grants the admin role to every user in an admin domain.
// It returns the number of users promoted.
func (s *UserService) PromoteAdmins(ctx context.Context) (int, error) {
	if len(s.adminDomains) == 0 {
		return 0, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, email FROM users WHERE role <> ?", models.RoleAdmin)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			rows.Close()
			return 0, err
		}
		if s.IsAdminDomain(email) {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, "UPDATE users SET role = ? WHERE id = ?", models.RoleAdmin, id); err != nil {
			return 0, fmt.Errorf("failed to promote user %s: %w", id, err)
		}
	}
	if len(ids) > 0 {
		log.Printf("👑 [USERS] Promoted %d user(s) to admin", len(ids))
	}
	return len(ids), nil
}
