package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/repository"
	"marketplace/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for password hashes
	BcryptCost = 10

	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 6

	// bcrypt ignores input past 72 bytes
	maxPasswordBytes = 72
)

var (
	ErrMissingAccountFields = apperrors.Validation("name, email and password are required")
	ErrMissingProfileFields = apperrors.Validation("name and email are required")
	ErrInvalidEmail         = apperrors.Validation("invalid email format")
	ErrWeakPassword         = apperrors.Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	ErrPasswordTooLong      = apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	ErrDuplicateEmail       = repository.ErrUserAlreadyExists
	ErrInvalidCredentials   = apperrors.Unauthorized("invalid email or password")
	ErrNotAuthenticated     = apperrors.Unauthorized("authentication required")
	ErrNotPermitted         = apperrors.Forbidden("insufficient permissions")
	ErrSelfDeletion         = apperrors.BusinessRule("you cannot delete your own account")
)

// Sessions is the session lifecycle the account service drives
type Sessions interface {
	Start(ctx context.Context, previous *session.Session, user *domain.User) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
	Destroy(ctx context.Context, sess *session.Session) error
}

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
	Address  *string
}

// UpdateProfileInput carries a profile update. Nil optional fields are left unchanged.
type UpdateProfileInput struct {
	Name     string
	Email    string
	Role     *domain.Role
	Password *string
	Phone    *string
	Address  *string
}

// AccountService defines registration, authentication and user management
type AccountService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	// CreateUser registers an account on behalf of an admin, optionally with the admin role.
	CreateUser(ctx context.Context, sess *session.Session, input RegisterInput, role domain.Role) (*domain.User, error)
	Authenticate(ctx context.Context, sess *session.Session, email, password string) (*session.Session, *domain.User, error)
	EndSession(ctx context.Context, sess *session.Session) error
	IsAuthenticated(sess *session.Session) bool
	IsAdmin(sess *session.Session) bool
	CurrentUserID(sess *session.Session) (uuid.UUID, bool)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ListAll(ctx context.Context, sess *session.Session) ([]*domain.User, error)
	ListByRole(ctx context.Context, sess *session.Session, role domain.Role) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, sess *session.Session, id uuid.UUID, input UpdateProfileInput) (*domain.User, error)
	Delete(ctx context.Context, sess *session.Session, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context, role domain.Role) (int, error)
}

type accountService struct {
	users    repository.UserRepository
	sessions Sessions
	validate *validator.Validate
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(users repository.UserRepository, sessions Sessions) AccountService {
	return &accountService{
		users:    users,
		sessions: sessions,
		validate: validator.New(),
	}
}

// Register creates a user account with a hashed password and the user role
func (s *accountService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	return s.register(ctx, input, domain.RoleUser)
}

// register stores the account with its final role in a single write
func (s *accountService) register(ctx context.Context, input RegisterInput, role domain.Role) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)

	if name == "" || email == "" || input.Password == "" {
		return nil, ErrMissingAccountFields
	}
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	if err := checkPassword(input.Password); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, email, uuid.Nil); err != nil {
		return nil, err
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
		Phone:        optional(input.Phone),
		Address:      optional(input.Address),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique index still catches a concurrent registration
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user.Public(), nil
}

func (s *accountService) CreateUser(ctx context.Context, sess *session.Session, input RegisterInput, role domain.Role) (*domain.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}

	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	return s.register(ctx, input, role)
}

// Authenticate verifies the credentials and starts a new session for the user.
// Unknown email and wrong password fail identically.
func (s *accountService) Authenticate(ctx context.Context, sess *session.Session, email, password string) (*session.Session, *domain.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	started, err := s.sessions.Start(ctx, sess, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start session: %w", err)
	}

	return started, user.Public(), nil
}

func (s *accountService) EndSession(ctx context.Context, sess *session.Session) error {
	if err := s.sessions.Destroy(ctx, sess); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func (s *accountService) IsAuthenticated(sess *session.Session) bool {
	return sess.IsAuthenticated()
}

func (s *accountService) IsAdmin(sess *session.Session) bool {
	return sess.IsAdmin()
}

func (s *accountService) CurrentUserID(sess *session.Session) (uuid.UUID, bool) {
	return sess.CurrentUserID()
}

// FindByID returns the public projection of a user
func (s *accountService) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

func (s *accountService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

func (s *accountService) ListAll(ctx context.Context, sess *session.Session) ([]*domain.User, error) {
	return s.ListByRole(ctx, sess, "")
}

// ListByRole lists users newest first. An empty role lists everyone.
func (s *accountService) ListByRole(ctx context.Context, sess *session.Session, role domain.Role) ([]*domain.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, err
	}

	public := make([]*domain.User, len(users))
	for i, u := range users {
		public[i] = u.Public()
	}
	return public, nil
}

// UpdateProfile applies input to the user id. Only admins may change roles;
// a role sent by anyone else is ignored.
func (s *accountService) UpdateProfile(ctx context.Context, sess *session.Session, id uuid.UUID, input UpdateProfileInput) (*domain.User, error) {
	if !sess.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if !sess.IsAdmin() && !sess.Owns(id) {
		return nil, ErrNotPermitted
	}

	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" || email == "" {
		return nil, ErrMissingProfileFields
	}
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, email, id); err != nil {
		return nil, err
	}

	user.Name = name
	user.Email = email

	if input.Role != nil && sess.IsAdmin() && input.Role.Valid() {
		user.Role = *input.Role
	}

	if input.Password != nil && *input.Password != "" {
		if err := checkPassword(*input.Password); err != nil {
			return nil, err
		}
		hashedPassword, err := hashPassword(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hashedPassword
	}

	if input.Phone != nil {
		user.Phone = optional(input.Phone)
	}
	if input.Address != nil {
		user.Address = optional(input.Address)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if sess.Owns(id) {
		sess.SetUser(user)
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to refresh session: %w", err)
		}
	}

	return user.Public(), nil
}

func (s *accountService) Delete(ctx context.Context, sess *session.Session, id uuid.UUID) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if sess.Owns(id) {
		return ErrSelfDeletion
	}
	return s.users.Delete(ctx, id)
}

func (s *accountService) Count(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func (s *accountService) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	return s.users.CountByRole(ctx, role)
}

func (s *accountService) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ensureEmailFree fails when a user other than except owns email
func (s *accountService) ensureEmailFree(ctx context.Context, email string, except uuid.UUID) error {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing.ID != except {
		return ErrDuplicateEmail
	}
	return nil
}

func requireAdmin(sess *session.Session) error {
	if !sess.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if !sess.IsAdmin() {
		return ErrNotPermitted
	}
	return nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// optional trims s and maps blank to nil
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
