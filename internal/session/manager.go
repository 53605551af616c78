package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

// Manager issues, loads and destroys sessions. Clients hold an HS256 token
// whose jti is the session id.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager over store
func NewManager(store Store, secret string, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued sessions and tokens
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Start records user as logged in under a fresh session id.
// The previous session, if any, is discarded.
func (m *Manager) Start(ctx context.Context, previous *Session, user *domain.User) (*Session, error) {
	if previous != nil && previous.ID != "" {
		if err := m.store.Delete(ctx, previous.ID); err != nil {
			return nil, err
		}
	}

	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: m.now(),
	}
	sess.SetUser(user)

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save persists changes to an existing session
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return nil
	}
	return m.store.Save(ctx, sess)
}

// Destroy removes the session and clears sess in place
func (m *Manager) Destroy(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.ID != "" {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return err
		}
	}
	*sess = Session{}
	return nil
}

// Load resolves token to its session. A missing, invalid or expired token,
// or one whose session is gone, yields an anonymous session.
func (m *Manager) Load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return Anonymous(), nil
	}

	id, err := m.Parse(token)
	if err != nil {
		return Anonymous(), nil
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Anonymous(), nil
		}
		return Anonymous(), err
	}
	return sess, nil
}

// Token signs the session id into a client token
func (m *Manager) Token(sess *Session) (string, error) {
	if sess == nil || sess.ID == "" {
		return "", ErrInvalidToken
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   sess.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse validates token and returns the session id it carries
func (m *Manager) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
