package session

import (
	"time"

	"marketplace/internal/domain"

	"github.com/google/uuid"
)

// Session is the server-side record behind a client token.
// A zero-value or nil Session is anonymous.
type Session struct {
	ID            string      `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	Role          domain.Role `json:"role"`
	Authenticated bool        `json:"authenticated"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Anonymous returns a session with no identity
func Anonymous() *Session {
	return &Session{}
}

// IsAuthenticated reports whether the session carries a logged in user
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Authenticated
}

// IsAdmin is false whenever the session is not authenticated
func (s *Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.Role == domain.RoleAdmin
}

// CurrentUserID returns the logged in user's id
func (s *Session) CurrentUserID() (uuid.UUID, bool) {
	if !s.IsAuthenticated() {
		return uuid.Nil, false
	}
	return s.UserID, true
}

// Owns reports whether the session belongs to userID
func (s *Session) Owns(userID uuid.UUID) bool {
	id, ok := s.CurrentUserID()
	return ok && id == userID
}

// SetUser copies the cached identity fields from user
func (s *Session) SetUser(user *domain.User) {
	s.UserID = user.ID
	s.Name = user.Name
	s.Email = user.Email
	s.Role = user.Role
	s.Authenticated = true
}
