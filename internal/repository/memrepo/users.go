package memrepo

import (
	"context"
	"time"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

type userRepo struct{ s *Store }

func (r *userRepo) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range r.s.st.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("users.Create"); err != nil {
		return err
	}

	if r.emailTaken(user.Email, uuid.Nil) {
		return repository.ErrUserAlreadyExists
	}
	r.s.st.users[user.ID] = *user
	r.s.st.track(user.ID)
	return nil
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("users.Update"); err != nil {
		return err
	}

	if _, ok := r.s.st.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return repository.ErrUserAlreadyExists
	}
	user.UpdatedAt = time.Now()
	r.s.st.users[user.ID] = *user
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("users.Delete"); err != nil {
		return err
	}

	if _, ok := r.s.st.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	for _, o := range r.s.st.orders {
		if o.UserID == id {
			return apperrors.Conflict("user has orders and cannot be deleted")
		}
	}
	for itemID, item := range r.s.st.cart {
		if item.UserID == id {
			delete(r.s.st.cart, itemID)
		}
	}
	delete(r.s.st.users, id)
	return nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.st.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.st.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepo) List(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []uuid.UUID
	for id, u := range r.s.st.users {
		if role == "" || u.Role == role {
			ids = append(ids, id)
		}
	}
	r.s.st.newestFirst(ids)

	users := []*domain.User{}
	for _, id := range ids {
		u := r.s.st.users[id]
		users = append(users, &u)
	}
	return users, nil
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.st.users), nil
}

func (r *userRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, u := range r.s.st.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
