package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_UserRoundTripKeepsProfile(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("a created user is found by id and by email", prop.ForAll(
		func(local string, name string, phone string) bool {
			email := local + "-" + uuid.NewString()[:8] + "@example.com"
			user := &domain.User{
				ID:           uuid.New(),
				Name:         name,
				Email:        email,
				PasswordHash: "$2a$10$hash",
				Role:         domain.RoleUser,
				Phone:        &phone,
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}

			if err := repo.Create(ctx, user); err != nil {
				t.Logf("FAIL: Failed to create user: %v", err)
				return false
			}

			byID, err := repo.FindByID(ctx, user.ID)
			if err != nil {
				t.Logf("FAIL: Failed to find user by ID: %v", err)
				return false
			}

			byEmail, err := repo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Failed to find user by email: %v", err)
				return false
			}

			return byID.ID == byEmail.ID &&
				byID.Name == name &&
				byID.Role == domain.RoleUser &&
				byID.Phone != nil && *byID.Phone == phone &&
				byID.Address == nil
		},
		gen.RegexMatch(`[a-z]{3,10}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.RegexMatch(`08[0-9]{8,10}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()
	existing := seedUser(t, domain.RoleUser)

	dup := &domain.User{
		ID:           uuid.New(),
		Name:         "Other",
		Email:        existing.Email,
		PasswordHash: "$2a$10$hash",
		Role:         domain.RoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	err := repo.Create(ctx, dup)
	assert.True(t, errors.Is(err, ErrUserAlreadyExists), "got %v", err)
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()
	user := seedUser(t, domain.RoleUser)

	address := "Jl. Merdeka 1"
	user.Name = "Renamed"
	user.Role = domain.RoleAdmin
	user.Address = &address
	require.NoError(t, repo.Update(ctx, user))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	require.NotNil(t, got.Address)
	assert.Equal(t, address, *got.Address)

	require.NoError(t, repo.Delete(ctx, user.ID))

	_, err = repo.FindByID(ctx, user.ID)
	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, user.ID), ErrUserNotFound))
}

func TestUserRepository_ListAndCountByRole(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	beforeAdmins, err := repo.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	beforeAll, err := repo.Count(ctx)
	require.NoError(t, err)

	admin := seedUser(t, domain.RoleAdmin)
	seedUser(t, domain.RoleUser)

	afterAdmins, err := repo.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	afterAll, err := repo.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, beforeAdmins+1, afterAdmins)
	assert.Equal(t, beforeAll+2, afterAll)

	admins, err := repo.List(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	for _, u := range admins {
		assert.Equal(t, domain.RoleAdmin, u.Role)
	}
	assert.Equal(t, admin.ID, admins[0].ID, "newest admin first")
}
