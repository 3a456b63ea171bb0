package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/pizza-service/internal/model"
	"github.com/iliyamo/pizza-service/internal/repository"
)

// AdminStore is the part of the user repository the seeder needs.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, name, email, password string, roles model.Roles) (model.User, error)
}

// EnsureAdmin creates an admin user with the given credentials unless a
// user with that email already exists.  It is a no-op when email is
// empty.
func EnsureAdmin(ctx context.Context, users AdminStore, name, email, password string, log *zap.Logger) error {
	if email == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	u, err := users.Create(ctx, name, email, password, model.Roles{{Role: model.RoleAdmin}})
	if errors.Is(err, repository.ErrEmailExists) {
		return nil // another instance won the race
	}
	if err != nil {
		return err
	}
	log.Info("seeded admin user", zap.Uint64("id", u.ID), zap.String("email", u.Email))
	return nil
}
