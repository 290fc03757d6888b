package user

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"user-directory/internal/adapter/cache"
	domain "user-directory/internal/domain/user"
	pkgerrors "user-directory/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// Repository defines the interface for user data access operations.
// Absent records are reported as (nil, nil), not as errors; this layer
// converts absence into typed not-found errors for the transport layer.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)           // Insert and return with assigned ID
	GetByID(ctx context.Context, id int64) (*domain.User, error)                // Point lookup by ID
	GetByEmail(ctx context.Context, email string) (*domain.User, error)         // Lookup by unique email
	GetByMobile(ctx context.Context, mobile string) (*domain.User, error)       // Lookup by unique mobile number
	Update(ctx context.Context, id int64, u *domain.User) (*domain.User, error) // Overwrite mutable fields
	Delete(ctx context.Context, id int64) (*domain.User, error)                 // Remove and return snapshot
	List(ctx context.Context) ([]domain.User, error)                            // All users, ordered by ID
}

// UserUsecase implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type UserUsecase struct {
	repo     Repository          // Repository for data access
	cache    cache.UserCache     // Cache for point lookups, nil disables caching
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

// New creates a new instance of UserUsecase with the provided repository,
// cache, and logger. If cache is nil, caching is disabled.
func New(r Repository, c cache.UserCache, log *zap.Logger) *UserUsecase {
	return &UserUsecase{repo: r, cache: c, log: log, validate: validator.New()}
}

// formatValidationError converts validator.ValidationErrors into a typed validation error.
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
			case "gt":
				messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
			default:
				messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
			}
		}
		return pkgerrors.NewValidationError("", strings.Join(messages, ", "))
	}
	return err
}

// checkUnique verifies that neither email nor mobile number belongs to a
// different user than excludeID. excludeID 0 means any match is a conflict.
func (uc *UserUsecase) checkUnique(ctx context.Context, email, mobile string, excludeID int64) error {
	existing, err := uc.repo.GetByEmail(ctx, email)
	if err != nil {
		uc.log.Error("failed to check email uniqueness", zap.String("email", email), zap.Error(err))
		return pkgerrors.NewInternalError("failed to validate email uniqueness", err)
	}
	if existing != nil && existing.ID != excludeID {
		uc.log.Warn("email already taken", zap.String("email", email), zap.Int64("existing_id", existing.ID))
		return pkgerrors.ErrUserExists
	}

	existing, err = uc.repo.GetByMobile(ctx, mobile)
	if err != nil {
		uc.log.Error("failed to check mobile uniqueness", zap.Error(err))
		return pkgerrors.NewInternalError("failed to validate mobile uniqueness", err)
	}
	if existing != nil && existing.ID != excludeID {
		uc.log.Warn("mobile number already taken", zap.Int64("existing_id", existing.ID))
		return pkgerrors.ErrUserExists
	}

	return nil
}

// CreateUser creates a new user after validating the request and checking
// email and mobile number uniqueness.
func (uc *UserUsecase) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	uc.log.Info("creating user", zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		uc.log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	if err := uc.checkUnique(ctx, in.Email, in.MobileNumber, 0); err != nil {
		return nil, err
	}

	created, err := uc.repo.Create(ctx, &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		MobileNumber: in.MobileNumber,
	})
	if err != nil {
		uc.log.Error("failed to create user", zap.Error(err))
		return nil, err
	}

	return toDTO(created), nil
}

// GetUser retrieves a user by ID. It uses a cache-aside pattern: check cache
// first, then database on cache miss.
func (uc *UserUsecase) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	if in.ID <= 0 {
		uc.log.Warn("get user validation failed", zap.Int64("id", in.ID))
		return nil, pkgerrors.NewValidationError("id", "must be a positive integer")
	}

	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, in.ID)
		if err != nil {
			uc.log.Warn("cache get error, falling back to database", zap.Int64("id", in.ID), zap.Error(err))
		} else if cached != nil {
			uc.log.Debug("user retrieved from cache", zap.Int64("id", in.ID))
			return toDTO(cached), nil
		}
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		uc.log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}
	if u == nil {
		return nil, pkgerrors.ErrUserNotFound
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, u); err != nil {
			uc.log.Warn("failed to cache user", zap.Int64("id", in.ID), zap.Error(err))
		}
	}

	return toDTO(u), nil
}

// ListUsers retrieves all users ordered by ID.
func (uc *UserUsecase) ListUsers(ctx context.Context) ([]User, error) {
	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		uc.log.Error("failed to list users", zap.Error(err))
		return nil, err
	}

	users := make([]User, len(domainUsers))
	for i := range domainUsers {
		users[i] = *toDTO(&domainUsers[i])
	}
	return users, nil
}

// UpdateUser overwrites the mutable fields of an existing user after
// validating the request and re-checking uniqueness against other users.
// It invalidates the cache after a successful update.
func (uc *UserUsecase) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	uc.log.Info("updating user", zap.Int64("id", in.ID), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		uc.log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	if err := uc.checkUnique(ctx, in.Email, in.MobileNumber, in.ID); err != nil {
		return nil, err
	}

	updated, err := uc.repo.Update(ctx, in.ID, &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		MobileNumber: in.MobileNumber,
	})
	if err != nil {
		uc.log.Error("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}
	if updated == nil {
		return nil, pkgerrors.ErrUserNotFound
	}

	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, in.ID); err != nil {
			uc.log.Warn("failed to invalidate cache after update", zap.Int64("id", in.ID), zap.Error(err))
		}
	}

	return toDTO(updated), nil
}

// DeleteUser removes a user and returns the pre-deletion snapshot.
// It invalidates the cache after a successful deletion.
func (uc *UserUsecase) DeleteUser(ctx context.Context, in DeleteUserRequest) (*User, error) {
	uc.log.Info("deleting user", zap.Int64("id", in.ID))

	if in.ID <= 0 {
		uc.log.Warn("delete user validation failed", zap.Int64("id", in.ID))
		return nil, pkgerrors.NewValidationError("id", "must be a positive integer")
	}

	deleted, err := uc.repo.Delete(ctx, in.ID)
	if err != nil {
		uc.log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}
	if deleted == nil {
		return nil, pkgerrors.ErrUserNotFound
	}

	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, in.ID); err != nil {
			uc.log.Warn("failed to invalidate cache after delete", zap.Int64("id", in.ID), zap.Error(err))
		}
	}

	return toDTO(deleted), nil
}

func toDTO(u *domain.User) *User {
	return &User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
	}
}
