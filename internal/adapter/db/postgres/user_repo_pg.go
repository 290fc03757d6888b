package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-directory/internal/domain/user"
	pkgerrors "user-directory/pkg/errors"
)

// UserRepoPG implements the Repository interface using PostgreSQL and GORM.
//
// Absent rows are reported as (nil, nil) on reads, updates, and deletes;
// callers decide whether absence is an error. Uniqueness conflicts are
// reported as *pkgerrors.AlreadyExistsError and never leave a partial write.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"not null;uniqueIndex"`
	MobileNumber string `gorm:"column:mobile_number;not null;uniqueIndex"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func toDomain(m *UserSchema) *user.User {
	return &user.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		MobileNumber: m.MobileNumber,
	}
}

// Create inserts a new user and returns it with its assigned ID.
// The uniqueness check and the insert run in one transaction, so a
// conflict leaves the table exactly as it was.
func (r *UserRepoPG) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := UserSchema{
		Name:         u.Name,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&UserSchema{}).
			Where("email = ? OR mobile_number = ?", u.Email, u.MobileNumber).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check uniqueness: %w", err)
		}
		if count > 0 {
			return pkgerrors.ErrUserExists
		}

		if err := tx.Create(&model).Error; err != nil {
			// The unique indexes are the final arbiter for racing writers.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return pkgerrors.ErrUserExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.Warn("create user failed", zap.String("email", u.Email), zap.Error(err))
		return nil, err
	}

	r.log.Info("user created in db", zap.Int64("id", model.ID))
	return toDomain(&model), nil
}

// Update overwrites the mutable fields of an existing user and returns the
// updated record. Returns (nil, nil) when no user has the given ID. A
// uniqueness conflict rolls back and leaves the original row unchanged.
func (r *UserRepoPG) Update(ctx context.Context, id int64, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	var updated *user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserSchema
		if err := tx.First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // absent: updated stays nil
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		var count int64
		if err := tx.Model(&UserSchema{}).
			Where("id <> ? AND (email = ? OR mobile_number = ?)", id, u.Email, u.MobileNumber).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check uniqueness: %w", err)
		}
		if count > 0 {
			return pkgerrors.ErrUserExists
		}

		model.Name = u.Name
		model.Email = u.Email
		model.MobileNumber = u.MobileNumber
		if err := tx.Save(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return pkgerrors.ErrUserExists
			}
			return fmt.Errorf("failed to update user: %w", err)
		}

		updated = toDomain(&model)
		return nil
	})
	if err != nil {
		r.log.Warn("update user failed", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	if updated != nil {
		r.log.Info("user updated in db", zap.Int64("id", updated.ID))
	}
	return updated, nil
}

// Delete removes a user by ID and returns the pre-deletion snapshot.
// Returns (nil, nil) when no user has the given ID.
func (r *UserRepoPG) Delete(ctx context.Context, id int64) (*user.User, error) {
	var snapshot *user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserSchema
		if err := tx.First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		if err := tx.Delete(&UserSchema{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		snapshot = toDomain(&model)
		return nil
	})
	if err != nil {
		r.log.Error("delete user failed", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	if snapshot != nil {
		r.log.Info("user deleted from db", zap.Int64("id", id))
	}
	return snapshot, nil
}

// GetByID retrieves a user by their unique ID. Returns (nil, nil) when absent.
func (r *UserRepoPG) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, nil
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toDomain(&model), nil
}

// GetByEmail retrieves a user by email address. Returns (nil, nil) when absent.
func (r *UserRepoPG) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error("failed to get user by email from db", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return toDomain(&model), nil
}

// GetByMobile retrieves a user by mobile number. Returns (nil, nil) when absent.
func (r *UserRepoPG) GetByMobile(ctx context.Context, mobile string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("mobile_number = ?", mobile).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error("failed to get user by mobile from db", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by mobile: %w", err)
	}
	return toDomain(&model), nil
}

// List retrieves all users ordered by ID.
func (r *UserRepoPG) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i := range models {
		users[i] = *toDomain(&models[i])
	}
	return users, nil
}
