package user

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	Name         string `validate:"required"`
	Email        string `validate:"required"`
	MobileNumber string `validate:"required"`
}

// UpdateUserRequest represents the request payload for updating an existing user.
// All three mutable fields are overwritten; ID is immutable.
type UpdateUserRequest struct {
	ID           int64  `validate:"required,gt=0"`
	Name         string `validate:"required"`
	Email        string `validate:"required"`
	MobileNumber string `validate:"required"`
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID           int64
	Name         string
	Email        string
	MobileNumber string
}
