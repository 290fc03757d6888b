package user

// User represents a user record in the directory.
type User struct {
	ID           int64  // ID is the unique identifier for the user
	Name         string // Name is the full name of the user
	Email        string // Email is the unique email address of the user
	MobileNumber string // MobileNumber is the unique mobile number of the user
}
