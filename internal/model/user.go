package model

import "time"

// User represents an application user record as stored in the
// `users` table. UserID is the stable external identifier handed to
// clients (the auto-increment ID stays internal to the database).
// At least one of Email/Phone is populated; both are unique when set.
//
// Fields:
//  ID           – primary key (internal, never exposed).
//  UserID       – external identifier ("user_<ts>_<suffix>" / "admin_...").
//  FirstName    – given name.
//  LastName     – family name.
//  Email        – unique email address (may be empty when Phone is set).
//  Phone        – unique phone number (may be empty when Email is set).
//  PasswordHash – bcrypt hashed password.
//  IsAdmin      – administrative privilege flag.
//  IsVerified   – whether the contact method has been verified.
//  Newsletter   – newsletter opt-in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	UserID       string    // users.user_id
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Email        string    // users.email
	Phone        string    // users.phone
	PasswordHash string    // users.password_hash
	IsAdmin      bool      // users.is_admin
	IsVerified   bool      // users.is_verified
	Newsletter   bool      // users.newsletter
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// FullName joins first and last name for display purposes.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ContactType reports which contact method the account was registered
// with. Email wins when both are present.
func (u User) ContactType() string {
	if u.Email != "" {
		return "email"
	}
	return "phone"
}
