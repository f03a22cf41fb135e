package models

import "github.com/google/uuid"

// UserRecord is the read-only identity projection the engine consumes.
// Password hashes are opaque here; verification belongs to the identity
// service.
type UserRecord struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	PasswordHash string    `db:"password_hash"`
}

// Realm is the tenant boundary a token manager operates in. Each realm has
// its own issuer, audience, required custom claims and signing secrets;
// secrets live in the security package to keep this type inert.
type Realm struct {
	// Owner is the tenant identifier embedded in every token's realm claim.
	Owner string
	// Issuer and Audience are compared verbatim during claims validation.
	Issuer   string
	Audience string
	// CustomClaims are tenant-configured key/value pairs stamped into every
	// issued token and required to match on validation.
	CustomClaims map[string]string
}
