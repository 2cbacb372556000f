package domain

import "time"

// Roles known to the panel.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           string
	Username     string // unique, case-sensitive
	Email        string
	PasswordHash string // argon2id PHC encoded
	Role         string

	// TOTPSecret is set during pending enrollment and kept once enabled.
	// TOTPEnabled is only flipped after the user proves possession of the
	// secret; a pending secret alone does not gate login.
	TOTPSecret  *string
	TOTPEnabled bool

	// AllowedIPs restricts login sources when non-empty.
	AllowedIPs []string

	// FailedLoginAttempts and LockedUntil drive the lockout policy. An
	// expired lock is left in place until the next successful login.
	FailedLoginAttempts int
	LockedUntil         *time.Time

	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the user's lock window covers now.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// IPAllowed reports whether ip may log in. An empty allowlist means
// unrestricted.
func (u User) IPAllowed(ip string) bool {
	if len(u.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range u.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}
