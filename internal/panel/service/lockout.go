package service

import "time"

// Lockout defaults, used when the settings document does not override them.
const (
	DefaultMaxFailedLogins = 5
	DefaultLockoutDuration = 30 * time.Minute
)

// LockoutPolicy governs the failed-login counter. A user is locked when the
// counter reaches MaxFailed; the lock holds for LockFor from the failing
// attempt. An expired lock is left in place and cleared lazily on the next
// successful login.
type LockoutPolicy struct {
	MaxFailed int
	LockFor   time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFailed: DefaultMaxFailedLogins,
		LockFor:   DefaultLockoutDuration,
	}
}

// normalize guards against zero-valued policies coming from an unset or
// partially filled settings document.
func (p LockoutPolicy) normalize() LockoutPolicy {
	if p.MaxFailed <= 0 {
		p.MaxFailed = DefaultMaxFailedLogins
	}
	if p.LockFor <= 0 {
		p.LockFor = DefaultLockoutDuration
	}
	return p
}
