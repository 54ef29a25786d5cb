// Package auth exposes the identity of the signed-in technician. The actual
// authentication provider lives outside this service; the synchronizer only
// needs a user id to stamp onto records and must never block waiting for one.
package auth

// Identity resolves the current user. An empty id means "unknown"; callers
// proceed without attribution.
type Identity interface {
	CurrentUserID() string
}

// Static is the fixed-identity provider used for single-technician
// deployments where the user is configured at startup.
type Static struct {
	UserID string
}

func (s Static) CurrentUserID() string { return s.UserID }

// Anonymous never resolves a user.
var Anonymous Identity = Static{}
