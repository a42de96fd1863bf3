// Package auth carries the acting operator through every mutating entry point
// and resolves whether that operator holds the elevated privilege.
package auth

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nconklindev/harmony/internal/errs"
)

// Actor is the operator performing an operation. A nil ID means the identity
// could not be resolved.
type Actor struct {
	ID       uuid.UUID
	Elevated bool
}

// HasIdentity reports whether the actor carries a usable id.
func (a Actor) HasIdentity() bool { return a.ID != uuid.Nil }

// Require fails with an authorization error unless the actor is elevated.
func Require(a Actor, op string) error {
	if !a.Elevated {
		return errs.New(errs.Authorization, op, "elevated privilege required")
	}
	return nil
}

// RoleResolver answers whether a user holds the admin role.
type RoleResolver interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Static elevates a fixed set of users, or everyone when All is set.
type Static struct {
	All   bool
	Users map[uuid.UUID]bool
}

func (s Static) IsAdmin(_ context.Context, userID uuid.UUID) (bool, error) {
	return s.All || s.Users[userID], nil
}

// Resolve builds the actor for userID. Lookup failures are logged and leave
// the actor unelevated.
func Resolve(ctx context.Context, r RoleResolver, userID uuid.UUID, logger *zap.Logger) Actor {
	actor := Actor{ID: userID}
	if r == nil || userID == uuid.Nil {
		return actor
	}

	ok, err := r.IsAdmin(ctx, userID)
	if err != nil {
		if logger != nil {
			logger.Warn("Role lookup failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
		return actor
	}
	actor.Elevated = ok
	return actor
}

// ParseID parses a user id, returning uuid.Nil for anything malformed.
func ParseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
