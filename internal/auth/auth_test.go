package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nconklindev/harmony/internal/errs"
)

type brokenResolver struct{}

func (brokenResolver) IsAdmin(context.Context, uuid.UUID) (bool, error) {
	return true, errors.New("database unavailable")
}

func TestRequire(t *testing.T) {
	assert.NoError(t, Require(Actor{Elevated: true}, "save"))

	err := Require(Actor{ID: uuid.New()}, "save")
	assert.True(t, errs.IsKind(err, errs.Authorization))
	assert.Contains(t, err.Error(), "save")
}

func TestResolve(t *testing.T) {
	admin, user := uuid.New(), uuid.New()
	static := Static{Users: map[uuid.UUID]bool{admin: true}}

	tests := []struct {
		name     string
		resolver RoleResolver
		id       uuid.UUID
		want     Actor
	}{
		{"Admin", static, admin, Actor{ID: admin, Elevated: true}},
		{"Plain user", static, user, Actor{ID: user}},
		{"Everyone elevated", Static{All: true}, user, Actor{ID: user, Elevated: true}},
		{"No identity", Static{All: true}, uuid.Nil, Actor{}},
		{"No resolver", nil, admin, Actor{ID: admin}},
		{"Lookup failure", brokenResolver{}, admin, Actor{ID: admin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(context.Background(), tt.resolver, tt.id, nil))
		})
	}
}

func TestParseID(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id, ParseID(id.String()))
	assert.Equal(t, uuid.Nil, ParseID("not-a-uuid"))
	assert.False(t, Actor{}.HasIdentity())
	assert.True(t, Actor{ID: id}.HasIdentity())
}
