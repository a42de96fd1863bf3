package fields

import (
	"slices"
	"strings"

	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/types"
)

// Registry is the ordered set of standard field names rows are unified into.
// It is not safe for concurrent use; the workspace serializes access.
type Registry struct {
	names []string
}

// New returns a registry seeded with names. Blank and repeated seeds are dropped.
func New(seed ...string) *Registry {
	r := &Registry{}
	for _, name := range seed {
		_ = r.Add(name)
	}
	return r
}

// NewDefault returns a registry seeded with the candidate fields.
func NewDefault() *Registry {
	return New(types.DefaultFields...)
}

// Add appends a field. The name is trimmed first.
func (r *Registry) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.New(errs.Validation, "add field", "field name cannot be empty")
	}
	if r.Has(name) {
		return errs.New(errs.Validation, "add field", "field \""+name+"\" already exists")
	}
	r.names = append(r.names, name)
	return nil
}

// Remove deletes a field if present. Mappings that target it are left alone.
func (r *Registry) Remove(name string) bool {
	i := slices.Index(r.names, name)
	if i < 0 {
		return false
	}
	r.names = slices.Delete(r.names, i, i+1)
	return true
}

func (r *Registry) Has(name string) bool {
	return slices.Contains(r.names, name)
}

// List returns a snapshot of the current fields in order.
func (r *Registry) List() []string {
	return slices.Clone(r.names)
}

func (r *Registry) Len() int { return len(r.names) }
