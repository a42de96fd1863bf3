package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nconklindev/harmony/internal/types"
)

// Candidate is a row of the job_candidates table.
type Candidate struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	ExternalID *string        `db:"external_id" json:"externalId"`
	FirstName  *string        `db:"first_name" json:"firstName"`
	LastName   *string        `db:"last_name" json:"lastName"`
	Email      *string        `db:"email" json:"email"`
	Phone      *string        `db:"phone" json:"phone"`
	Skills     pq.StringArray `db:"skills" json:"skills"`
	Experience *string        `db:"experience" json:"experience"`
	Education  *string        `db:"education" json:"education"`
	SourceFile *string        `db:"source_file" json:"sourceFile"`
	Notes      *string        `db:"notes" json:"notes"`
	CreatedBy  uuid.UUID      `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// FromRow translates a unified row into a candidate owned by createdBy.
// Null and empty values become NULL; skills is stored as a one-element array,
// or empty when unset.
func FromRow(row types.MappedRow, createdBy uuid.UUID) Candidate {
	c := Candidate{
		ID:         uuid.New(),
		ExternalID: text(row.Get("candidateId")),
		FirstName:  text(row.Get("firstName")),
		LastName:   text(row.Get("lastName")),
		Email:      text(row.Get("email")),
		Phone:      text(row.Get("phone")),
		Skills:     pq.StringArray{},
		Experience: text(row.Get("experience")),
		Education:  text(row.Get("education")),
		CreatedBy:  createdBy,
	}
	if s := text(row.Get("skills")); s != nil {
		c.Skills = pq.StringArray{*s}
	}
	if row.Source != "" {
		src := row.Source
		c.SourceFile = &src
	}
	return c
}

func text(c types.Cell) *string {
	if c.Blank() {
		return nil
	}
	s := c.String()
	return &s
}
