// Package models provides data model definitions for the lifetrack store.
package models

import (
	"encoding/json"
	"time"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/uuid"
)

// Entity is implemented by every record kept in the entity store.
type Entity interface {
	Meta() *Base
	TableName() string
	Validate() error
}

// Base holds the metadata shared by every record.
//
// The soft-delete state is DeletedAt alone: nil is active, non-nil is
// deleted at that instant.
type Base struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

// Meta returns b itself so embedding types satisfy Entity.
func (b *Base) Meta() *Base {
	return b
}

// IsDeleted reports whether the record is soft-deleted.
func (b *Base) IsDeleted() bool {
	return b.DeletedAt != nil
}

// MarkDeleted moves the record to the deleted state.
func (b *Base) MarkDeleted(at time.Time) {
	at = Timestamp(at)
	b.DeletedAt = &at
}

// MarkActive moves the record back to the active state.
func (b *Base) MarkActive() {
	b.DeletedAt = nil
}

// validate records the metadata problems of b into v.
func (b *Base) validate(v *apperrors.ValidationError) {
	if !uuid.IsValid(b.ID) {
		v.Add("id", "must be a UUID v4")
	}
	if b.UserID == "" {
		v.Add("userId", "is required")
	}
	if b.CreatedAt.IsZero() {
		v.Add("createdAt", "is required")
	}
	if b.UpdatedAt.IsZero() {
		v.Add("updatedAt", "is required")
	} else if b.UpdatedAt.Before(b.CreatedAt) {
		v.Add("updatedAt", "must not be before createdAt")
	}
	if b.DeletedAt != nil && b.DeletedAt.IsZero() {
		v.Add("deletedAt", "must be a valid instant when set")
	}
}

// Timestamp normalises t to the precision kept by the store: UTC, whole
// milliseconds.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FromMillis converts a stored unix-millisecond value back to a Timestamp.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Snapshot encodes e as a full-record payload: the entity JSON plus the
// derived isDeleted flag.
func Snapshot(e Entity) (json.RawMessage, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	deleted, _ := json.Marshal(e.Meta().IsDeleted())
	fields["isDeleted"] = deleted
	return json.Marshal(fields)
}

// Clone returns a deep copy of e made through its JSON form.
func Clone[T any, P interface {
	*T
	Entity
}](e P) (P, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := P(new(T))
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// newValidation starts a ValidationError for e, already holding the
// metadata problems.
func newValidation(e Entity) *apperrors.ValidationError {
	v := &apperrors.ValidationError{Entity: e.TableName()}
	e.Meta().validate(v)
	return v
}

func validReference(v *apperrors.ValidationError, field, value string, required bool) {
	if value == "" {
		if required {
			v.Add(field, "is required")
		}
		return
	}
	if !uuid.IsReference(value) {
		v.Add(field, "must be a UUID")
	}
}
