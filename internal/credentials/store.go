package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user has no credential with the given id.
var ErrNotFound = errors.New("credentials: not found")

// Credential is a username/secret pair owned by one user. Domain is the API
// endpoint the secret is valid for.
type Credential struct {
	User        string
	ID          string
	Username    string
	Secret      string
	Domain      string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists credentials per user. Put creates or replaces.
type Store interface {
	Get(ctx context.Context, user, id string) (*Credential, error)
	Put(ctx context.Context, c Credential) error
	Delete(ctx context.Context, user, id string) error
	List(ctx context.Context, user string) ([]Credential, error)
	Close() error
}

func validate(c Credential) error {
	if c.User == "" {
		return errors.New("credentials: user is required")
	}
	if c.ID == "" {
		return errors.New("credentials: id is required")
	}
	return nil
}
