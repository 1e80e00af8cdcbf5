package scm

import (
	"context"
	"net/http"
	"strings"
)

const (
	// CredentialIDParam selects the credential; it overrides CredentialIDHeader.
	CredentialIDParam  = "credentialId"
	CredentialIDHeader = "X-CREDENTIAL-NAME"

	// Validate is the path segment of the validate-and-create endpoint.
	Validate = "validate"
)

// Scm is a source control provider reachable through one API endpoint.
type Scm interface {
	ID() string
	URI() string

	// CredentialID returns the id of user's credential for this SCM, or "" when
	// the user has not stored one.
	CredentialID(ctx context.Context, user string) (string, error)

	Organizations(ctx context.Context, user, credentialID string, page Page) ([]Organization, error)

	// ValidateAndCreate checks the access token in req against the provider and
	// stores it as user's credential for this SCM.
	ValidateAndCreate(ctx context.Context, user string, req ValidateRequest) (*ValidateResult, error)
}

type Organization struct {
	Name   string `export:"name" json:"name"`
	Avatar string `export:"avatar" json:"avatar"`
}

type ValidateRequest struct {
	AccessToken string `json:"accessToken"`
}

type ValidateResult struct {
	CredentialID string `export:"credentialId" json:"credentialId"`
}

// Resource is the exported form of an Scm.
type Resource struct {
	ID           string  `export:"id"`
	URI          string  `export:"uri"`
	CredentialID *string `export:"credentialId,skipnull"`
}

func (Resource) ExportClassName() string { return "io.scmrest.Scm" }

// Describe builds the Resource for s as seen by user.
func Describe(ctx context.Context, s Scm, user string) (Resource, error) {
	r := Resource{ID: s.ID(), URI: s.URI()}
	id, err := s.CredentialID(ctx, user)
	if err != nil {
		return r, err
	}
	if id != "" {
		r.CredentialID = &id
	}
	return r, nil
}

// SelectCredential returns the credential id a request asks for: the
// credentialId query parameter, then the X-CREDENTIAL-NAME header, then
// fallback.
func SelectCredential(r *http.Request, fallback string) string {
	if r != nil {
		if id := strings.TrimSpace(r.URL.Query().Get(CredentialIDParam)); id != "" {
			return id
		}
		if id := strings.TrimSpace(r.Header.Get(CredentialIDHeader)); id != "" {
			return id
		}
	}
	return fallback
}
