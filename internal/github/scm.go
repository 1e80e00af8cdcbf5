package github

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/sync/singleflight"

	"scmrest/internal/apierr"
	"scmrest/internal/credentials"
	"scmrest/internal/scm"
)

// Scm is a GitHub (or GitHub Enterprise) endpoint whose tokens are kept in a
// credential store. The credential a user stores by validating a token has
// the SCM's id.
type Scm struct {
	id     string
	apiURL string
	store  credentials.Store
	opts   []Option

	// orgs shares one listing between concurrent requests for the same credential.
	orgs singleflight.Group

	// GitHub budgets requests per token, so clients for one token share a limiter.
	limitsMu sync.Mutex
	limits   map[[sha256.Size]byte]*RateLimit
}

// orgListTimeout bounds a shared organization listing, which outlives the
// request that started it.
const orgListTimeout = 2 * time.Minute

var _ scm.Scm = (*Scm)(nil)

// NewScm returns the SCM id talking to apiURL (github.com when empty).
// opts are applied to every client it creates.
func NewScm(id, apiURL string, store credentials.Store, opts ...Option) *Scm {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}
	return &Scm{id: id, apiURL: apiURL, store: store, opts: opts}
}

func (s *Scm) ID() string  { return s.id }
func (s *Scm) URI() string { return s.apiURL }

func (s *Scm) CredentialID(ctx context.Context, user string) (string, error) {
	_, err := s.store.Get(ctx, user, s.id)
	if errors.Is(err, credentials.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.id, nil
}

// Client returns a client authenticated with token. Clients for the same
// token share rate limit state.
func (s *Scm) Client(ctx context.Context, token string) (*Client, error) {
	opts := append([]Option{WithBaseURL(s.apiURL), WithRateLimit(s.rateLimit(token))}, s.opts...)
	return NewClient(ctx, token, opts...)
}

func (s *Scm) rateLimit(token string) *RateLimit {
	key := sha256.Sum256([]byte(token))
	s.limitsMu.Lock()
	defer s.limitsMu.Unlock()
	if s.limits == nil {
		s.limits = make(map[[sha256.Size]byte]*RateLimit)
	}
	l, ok := s.limits[key]
	if !ok {
		l = NewRateLimit()
		s.limits[key] = l
	}
	return l
}

// token returns the secret of user's credential credentialID.
func (s *Scm) token(ctx context.Context, user, credentialID string) (string, error) {
	if credentialID == "" {
		credentialID = s.id
	}
	c, err := s.store.Get(ctx, user, credentialID)
	if errors.Is(err, credentials.ErrNotFound) {
		return "", apierr.BadRequest("No credential %s found for user %s. Credential id must be provided as %s query parameter or %s http header",
			credentialID, user, scm.CredentialIDParam, scm.CredentialIDHeader)
	}
	if err != nil {
		return "", apierr.Unexpected(err, "Failed to read credential %s", credentialID)
	}
	return c.Secret, nil
}

var requiredScopes = []string{"repo"}

func (s *Scm) ValidateAndCreate(ctx context.Context, user string, req scm.ValidateRequest) (*scm.ValidateResult, error) {
	token := strings.TrimSpace(req.AccessToken)
	if token == "" {
		return nil, apierr.BadRequestWithErrors("accessToken is required", apierr.Error{
			Field:   "accessToken",
			Code:    apierr.CodeMissing,
			Message: "accessToken is required",
		})
	}

	c, err := s.Client(ctx, token)
	if err != nil {
		return nil, apierr.Unexpected(err, "Failed to create GitHub client")
	}
	me, resp, err := c.Client.Users.Get(ctx, "")
	if err != nil {
		if statusOf(resp, err) == http.StatusUnauthorized {
			return nil, apierr.Unauthorized("Invalid accessToken")
		}
		return nil, apierr.Unexpected(err, "Failed to validate accessToken: %s", describe(err))
	}

	if missing := missingScopes(resp.Header.Get("X-OAuth-Scopes")); len(missing) > 0 {
		return nil, apierr.Forbidden("missing scopes %s on accessToken; required scopes are 'repo' and 'user:email' or 'user'",
			strings.Join(missing, ", "))
	}

	cred := credentials.Credential{
		User:        user,
		ID:          s.id,
		Username:    me.GetLogin(),
		Secret:      token,
		Domain:      s.apiURL,
		Description: fmt.Sprintf("GitHub access token for %s", me.GetLogin()),
	}
	if err := s.store.Put(ctx, cred); err != nil {
		return nil, apierr.Unexpected(err, "Failed to save credential %s", s.id)
	}
	return &scm.ValidateResult{CredentialID: s.id}, nil
}

// missingScopes checks a token's X-OAuth-Scopes against the scopes a save
// needs: repo, and user or user:email.
func missingScopes(header string) []string {
	granted := make(map[string]bool)
	for _, scope := range strings.Split(header, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			granted[scope] = true
		}
	}
	var missing []string
	for _, scope := range requiredScopes {
		if !granted[scope] {
			missing = append(missing, scope)
		}
	}
	if !granted["user"] && !granted["user:email"] {
		missing = append(missing, "user:email")
	}
	return missing
}

// Organizations lists the user's own account followed by the organizations
// they belong to, windowed by page.
func (s *Scm) Organizations(ctx context.Context, user, credentialID string, page scm.Page) ([]scm.Organization, error) {
	token, err := s.token(ctx, user, credentialID)
	if err != nil {
		return nil, err
	}
	if credentialID == "" {
		credentialID = s.id
	}
	ch := s.orgs.DoChan(user+"\x00"+credentialID, func() (any, error) {
		walkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), orgListTimeout)
		defer cancel()
		return s.allOrganizations(walkCtx, token)
	})

	select {
	case <-ctx.Done():
		return nil, apierr.Unexpected(ctx.Err(), "Failed to list organizations: %v", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		orgs := res.Val.([]scm.Organization)
		from, to := page.Window(len(orgs))
		return append([]scm.Organization(nil), orgs[from:to]...), nil
	}
}

func (s *Scm) allOrganizations(ctx context.Context, token string) ([]scm.Organization, error) {
	c, err := s.Client(ctx, token)
	if err != nil {
		return nil, apierr.Unexpected(err, "Failed to create GitHub client")
	}

	me, resp, err := c.Client.Users.Get(ctx, "")
	if err != nil {
		return nil, organizationsFault(resp, err)
	}
	orgs := []scm.Organization{{Name: me.GetLogin(), Avatar: me.GetAvatarURL()}}

	opts := &github.ListOptions{PerPage: 100}
	for {
		list, resp, err := c.Client.Organizations.List(ctx, "", opts)
		if err != nil {
			return nil, organizationsFault(resp, err)
		}
		for _, o := range list {
			orgs = append(orgs, scm.Organization{Name: o.GetLogin(), Avatar: o.GetAvatarURL()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return orgs, nil
}

func organizationsFault(resp *github.Response, err error) error {
	switch statusOf(resp, err) {
	case http.StatusUnauthorized:
		return apierr.Unauthorized("Invalid GitHub accessToken")
	case http.StatusForbidden:
		return apierr.Forbidden("GitHub accessToken does not have required scopes: %s", describe(err))
	}
	return apierr.Unexpected(err, "Failed to list organizations: %s", describe(err))
}

// SaveContent runs req with user's credential credentialID.
func (s *Scm) SaveContent(ctx context.Context, user, credentialID, owner, repo string, req *SaveFileRequest) (*File, error) {
	token, err := s.token(ctx, user, credentialID)
	if err != nil {
		return nil, err
	}
	c, err := s.Client(ctx, token)
	if err != nil {
		return nil, apierr.Unexpected(err, "Failed to create GitHub client")
	}
	return req.Save(ctx, c, owner, repo)
}
