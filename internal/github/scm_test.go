package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scmrest/internal/apierr"
	"scmrest/internal/credentials"
	"scmrest/internal/scm"
)

func newTestScm(t *testing.T, mux *http.ServeMux) (*Scm, credentials.Store) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	store := credentials.NewMemoryStore()
	return NewScm("github", server.URL, store), store
}

func userHandler(scopes string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			writeJSON(w, http.StatusUnauthorized, `{"message":"Bad credentials"}`)
			return
		}
		w.Header().Set("X-OAuth-Scopes", scopes)
		writeJSON(w, http.StatusOK, `{"login":"octocat","avatar_url":"https://avatars.example.com/octocat"}`)
	}
}

func TestScm_ValidateAndCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("stores credential", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /user", userHandler("repo, user:email, gist"))
		s, store := newTestScm(t, mux)

		res, err := s.ValidateAndCreate(ctx, "alice", scm.ValidateRequest{AccessToken: " good-token "})
		if err != nil {
			t.Fatalf("ValidateAndCreate: %v", err)
		}
		if res.CredentialID != "github" {
			t.Fatalf("credentialId = %q", res.CredentialID)
		}
		c, err := store.Get(ctx, "alice", "github")
		if err != nil {
			t.Fatalf("credential not stored: %v", err)
		}
		if c.Secret != "good-token" || c.Username != "octocat" || c.Domain != s.URI() {
			t.Fatalf("unexpected credential: %+v", c)
		}
		if id, err := s.CredentialID(ctx, "alice"); err != nil || id != "github" {
			t.Fatalf("CredentialID = %q, %v", id, err)
		}
		if id, err := s.CredentialID(ctx, "bob"); err != nil || id != "" {
			t.Fatalf("CredentialID(bob) = %q, %v", id, err)
		}
	})

	for _, tc := range []struct {
		name       string
		scopes     string
		token      string
		wantStatus int
		wantMsg    string
	}{
		{name: "missing token", token: "", wantStatus: http.StatusBadRequest, wantMsg: "accessToken is required"},
		{name: "bad token", scopes: "repo,user", token: "bad-token", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid accessToken"},
		{name: "no repo scope", scopes: "user", token: "good-token", wantStatus: http.StatusForbidden, wantMsg: "missing scopes repo"},
		{name: "no user scope", scopes: "repo", token: "good-token", wantStatus: http.StatusForbidden, wantMsg: "missing scopes user:email"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /user", userHandler(tc.scopes))
			s, store := newTestScm(t, mux)

			_, err := s.ValidateAndCreate(ctx, "alice", scm.ValidateRequest{AccessToken: tc.token})
			se, ok := apierr.As(err)
			if !ok || se.Status() != tc.wantStatus {
				t.Fatalf("expected %d, got %v", tc.wantStatus, err)
			}
			if !strings.HasPrefix(se.Msg.Message, tc.wantMsg) {
				t.Fatalf("message = %q, want prefix %q", se.Msg.Message, tc.wantMsg)
			}
			if list, _ := store.List(ctx, "alice"); len(list) != 0 {
				t.Fatalf("nothing must be stored on failure: %+v", list)
			}
		})
	}
}

func orgsMux(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", userHandler("repo,user"))
	mux.HandleFunc("GET /user/orgs", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Errorf("per_page = %q, want 100", got)
		}
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/user/orgs?page=2&per_page=100>; rel="next"`, r.Host))
			writeJSON(w, http.StatusOK, `[{"login":"org1","avatar_url":"a1"}]`)
		case "2":
			writeJSON(w, http.StatusOK, `[{"login":"org2","avatar_url":"a2"},{"login":"org3","avatar_url":"a3"}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	return mux
}

func TestScm_Organizations(t *testing.T) {
	ctx := context.Background()
	s, store := newTestScm(t, orgsMux(t))
	if err := store.Put(ctx, credentials.Credential{User: "alice", ID: "github", Secret: "good-token"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	orgs, err := s.Organizations(ctx, "alice", "", scm.Page{Start: 0, Limit: 100})
	if err != nil {
		t.Fatalf("Organizations: %v", err)
	}
	var names []string
	for _, o := range orgs {
		names = append(names, o.Name)
	}
	if got := strings.Join(names, ","); got != "octocat,org1,org2,org3" {
		t.Fatalf("organizations = %s", got)
	}
	if orgs[0].Avatar != "https://avatars.example.com/octocat" || orgs[2].Avatar != "a2" {
		t.Fatalf("avatars not mapped: %+v", orgs)
	}

	orgs, err = s.Organizations(ctx, "alice", "github", scm.Page{Start: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Organizations: %v", err)
	}
	if len(orgs) != 2 || orgs[0].Name != "org1" || orgs[1].Name != "org2" {
		t.Fatalf("windowed organizations = %+v", orgs)
	}
}

func TestScm_OrganizationsSharesConcurrentListing(t *testing.T) {
	ctx := context.Background()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"login":"octocat"}`)
	})
	mux.HandleFunc("GET /user/orgs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"login":"org1"}]`)
	})
	s, store := newTestScm(t, mux)
	if err := store.Put(ctx, credentials.Credential{User: "alice", ID: "github", Secret: "good-token"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orgs, err := s.Organizations(ctx, "alice", "", scm.Page{Limit: 100})
			if err != nil {
				t.Errorf("Organizations: %v", err)
				return
			}
			if len(orgs) != 2 {
				t.Errorf("got %d organizations, want 2", len(orgs))
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("got %d listings, want 1", got)
	}
}

func TestScm_OrganizationsSurvivesFirstCallerCancel(t *testing.T) {
	var calls int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		entered <- struct{}{}
		<-release
		writeJSON(w, http.StatusOK, `{"login":"octocat"}`)
	})
	mux.HandleFunc("GET /user/orgs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"login":"org1"}]`)
	})
	s, store := newTestScm(t, mux)
	var releaseOnce sync.Once
	t.Cleanup(func() { releaseOnce.Do(func() { close(release) }) })
	if err := store.Put(context.Background(), credentials.Credential{User: "alice", ID: "github", Secret: "good-token"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Organizations(first, "alice", "", scm.Page{Limit: 100})
		firstErr <- err
	}()
	<-entered

	type result struct {
		orgs []scm.Organization
		err  error
	}
	second := make(chan result, 1)
	go func() {
		orgs, err := s.Organizations(context.Background(), "alice", "", scm.Page{Limit: 100})
		second <- result{orgs, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first caller err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first caller did not return after its context was canceled")
	}

	releaseOnce.Do(func() { close(release) })
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("second caller: %v", res.err)
		}
		if len(res.orgs) != 2 || res.orgs[1].Name != "org1" {
			t.Fatalf("second caller orgs = %+v", res.orgs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("got %d listings, want 1", got)
	}
}

func TestScm_ClientSharesRateLimitPerToken(t *testing.T) {
	ctx := context.Background()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusOK, `{"login":"octocat"}`)
	})
	s, _ := newTestScm(t, mux)

	first, err := s.Client(ctx, "tok")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if _, _, err := first.Client.Users.Get(ctx, ""); err != nil {
		t.Fatalf("first request: %v", err)
	}

	next, err := s.Client(ctx, "tok")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if next.Limits != first.Limits {
		t.Fatalf("clients for the same token must share a rate limit")
	}
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, _, err := next.Client.Users.Get(waitCtx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("request during Retry-After: err = %v, want deadline exceeded", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("got %d requests during Retry-After, want 1", got)
	}

	other, err := s.Client(ctx, "other-tok")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if other.Limits == first.Limits {
		t.Fatalf("different tokens must not share a rate limit")
	}
	if _, _, err := other.Client.Users.Get(ctx, ""); err != nil {
		t.Fatalf("other token: %v", err)
	}
}

func TestScm_OrganizationsCredentialErrors(t *testing.T) {
	ctx := context.Background()
	s, store := newTestScm(t, orgsMux(t))

	_, err := s.Organizations(ctx, "alice", "", scm.Page{Limit: 100})
	se, ok := apierr.As(err)
	if !ok || se.Status() != http.StatusBadRequest {
		t.Fatalf("expected 400 without credential, got %v", err)
	}
	if !strings.Contains(se.Msg.Message, scm.CredentialIDParam) || !strings.Contains(se.Msg.Message, scm.CredentialIDHeader) {
		t.Fatalf("message must name both ways to pass a credential: %q", se.Msg.Message)
	}

	if err := store.Put(ctx, credentials.Credential{User: "alice", ID: "github", Secret: "revoked"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err = s.Organizations(ctx, "alice", "", scm.Page{Limit: 100})
	if apierr.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a revoked token, got %v", err)
	}
}

func TestScm_SaveContent(t *testing.T) {
	ctx := context.Background()
	var log callLog
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/o/r/contents/dir/file.txt", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stored-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		putHandler(t, &log, &body)(w, r)
	})
	s, store := newTestScm(t, mux)
	if err := store.Put(ctx, credentials.Credential{User: "alice", ID: "work", Secret: "stored-token"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	content := newContent()
	content.Branch = ""
	file, err := s.SaveContent(ctx, "alice", "work", "o", "r", &SaveFileRequest{Content: content})
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if file.Content.Sha != "new-sha" {
		t.Fatalf("file = %+v", file.Content)
	}

	if _, err := s.SaveContent(ctx, "bob", "work", "o", "r", &SaveFileRequest{Content: content}); apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for a user without the credential, got %v", err)
	}
}

func TestMissingScopes(t *testing.T) {
	for header, want := range map[string]string{
		"repo, user":       "",
		"repo,user:email":  "",
		"":                 "repo,user:email",
		"repo":             "user:email",
		"public_repo,user": "repo",
	} {
		if got := strings.Join(missingScopes(header), ","); got != want {
			t.Errorf("missingScopes(%q) = %q, want %q", header, got, want)
		}
	}
}
