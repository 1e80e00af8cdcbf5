package server

import (
	"context"

	"scmrest/internal/rest"
	"scmrest/internal/scm"
)

// Root is the bean served at /rest/.
type Root struct {
	Version string        `export:"version"`
	SCMs    []string      `export:"scms"`
	Actions []rest.Action `export:"actions,inline"`
}

func (Root) ExportClassName() string { return "io.scmrest.Root" }

func newRoot(ctx context.Context, version string, scms []scm.Scm, user string) *Root {
	r := &Root{Version: version, SCMs: make([]string, 0, len(scms)), Actions: make([]rest.Action, 0, len(scms))}
	for _, sc := range scms {
		r.SCMs = append(r.SCMs, sc.ID())
		r.Actions = append(r.Actions, newSCMAction(ctx, sc, user))
	}
	return r
}

// scmAction links the root to one SCM. Its scm property is resolved while
// exporting; a failure there is logged and exported as null.
type scmAction struct {
	Name string                       `export:"displayName"`
	URL  string                       `export:"urlName"`
	Scm  func() (scm.Resource, error) `export:"scm"`
}

var _ rest.Action = (*scmAction)(nil)

func newSCMAction(ctx context.Context, sc scm.Scm, user string) *scmAction {
	return &scmAction{
		Name: sc.ID(),
		URL:  "scm/" + sc.ID(),
		Scm: func() (scm.Resource, error) {
			return scm.Describe(ctx, sc, user)
		},
	}
}

func (a *scmAction) DisplayName() string { return a.Name }
func (a *scmAction) URLName() string     { return a.URL }

func (*scmAction) ExportClassName() string { return "io.scmrest.ScmAction" }
