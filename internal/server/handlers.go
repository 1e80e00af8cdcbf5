package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"scmrest/internal/apierr"
	"scmrest/internal/github"
	"scmrest/internal/scm"
)

// ContentSaver is implemented by SCMs that can write files.
type ContentSaver interface {
	SaveContent(ctx context.Context, user, credentialID, owner, repo string, req *github.SaveFileRequest) (*github.File, error)
}

func (s *Server) root(c *gin.Context) {
	s.export(c, newRoot(c.Request.Context(), s.exporter.Version, s.scms, remoteUser(c)))
}

func (s *Server) listSCMs(c *gin.Context) {
	user := remoteUser(c)
	out := make([]scm.Resource, 0, len(s.scms))
	for _, sc := range s.scms {
		r, err := scm.Describe(c.Request.Context(), sc, user)
		if err != nil {
			s.fail(c, apierr.Unexpected(err, "Failed to describe scm %s", sc.ID()))
			return
		}
		out = append(out, r)
	}
	s.export(c, out)
}

func (s *Server) getSCM(c *gin.Context) {
	sc, ok := s.lookup(c)
	if !ok {
		return
	}
	r, err := scm.Describe(c.Request.Context(), sc, remoteUser(c))
	if err != nil {
		s.fail(c, apierr.Unexpected(err, "Failed to describe scm %s", sc.ID()))
		return
	}
	s.export(c, r)
}

func (s *Server) organizations(c *gin.Context) {
	sc, ok := s.lookup(c)
	if !ok {
		return
	}
	page, err := scm.ParsePage(c.Request.URL.Query())
	if err != nil {
		s.fail(c, err)
		return
	}
	orgs, err := sc.Organizations(c.Request.Context(), remoteUser(c), scm.SelectCredential(c.Request, ""), page)
	if err != nil {
		s.fail(c, err)
		return
	}
	if orgs == nil {
		orgs = []scm.Organization{}
	}
	s.export(c, orgs)
}

func (s *Server) validate(c *gin.Context) {
	sc, ok := s.lookup(c)
	if !ok {
		return
	}
	var req scm.ValidateRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	res, err := sc.ValidateAndCreate(c.Request.Context(), remoteUser(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.export(c, res)
}

func (s *Server) saveContent(c *gin.Context) {
	sc, ok := s.lookup(c)
	if !ok {
		return
	}
	saver, ok := sc.(ContentSaver)
	if !ok {
		s.fail(c, apierr.BadRequest("scm %s does not support saving content", sc.ID()))
		return
	}
	var req github.SaveFileRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	file, err := saver.SaveContent(c.Request.Context(), remoteUser(c), scm.SelectCredential(c.Request, ""),
		c.Query("owner"), c.Query("repo"), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.export(c, file)
}

func (s *Server) lookup(c *gin.Context) (scm.Scm, bool) {
	id := c.Param("scm")
	sc, ok := s.byID[id]
	if !ok {
		s.fail(c, apierr.NotFound("scm %s not found", id))
	}
	return sc, ok
}

// bindJSON decodes the request body into v. An empty body leaves v zero.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return apierr.BadRequest("Invalid request body: %v", err)
	}
	return nil
}

func (s *Server) export(c *gin.Context, bean any) {
	if err := s.exporter.DoJSON(c.Writer, c.Request, bean); err != nil {
		s.fail(c, err)
	}
}

// fail renders err as an ErrorMessage. Nothing is written when the response
// is already under way.
func (s *Server) fail(c *gin.Context, err error) {
	status := apierr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		klog.ErrorS(err, "request failed", "requestID", requestid.Get(c), "method", c.Request.Method, "path", c.Request.URL.Path)
	} else {
		klog.V(2).InfoS("request rejected", "path", c.Request.URL.Path, "status", status, "error", strings.TrimSpace(err.Error()))
	}
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, apierr.MessageOf(err))
}
