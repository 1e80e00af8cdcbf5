package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"scmrest/internal/rest"
	"scmrest/internal/scm"
)

// HeaderRemoteUser names the caller. Requests without it act as AnonymousUser.
const (
	HeaderRemoteUser = "X-Remote-User"
	AnonymousUser    = "anonymous"
)

// Server is the REST surface over a set of SCMs.
type Server struct {
	exporter *rest.Exporter
	scms     []scm.Scm
	byID     map[string]scm.Scm

	// Timeout bounds each request's context. Zero means no bound.
	Timeout time.Duration
}

// New returns a server exporting through exporter. SCM ids must be unique.
func New(exporter *rest.Exporter, scms ...scm.Scm) (*Server, error) {
	if exporter == nil {
		return nil, errors.New("server: exporter is required")
	}
	s := &Server{exporter: exporter, byID: make(map[string]scm.Scm, len(scms))}
	for _, sc := range scms {
		if sc == nil {
			continue
		}
		if _, dup := s.byID[sc.ID()]; dup {
			return nil, fmt.Errorf("server: duplicate scm id %q", sc.ID())
		}
		s.byID[sc.ID()] = sc
		s.scms = append(s.scms, sc)
	}
	return s, nil
}

// Router builds the gin engine serving the REST API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestid.New(), requestLog(), s.withTimeout())
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/rest")
	api.GET("/", s.root)
	api.GET("/scm/", s.listSCMs)
	api.GET("/scm/:scm/", s.getSCM)
	api.GET("/scm/:scm/organizations/", s.organizations)
	api.PUT("/scm/:scm/"+scm.Validate, s.validate)
	api.PUT("/scm/:scm/content", s.saveContent)
	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.InfoS("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	klog.InfoS("shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		klog.V(2).InfoS("request",
			"requestID", requestid.Get(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"user", remoteUser(c),
			"latency", time.Since(start),
		)
	}
}

func remoteUser(c *gin.Context) string {
	if u := c.GetHeader(HeaderRemoteUser); u != "" {
		return u
	}
	return AnonymousUser
}
