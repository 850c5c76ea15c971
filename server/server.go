// Package server exposes the task façade over HTTP: uploads in, previews or
// workbooks out.
package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/task"
)

// Server routes HTTP requests to a task.Service.
type Server struct {
	router    *gin.Engine
	svc       *task.Service
	outputDir string
	logger    *zap.Logger
}

// New builds the router. outputDir is where exports land and where
// /download serves from.
func New(svc *task.Service, outputDir string, logger *zap.Logger, debug bool) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		router:    gin.New(),
		svc:       svc,
		outputDir: outputDir,
		logger:    logger.Named("server"),
	}
	s.router.Use(gin.Recovery(), s.accessLog())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/variants", s.variants)
	s.router.POST("/columns", s.columns)
	s.router.POST("/preview", s.preview)
	s.router.POST("/export", s.export)
	s.router.GET("/download/:name", s.download)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("Listening", zap.String("addr", addr), zap.String("output_dir", s.outputDir))
	return s.router.Run(addr)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

/* ──────────── handlers ──────────── */

func (s *Server) variants(c *gin.Context) {
	reg := s.svc.Variants()
	type entry struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Filters     []string `json:"filters"`
	}
	var out []entry
	for _, name := range reg.Names() {
		v, err := reg.Get(name)
		if err != nil {
			s.fail(c, err)
			return
		}
		e := entry{Name: v.Name, Description: v.Description}
		for _, f := range v.Filters() {
			e.Filters = append(e.Filters, string(f))
		}
		out = append(out, e)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) columns(c *gin.Context) {
	dir, cleanup, err := s.uploadDir()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer cleanup()

	path, err := s.save(c, dir, "file", true)
	if err != nil {
		s.fail(c, err)
		return
	}
	cols, err := s.svc.Columns(c.Request.Context(), path)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols})
}

func (s *Server) preview(c *gin.Context) {
	dir, cleanup, err := s.uploadDir()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer cleanup()

	req, err := s.request(c, dir)
	if err != nil {
		s.fail(c, err)
		return
	}
	if v := c.PostForm("max_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(c, failure.New(failure.KindInvalidRequest, "preview", "max_rows must be a non-negative integer"))
			return
		}
		req.MaxRows = n
	}

	rows, err := s.svc.Preview(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) export(c *gin.Context) {
	dir, cleanup, err := s.uploadDir()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer cleanup()

	req, err := s.request(c, dir)
	if err != nil {
		s.fail(c, err)
		return
	}
	name := fmt.Sprintf("%s_%s.xlsx", task.Name, uuid.NewString())
	req.OutputPath = filepath.Join(s.outputDir, name)

	res, err := s.svc.Export(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   res.Status,
		"download": "/download/" + name,
		"sheets":   res.Sheets,
		"rows":     res.Rows,
	})
}

func (s *Server) download(c *gin.Context) {
	name := c.Param("name")
	if name != filepath.Base(name) || !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name", "kind": failure.KindInvalidRequest.String()})
		return
	}
	path := filepath.Join(s.outputDir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found", "kind": failure.KindSourceNotFound.String()})
		return
	}
	c.FileAttachment(path, name)
}

/* ──────────── helpers ──────────── */

// request reads the multipart form into a task request, saving uploads to dir.
func (s *Server) request(c *gin.Context, dir string) (task.Request, error) {
	schedule, err := s.save(c, dir, "schedule", true)
	if err != nil {
		return task.Request{}, err
	}
	clients, err := s.save(c, dir, "clients", false)
	if err != nil {
		return task.Request{}, err
	}
	return task.Request{
		Variant:      c.PostForm("variant"),
		SchedulePath: schedule,
		ClientsPath:  clients,
		Filter:       c.PostForm("filter"),
		GroupBy:      c.PostForm("group_by"),
	}, nil
}

// save stores the upload under its field name, keeping the client extension
// so the loader can pick a reader.
func (s *Server) save(c *gin.Context, dir, field string, required bool) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if !required {
			return "", nil
		}
		return "", failure.New(failure.KindInvalidRequest, "upload", "form file %q is required", field)
	}
	dst := filepath.Join(dir, field+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", failure.Wrap(failure.KindSourceUnreadable, "upload", err, "saving %s", fh.Filename)
	}
	return dst, nil
}

func (s *Server) uploadDir() (string, func(), error) {
	dir := filepath.Join(os.TempDir(), "node-filter-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, failure.Wrap(failure.KindWriteError, "upload", err, "creating upload dir")
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	kind := failure.KindOf(err)
	c.JSON(statusFor(kind), gin.H{"error": err.Error(), "kind": kind.String()})
}

func statusFor(k failure.Kind) int {
	switch k {
	case failure.KindSourceNotFound, failure.KindSourceUnreadable, failure.KindSchemaMismatch,
		failure.KindInvalidFilter, failure.KindInvalidRequest:
		return http.StatusBadRequest
	case failure.KindEmptyResult:
		return http.StatusUnprocessableEntity
	case failure.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
