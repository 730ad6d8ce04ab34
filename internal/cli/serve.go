package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/buildinfo"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/render"
)

// Request limits.
const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// defaultServeBackends lists the backends whose sources cannot reach the host.
// plot executes Python; tikz (\input) and plantuml (!include) read local files.
var defaultServeBackends = []string{"dot", "mermaid"}

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	runFlags
	addr     string
	root     string
	backends []string
}

// serveCommand creates the serve command for the HTTP rendering API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP API that renders code blocks",
		Long: `Serve exposes the renderer over HTTP:

  POST /render      render one block: {"lang", "text", "attributes", "metadata", "format"}
  GET  /images/*    cached images below --root
  GET  /healthz     liveness probe

Image folders in requests are relative to --root. Requests cannot choose
tool paths or engines. Only dot and mermaid are enabled by default: tikz and
plantuml sources can read local files and plot runs Python, so enable them
with --backends only for trusted clients.`,
		Example: `  diagrender serve --addr :8080 --root ./images`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.root, "root", "images", "folder holding all rendered images")
	cmd.Flags().StringSliceVar(&opts.backends, "backends", defaultServeBackends, "backends the API may use")
	_ = cmd.RegisterFlagCompletionFunc("backends", completeBackends)

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts *serveOpts) error {
	s, err := c.newSession(cmd, &opts.runFlags)
	if err != nil {
		return err
	}
	srv, err := newServer(s.runner, opts.root, opts.backends, s.format, c.Logger)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx := cmd.Context()
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()
	c.Logger.Info("listening", "addr", opts.addr, "root", opts.root, "backends", strings.Join(opts.backends, ","))

	select {
	case err := <-errc:
		return errors.Wrap(errors.ErrCodeInternal, err, "serve %s", opts.addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "shutdown")
	}
	c.Logger.Info("stopped")
	return nil
}

// =============================================================================
// Server
// =============================================================================

// server renders blocks for HTTP clients. All images land below root.
type server struct {
	runner  *render.Runner
	root    string
	allowed map[string]bool
	format  string
	logger  *log.Logger
}

func newServer(runner *render.Runner, root string, allowed []string, format string, logger *log.Logger) (*server, error) {
	if err := errors.ValidateFolder(root); err != nil {
		return nil, err
	}
	s := &server{runner: runner, root: root, allowed: map[string]bool{}, format: format, logger: logger}
	for _, name := range allowed {
		if _, ok := runner.Registry().Get(name); !ok {
			return nil, errors.New(errors.ErrCodeUnknownBackend, "unknown backend %q", name)
		}
		s.allowed[name] = true
	}
	return s, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/render", s.handleRender)
	r.Get("/images/*", s.handleImage)

	return r
}

// requestLogger tags each request with an id and a scoped logger.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		w.Header().Set("Server", buildinfo.UserAgent())

		logger := s.logger.With("request", id[:8])
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), logger)))
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start).Round(time.Millisecond))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

// renderRequest is the body of POST /render.
type renderRequest struct {
	Lang       string            `json:"lang"`
	Text       string            `json:"text"`
	ID         string            `json:"id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	Format     string            `json:"format,omitempty"`
}

// renderResponse is the body of a successful render.
type renderResponse struct {
	Backend     string   `json:"backend"`
	Identity    string   `json:"identity,omitempty"`
	Markup      string   `json:"markup"`
	Paths       []string `json:"paths,omitempty"`
	URLs        []string `json:"urls,omitempty"`
	Cached      bool     `json:"cached"`
	Passthrough bool     `json:"passthrough,omitempty"`
}

// errorResponse is the body of a failed request.
type errorResponse struct {
	Code  errors.Code `json:"code"`
	Error string      `json:"error"`
}

// newRenderResponse converts a result. With a non-empty root, paths below it
// also get /images/ URLs.
func newRenderResponse(res *render.Result, root string) renderResponse {
	out := renderResponse{
		Backend:     res.Backend,
		Identity:    res.Identity.String(),
		Markup:      res.Markup,
		Paths:       res.Paths,
		Cached:      res.Cached,
		Passthrough: res.Passthrough,
	}
	if root == "" {
		return out
	}
	for _, p := range res.Paths {
		rel, err := filepath.Rel(root, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		out.URLs = append(out.URLs, path.Join("/images", filepath.ToSlash(rel)))
	}
	return out
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	logger := loggerFromContext(r.Context(), s.logger)

	var req renderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	block, meta, err := s.prepare(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.runner.Render(r.Context(), block, meta)
	if err != nil {
		logger.Warn("render failed", "lang", req.Lang, "err", errors.UserMessage(err))
		writeError(w, err)
		return
	}
	logger.Info("rendered", "backend", res.Backend, "id", res.Identity, "cached", res.Cached)
	writeJSON(w, http.StatusOK, newRenderResponse(res, s.root))
}

// prepare turns a request into a block and metadata confined to the server
// root. Folders are rooted below it and tool settings cannot be overridden.
func (s *server) prepare(req *renderRequest) (*document.CodeBlock, document.Metadata, error) {
	if req.Lang == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "lang is required")
	}
	block := &document.CodeBlock{
		Text:    req.Text,
		ID:      req.ID,
		Classes: strings.Split(req.Lang, ","),
		Format:  s.format,
	}
	if req.Format != "" {
		block.Format = req.Format
	}

	backend, ok := s.runner.Registry().Match(block)
	if !ok || !s.allowed[backend.Name()] {
		return nil, nil, render.ErrNoBackend
	}

	keys := make([]string, 0, len(req.Attributes))
	for k := range req.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := req.Attributes[k]
		if isToolSetting(k) {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput, "attribute %q cannot be set over HTTP", k)
		}
		if k == "folder" {
			rooted, err := s.rooted(v)
			if err != nil {
				return nil, nil, err
			}
			v = rooted
		}
		block.Attributes = append(block.Attributes, document.Attribute{Key: k, Value: v})
	}

	meta := document.Metadata{}
	for k, v := range req.Metadata {
		if isToolSetting(k) {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput, "metadata field %q cannot be set over HTTP", k)
		}
		meta[k] = v
	}
	folderKey := backend.Name() + "-image-folder"
	folder, _ := meta.String(folderKey)
	rooted, err := s.rooted(folder)
	if err != nil {
		return nil, nil, err
	}
	meta[folderKey] = rooted

	return block, meta, nil
}

func (s *server) rooted(folder string) (string, error) {
	if err := errors.ValidatePath(folder); err != nil {
		return "", err
	}
	return filepath.Join(s.root, folder), nil
}

// isToolSetting reports fields that choose executables or pass raw
// command-line arguments to them.
func isToolSetting(key string) bool {
	return strings.HasSuffix(key, "-path") || strings.HasSuffix(key, "-engine") ||
		strings.Contains(key, "magick-convert")
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if err := errors.ValidatePath(name); err != nil || name == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidPath, "invalid image path"))
		return
	}
	http.ServeFile(w, r, filepath.Join(s.root, filepath.FromSlash(name)))
}

// =============================================================================
// Responses
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if stderrors.Is(err, render.ErrNoBackend) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: errors.ErrCodeUnknownBackend, Error: "no backend for this language"})
		return
	}
	code := errors.GetCode(err)
	writeJSON(w, httpStatus(code), errorResponse{Code: code, Error: errors.UserMessage(err)})
}

// statusClientClosedRequest is nginx's status for requests abandoned by the client.
const statusClientClosedRequest = 499

// httpStatus maps error codes to HTTP status codes.
func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeUnknownBackend, errors.ErrCodeToolFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeToolNotFound:
		return http.StatusNotImplemented
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
