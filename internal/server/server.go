// Package server serves a site directory: the root template rendered with
// its initial state, and the client runtime assets.
package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gnituy18/txbind/internal/client"
	"github.com/gnituy18/txbind/internal/render"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	rootFile  = "index.html"
	clientDir = "lib/client"
)

// ContentType maps a file name to the Content-Type it is served with.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html":
		return "text/html"
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css"
	}
	return "text/plain"
}

type handler struct {
	dir      string
	renderer *render.Renderer
	log      *zap.Logger
}

func New(dir string, r *render.Renderer, log *zap.Logger) *echo.Echo {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{dir: dir, renderer: r, log: log.Named("server")}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/", h.root)
	e.GET("/"+clientDir+"/*", h.asset)
	e.RouteNotFound("/*", notFound)
	return e
}

func notFound(c echo.Context) error {
	return c.String(http.StatusNotFound, "File not found")
}

func (h *handler) root(c echo.Context) error {
	data, err := os.ReadFile(filepath.Join(h.dir, rootFile))
	if err != nil {
		h.log.Debug("read failed", zap.String("file", rootFile), zap.Error(err))
		return notFound(c)
	}
	return h.serve(c, rootFile, data)
}

func (h *handler) asset(c echo.Context) error {
	name := strings.TrimPrefix(path.Clean("/"+c.Param("*")), "/")
	if name == "" || name == "." {
		return notFound(c)
	}

	data, err := os.ReadFile(filepath.Join(h.dir, clientDir, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) && name == client.RuntimeFile {
		data, err = fs.ReadFile(client.FS(), client.RuntimeFile)
	}
	if err != nil {
		h.log.Debug("read failed", zap.String("file", name), zap.Error(err))
		return notFound(c)
	}
	return h.serve(c, name, data)
}

// serve writes data, transforming HTML first. A page that fails to
// transform is served as it is on disk.
func (h *handler) serve(c echo.Context, name string, data []byte) error {
	ct := ContentType(name)
	if ct == "text/html" {
		out, err := h.renderer.Render(string(data))
		if err != nil {
			h.log.Error("render failed, serving the page untransformed", zap.String("file", name), zap.Error(err))
		} else {
			data = []byte(out)
		}
	}
	return c.Blob(http.StatusOK, ct, data)
}
