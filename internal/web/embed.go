// Package web embeds the built studio frontend so the sync server ships as
// a single self-contained binary.
package web

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var distFiles embed.FS

// GetFileSystem returns the embedded frontend rooted at the dist folder.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(distFiles, "dist")
}

// RegisterStaticRoutes mounts the embedded frontend on the catch-all route.
// Register the API routes first; anything they do not claim falls through
// here, and unknown paths get index.html so client-side routing can take
// over (deep links into the studio must survive a reload).
func RegisterStaticRoutes(e *echo.Echo) error {
	assets, err := GetFileSystem()
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(assets))

	e.GET("/*", func(c echo.Context) error {
		reqPath := path.Clean(c.Request().URL.Path)
		if reqPath == "." {
			reqPath = "/"
		}

		file, err := assets.Open(strings.TrimPrefix(reqPath, "/"))
		if err != nil {
			// Not an asset on disk: a studio route like /workspace/<id>.
			return serveAppShell(c, assets)
		}
		stat, statErr := file.Stat()
		file.Close()
		if statErr != nil {
			return serveAppShell(c, assets)
		}

		if stat.IsDir() {
			index := path.Join(reqPath, "index.html")
			if f, err := assets.Open(strings.TrimPrefix(index, "/")); err == nil {
				f.Close()
				fileServer.ServeHTTP(c.Response(), c.Request())
				return nil
			}
			return serveAppShell(c, assets)
		}

		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}

// serveAppShell answers with the root index.html, the entry point of the
// single-page studio app.
func serveAppShell(c echo.Context, assets fs.FS) error {
	index, err := assets.Open("index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	defer index.Close()

	content, err := io.ReadAll(index)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read index.html")
	}
	return c.HTMLBlob(http.StatusOK, content)
}

// HasEmbeddedFiles reports whether a built frontend was embedded. The
// server also runs headless (API only) when the frontend build is absent.
func HasEmbeddedFiles() bool {
	entries, err := distFiles.ReadDir("dist")
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.Name() == "index.html" {
			return true
		}
	}
	return false
}

// GetEmbeddedFile opens a single file from the embedded frontend.
func GetEmbeddedFile(name string) (fs.File, error) {
	assets, err := GetFileSystem()
	if err != nil {
		return nil, err
	}
	return assets.Open(name)
}
