package api

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/jellyfish-p/web-proxy-api/internal/mediacache"
)

// MediaHandlers serves cached image/video assets under GET
// /images/{image|video}/{flattened-path}, per §6.
type MediaHandlers struct {
	baseDir string
}

// NewMediaHandlers constructs MediaHandlers rooted at baseDir (the same
// directory mediacache.Cache writes into).
func NewMediaHandlers(baseDir string) *MediaHandlers {
	return &MediaHandlers{baseDir: baseDir}
}

// Serve handles GET /images/:kind/:name.
func (h *MediaHandlers) Serve(c *gin.Context) {
	kind := c.Param("kind")
	if kind != string(mediacache.KindImage) && kind != string(mediacache.KindVideo) {
		c.Status(http.StatusNotFound)
		return
	}
	name := c.Param("name")
	path := mediacache.ServePath(h.baseDir, mediacache.Kind(kind), name)

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.File(path)
}
