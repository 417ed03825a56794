package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/proxypool"
	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

const sessionCookieName = "wpa_admin_session"

// ManagementHandlers implements the admin-cookie-protected /api/v0/management
// surface described by §6: login/logout/check, project/token CRUD, and
// cache stats.
type ManagementHandlers struct {
	cfg     *config.Config
	cache   *tokencache.Cache
	proxy   *proxypool.Pool
	session string // single valid session token; process-local, matches a one-admin deployment
}

// NewManagementHandlers constructs ManagementHandlers.
func NewManagementHandlers(cfg *config.Config, cache *tokencache.Cache, proxy *proxypool.Pool) *ManagementHandlers {
	return &ManagementHandlers{cfg: cfg, cache: cache, proxy: proxy}
}

// Login handles POST /api/v0/management/login.
func (h *ManagementHandlers) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if body.Username != h.cfg.Admin.Username || !config.VerifyPassword(h.cfg.Admin.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
		return
	}
	h.session = newSessionToken()
	c.SetCookie(sessionCookieName, h.session, 3600*12, "/", "", config.SecureCookies(), true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged in"})
}

// Logout handles POST /api/v0/management/logout.
func (h *ManagementHandlers) Logout(c *gin.Context) {
	h.session = ""
	c.SetCookie(sessionCookieName, "", -1, "/", "", config.SecureCookies(), true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequireSession authenticates the admin session cookie before any
// protected management endpoint.
func (h *ManagementHandlers) RequireSession(c *gin.Context) {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie == "" || h.session == "" || cookie != h.session {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "admin session required"}})
		return
	}
	c.Next()
}

// Check handles GET /api/v0/management/check.
func (h *ManagementHandlers) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// ProjectsList handles GET /api/v0/management/projects/list.
func (h *ManagementHandlers) ProjectsList(c *gin.Context) {
	names := make([]string, 0, len(h.cfg.Projects))
	for name, p := range h.cfg.Projects {
		if p.Enabled {
			names = append(names, name)
		}
	}
	c.JSON(http.StatusOK, gin.H{"projects": names})
}

// TokensList handles GET /api/v0/management/tokens/list?project=.
func (h *ManagementHandlers) TokensList(c *gin.Context) {
	project := c.Query("project")
	if project == "grok" {
		c.JSON(http.StatusOK, gin.H{"tokens": []string{"token.json"}})
		return
	}
	names, err := h.cache.GetTokenList(project)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": names})
}

// TokensGet handles GET /api/v0/management/tokens/get?project=&filename=.
func (h *ManagementHandlers) TokensGet(c *gin.Context) {
	project := c.Query("project")
	filename := c.Query("filename")
	data, err := h.cache.GetToken(project, filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "not found"}})
		return
	}
	c.JSON(http.StatusOK, data)
}

// TokensAdd handles POST /api/v0/management/tokens/add.
func (h *ManagementHandlers) TokensAdd(c *gin.Context) {
	var body struct {
		Project string         `json:"project"`
		Type    string         `json:"type"`
		Data    map[string]any `json:"data"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	filename := credentialFilename(body.Data)
	if body.Data == nil {
		body.Data = map[string]any{}
	}
	body.Data["type"] = body.Type

	if err := writeCredentialFile(h.cache, body.Project, filename, body.Data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "filename": filename})
}

// TokensDelete handles POST /api/v0/management/tokens/delete.
func (h *ManagementHandlers) TokensDelete(c *gin.Context) {
	var body struct {
		Project  string `json:"project"`
		Filename string `json:"filename"`
		Type     string `json:"type"`
		Token    string `json:"token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	if body.Project == "grok" {
		if err := deleteGrokEntry(h.cache, body.Type, body.Token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := deleteCredentialFile(h.cache, body.Project, body.Filename); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CacheStats handles GET /api/v0/management/cache/stats.
func (h *ManagementHandlers) CacheStats(c *gin.Context) {
	stats := gin.H{"entries": h.cache.Stats()}
	if h.proxy != nil {
		stats["current_proxy"] = h.proxy.Current()
		if lastFetch := h.proxy.LastFetchAt(); !lastFetch.IsZero() {
			stats["last_fetch_at"] = lastFetch
		}
	}
	c.JSON(http.StatusOK, stats)
}

func newSessionToken() string {
	return randomHex(32)
}

func credentialFilename(data map[string]any) string {
	if email, ok := data["email"].(string); ok && email != "" {
		return email + ".json"
	}
	if mobile, ok := data["mobile"].(string); ok && mobile != "" {
		return mobile + ".json"
	}
	return randomHex(8) + ".json"
}
