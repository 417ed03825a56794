package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the public /v1 + /v1beta ingress surface, the admin
// /api/v0/management surface, and the /images media surface onto a single
// gin engine, per §6.
func NewRouter(ingress *IngressHandlers, mgmt *ManagementHandlers, media *MediaHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	{
		v1.POST("/chat/completions", ingress.ChatCompletions)
		v1.POST("/messages", ingress.Messages)
		v1.GET("/models", ingress.Models)
	}
	r.POST("/v1beta/models/:modelAndVerb", ingress.GenerateContent)

	management := r.Group("/api/v0/management")
	{
		management.POST("/login", mgmt.Login)
		protected := management.Group("")
		protected.Use(mgmt.RequireSession)
		{
			protected.POST("/logout", mgmt.Logout)
			protected.GET("/check", mgmt.Check)
			protected.GET("/projects/list", mgmt.ProjectsList)
			protected.GET("/tokens/list", mgmt.TokensList)
			protected.GET("/tokens/get", mgmt.TokensGet)
			protected.POST("/tokens/add", mgmt.TokensAdd)
			protected.POST("/tokens/delete", mgmt.TokensDelete)
			protected.GET("/cache/stats", mgmt.CacheStats)
		}
	}

	r.GET("/images/:kind/:name", media.Serve)

	return r
}
