package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"imagepacks/internal/config"
	"imagepacks/internal/repository"
	"imagepacks/internal/service"
)

type HandlerSet struct {
	log   zerolog.Logger
	cfg   *config.AppConfig
	packs *service.PackService
	inbox repository.InboxRepository
	cache *redis.Client
}

// NewHandlerSet wires the HTTP layer. cache may be nil when Redis is disabled.
func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, packs *service.PackService, inbox repository.InboxRepository, cache *redis.Client) HandlerSet {
	return HandlerSet{
		log:   log,
		cfg:   cfg,
		packs: packs,
		inbox: inbox,
		cache: cache,
	}
}

func (h HandlerSet) Register(router gin.IRouter) {
	router.GET("/healthz", h.Health)

	frames := router.Group("/frames")
	frames.POST("/", h.SaveFrames)
	frames.GET("/:request_code", h.GetFrames)
	frames.DELETE("/:request_code", h.DeleteFrames)
}
