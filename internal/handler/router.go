package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/don-licenciao/MapyChat-web/internal/config"
)

type RouterOptions struct {
	ChatPath string
	CORS     config.CORSConfig
	Metrics  http.Handler
}

func NewRouter(h *ChatHandler, opts RouterOptions) *gin.Engine {
	router := gin.New()

	router.Use(gin.CustomRecovery(h.Recover))
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(h.RequireOrigin())

	// RequireOrigin has already rejected foreign origins; cors only adds
	// the response headers for the allowed ones.
	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowMethods:    opts.CORS.AllowedMethods,
		AllowHeaders:    opts.CORS.AllowedHeaders,
		ExposeHeaders:   opts.CORS.ExposedHeaders,
		MaxAge:          time.Duration(opts.CORS.MaxAge) * time.Second,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	router.POST(opts.ChatPath, h.RequireJSON(), h.StreamChat)
	router.GET(opts.ChatPath+"/models", h.ListModels)

	return router
}
