package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/common"
	"github.com/suPer8Hu/localchat/internal/config"
	"github.com/suPer8Hu/localchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/localchat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, cfg config.Config, log *zap.Logger) *gin.Engine {
	if h.Events == nil {
		h.Events = audit.Nop{}
	}
	if h.Log == nil {
		h.Log = log
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.AccessLog(log))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	limiter := middleware.NewIPRateLimiter(cfg.AuthRatePerMinute)

	r.GET("/ping", h.Ping)
	r.POST("/sessions", h.CreateSession)
	r.POST("/register", middleware.RateLimit(limiter), h.Register)

	// session token required
	sess := r.Group("/")
	sess.Use(middleware.SessionRequired(cfg.JWTSecret, h.Sessions))
	sess.POST("/login", middleware.RateLimit(limiter), h.Login)
	sess.POST("/logout", h.Logout)
	sess.POST("/messages", h.SendMessage)
	sess.GET("/view", h.View)
	return r
}
