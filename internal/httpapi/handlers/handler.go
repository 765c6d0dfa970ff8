package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/chat"
	"github.com/suPer8Hu/localchat/internal/common"
	"go.uber.org/zap"
)

// Registrar creates credentials.
type Registrar interface {
	Register(ctx context.Context, username, password string) (bool, error)
}

type Handler struct {
	Credentials Registrar
	Sessions    *chat.Manager
	Processor   *chat.Processor
	Events      audit.Publisher
	Log         *zap.Logger

	JWTSecret string
	TokenTTL  time.Duration
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
