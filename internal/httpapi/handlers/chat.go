package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/localchat/internal/auth"
	"github.com/suPer8Hu/localchat/internal/common"
	"github.com/suPer8Hu/localchat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

// CreateSession starts an anonymous session and returns the bearer token
// that addresses it.
func (h *Handler) CreateSession(c *gin.Context) {
	s, err := h.Sessions.NewSession()
	if err != nil {
		h.Log.Error("new session", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	token, err := auth.SignSessionToken(s.ID(), h.JWTSecret, h.TokenTTL)
	if err != nil {
		h.Sessions.Remove(s.ID())
		h.Log.Error("sign session token", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"session_id": s.ID(),
		"token":      token,
		"view":       s.Snapshot(),
	})
}

func (h *Handler) View(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	common.OK(c, gin.H{"view": s.Snapshot()})
}

type sendMessageReq struct {
	Message string `json:"message"`
}

// SendMessage runs one chat turn. Backend failures still answer 200 with
// the fallback turn.
func (h *Handler) SendMessage(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	turn, err := h.Processor.Process(c.Request.Context(), s, req.Message)
	switch {
	case err == nil:
		common.OK(c, gin.H{
			"turn": turn,
			"view": s.Snapshot(),
		})
	case errors.Is(err, common.ErrNotAuthenticated):
		common.Fail(c, http.StatusUnauthorized, 40103, "login required")
	case errors.Is(err, common.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10004, err.Error())
	case errors.Is(err, common.ErrTurnInFlight):
		common.Fail(c, http.StatusConflict, 40901, err.Error())
	default:
		h.Log.Error("send message", zap.String("session_id", s.ID()), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50003, "internal error")
	}
}
