package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/common"
	"github.com/suPer8Hu/localchat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

const maxUsernameLen = 191

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) > maxUsernameLen {
		common.Fail(c, http.StatusBadRequest, 10003, "username too long")
		return
	}

	created, err := h.Credentials.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, common.ErrEmptyCredentials):
		common.Fail(c, http.StatusBadRequest, 10002, "username and password required")
		return
	case err != nil:
		h.Log.Error("register",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		common.Fail(c, http.StatusServiceUnavailable, 50300, "credential store unavailable")
		return
	case !created:
		common.Fail(c, http.StatusConflict, 40900, common.ErrDuplicateUsername.Error())
		return
	}

	audit.Emit(c.Request.Context(), h.Events, h.Log, audit.Event{
		Type:     audit.UserRegistered,
		Username: req.Username,
	})
	common.OK(c, gin.H{"username": req.Username})
}

func (h *Handler) Login(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}

	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	err := h.Sessions.Login(c.Request.Context(), s, req.Username, req.Password)
	switch {
	case err == nil:
		common.OK(c, gin.H{"view": s.Snapshot()})
	case errors.Is(err, common.ErrInvalidCredentials):
		common.Fail(c, http.StatusUnauthorized, 40101, err.Error())
	case errors.Is(err, common.ErrTooManyAttempts):
		common.Fail(c, http.StatusTooManyRequests, 42901, err.Error())
	default:
		common.Fail(c, http.StatusServiceUnavailable, 50300, "credential store unavailable")
	}
}

func (h *Handler) Logout(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	h.Sessions.Logout(c.Request.Context(), s)
	common.OK(c, gin.H{"view": s.Snapshot()})
}
