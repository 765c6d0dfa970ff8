package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/localchat/internal/auth"
	"github.com/suPer8Hu/localchat/internal/chat"
	"github.com/suPer8Hu/localchat/internal/common"
)

const SessionKey = "chat_session"

type SessionLookup interface {
	Get(id string) (*chat.Session, error)
}

// SessionRequired resolves the bearer token to a live chat session.
func SessionRequired(secret string, sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing bearer token")
			c.Abort()
			return
		}

		sid, err := auth.ParseSessionToken(strings.TrimPrefix(h, "Bearer "), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40100, "invalid token")
			c.Abort()
			return
		}

		s, err := sessions.Get(sid)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "session expired")
			c.Abort()
			return
		}
		c.Set(SessionKey, s)
		c.Next()
	}
}

func SessionFromContext(c *gin.Context) (*chat.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*chat.Session)
	return s, ok
}
