// Package audit records security-relevant session activity. Events never
// carry passwords or chat text.
package audit

import (
	"context"
	"time"

	"github.com/suPer8Hu/localchat/internal/common"
	"go.uber.org/zap"
)

type EventType string

const (
	UserRegistered     EventType = "user.registered"
	SessionLogin       EventType = "session.login"
	SessionLoginFailed EventType = "session.login_failed"
	SessionLogout      EventType = "session.logout"
	ChatTurn           EventType = "chat.turn"
)

type Event struct {
	ID         string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	Type       EventType `gorm:"type:varchar(32);index;not null" json:"type"`
	Username   string    `gorm:"type:varchar(191);index" json:"username,omitempty"`
	SessionID  string    `gorm:"size:26;index" json:"session_id,omitempty"`
	Fallback   bool      `json:"fallback,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`
}

func (Event) TableName() string { return "audit_events" }

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Emit stamps e with an ID (and a time, if unset) and publishes it. Audit
// delivery is best effort: failures are logged, never returned.
func Emit(ctx context.Context, p Publisher, log *zap.Logger, e Event) {
	id, err := common.NewULID()
	if err != nil {
		log.Warn("audit event id", zap.Error(err))
		return
	}
	e.ID = id
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("publish audit event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
