package main

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/common"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	id, err := common.NewULID()
	require.NoError(t, err)
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", id)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&audit.Event{}))
	return db
}

func TestHandleEvent_StoresOnceAcrossRedelivery(t *testing.T) {
	db := newTestDB(t)
	repo := audit.NewRepo(db)
	ctx := context.Background()

	body, err := json.Marshal(audit.Event{
		ID:         "01HX0000000000000000000001",
		Type:       audit.ChatTurn,
		Username:   "alice",
		Fallback:   true,
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, handleEvent(ctx, repo, body))
	require.NoError(t, handleEvent(ctx, repo, body))

	var events []audit.Event
	require.NoError(t, db.Where("username = ?", "alice").Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ChatTurn, events[0].Type)
	assert.True(t, events[0].Fallback)
}

func TestHandleEvent_RejectsBadMessages(t *testing.T) {
	repo := audit.NewRepo(newTestDB(t))

	for _, body := range []string{`not json`, `{"type":"chat.turn"}`, `{"id":"01HX"}`} {
		err := handleEvent(context.Background(), repo, []byte(body))
		assert.ErrorIs(t, err, errBadMessage, body)
	}
}
