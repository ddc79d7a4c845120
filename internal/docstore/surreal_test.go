package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/supportchat/internal/config"
	"github.com/nfrund/supportchat/internal/database"
	"github.com/nfrund/supportchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestMessageRow_ToMessage(t *testing.T) {
	id := surrealmodels.NewRecordID(messageTable, "abc")
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	row := messageRow{
		ID:           &id,
		Feed:         "users/u1/chat",
		Text:         "Hello",
		Sender:       "u1@example.com",
		IsAccountant: false,
		Timestamp:    &surrealmodels.CustomDateTime{Time: ts},
	}

	msg := row.toMessage()
	assert.Equal(t, id.String(), msg.ID)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, "u1@example.com", msg.Sender)
	assert.False(t, msg.Pending())
	assert.True(t, msg.Timestamp.Equal(ts))
}

func TestMessageRow_MissingTimestampIsPending(t *testing.T) {
	msg := messageRow{Text: "Hello", Sender: domain.SupportSender, IsAccountant: true}.toMessage()
	assert.True(t, msg.Pending())
	assert.True(t, msg.IsAccountant)
	assert.Empty(t, msg.ID)
}

// SurrealStoreTestSuite runs against a real SurrealDB when SURREAL_URL is set.
type SurrealStoreTestSuite struct {
	suite.Suite
	conn  *database.Connection
	store *SurrealStore
	path  string
}

func TestSurrealStore(t *testing.T) {
	suite.Run(t, new(SurrealStoreTestSuite))
}

func (s *SurrealStoreTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping integration test in short mode")
	}
	if os.Getenv("SURREAL_URL") == "" {
		s.T().Skip("SURREAL_URL not set")
	}

	cfg := &config.Config{
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBQueryTimeout:   5 * time.Second,
		DBExecuteTimeout: 5 * time.Second,
	}
	s.conn = database.NewConnection(cfg)
	s.Require().NoError(s.conn.Connect(context.Background()))
	s.store = NewSurrealStore(s.conn, database.NewSurrealLiveQueryService(s.conn))
	s.path = "users/" + uuid.NewString() + "/chat"
}

func (s *SurrealStoreTestSuite) TearDownSuite() {
	if s.conn == nil {
		return
	}
	if db, err := s.conn.DB(); err == nil {
		_ = database.Execute(context.Background(), db, "DELETE chat_message WHERE feed = $feed", map[string]any{"feed": s.path})
	}
	_ = s.conn.Close(context.Background())
}

func (s *SurrealStoreTestSuite) TestAppendAndSubscribe() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec := newRecorder()
	sub, err := s.store.Subscribe(ctx, s.path, FeedQuery(), rec.record)
	s.Require().NoError(err)
	defer sub.Unsubscribe()

	s.Empty(rec.next(s.T()))

	id, err := s.store.Append(ctx, s.path, domain.Record{Text: "Hello", Sender: "u1@example.com"})
	s.Require().NoError(err)
	s.NotEmpty(id)

	got := rec.next(s.T())
	s.Require().Len(got, 1)
	s.Equal("Hello", got[0].Text)
	s.False(got[0].Pending())
}
