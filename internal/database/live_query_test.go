package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nfrund/supportchat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestLiveQueryIDFrom(t *testing.T) {
	id, err := liveQueryIDFrom("0189d6e3-8eac-703a-9a48-d9faa78b44b9")
	require.NoError(t, err)
	assert.Equal(t, "0189d6e3-8eac-703a-9a48-d9faa78b44b9", id)

	id, err = liveQueryIDFrom(map[string]any{"id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = liveQueryIDFrom(nil)
	assert.ErrorIs(t, err, ErrLiveQuery)

	_, err = liveQueryIDFrom("")
	assert.ErrorIs(t, err, ErrLiveQuery)

	_, err = liveQueryIDFrom(map[string]any{"other": 1})
	assert.ErrorIs(t, err, ErrLiveQuery)

	_, err = liveQueryIDFrom(42)
	assert.ErrorIs(t, err, ErrLiveQuery)
}

func TestExtractTableFromQuery(t *testing.T) {
	assert.Equal(t, "chat_message", extractTableFromQuery("LIVE SELECT * FROM chat_message WHERE feed = $feed"))
	assert.Equal(t, "unknown", extractTableFromQuery("LIVE SELECT *"))
}

func TestBuildFieldList(t *testing.T) {
	assert.Equal(t, "*", buildFieldList(nil))
	assert.Equal(t, "id, text", buildFieldList([]string{"id", "text"}))
}

func TestSubscribeQuery_RejectsNonLiveQuery(t *testing.T) {
	svc := NewSurrealLiveQueryService(NewConnection(nil))
	noop := func(context.Context, LiveQueryAction, any) {}

	_, err := svc.SubscribeQuery(context.Background(), "SELECT * FROM chat_message", nil, noop)
	assert.Error(t, err)

	_, err = svc.SubscribeQuery(context.Background(), "LIVE SELECT * FROM chat_message", nil, nil)
	assert.Error(t, err)
}

func TestUnsubscribe_UnknownIDIsNoop(t *testing.T) {
	svc := NewSurrealLiveQueryService(NewConnection(nil))
	assert.NoError(t, svc.Unsubscribe("missing"))
}

// LiveQueryTestSuite runs against a real SurrealDB when SURREAL_URL is set.
type LiveQueryTestSuite struct {
	suite.Suite
	conn    *Connection
	service *SurrealLiveQueryService
}

func TestLiveQueryService(t *testing.T) {
	suite.Run(t, new(LiveQueryTestSuite))
}

func (s *LiveQueryTestSuite) SetupSuite() {
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
	s.conn = NewConnection(cfg)
	s.Require().NoError(s.conn.Connect(context.Background()))
	s.service = NewSurrealLiveQueryService(s.conn)
}

func (s *LiveQueryTestSuite) TearDownSuite() {
	if s.conn != nil {
		db, err := s.conn.DB()
		if err == nil {
			_ = Execute(context.Background(), db, "DELETE live_query_probe", nil)
		}
		_ = s.conn.Close(context.Background())
	}
}

func (s *LiveQueryTestSuite) TestCreateNotification() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got := make(chan LiveQueryAction, 10)
	sub, err := s.service.Subscribe(ctx, "live_query_probe", nil, func(_ context.Context, action LiveQueryAction, _ any) {
		got <- action
	})
	s.Require().NoError(err)
	s.Equal("live_query_probe", sub.Table)

	db, err := s.conn.DB()
	s.Require().NoError(err)
	_, err = QueryOne[map[string]any](ctx, db, "CREATE live_query_probe SET text = $text", map[string]any{"text": "hi"})
	s.Require().NoError(err)

	select {
	case action := <-got:
		s.Equal(ActionCreate, action)
	case <-time.After(5 * time.Second):
		s.Fail("timeout waiting for CREATE notification")
	}

	s.NoError(s.service.Unsubscribe(sub.ID))
}
