package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// LiveQueryAction represents the type of change in a live query update
type LiveQueryAction string

const (
	ActionCreate LiveQueryAction = "CREATE"
	ActionUpdate LiveQueryAction = "UPDATE"
	ActionDelete LiveQueryAction = "DELETE"
	// ActionClose is delivered once when the server side closes the live query
	// without the subscriber asking for it.
	ActionClose LiveQueryAction = "CLOSE"
)

// LiveQueryHandler is called when live query data changes. Calls for a single
// subscription are sequential and in notification order.
type LiveQueryHandler func(ctx context.Context, action LiveQueryAction, data any)

// LiveQueryFilter defines optional filtering for live queries
type LiveQueryFilter struct {
	Where  string         // SurrealQL WHERE clause
	Params map[string]any // Query parameters
	Fields []string       // Specific fields to watch (optional)
}

// Subscription represents an active live query subscription
type Subscription struct {
	ID    string
	Table string
}

// LiveQueryService provides real-time data subscriptions via SurrealDB Live Queries
type LiveQueryService interface {
	// Subscribe to a table with optional WHERE clause
	Subscribe(ctx context.Context, table string, filter *LiveQueryFilter, handler LiveQueryHandler) (*Subscription, error)

	// SubscribeQuery subscribes with a custom LIVE SELECT query
	SubscribeQuery(ctx context.Context, query string, params map[string]any, handler LiveQueryHandler) (*Subscription, error)

	// Unsubscribe stops delivery and kills the live query. After it returns
	// the handler is not invoked again. It must not be called from within
	// the subscription's own handler.
	Unsubscribe(subID string) error
}

// SurrealLiveQueryService implements LiveQueryService using SurrealDB
type SurrealLiveQueryService struct {
	db DBConnection

	subscriptions sync.Map // map[string]*subscriptionState
}

type subscriptionState struct {
	id          string
	table       string
	handler     LiveQueryHandler
	cancel      context.CancelFunc
	liveQueryID string
	// mu is held while the handler runs so Unsubscribe can wait it out.
	mu     sync.Mutex
	closed bool
}

var _ LiveQueryService = (*SurrealLiveQueryService)(nil)

// NewSurrealLiveQueryService creates a new live query service
func NewSurrealLiveQueryService(db DBConnection) *SurrealLiveQueryService {
	return &SurrealLiveQueryService{
		db: db,
	}
}

// Subscribe creates a live query subscription for a table
func (s *SurrealLiveQueryService) Subscribe(ctx context.Context, table string, filter *LiveQueryFilter, handler LiveQueryHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	fieldList := "*"
	if filter != nil && len(filter.Fields) > 0 {
		fieldList = buildFieldList(filter.Fields)
	}

	query := fmt.Sprintf("LIVE SELECT %s FROM %s", fieldList, table)
	if filter != nil && filter.Where != "" {
		query = fmt.Sprintf("%s WHERE %s", query, filter.Where)
	}

	params := map[string]any{}
	if filter != nil && filter.Params != nil {
		params = filter.Params
	}

	return s.subscribeQuery(ctx, table, query, params, handler)
}

// SubscribeQuery creates a live query subscription with a custom query
func (s *SurrealLiveQueryService) SubscribeQuery(ctx context.Context, query string, params map[string]any, handler LiveQueryHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	trimmedQuery := strings.TrimSpace(strings.ToUpper(query))
	if !strings.HasPrefix(trimmedQuery, "LIVE SELECT") {
		return nil, fmt.Errorf("query must start with 'LIVE SELECT', got: %s", query)
	}

	if params == nil {
		params = map[string]any{}
	}

	return s.subscribeQuery(ctx, extractTableFromQuery(query), query, params, handler)
}

func (s *SurrealLiveQueryService) subscribeQuery(ctx context.Context, table, query string, params map[string]any, handler LiveQueryHandler) (*Subscription, error) {
	subID := uuid.New().String()

	subCtx, cancel := context.WithCancel(context.Background())
	state := &subscriptionState{
		id:      subID,
		table:   table,
		handler: handler,
		cancel:  cancel,
	}

	err := s.db.WithConnection(ctx, func(dbConn *surrealdb.DB) error {
		results, err := surrealdb.Query[any](ctx, dbConn, query, params)
		if err != nil {
			return fmt.Errorf("failed to execute live query: %w", err)
		}
		if results == nil || len(*results) == 0 {
			return NewDBError(ErrLiveQuery, "live query returned no results")
		}

		result := (*results)[0]
		if result.Status != "OK" {
			return NewDBError(ErrLiveQuery, fmt.Sprintf("live query failed with status: %s", result.Status))
		}

		liveID, err := liveQueryIDFrom(result.Result)
		if err != nil {
			return err
		}
		state.liveQueryID = liveID

		notifications, err := dbConn.LiveNotifications(state.liveQueryID)
		if err != nil {
			return fmt.Errorf("failed to get notification channel: %w", err)
		}

		go s.listenForNotifications(subCtx, state, notifications)
		go s.cleanupOnCancel(subCtx, dbConn, state)
		return nil
	})
	if err != nil {
		cancel()
		return nil, WrapError(err, "failed to start live query")
	}

	s.subscriptions.Store(subID, state)
	slog.Info("Live query established", "subID", subID, "table", table, "liveQueryID", state.liveQueryID)

	return &Subscription{ID: subID, Table: table}, nil
}

// Unsubscribe removes a live query subscription
func (s *SurrealLiveQueryService) Unsubscribe(subID string) error {
	v, ok := s.subscriptions.LoadAndDelete(subID)
	if !ok {
		return nil
	}
	state := v.(*subscriptionState)

	state.mu.Lock()
	state.closed = true
	state.mu.Unlock()
	state.cancel()

	slog.Info("Live query subscription removed", "subID", subID)
	return nil
}

func (s *SurrealLiveQueryService) cleanupOnCancel(ctx context.Context, dbConn *surrealdb.DB, state *subscriptionState) {
	<-ctx.Done()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := dbConn.CloseLiveNotifications(state.liveQueryID); err != nil {
		slog.Warn("Failed to close live notifications", "error", err, "liveQueryID", state.liveQueryID)
	}

	killParams := map[string]any{"liveQueryID": state.liveQueryID}
	if _, err := surrealdb.Query[any](cleanupCtx, dbConn, "KILL $liveQueryID", killParams); err != nil {
		slog.Warn("Failed to kill live query", "error", err, "liveQueryID", state.liveQueryID)
	} else {
		slog.Debug("Killed live query", "liveQueryID", state.liveQueryID)
	}
}

// listenForNotifications forwards notifications to the subscription handler.
func (s *SurrealLiveQueryService) listenForNotifications(ctx context.Context, state *subscriptionState, notifications <-chan connection.Notification) {
	slog.Debug("Live query listener started", "subID", state.id, "liveQueryID", state.liveQueryID)

	for {
		select {
		case <-ctx.Done():
			return

		case notification, ok := <-notifications:
			if !ok {
				slog.Warn("Live query notification channel closed", "subID", state.id)
				s.dispatch(ctx, state, ActionClose, nil)
				s.subscriptions.Delete(state.id)
				state.cancel()
				return
			}

			action, known := mapAction(notification)
			if !known {
				slog.Warn("Unknown notification action", "subID", state.id, "action", notification.Action)
				continue
			}
			s.dispatch(ctx, state, action, notification.Result)
		}
	}
}

func (s *SurrealLiveQueryService) dispatch(ctx context.Context, state *subscriptionState, action LiveQueryAction, data any) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.closed {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in live query handler", "subID", state.id, "panic", r)
		}
	}()
	state.handler(ctx, action, data)
}

func mapAction(n connection.Notification) (LiveQueryAction, bool) {
	switch n.Action {
	case connection.CreateAction:
		return ActionCreate, true
	case connection.UpdateAction:
		return ActionUpdate, true
	case connection.DeleteAction:
		return ActionDelete, true
	default:
		return "", false
	}
}

// liveQueryIDFrom extracts the live query UUID from a LIVE SELECT result.
func liveQueryIDFrom(result any) (string, error) {
	var id string
	switch v := result.(type) {
	case string:
		id = v
	case models.UUID:
		id = v.String()
	case map[string]any:
		switch inner := v["id"].(type) {
		case string:
			id = inner
		case models.UUID:
			id = inner.String()
		default:
			return "", NewDBError(ErrLiveQuery, fmt.Sprintf("live query result map does not contain 'id' field: %+v", v))
		}
	case nil:
		return "", NewDBError(ErrLiveQuery, "live query returned nil result")
	default:
		return "", NewDBError(ErrLiveQuery, fmt.Sprintf("unexpected live query result type: %T", result))
	}

	if id == "" {
		return "", NewDBError(ErrLiveQuery, "live query returned empty UUID")
	}
	return id, nil
}

func buildFieldList(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	return strings.Join(fields, ", ")
}

// extractTableFromQuery returns the identifier following FROM.
func extractTableFromQuery(query string) string {
	parts := strings.Fields(query)
	for i, part := range parts {
		if strings.ToUpper(part) == "FROM" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return "unknown"
}
