// Package history persists conversation turns per tenant. The agent loads a
// bounded window of recent turns as model context and appends the user and
// assistant turns of each exchange after it completes.
package history

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akiyama0/storemind/internal/log"
)

// Turn roles. Tool observations are not persisted; only the user-visible
// exchange is.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultLimit is the history window loaded when the caller passes a
// non-positive limit.
const DefaultLimit = 20

// Turn is one persisted conversation turn.
type Turn struct {
	ID        uuid.UUID
	TenantID  string
	Role      string
	Content   string
	CreatedAt time.Time
}

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads and writes conversation turns. Safe for concurrent use.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store. logger may be nil.
func NewStore(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

const insertTurnSQL = `
INSERT INTO conversation_turns (id, tenant_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)`

const selectRecentSQL = `
SELECT id, tenant_id, role, content, created_at
FROM conversation_turns
WHERE tenant_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

const deleteTenantSQL = `
DELETE FROM conversation_turns WHERE tenant_id = $1`

// SaveTurn appends one turn for the tenant.
func (s *Store) SaveTurn(ctx context.Context, tenantID, role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("history: unknown role %q", role)
	}

	id := uuid.New()
	if _, err := s.db.Exec(ctx, insertTurnSQL, id, tenantID, role, content, time.Now()); err != nil {
		return fmt.Errorf("saving %s turn for tenant %s: %w", role, tenantID, err)
	}

	s.logger.Debug("saved turn", "tenant_id", tenantID, "role", role, "chars", len(content))
	return nil
}

// LoadRecent returns up to limit of the tenant's most recent turns, ordered
// oldest first so they can be replayed into model context directly. A
// non-positive limit takes DefaultLimit.
func (s *Store) LoadRecent(ctx context.Context, tenantID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.Query(ctx, selectRecentSQL, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history rows: %w", err)
	}

	// The query returns newest first to apply the limit; callers want
	// chronological order.
	slices.Reverse(turns)
	return turns, nil
}

// DeleteTenant removes every turn for the tenant.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	tag, err := s.db.Exec(ctx, deleteTenantSQL, tenantID)
	if err != nil {
		return fmt.Errorf("deleting history for tenant %s: %w", tenantID, err)
	}
	s.logger.Debug("deleted tenant history", "tenant_id", tenantID, "turns", tag.RowsAffected())
	return nil
}
