package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/evently-labs/recoengine/internal/apperrors"
	"github.com/evently-labs/recoengine/internal/domain"
)

// SQLiteConnector is the Connector backed by modernc.org/sqlite: WAL journal mode, a
// bounded busy timeout, and idempotent `CREATE TABLE IF NOT EXISTS` migrations run
// once at open.
type SQLiteConnector struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a SQLite-backed connector at path and
// ensures its schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteConnector, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.New(apperrors.Internal, "connector.OpenSQLite", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	c := &SQLiteConnector{db: db}
	if err := c.createTables(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SQLiteConnector) Close() error { return c.db.Close() }

func (c *SQLiteConnector) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		bio TEXT,
		location TEXT,
		interests TEXT, -- JSON array
		kind TEXT NOT NULL DEFAULT 'individual',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		tags TEXT, -- JSON array
		location TEXT,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		max_attendees INTEGER,
		organizer_id TEXT NOT NULL,
		organization_id TEXT,
		archived INTEGER NOT NULL DEFAULT 0,
		archived_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS interactions (
		user_id TEXT NOT NULL,
		event_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, event_id, kind)
	);

	CREATE TABLE IF NOT EXISTS follows (
		follower TEXT NOT NULL,
		followee TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (follower, followee),
		CHECK (follower <> followee)
	);

	CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time);
	CREATE INDEX IF NOT EXISTS idx_interactions_user_created ON interactions(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_follows_follower ON follows(follower);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return apperrors.New(apperrors.Internal, "connector.createTables", err)
	}
	return nil
}

func (c *SQLiteConnector) FutureEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, description, category, tags, location, start_time, end_time,
		       max_attendees, organizer_id, organization_id, archived, archived_at, created_at
		FROM events
		WHERE archived = 0 AND start_time > ?
		ORDER BY start_time ASC`, time.Now().UTC())
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "connector.FutureEvents", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.New(apperrors.Internal, "connector.FutureEvents", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) ActiveUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, username, bio, location, interests, kind, created_at, updated_at FROM users`)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "connector.ActiveUsers", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.New(apperrors.Internal, "connector.ActiveUsers", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) UserByID(ctx context.Context, userID string) (domain.User, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, username, bio, location, interests, kind, created_at, updated_at
		FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return domain.User{}, apperrors.New(apperrors.NotFound, "connector.UserByID", err)
	}
	if err != nil {
		return domain.User{}, apperrors.New(apperrors.Internal, "connector.UserByID", err)
	}
	return u, nil
}

func (c *SQLiteConnector) RecentInteractions(ctx context.Context, userID string, now time.Time, horizon time.Duration) ([]domain.Interaction, error) {
	since := now.Add(-horizon)
	rows, err := c.db.QueryContext(ctx, `
		SELECT user_id, event_id, kind, created_at FROM interactions
		WHERE user_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at DESC`, userID, since, now)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "connector.RecentInteractions", err)
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		var in domain.Interaction
		var kind string
		if err := rows.Scan(&in.UserID, &in.EventID, &kind, &in.CreatedAt); err != nil {
			return nil, apperrors.New(apperrors.Internal, "connector.RecentInteractions", err)
		}
		in.Kind = domain.InteractionKind(kind)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) Followees(ctx context.Context, userID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT followee FROM follows WHERE follower = ?`, userID)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "connector.Followees", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var followee string
		if err := rows.Scan(&followee); err != nil {
			return nil, apperrors.New(apperrors.Internal, "connector.Followees", err)
		}
		out = append(out, followee)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "connector.Categories", err)
	}
	defer rows.Close()
	var out []domain.Category
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return nil, apperrors.New(apperrors.Internal, "connector.Categories", err)
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) Tags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "connector.Tags", err)
	}
	defer rows.Close()
	var out []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, apperrors.New(apperrors.Internal, "connector.Tags", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) FriendStatusesForEvent(ctx context.Context, eventID int64, followeeIDs []string) ([]FollowStatus, error) {
	if len(followeeIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(followeeIDs))
	args := make([]any, 0, len(followeeIDs)+1)
	args = append(args, eventID)
	for i, id := range followeeIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT user_id, kind FROM interactions
		WHERE event_id = ? AND kind IN ('going', 'interested') AND user_id IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "connector.FriendStatusesForEvent", err)
	}
	defer rows.Close()

	var out []FollowStatus
	for rows.Next() {
		var fs FollowStatus
		var kind string
		if err := rows.Scan(&fs.UserID, &kind); err != nil {
			return nil, apperrors.New(apperrors.Internal, "connector.FriendStatusesForEvent", err)
		}
		fs.Status = domain.InteractionKind(kind)
		out = append(out, fs)
	}
	return out, rows.Err()
}
