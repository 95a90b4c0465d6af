// Package store provides SQLite persistence for per-user notification modes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/darshan-rambhia/herald/internal/notify"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a user has no stored notification mode.
var ErrNotFound = notify.ErrModeNotFound

// Store wraps a SQLite database holding notification modes.
type Store struct {
	db     *sql.DB
	sealer *sealer
}

// Option customizes a Store.
type Option func(*Store)

// WithSecretKey encrypts channel params at rest with a key derived from
// secret. Existing clear-text rows stay readable.
func WithSecretKey(secret string) Option {
	return func(s *Store) { s.sealer = newSealer(secret) }
}

// New opens or creates a SQLite database at the given path and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SetNotificationMode stores the user's channel configuration, replacing
// any previous one.
func (s *Store) SetNotificationMode(ctx context.Context, userID string, cfg model.ChannelConfig) error {
	if userID == "" {
		return errors.New("storing notification mode: user id is required")
	}
	if !cfg.Configured() {
		return errors.New("storing notification mode: type is required")
	}
	params := cfg.Params
	if params == nil {
		params = map[string]any{}
	}
	plain, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	stored, err := s.sealer.seal(plain)
	if err != nil {
		return fmt.Errorf("sealing params: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_modes (user_id, type, params, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			type = excluded.type,
			params = excluded.params,
			updated_at = excluded.updated_at`,
		userID, string(cfg.Type), stored, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("storing notification mode: %w", err)
	}
	return nil
}

// UserNotification returns the stored mode with its metadata.
func (s *Store) UserNotification(ctx context.Context, userID string) (model.UserNotification, error) {
	var (
		typ       string
		stored    string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT type, params, updated_at FROM notification_modes WHERE user_id = ?`, userID,
	).Scan(&typ, &stored, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserNotification{}, ErrNotFound
	}
	if err != nil {
		return model.UserNotification{}, fmt.Errorf("querying notification mode: %w", err)
	}

	plain, err := s.sealer.open(stored)
	if err != nil {
		return model.UserNotification{}, fmt.Errorf("opening params for %s: %w", userID, err)
	}
	var params map[string]any
	if err := json.Unmarshal(plain, &params); err != nil {
		return model.UserNotification{}, fmt.Errorf("decoding params for %s: %w", userID, err)
	}

	return model.UserNotification{
		UserID:    userID,
		Config:    model.ChannelConfig{Type: model.ChannelType(typ), Params: params},
		UpdatedAt: time.Unix(updatedAt, 0),
	}, nil
}

// NotificationMode returns the user's channel configuration. It implements
// notify.UserModes.
func (s *Store) NotificationMode(ctx context.Context, userID string) (model.ChannelConfig, error) {
	n, err := s.UserNotification(ctx, userID)
	if err != nil {
		return model.ChannelConfig{}, err
	}
	return n.Config, nil
}

// DeleteNotificationMode removes the user's mode. Deleting a missing mode
// returns ErrNotFound.
func (s *Store) DeleteNotificationMode(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notification_modes WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting notification mode: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountNotificationModes returns how many users have a stored mode.
func (s *Store) CountNotificationModes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_modes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting notification modes: %w", err)
	}
	return n, nil
}
