package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage is a pgxpool-backed Storage. It is the backend of
// choice for the cron worker because it exposes PostgreSQL advisory locks
// for multi-instance coordination.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/homecasebot?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stat exposes pool statistics for metrics collection.
func (s *PostgresPoolStorage) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}

func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS consumption_messages (
			id SERIAL PRIMARY KEY,
			content_hash VARCHAR(64) UNIQUE NOT NULL,
			message_date DATE NOT NULL,
			raw_message TEXT NOT NULL,
			parsed_data JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_content_hash ON consumption_messages(content_hash);`,
		`CREATE INDEX IF NOT EXISTS idx_message_date ON consumption_messages(message_date);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success INT,
			last_error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE,
			email TEXT,
			password_hash TEXT,
			role TEXT,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			name TEXT,
			token_hash TEXT,
			role TEXT,
			created_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			last_used_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS casbin_rules (
			id SERIAL PRIMARY KEY,
			ptype TEXT, v0 TEXT, v1 TEXT, v2 TEXT, v3 TEXT, v4 TEXT, v5 TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS email_configs (
			id TEXT PRIMARY KEY,
			provider TEXT,
			host TEXT,
			port INT,
			username TEXT,
			password TEXT,
			from_address TEXT,
			from_name TEXT,
			api_key TEXT,
			recipients TEXT,
			cc TEXT,
			greeting TEXT,
			signature TEXT,
			enabled BOOLEAN,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Advisory locks

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	return ok, err
}

// Consumption messages

func (s *PostgresPoolStorage) MessageExists(ctx context.Context, contentHash string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM consumption_messages WHERE content_hash=$1`, contentHash).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresPoolStorage) SaveMessage(ctx context.Context, msg ConsumptionMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO consumption_messages (content_hash, message_date, raw_message, parsed_data, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, msg.ContentHash, msg.MessageDate, msg.RawMessage, msg.ParsedData, msg.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresPoolStorage) GetMessage(ctx context.Context, contentHash string) (*ConsumptionMessage, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, content_hash, message_date, raw_message, parsed_data, created_at
		FROM consumption_messages WHERE content_hash=$1
	`, contentHash)
	return scanMessage(row)
}

func (s *PostgresPoolStorage) LatestMessage(ctx context.Context) (*ConsumptionMessage, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, content_hash, message_date, raw_message, parsed_data, created_at
		FROM consumption_messages ORDER BY message_date DESC LIMIT 1
	`)
	return scanMessage(row)
}

func scanMessage(row pgx.Row) (*ConsumptionMessage, error) {
	var m ConsumptionMessage
	err := row.Scan(&m.ID, &m.ContentHash, &m.MessageDate, &m.RawMessage, &m.ParsedData, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresPoolStorage) ListMessages(ctx context.Context, limit int) ([]ConsumptionMessage, error) {
	q := `SELECT id, content_hash, message_date, raw_message, parsed_data, created_at
		FROM consumption_messages ORDER BY message_date DESC`
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = s.pool.Query(ctx, q+` LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConsumptionMessage
	for rows.Next() {
		var m ConsumptionMessage
		if err := rows.Scan(&m.ID, &m.ContentHash, &m.MessageDate, &m.RawMessage, &m.ParsedData, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Settings

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
	`, key, value, time.Now())
	return err
}

// Users

func (s *PostgresPoolStorage) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE id=$1`, id)
}

func (s *PostgresPoolStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE username=$1`, username)
}

func (s *PostgresPoolStorage) getUser(ctx context.Context, query, arg string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresPoolStorage) UpdateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET username=$2, email=$3, password_hash=$4, role=$5, updated_at=$6 WHERE id=$1
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, time.Now())
	return err
}

func (s *PostgresPoolStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, email, password_hash, role, created_at, updated_at FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Tokens

func (s *PostgresPoolStorage) CreateToken(ctx context.Context, t Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, user_id, name, token_hash, role, created_at, expires_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, t.ID, t.UserID, t.Name, t.TokenHash, t.Role, t.CreatedAt, t.ExpiresAt, t.LastUsedAt)
	return err
}

func (s *PostgresPoolStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	return s.getToken(ctx, `SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE id=$1`, id)
}

func (s *PostgresPoolStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	return s.getToken(ctx, `SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE token_hash=$1`, hash)
}

func (s *PostgresPoolStorage) getToken(ctx context.Context, query, arg string) (*Token, error) {
	var t Token
	err := s.pool.QueryRow(ctx, query, arg).Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) DeleteToken(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET last_used_at=$2 WHERE id=$1`, id, time.Now())
	return err
}

// Casbin rules

func (s *PostgresPoolStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, ptype, v0, v1, v2, v3, v4, v5 FROM casbin_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CasbinRule
	for rows.Next() {
		var r CasbinRule
		if err := rows.Scan(&r.ID, &r.PType, &r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AddCasbinRule(ctx context.Context, r CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO casbin_rules (ptype, v0, v1, v2, v3, v4, v5) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, r.PType, r.V0, r.V1, r.V2, r.V3, r.V4, r.V5)
	return err
}

func (s *PostgresPoolStorage) RemoveCasbinRule(ctx context.Context, r CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM casbin_rules WHERE ptype=$1 AND v0=$2 AND v1=$3 AND v2=$4
	`, r.PType, r.V0, r.V1, r.V2)
	return err
}

// Email config

func (s *PostgresPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var c EmailConfig
	err := s.pool.QueryRow(ctx, `
		SELECT id, provider, host, port, username, password, from_address, from_name,
		       api_key, recipients, cc, greeting, signature, enabled, created_at, updated_at
		FROM email_configs LIMIT 1
	`).Scan(&c.ID, &c.Provider, &c.Host, &c.Port, &c.Username, &c.Password, &c.FromAddress,
		&c.FromName, &c.APIKey, &c.Recipients, &c.CC, &c.Greeting, &c.Signature, &c.Enabled,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) SaveEmailConfig(ctx context.Context, c EmailConfig) error {
	if c.ID == "" {
		c.ID = "default"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_configs (id, provider, host, port, username, password, from_address,
			from_name, api_key, recipients, cc, greeting, signature, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			provider=EXCLUDED.provider, host=EXCLUDED.host, port=EXCLUDED.port,
			username=EXCLUDED.username, password=EXCLUDED.password,
			from_address=EXCLUDED.from_address, from_name=EXCLUDED.from_name,
			api_key=EXCLUDED.api_key, recipients=EXCLUDED.recipients, cc=EXCLUDED.cc,
			greeting=EXCLUDED.greeting, signature=EXCLUDED.signature,
			enabled=EXCLUDED.enabled, updated_at=EXCLUDED.updated_at
	`, c.ID, c.Provider, c.Host, c.Port, c.Username, c.Password, c.FromAddress, c.FromName,
		c.APIKey, c.Recipients, c.CC, c.Greeting, c.Signature, c.Enabled, time.Now(), time.Now())
	return err
}

// Scheduled jobs

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, started, dur.Milliseconds(), status, errMsg)
	return err
}
