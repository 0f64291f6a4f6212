package storage

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyExists is returned by SaveMessage when a message with the same
// content hash was stored before.
var ErrAlreadyExists = errors.New("message already exists")

// Storage abstracts persistence for consumption messages and the
// supporting configuration tables.
type Storage interface {
	// Consumption messages
	MessageExists(ctx context.Context, contentHash string) (bool, error)
	SaveMessage(ctx context.Context, msg ConsumptionMessage) error
	GetMessage(ctx context.Context, contentHash string) (*ConsumptionMessage, error)
	LatestMessage(ctx context.Context) (*ConsumptionMessage, error)
	ListMessages(ctx context.Context, limit int) ([]ConsumptionMessage, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, cfg EmailConfig) error

	// Scheduled job bookkeeping
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
