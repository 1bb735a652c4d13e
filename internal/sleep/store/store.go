package store

import (
	"context"
	"errors"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Roles() Roles
	Integrations() Integrations
	OAuthStates() OAuthStates
	SleepRecords() SleepRecords
	Summaries() Summaries

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction: rolled back when fn
	// returns an error, committed otherwise. Use it for read-modify-write
	// sequences that must not clobber concurrent writers (integration state
	// updates in particular).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateDisplayName mutates display_name and bumps updated_at.
	UpdateDisplayName(ctx context.Context, userID, displayName string) error

	// DeleteUser cascades to the integration, sleep records and summary.
	DeleteUser(ctx context.Context, userID string) error
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)

	// GetRoleByName fetches a role by its name (for registration defaults).
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	ListAll(ctx context.Context) ([]domain.Role, error)
}

type Integrations interface {
	// GetIntegration returns the Oura integration state for a user.
	// ErrNotFound means the user never connected.
	GetIntegration(ctx context.Context, userID string) (domain.OuraIntegration, error)

	// UpsertIntegration writes the whole integration row for a user. The row
	// is separate from the users table so token updates never race with
	// profile edits.
	UpsertIntegration(ctx context.Context, in domain.OuraIntegration) error

	// UpdateLastSyncDate advances sync bookkeeping without touching tokens.
	UpdateLastSyncDate(ctx context.Context, userID string, at time.Time) error

	// SetTokenInvalid flips the advisory token_invalid flag.
	SetTokenInvalid(ctx context.Context, userID string, invalid bool) error

	// DeleteIntegration removes the connection entirely (explicit disconnect).
	DeleteIntegration(ctx context.Context, userID string) error
}

type OAuthStates interface {
	// CreateState stores a freshly minted CSRF state (hash of the opaque value).
	CreateState(ctx context.Context, s domain.OAuthState) error

	// GetState fetches a state record by hash, expired or not; the caller
	// decides what expiry means (delete + reject).
	GetState(ctx context.Context, stateHash string) (domain.OAuthState, error)

	// DeleteState removes a state record. States are strictly one-time use.
	DeleteState(ctx context.Context, stateHash string) error

	// DeleteExpiredStates removes states that expired before now, returning
	// how many went. Housekeeping calls this on a ticker.
	DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error)
}

type SleepRecords interface {
	// GetRecord returns the record for (userID, day). Day uses domain.DayLayout.
	GetRecord(ctx context.Context, userID, day string) (domain.SleepRecord, error)

	// ListRange returns records with fromDay <= day <= toDay ordered by day
	// ascending. Empty bounds mean unbounded on that side.
	ListRange(ctx context.Context, userID, fromDay, toDay string) ([]domain.SleepRecord, error)

	// UpsertBatch writes a batch of provider records. On conflict only metric
	// and source columns update; user-owned tags/notes are never touched, so
	// annotations survive any re-sync.
	UpsertBatch(ctx context.Context, records []domain.SleepRecord) error

	// UpdateAnnotations touches only the user-owned notes/tags fields.
	UpdateAnnotations(ctx context.Context, userID, day string, tags []string, notes string) error
}

type Summaries interface {
	// GetSummary returns the derived summary for a user.
	GetSummary(ctx context.Context, userID string) (domain.SleepSummary, error)

	// ReplaceSummary writes the whole summary document. Summaries are always
	// recomputed wholesale, never patched.
	ReplaceSummary(ctx context.Context, userID string, s domain.SleepSummary) error
}
