package placement

import (
	"context"

	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

// ItemSource looks up bank items for presentation.
type ItemSource interface {
	// FindCandidate returns an item at lvl and skill whose ID is not in
	// exclude. An empty skill matches any skill. It returns an apperr
	// resource_exhausted error when nothing qualifies.
	FindCandidate(ctx context.Context, lvl level.Level, skill bank.Skill, exclude []int64) (*bank.Item, error)

	// GetItem returns an apperr not_found error for unknown IDs.
	GetItem(ctx context.Context, id int64) (*bank.Item, error)
}

// SessionReader reads sessions and their responses.
type SessionReader interface {
	// GetSession returns an apperr not_found error for unknown IDs.
	GetSession(ctx context.Context, id string) (*Session, error)
	Responses(ctx context.Context, sessionID string) ([]Response, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*Session, error)
}

// Tx is the unit of work for one session operation. Everything done
// through a Tx commits together or not at all.
type Tx interface {
	ItemSource
	SessionReader

	// ActiveForOwner returns the owner's active session, or nil.
	ActiveForOwner(ctx context.Context, ownerID string) (*Session, error)

	// CreateSession returns an apperr conflict error when the owner already
	// has an active session.
	CreateSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error

	// AppendResponse returns an apperr conflict error when the sequence
	// number is already taken for the session.
	AppendResponse(ctx context.Context, r *Response) error
}

// SessionStore is the persistence boundary of the engine.
type SessionStore interface {
	SessionReader
	GetItem(ctx context.Context, id int64) (*bank.Item, error)

	// WithinTx runs fn in a write transaction, committing when fn returns
	// nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
