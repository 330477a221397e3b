package guard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"huntline/internal/repo"
)

// Failure taxonomy for the event state machine. Every failure aborts the
// enclosing operation; the engine rolls back all staged writes.
var (
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrPaused             = errors.New("service paused")
	ErrInvalidTimeRange   = errors.New("invalid event time range")
	ErrEventNotActive     = errors.New("event not active")
	ErrPuzzleNotInEvent   = errors.New("puzzle not part of event")
	ErrAlreadyCompleted   = errors.New("puzzle already completed")
	ErrNotParticipant     = errors.New("not a participant")
	ErrAlreadyClaimed     = errors.New("reward already claimed")
	ErrAlreadyMinted      = errors.New("token already minted")
	ErrRewardNotClaimed   = errors.New("claim reward before minting")
)

// UnauthorizedError indicates the caller lacks the required role.
type UnauthorizedError struct {
	Required string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s required", e.Required)
}

// Guard evaluates role preconditions against state read inside the
// caller's transaction. It never mutates anything.
type Guard struct {
	Repo repo.Repo
}

func (g Guard) RequireAdmin(ctx context.Context, tx *sql.Tx, caller string) error {
	cfg, err := g.Repo.GetConfigTx(ctx, tx)
	if err != nil {
		return err
	}
	if cfg.Admin != caller {
		return UnauthorizedError{Required: "admin"}
	}
	return nil
}

func (g Guard) RequireAdminOrVerifier(ctx context.Context, tx *sql.Tx, caller string) error {
	cfg, err := g.Repo.GetConfigTx(ctx, tx)
	if err != nil {
		return err
	}
	if cfg.Admin == caller {
		return nil
	}
	ok, err := g.Repo.IsVerifier(ctx, tx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return UnauthorizedError{Required: "admin or verifier"}
	}
	return nil
}

func (g Guard) RequireParticipant(ctx context.Context, tx *sql.Tx, eventID int64, caller string) error {
	ok, err := g.Repo.IsParticipantTx(ctx, tx, eventID, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

func (g Guard) RequireNotPaused(ctx context.Context, tx *sql.Tx) error {
	cfg, err := g.Repo.GetConfigTx(ctx, tx)
	if err != nil {
		return err
	}
	if cfg.Paused {
		return ErrPaused
	}
	return nil
}
