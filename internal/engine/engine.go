package engine

import (
	"context"
	"database/sql"
	"time"

	"huntline/internal/config"
	"huntline/internal/domain"
	"huntline/internal/engine/guard"
	"huntline/internal/leaderboard"
	"huntline/internal/ledger"
	"huntline/internal/repo"
)

// Engine is the event participation and reward-issuance state machine.
// Every public operation runs as one transaction: guard checks first, then
// staged writes and a ledger append, committed together or not at all.
type Engine struct {
	DB          *sql.DB
	Repo        repo.Repo
	Guard       guard.Guard
	Ledger      ledger.Writer
	Config      *config.Config
	Leaderboard leaderboard.Notifier
	Now         func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	timeout := time.Duration(cfg.Leaderboard.TimeoutSeconds) * time.Second
	return Engine{
		DB:          db,
		Repo:        r,
		Guard:       guard.Guard{Repo: r},
		Ledger:      ledger.Writer{DB: db},
		Config:      cfg,
		Leaderboard: leaderboard.NewClient(timeout, nil),
		Now:         time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowUnix() int64 { return e.now().Unix() }

func (e Engine) nowStr() string { return e.now().UTC().Format(time.RFC3339) }

// normalizeBps maps the zero value to the 1.0x basis.
func normalizeBps(bps int64) int64 {
	if bps == 0 {
		return domain.BpsBase
	}
	return bps
}

func applyBonus(amount, bps int64) int64 {
	return amount * normalizeBps(bps) / domain.BpsBase
}

// Initialize creates the singleton configuration and sets both id
// counters to 1. It fails if the service was already initialized.
func (e Engine) Initialize(ctx context.Context, admin, leaderboardRef string) (domain.Config, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Config{}, err
	}
	defer tx.Rollback()

	exists, err := e.Repo.HasConfig(ctx, tx)
	if err != nil {
		return domain.Config{}, err
	}
	if exists {
		return domain.Config{}, guard.ErrAlreadyInitialized
	}
	now := e.nowStr()
	cfg := domain.Config{
		Admin:       admin,
		Leaderboard: leaderboardRef,
		Paused:      false,
		NextEventID: 1,
		NextTokenID: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertConfig(ctx, tx, cfg); err != nil {
		return domain.Config{}, err
	}
	if err := e.Ledger.Append(ctx, tx, "service.initialized", 0, "config", admin, ledger.Payload{"admin": admin}); err != nil {
		return domain.Config{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// AddVerifier grants completion-reporting rights. Adding twice leaves the
// set unchanged.
func (e Engine) AddVerifier(ctx context.Context, caller, verifier string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireAdmin(ctx, tx, caller); err != nil {
		return err
	}
	if err := e.Repo.AddVerifier(ctx, tx, verifier, e.nowStr()); err != nil {
		return err
	}
	if err := e.Ledger.Append(ctx, tx, "verifier.added", 0, "verifier", caller, ledger.Payload{"verifier": verifier}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) RemoveVerifier(ctx context.Context, caller, verifier string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireAdmin(ctx, tx, caller); err != nil {
		return err
	}
	if err := e.Repo.RemoveVerifier(ctx, tx, verifier); err != nil {
		return err
	}
	if err := e.Ledger.Append(ctx, tx, "verifier.removed", 0, "verifier", caller, ledger.Payload{"verifier": verifier}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) SetPaused(ctx context.Context, caller string, paused bool) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireAdmin(ctx, tx, caller); err != nil {
		return err
	}
	if err := e.Repo.SetPaused(ctx, tx, paused, e.nowStr()); err != nil {
		return err
	}
	if err := e.Ledger.Append(ctx, tx, "service.paused", 0, "config", caller, ledger.Payload{"paused": paused}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetLeaderboard replaces the ranking collaborator reference; an empty
// ref disables notifications.
func (e Engine) SetLeaderboard(ctx context.Context, caller, ref string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireAdmin(ctx, tx, caller); err != nil {
		return err
	}
	if err := e.Repo.SetLeaderboard(ctx, tx, ref, e.nowStr()); err != nil {
		return err
	}
	if err := e.Ledger.Append(ctx, tx, "leaderboard.set", 0, "config", caller, ledger.Payload{"leaderboard": ref}); err != nil {
		return err
	}
	return tx.Commit()
}

// EventCreateOptions are parameters for creating an event.
type EventCreateOptions struct {
	Name          string
	StartTime     int64
	EndTime       int64
	RewardAmount  int64
	BonusBps      int64
	TokenMetadata string
	PuzzleIDs     []int64
}

// CreateEvent assigns the next event id and stores the event. The bonus
// multiplier is normalized so 0 means 10000 (1.0x).
func (e Engine) CreateEvent(ctx context.Context, caller string, opts EventCreateOptions) (domain.Event, error) {
	if opts.StartTime >= opts.EndTime {
		return domain.Event{}, guard.ErrInvalidTimeRange
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireAdmin(ctx, tx, caller); err != nil {
		return domain.Event{}, err
	}
	now := e.nowStr()
	id, err := e.Repo.NextEventID(ctx, tx, now)
	if err != nil {
		return domain.Event{}, err
	}
	ev := domain.Event{
		ID:            id,
		Name:          opts.Name,
		StartTime:     opts.StartTime,
		EndTime:       opts.EndTime,
		RewardAmount:  opts.RewardAmount,
		BonusBps:      normalizeBps(opts.BonusBps),
		TokenMetadata: opts.TokenMetadata,
		PuzzleIDs:     opts.PuzzleIDs,
		Cancelled:     false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.Repo.InsertEvent(ctx, tx, ev); err != nil {
		return domain.Event{}, err
	}
	if err := e.Ledger.Append(ctx, tx, "event.created", ev.ID, "event", caller, ledger.Payload{"name": ev.Name}); err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// UpdateEventTimes moves the event window, re-validating start < end.
func (e Engine) UpdateEventTimes(ctx context.Context, caller string, eventID, start, end int64) (domain.Event, error) {
	if start >= end {
		return domain.Event{}, guard.ErrInvalidTimeRange
	}
	return e.updateEvent(ctx, caller, eventID, "event.times_updated", func(ev *domain.Event) {
		ev.StartTime = start
		ev.EndTime = end
	})
}

func (e Engine) UpdateEventRewards(ctx context.Context, caller string, eventID, rewardAmount, bonusBps int64, tokenMetadata string) (domain.Event, error) {
	return e.updateEvent(ctx, caller, eventID, "event.rewards_updated", func(ev *domain.Event) {
		ev.RewardAmount = rewardAmount
		ev.BonusBps = normalizeBps(bonusBps)
		ev.TokenMetadata = tokenMetadata
	})
}

func (e Engine) UpdateEventPuzzles(ctx context.Context, caller string, eventID int64, puzzleIDs []int64) (domain.Event, error) {
	return e.updateEvent(ctx, caller, eventID, "event.puzzles_updated", func(ev *domain.Event) {
		ev.PuzzleIDs = puzzleIDs
	})
}

func (e Engine) SetEventCancelled(ctx context.Context, caller string, eventID int64, cancelled bool) (domain.Event, error) {
	return e.updateEvent(ctx, caller, eventID, "event.cancelled_set", func(ev *domain.Event) {
		ev.Cancelled = cancelled
	})
}

func (e Engine) updateEvent(ctx context.Context, caller string, eventID int64, entryType string, mutate func(*domain.Event)) (domain.Event, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireAdmin(ctx, tx, caller); err != nil {
		return domain.Event{}, err
	}
	ev, err := e.Repo.GetEventTx(ctx, tx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	mutate(&ev)
	ev.UpdatedAt = e.nowStr()
	if err := e.Repo.UpdateEvent(ctx, tx, ev); err != nil {
		return domain.Event{}, err
	}
	if err := e.Ledger.Append(ctx, tx, entryType, ev.ID, "event", caller, nil); err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// RecordCompletion records a scored puzzle completion for a participant.
// The submitter must be the admin or a verifier. The new running total is
// forwarded to the leaderboard collaborator inside the same transaction:
// if the collaborator rejects the submission, nothing is recorded.
func (e Engine) RecordCompletion(ctx context.Context, submitter string, eventID int64, participant string, puzzleID, score int64) (int64, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireAdminOrVerifier(ctx, tx, submitter); err != nil {
		return 0, err
	}
	if err := e.Guard.RequireNotPaused(ctx, tx); err != nil {
		return 0, err
	}
	ev, err := e.requireActiveEvent(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}
	if !ev.HasPuzzle(puzzleID) {
		return 0, guard.ErrPuzzleNotInEvent
	}
	done, err := e.Repo.HasCompletion(ctx, tx, eventID, participant, puzzleID)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, guard.ErrAlreadyCompleted
	}

	now := e.nowStr()
	if err := e.Repo.InsertCompletion(ctx, tx, domain.Completion{
		EventID:     eventID,
		Participant: participant,
		PuzzleID:    puzzleID,
		Score:       score,
		CompletedAt: now,
	}); err != nil {
		return 0, err
	}
	if err := e.Repo.EnsureParticipant(ctx, tx, eventID, participant, now); err != nil {
		return 0, err
	}
	total, err := e.Repo.AddScore(ctx, tx, eventID, participant, score)
	if err != nil {
		return 0, err
	}
	if err := e.Ledger.Append(ctx, tx, "completion.recorded", eventID, "completion", submitter, ledger.Payload{
		"participant": participant,
		"puzzle_id":   puzzleID,
		"score":       score,
		"total":       total,
	}); err != nil {
		return 0, err
	}
	if err := e.notifyLeaderboard(ctx, tx, participant, total); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// ClaimReward issues the one-time reward for an event. The amount is
// computed from the event's current reward and bonus, not from a snapshot
// taken at completion time.
func (e Engine) ClaimReward(ctx context.Context, eventID int64, caller string) (int64, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireNotPaused(ctx, tx); err != nil {
		return 0, err
	}
	ev, err := e.requireActiveEvent(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}
	if err := e.Guard.RequireParticipant(ctx, tx, eventID, caller); err != nil {
		return 0, err
	}
	claimed, err := e.Repo.HasRewardClaim(ctx, tx, eventID, caller)
	if err != nil {
		return 0, err
	}
	if claimed {
		return 0, guard.ErrAlreadyClaimed
	}

	amount := applyBonus(ev.RewardAmount, ev.BonusBps)
	if err := e.Repo.InsertRewardClaim(ctx, tx, domain.RewardClaim{
		EventID:     eventID,
		Participant: caller,
		Amount:      amount,
		ClaimedAt:   e.nowStr(),
	}); err != nil {
		return 0, err
	}
	if err := e.Ledger.Append(ctx, tx, "reward.claimed", eventID, "reward", caller, ledger.Payload{"amount": amount}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return amount, nil
}

// MintEventToken mints the commemorative token, once per participant per
// event and only after the reward claim. Metadata is copied from the
// event at mint time.
func (e Engine) MintEventToken(ctx context.Context, eventID int64, caller string) (domain.EventToken, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EventToken{}, err
	}
	defer tx.Rollback()

	if err := e.Guard.RequireNotPaused(ctx, tx); err != nil {
		return domain.EventToken{}, err
	}
	ev, err := e.requireActiveEvent(ctx, tx, eventID)
	if err != nil {
		return domain.EventToken{}, err
	}
	if err := e.Guard.RequireParticipant(ctx, tx, eventID, caller); err != nil {
		return domain.EventToken{}, err
	}
	claimed, err := e.Repo.HasRewardClaim(ctx, tx, eventID, caller)
	if err != nil {
		return domain.EventToken{}, err
	}
	if !claimed {
		return domain.EventToken{}, guard.ErrRewardNotClaimed
	}
	minted, err := e.Repo.HasToken(ctx, tx, eventID, caller)
	if err != nil {
		return domain.EventToken{}, err
	}
	if minted {
		return domain.EventToken{}, guard.ErrAlreadyMinted
	}

	id, err := e.Repo.NextTokenID(ctx, tx, e.nowStr())
	if err != nil {
		return domain.EventToken{}, err
	}
	token := domain.EventToken{
		ID:       id,
		EventID:  eventID,
		Owner:    caller,
		Metadata: ev.TokenMetadata,
		MintedAt: e.nowUnix(),
	}
	if err := e.Repo.InsertToken(ctx, tx, token); err != nil {
		return domain.EventToken{}, err
	}
	if err := e.Ledger.Append(ctx, tx, "token.minted", eventID, "token", caller, ledger.Payload{"token_id": id}); err != nil {
		return domain.EventToken{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EventToken{}, err
	}
	return token, nil
}

// ---- read accessors ----

func (e Engine) GetEvent(ctx context.Context, eventID int64) (domain.Event, error) {
	return e.Repo.GetEvent(ctx, eventID)
}

func (e Engine) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx)
}

func (e Engine) GetEventScore(ctx context.Context, eventID int64, participant string) (int64, error) {
	return e.Repo.GetScore(ctx, eventID, participant)
}

func (e Engine) HasCompletedPuzzle(ctx context.Context, eventID int64, participant string, puzzleID int64) (bool, error) {
	return e.Repo.HasCompletionDB(ctx, eventID, participant, puzzleID)
}

func (e Engine) IsParticipant(ctx context.Context, eventID int64, participant string) (bool, error) {
	return e.Repo.IsParticipant(ctx, eventID, participant)
}

// IsEventActive evaluates activity against the clock fresh on every call.
func (e Engine) IsEventActive(ctx context.Context, eventID int64) (bool, error) {
	ev, err := e.Repo.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	return ev.ActiveAt(e.nowUnix()), nil
}

// CanAccessEventContent reports whether the participant may view gated
// event content: the event must be active and the caller a participant.
func (e Engine) CanAccessEventContent(ctx context.Context, eventID int64, participant string) (bool, error) {
	active, err := e.IsEventActive(ctx, eventID)
	if err != nil {
		return false, err
	}
	if !active {
		return false, nil
	}
	return e.Repo.IsParticipant(ctx, eventID, participant)
}

func (e Engine) GetToken(ctx context.Context, tokenID int64) (domain.EventToken, error) {
	return e.Repo.GetToken(ctx, tokenID)
}

// ---- helpers ----

func (e Engine) requireActiveEvent(ctx context.Context, tx *sql.Tx, eventID int64) (domain.Event, error) {
	ev, err := e.Repo.GetEventTx(ctx, tx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if !ev.ActiveAt(e.nowUnix()) {
		return domain.Event{}, guard.ErrEventNotActive
	}
	return ev, nil
}

func (e Engine) notifyLeaderboard(ctx context.Context, tx *sql.Tx, participant string, total int64) error {
	cfg, err := e.Repo.GetConfigTx(ctx, tx)
	if err != nil {
		return err
	}
	if cfg.Leaderboard == "" || e.Leaderboard == nil {
		return nil
	}
	source := ""
	if e.Config != nil {
		source = e.Config.Service.ID
	}
	return e.Leaderboard.SubmitScore(ctx, cfg.Leaderboard, source, participant, total)
}
