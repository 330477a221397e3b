package domain

// BpsBase is the fixed-point basis for bonus multipliers: 10000 = 1.0x.
const BpsBase int64 = 10_000

// Config is the singleton service configuration row. It exists exactly
// once; Initialize rejects a second attempt.
type Config struct {
	Admin       string `json:"admin"`
	Leaderboard string `json:"leaderboard,omitempty"`
	Paused      bool   `json:"paused"`
	NextEventID int64  `json:"next_event_id"`
	NextTokenID int64  `json:"next_token_id"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Event is a time-windowed, admin-defined scoring campaign.
type Event struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	StartTime     int64   `json:"start_time"`
	EndTime       int64   `json:"end_time"`
	RewardAmount  int64   `json:"reward_amount"`
	BonusBps      int64   `json:"bonus_bps"`
	TokenMetadata string  `json:"token_metadata,omitempty"`
	PuzzleIDs     []int64 `json:"puzzle_ids"`
	Cancelled     bool    `json:"cancelled"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

// HasPuzzle reports whether the puzzle belongs to the event's eligible set.
func (e Event) HasPuzzle(puzzleID int64) bool {
	for _, id := range e.PuzzleIDs {
		if id == puzzleID {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the event is active at the given unix time.
// The window is inclusive on both ends; cancelled events are never active.
func (e Event) ActiveAt(now int64) bool {
	if e.Cancelled {
		return false
	}
	return now >= e.StartTime && now <= e.EndTime
}

// Completion records a single scored puzzle completion. Set once per
// (event, participant, puzzle), never cleared.
type Completion struct {
	EventID     int64  `json:"event_id"`
	Participant string `json:"participant"`
	PuzzleID    int64  `json:"puzzle_id"`
	Score       int64  `json:"score"`
	CompletedAt string `json:"completed_at" format:"date-time"`
}

// RewardClaim marks a participant's one-time reward claim and the amount
// that was paid out at claim time.
type RewardClaim struct {
	EventID     int64  `json:"event_id"`
	Participant string `json:"participant"`
	Amount      int64  `json:"amount"`
	ClaimedAt   string `json:"claimed_at" format:"date-time"`
}

// EventToken is the commemorative token minted once per participant per
// event, gated on the reward claim. Immutable after mint.
type EventToken struct {
	ID       int64  `json:"id"`
	EventID  int64  `json:"event_id"`
	Owner    string `json:"owner"`
	Metadata string `json:"metadata,omitempty"`
	MintedAt int64  `json:"minted_at"`
}

// LedgerEntry is one durably appended record of a committed mutation.
type LedgerEntry struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	EventID int64  `json:"event_id,omitempty"`
	Entity  string `json:"entity"`
	Actor   string `json:"actor"`
	Payload string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
