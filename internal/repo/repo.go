package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"huntline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ---- config singleton ----

const configColumns = `admin,COALESCE(leaderboard,'') AS leaderboard,paused,next_event_id,next_token_id,created_at,updated_at`

func scanConfig(row *sql.Row) (domain.Config, error) {
	var c domain.Config
	err := row.Scan(&c.Admin, &c.Leaderboard, &c.Paused, &c.NextEventID, &c.NextTokenID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertConfig(ctx context.Context, tx *sql.Tx, c domain.Config) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO config(id,admin,leaderboard,paused,next_event_id,next_token_id,created_at,updated_at) VALUES (1,?,?,?,?,?,?,?)`,
		c.Admin, nullable(c.Leaderboard), c.Paused, c.NextEventID, c.NextTokenID, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetConfig(ctx context.Context) (domain.Config, error) {
	return scanConfig(r.DB.QueryRowContext(ctx, `SELECT `+configColumns+` FROM config WHERE id=1`))
}

func (r Repo) GetConfigTx(ctx context.Context, tx *sql.Tx) (domain.Config, error) {
	return scanConfig(tx.QueryRowContext(ctx, `SELECT `+configColumns+` FROM config WHERE id=1`))
}

func (r Repo) HasConfig(ctx context.Context, tx *sql.Tx) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM config WHERE id=1`).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) SetPaused(ctx context.Context, tx *sql.Tx, paused bool, now string) error {
	return r.updateConfig(ctx, tx, `paused=?`, paused, now)
}

func (r Repo) SetLeaderboard(ctx context.Context, tx *sql.Tx, ref string, now string) error {
	return r.updateConfig(ctx, tx, `leaderboard=?`, nullable(ref), now)
}

func (r Repo) updateConfig(ctx context.Context, tx *sql.Tx, assignment string, value any, now string) error {
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE config SET %s, updated_at=? WHERE id=1`, assignment), value, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// NextEventID returns the current event id counter and advances it.
func (r Repo) NextEventID(ctx context.Context, tx *sql.Tx, now string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT next_event_id FROM config WHERE id=1`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE config SET next_event_id=?, updated_at=? WHERE id=1`, id+1, now); err != nil {
		return 0, err
	}
	return id, nil
}

// NextTokenID returns the current token id counter and advances it. The
// counter is global across all events.
func (r Repo) NextTokenID(ctx context.Context, tx *sql.Tx, now string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT next_token_id FROM config WHERE id=1`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE config SET next_token_id=?, updated_at=? WHERE id=1`, id+1, now); err != nil {
		return 0, err
	}
	return id, nil
}

// ---- events ----

const eventColumns = `id,name,start_time,end_time,reward_amount,bonus_bps,token_metadata,puzzle_ids_json,cancelled,created_at,updated_at`

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var ev domain.Event
	var puzzleJSON string
	err := scan(&ev.ID, &ev.Name, &ev.StartTime, &ev.EndTime, &ev.RewardAmount, &ev.BonusBps, &ev.TokenMetadata, &puzzleJSON, &ev.Cancelled, &ev.CreatedAt, &ev.UpdatedAt)
	if err == sql.ErrNoRows {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal([]byte(puzzleJSON), &ev.PuzzleIDs); err != nil {
		return ev, fmt.Errorf("decode puzzle ids for event %d: %w", ev.ID, err)
	}
	return ev, nil
}

func (r Repo) InsertEvent(ctx context.Context, tx *sql.Tx, ev domain.Event) error {
	puzzleJSON, err := marshalIDs(ev.PuzzleIDs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.Name, ev.StartTime, ev.EndTime, ev.RewardAmount, ev.BonusBps, ev.TokenMetadata, puzzleJSON, ev.Cancelled, ev.CreatedAt, ev.UpdatedAt)
	return err
}

func (r Repo) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=?`, id)
	return scanEvent(row.Scan)
}

func (r Repo) GetEventTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Event, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=?`, id)
	return scanEvent(row.Scan)
}

func (r Repo) UpdateEvent(ctx context.Context, tx *sql.Tx, ev domain.Event) error {
	puzzleJSON, err := marshalIDs(ev.PuzzleIDs)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE events SET name=?,start_time=?,end_time=?,reward_amount=?,bonus_bps=?,token_metadata=?,puzzle_ids_json=?,cancelled=?,updated_at=? WHERE id=?`,
		ev.Name, ev.StartTime, ev.EndTime, ev.RewardAmount, ev.BonusBps, ev.TokenMetadata, puzzleJSON, ev.Cancelled, ev.UpdatedAt, ev.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ---- verifiers ----

func (r Repo) AddVerifier(ctx context.Context, tx *sql.Tx, address, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO verifiers(address, added_at) VALUES (?,?)`, address, now)
	return err
}

func (r Repo) RemoveVerifier(ctx context.Context, tx *sql.Tx, address string) error {
	// removing a non-member is a no-op
	_, err := tx.ExecContext(ctx, `DELETE FROM verifiers WHERE address=?`, address)
	return err
}

func (r Repo) IsVerifier(ctx context.Context, tx *sql.Tx, address string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM verifiers WHERE address=? LIMIT 1`, address).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListVerifiers(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT address FROM verifiers ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

// ---- participation ----

func (r Repo) HasCompletion(ctx context.Context, tx *sql.Tx, eventID int64, address string, puzzleID int64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM completions WHERE event_id=? AND address=? AND puzzle_id=? LIMIT 1`,
		eventID, address, puzzleID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) InsertCompletion(ctx context.Context, tx *sql.Tx, c domain.Completion) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO completions(event_id,address,puzzle_id,score,completed_at) VALUES (?,?,?,?,?)`,
		c.EventID, c.Participant, c.PuzzleID, c.Score, c.CompletedAt)
	return err
}

func (r Repo) EnsureParticipant(ctx context.Context, tx *sql.Tx, eventID int64, address, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO participants(event_id,address,joined_at) VALUES (?,?,?)`,
		eventID, address, now)
	return err
}

func (r Repo) IsParticipant(ctx context.Context, eventID int64, address string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE event_id=? AND address=? LIMIT 1`, eventID, address).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) IsParticipantTx(ctx context.Context, tx *sql.Tx, eventID int64, address string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE event_id=? AND address=? LIMIT 1`, eventID, address).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AddScore adds delta to the participant's running total and returns the
// new total. Totals only ever increase.
func (r Repo) AddScore(ctx context.Context, tx *sql.Tx, eventID int64, address string, delta int64) (int64, error) {
	var prev int64
	err := tx.QueryRowContext(ctx, `SELECT total FROM scores WHERE event_id=? AND address=?`, eventID, address).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	total := prev + delta
	_, err = tx.ExecContext(ctx, `INSERT INTO scores(event_id,address,total) VALUES (?,?,?)
ON CONFLICT(event_id,address) DO UPDATE SET total=excluded.total`, eventID, address, total)
	return total, err
}

func (r Repo) GetScore(ctx context.Context, eventID int64, address string) (int64, error) {
	var total int64
	err := r.DB.QueryRowContext(ctx, `SELECT total FROM scores WHERE event_id=? AND address=?`, eventID, address).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return total, err
}

func (r Repo) HasCompletionDB(ctx context.Context, eventID int64, address string, puzzleID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM completions WHERE event_id=? AND address=? AND puzzle_id=? LIMIT 1`,
		eventID, address, puzzleID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ---- reward claims ----

func (r Repo) HasRewardClaim(ctx context.Context, tx *sql.Tx, eventID int64, address string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM reward_claims WHERE event_id=? AND address=? LIMIT 1`, eventID, address).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) InsertRewardClaim(ctx context.Context, tx *sql.Tx, c domain.RewardClaim) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reward_claims(event_id,address,amount,claimed_at) VALUES (?,?,?,?)`,
		c.EventID, c.Participant, c.Amount, c.ClaimedAt)
	return err
}

func (r Repo) GetRewardClaim(ctx context.Context, eventID int64, address string) (domain.RewardClaim, error) {
	var c domain.RewardClaim
	err := r.DB.QueryRowContext(ctx, `SELECT event_id,address,amount,claimed_at FROM reward_claims WHERE event_id=? AND address=?`,
		eventID, address).Scan(&c.EventID, &c.Participant, &c.Amount, &c.ClaimedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ---- tokens ----

func (r Repo) InsertToken(ctx context.Context, tx *sql.Tx, t domain.EventToken) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tokens(id,event_id,owner,metadata,minted_at) VALUES (?,?,?,?,?)`,
		t.ID, t.EventID, t.Owner, t.Metadata, t.MintedAt)
	return err
}

// HasToken reports whether the participant already minted for the event.
// Row presence is the mint flag; UNIQUE(event_id, owner) backs it up.
func (r Repo) HasToken(ctx context.Context, tx *sql.Tx, eventID int64, owner string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM tokens WHERE event_id=? AND owner=? LIMIT 1`, eventID, owner).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) GetToken(ctx context.Context, id int64) (domain.EventToken, error) {
	var t domain.EventToken
	err := r.DB.QueryRowContext(ctx, `SELECT id,event_id,owner,metadata,minted_at FROM tokens WHERE id=?`, id).
		Scan(&t.ID, &t.EventID, &t.Owner, &t.Metadata, &t.MintedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTokens(ctx context.Context, owner string) ([]domain.EventToken, error) {
	query := `SELECT id,event_id,owner,metadata,minted_at FROM tokens`
	var args []any
	if owner != "" {
		query += ` WHERE owner=?`
		args = append(args, owner)
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.EventToken
	for rows.Next() {
		var t domain.EventToken
		if err := rows.Scan(&t.ID, &t.EventID, &t.Owner, &t.Metadata, &t.MintedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- ledger reads ----

func (r Repo) ListLedger(ctx context.Context, limit int, eventID int64) ([]domain.LedgerEntry, error) {
	clauses := []string{}
	args := []any{}
	if eventID != 0 {
		clauses = append(clauses, "event_id=?")
		args = append(args, eventID)
	}
	query := `SELECT id,ts,type,COALESCE(event_id,0),entity,actor,payload_json FROM ledger`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EventID, &e.Entity, &e.Actor, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- helpers ----

func marshalIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
