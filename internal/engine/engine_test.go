package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"huntline/internal/config"
	"huntline/internal/db"
	"huntline/internal/engine"
	"huntline/internal/engine/guard"
	"huntline/internal/migrate"
	"huntline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

const admin = "admin"

// newTestEnv opens a fresh workspace, initializes the service as admin,
// and pins the clock to unix 150.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Unix(150, 0) }
	ctx := context.Background()
	if _, err := eng.Initialize(ctx, admin, ""); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return &testEnv{Engine: eng, Ctx: ctx}
}

func (env *testEnv) setNow(unix int64) {
	env.Engine.Now = func() time.Time { return time.Unix(unix, 0) }
}

// createEvent makes the standard test event: window [100,200], reward
// 1000, bonus 1.5x, puzzles 1-3.
func (env *testEnv) createEvent(t *testing.T) int64 {
	t.Helper()
	ev, err := env.Engine.CreateEvent(env.Ctx, admin, engine.EventCreateOptions{
		Name:          "launch hunt",
		StartTime:     100,
		EndTime:       200,
		RewardAmount:  1000,
		BonusBps:      15000,
		TokenMetadata: "ipfs://launch-hunt",
		PuzzleIDs:     []int64{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev.ID
}

func TestInitializeOnce(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Initialize(env.Ctx, "someone-else", ""); !errors.Is(err, guard.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	cfg, err := env.Engine.Repo.GetConfig(env.Ctx)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.Admin != admin {
		t.Fatalf("admin overwritten: %q", cfg.Admin)
	}
	if cfg.NextEventID != 1 || cfg.NextTokenID != 1 {
		t.Fatalf("counters not seeded: %+v", cfg)
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	env := newTestEnv(t)
	var ue guard.UnauthorizedError
	if _, err := env.Engine.CreateEvent(env.Ctx, "mallory", engine.EventCreateOptions{
		Name: "x", StartTime: 1, EndTime: 2,
	}); !errors.As(err, &ue) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := env.Engine.AddVerifier(env.Ctx, "mallory", "v1"); !errors.As(err, &ue) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := env.Engine.SetPaused(env.Ctx, "mallory", true); !errors.As(err, &ue) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestVerifierRoleGating(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)

	if _, err := env.Engine.RecordCompletion(env.Ctx, "v1", eventID, "alice", 1, 10); err == nil {
		t.Fatalf("expected unauthorized submitter to fail")
	}
	if err := env.Engine.AddVerifier(env.Ctx, admin, "v1"); err != nil {
		t.Fatalf("add verifier: %v", err)
	}
	// adding twice leaves the set unchanged
	if err := env.Engine.AddVerifier(env.Ctx, admin, "v1"); err != nil {
		t.Fatalf("re-add verifier: %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, "v1", eventID, "alice", 1, 10); err != nil {
		t.Fatalf("verifier submit: %v", err)
	}
	if err := env.Engine.RemoveVerifier(env.Ctx, admin, "v1"); err != nil {
		t.Fatalf("remove verifier: %v", err)
	}
	// removing a non-member is a no-op
	if err := env.Engine.RemoveVerifier(env.Ctx, admin, "v1"); err != nil {
		t.Fatalf("re-remove verifier: %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, "v1", eventID, "alice", 2, 10); err == nil {
		t.Fatalf("expected removed verifier to fail")
	}
}

func TestRecordCompletionIdempotent(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)

	total, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 25)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if total != 25 {
		t.Fatalf("expected total 25, got %d", total)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 99); !errors.Is(err, guard.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	score, err := env.Engine.GetEventScore(env.Ctx, eventID, "alice")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 25 {
		t.Fatalf("score changed on rejected duplicate: %d", score)
	}
	// a different puzzle still accumulates
	total, err = env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 2, 30)
	if err != nil {
		t.Fatalf("second puzzle: %v", err)
	}
	if total != 55 {
		t.Fatalf("expected total 55, got %d", total)
	}
}

func TestCompletionRequiresPuzzleInEvent(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 7, 10); !errors.Is(err, guard.ErrPuzzleNotInEvent) {
		t.Fatalf("expected ErrPuzzleNotInEvent, got %v", err)
	}
	if ok, _ := env.Engine.IsParticipant(env.Ctx, eventID, "alice"); ok {
		t.Fatalf("rejected completion must not enroll participant")
	}
}

func TestEventActivityBoundaries(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)

	cases := []struct {
		now    int64
		active bool
	}{
		{99, false},
		{100, true},
		{150, true},
		{200, true},
		{201, false},
	}
	for _, tc := range cases {
		env.setNow(tc.now)
		active, err := env.Engine.IsEventActive(env.Ctx, eventID)
		if err != nil {
			t.Fatalf("active at %d: %v", tc.now, err)
		}
		if active != tc.active {
			t.Fatalf("at %d expected active=%v", tc.now, tc.active)
		}
	}

	env.setNow(150)
	if _, err := env.Engine.SetEventCancelled(env.Ctx, admin, eventID, true); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if active, _ := env.Engine.IsEventActive(env.Ctx, eventID); active {
		t.Fatalf("cancelled event must not be active")
	}
	if _, err := env.Engine.SetEventCancelled(env.Ctx, admin, eventID, false); err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if active, _ := env.Engine.IsEventActive(env.Ctx, eventID); !active {
		t.Fatalf("reinstated event should be active")
	}
}

func TestCompletionOutsideWindowRejected(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	env.setNow(201)
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); !errors.Is(err, guard.ErrEventNotActive) {
		t.Fatalf("expected ErrEventNotActive, got %v", err)
	}
}

func TestClaimReward(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)

	// non-participant cannot claim
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice"); !errors.Is(err, guard.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	amount, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != 1500 { // 1000 * 15000 / 10000
		t.Fatalf("expected 1500, got %d", amount)
	}
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice"); !errors.Is(err, guard.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	// window closed: further claims rejected even for participants
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "bob", 1, 5); err != nil {
		t.Fatalf("record bob: %v", err)
	}
	env.setNow(201)
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "bob"); !errors.Is(err, guard.ErrEventNotActive) {
		t.Fatalf("expected ErrEventNotActive after end, got %v", err)
	}
}

func TestClaimAmountMath(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		reward int64
		bonus  int64
		want   int64
	}{
		{1000, 0, 1000},     // zero bonus normalizes to 1.0x
		{1000, 10000, 1000}, // explicit 1.0x
		{999, 12500, 1248},  // floor of 1248.75
		{1, 5000, 0},        // floor toward zero
	}
	for i, tc := range cases {
		ev, err := env.Engine.CreateEvent(env.Ctx, admin, engine.EventCreateOptions{
			Name:         fmt.Sprintf("hunt-%d", i),
			StartTime:    100,
			EndTime:      200,
			RewardAmount: tc.reward,
			BonusBps:     tc.bonus,
			PuzzleIDs:    []int64{1},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := env.Engine.RecordCompletion(env.Ctx, admin, ev.ID, "alice", 1, 1); err != nil {
			t.Fatalf("record: %v", err)
		}
		amount, err := env.Engine.ClaimReward(env.Ctx, ev.ID, "alice")
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if amount != tc.want {
			t.Fatalf("reward %d bonus %d: expected %d, got %d", tc.reward, tc.bonus, tc.want, amount)
		}
	}
}

func TestRewardsReadLiveAtClaim(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := env.Engine.UpdateEventRewards(env.Ctx, admin, eventID, 2000, 0, "ipfs://updated"); err != nil {
		t.Fatalf("update rewards: %v", err)
	}
	amount, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != 2000 {
		t.Fatalf("claim must use current reward config, got %d", amount)
	}
}

func TestMintGating(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)

	if _, err := env.Engine.MintEventToken(env.Ctx, eventID, "alice"); !errors.Is(err, guard.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := env.Engine.MintEventToken(env.Ctx, eventID, "alice"); !errors.Is(err, guard.ErrRewardNotClaimed) {
		t.Fatalf("expected ErrRewardNotClaimed, got %v", err)
	}
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	token, err := env.Engine.MintEventToken(env.Ctx, eventID, "alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if token.ID != 1 {
		t.Fatalf("expected first token id 1, got %d", token.ID)
	}
	if token.Metadata != "ipfs://launch-hunt" {
		t.Fatalf("metadata not copied from event: %q", token.Metadata)
	}
	if token.Owner != "alice" || token.EventID != eventID {
		t.Fatalf("unexpected token: %+v", token)
	}
	if _, err := env.Engine.MintEventToken(env.Ctx, eventID, "alice"); !errors.Is(err, guard.ErrAlreadyMinted) {
		t.Fatalf("expected ErrAlreadyMinted, got %v", err)
	}

	// token ids are global across participants
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "bob", 1, 5); err != nil {
		t.Fatalf("record bob: %v", err)
	}
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "bob"); err != nil {
		t.Fatalf("claim bob: %v", err)
	}
	second, err := env.Engine.MintEventToken(env.Ctx, eventID, "bob")
	if err != nil {
		t.Fatalf("mint bob: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("expected token id 2, got %d", second.ID)
	}
}

func TestMetadataSnapshotAtMint(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	token, err := env.Engine.MintEventToken(env.Ctx, eventID, "alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := env.Engine.UpdateEventRewards(env.Ctx, admin, eventID, 1000, 15000, "ipfs://changed"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := env.Engine.GetToken(env.Ctx, token.ID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got.Metadata != "ipfs://launch-hunt" {
		t.Fatalf("minted metadata must not follow event updates: %q", got.Metadata)
	}
}

func TestPauseBlocksParticipantOperations(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := env.Engine.SetPaused(env.Ctx, admin, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 2, 10); !errors.Is(err, guard.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice"); !errors.Is(err, guard.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if _, err := env.Engine.MintEventToken(env.Ctx, eventID, "alice"); !errors.Is(err, guard.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := env.Engine.SetPaused(env.Ctx, admin, false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice"); err != nil {
		t.Fatalf("claim after resume: %v", err)
	}
}

func TestInvalidTimeRange(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateEvent(env.Ctx, admin, engine.EventCreateOptions{
		Name: "bad", StartTime: 200, EndTime: 100,
	}); !errors.Is(err, guard.ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	eventID := env.createEvent(t)
	if _, err := env.Engine.UpdateEventTimes(env.Ctx, admin, eventID, 300, 300); !errors.Is(err, guard.ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange on equal bounds, got %v", err)
	}
}

func TestUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.GetEvent(env.Ctx, 42); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, 42, "alice", 1, 10); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCanAccessEventContent(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	if ok, _ := env.Engine.CanAccessEventContent(env.Ctx, eventID, "alice"); ok {
		t.Fatalf("non-participant must not access content")
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if ok, _ := env.Engine.CanAccessEventContent(env.Ctx, eventID, "alice"); !ok {
		t.Fatalf("participant of active event should access content")
	}
	env.setNow(201)
	if ok, _ := env.Engine.CanAccessEventContent(env.Ctx, eventID, "alice"); ok {
		t.Fatalf("access must lapse with the event window")
	}
}

type recordingNotifier struct {
	target      string
	source      string
	participant string
	score       int64
	calls       int
}

func (n *recordingNotifier) SubmitScore(ctx context.Context, target, source, participant string, score int64) error {
	n.target = target
	n.source = source
	n.participant = participant
	n.score = score
	n.calls++
	return nil
}

type failingNotifier struct{}

func (failingNotifier) SubmitScore(ctx context.Context, target, source, participant string, score int64) error {
	return errors.New("submit score: leaderboard unavailable")
}

func TestLeaderboardReceivesRunningTotal(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.SetLeaderboard(env.Ctx, admin, "http://lb.test/scores"); err != nil {
		t.Fatalf("set leaderboard: %v", err)
	}
	notifier := &recordingNotifier{}
	env.Engine.Leaderboard = notifier
	eventID := env.createEvent(t)

	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 2, 15); err != nil {
		t.Fatalf("record: %v", err)
	}
	if notifier.calls != 2 {
		t.Fatalf("expected 2 submissions, got %d", notifier.calls)
	}
	if notifier.target != "http://lb.test/scores" || notifier.participant != "alice" {
		t.Fatalf("unexpected submission: %+v", notifier)
	}
	if notifier.score != 25 {
		t.Fatalf("expected running total 25, got %d", notifier.score)
	}
}

func TestLeaderboardFailureRollsBackCompletion(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.SetLeaderboard(env.Ctx, admin, "http://lb.test/scores"); err != nil {
		t.Fatalf("set leaderboard: %v", err)
	}
	env.Engine.Leaderboard = failingNotifier{}
	eventID := env.createEvent(t)

	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err == nil {
		t.Fatalf("expected completion to fail with leaderboard down")
	}
	done, err := env.Engine.HasCompletedPuzzle(env.Ctx, eventID, "alice", 1)
	if err != nil {
		t.Fatalf("has completion: %v", err)
	}
	if done {
		t.Fatalf("completion persisted despite rollback")
	}
	if score, _ := env.Engine.GetEventScore(env.Ctx, eventID, "alice"); score != 0 {
		t.Fatalf("score persisted despite rollback: %d", score)
	}
	if ok, _ := env.Engine.IsParticipant(env.Ctx, eventID, "alice"); ok {
		t.Fatalf("participation persisted despite rollback")
	}
	var count int
	row := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT count(*) FROM ledger WHERE type='completion.recorded'`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if count != 0 {
		t.Fatalf("ledger entry persisted despite rollback")
	}

	// the same completion succeeds once the leaderboard recovers
	env.Engine.Leaderboard = &recordingNotifier{}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestLedgerAppendsOnMutations(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := env.Engine.ClaimReward(env.Ctx, eventID, "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := env.Engine.MintEventToken(env.Ctx, eventID, "alice"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	entries, err := env.Engine.Repo.ListLedger(env.Ctx, 50, eventID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	types := map[string]bool{}
	for _, e := range entries {
		types[e.Type] = true
	}
	for _, want := range []string{"event.created", "completion.recorded", "reward.claimed", "token.minted"} {
		if !types[want] {
			t.Fatalf("missing ledger type %q in %v", want, types)
		}
	}
}

func TestUpdateEventPuzzles(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.createEvent(t)
	if _, err := env.Engine.UpdateEventPuzzles(env.Ctx, admin, eventID, []int64{7, 8}); err != nil {
		t.Fatalf("update puzzles: %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 1, 10); !errors.Is(err, guard.ErrPuzzleNotInEvent) {
		t.Fatalf("old puzzle should be rejected, got %v", err)
	}
	if _, err := env.Engine.RecordCompletion(env.Ctx, admin, eventID, "alice", 7, 10); err != nil {
		t.Fatalf("new puzzle: %v", err)
	}
}

func TestBonusNormalizedOnWrite(t *testing.T) {
	env := newTestEnv(t)
	ev, err := env.Engine.CreateEvent(env.Ctx, admin, engine.EventCreateOptions{
		Name: "plain", StartTime: 100, EndTime: 200, RewardAmount: 500,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ev.BonusBps != 10000 {
		t.Fatalf("zero bonus must store as 10000, got %d", ev.BonusBps)
	}
	updated, err := env.Engine.UpdateEventRewards(env.Ctx, admin, ev.ID, 500, 0, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.BonusBps != 10000 {
		t.Fatalf("zero bonus on update must store as 10000, got %d", updated.BonusBps)
	}
}
