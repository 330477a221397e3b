package server

import (
	"encoding/json"

	"huntline/internal/domain"
)

// Request payloads

type InitServiceRequest struct {
	Admin       string `json:"admin"`
	Leaderboard string `json:"leaderboard,omitempty"`
}

type SetPausedRequest struct {
	Paused bool `json:"paused"`
}

type SetLeaderboardRequest struct {
	Leaderboard string `json:"leaderboard"`
}

type AddVerifierRequest struct {
	Verifier string `json:"verifier"`
}

type CreateEventRequest struct {
	Name          string  `json:"name"`
	StartTime     int64   `json:"start_time"`
	EndTime       int64   `json:"end_time"`
	RewardAmount  int64   `json:"reward_amount"`
	BonusBps      int64   `json:"bonus_bps,omitempty"`
	TokenMetadata string  `json:"token_metadata,omitempty"`
	PuzzleIDs     []int64 `json:"puzzle_ids,omitempty"`
}

type UpdateEventTimesRequest struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
}

type UpdateEventRewardsRequest struct {
	RewardAmount  int64  `json:"reward_amount"`
	BonusBps      int64  `json:"bonus_bps,omitempty"`
	TokenMetadata string `json:"token_metadata,omitempty"`
}

type UpdateEventPuzzlesRequest struct {
	PuzzleIDs []int64 `json:"puzzle_ids"`
}

type SetEventCancelledRequest struct {
	Cancelled bool `json:"cancelled"`
}

type RecordCompletionRequest struct {
	Participant string `json:"participant"`
	PuzzleID    int64  `json:"puzzle_id"`
	Score       int64  `json:"score"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type ServiceResponse struct {
	Admin       string `json:"admin"`
	Leaderboard string `json:"leaderboard,omitempty"`
	Paused      bool   `json:"paused"`
	NextEventID int64  `json:"next_event_id"`
	NextTokenID int64  `json:"next_token_id"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
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

type CompletionResponse struct {
	Participant string `json:"participant"`
	PuzzleID    int64  `json:"puzzle_id"`
	Score       int64  `json:"score"`
	Total       int64  `json:"total"`
}

type ClaimResponse struct {
	EventID     int64  `json:"event_id"`
	Participant string `json:"participant"`
	Amount      int64  `json:"amount"`
}

type TokenResponse struct {
	ID       int64  `json:"id"`
	EventID  int64  `json:"event_id"`
	Owner    string `json:"owner"`
	Metadata string `json:"metadata,omitempty"`
	MintedAt int64  `json:"minted_at"`
}

type ScoreResponse struct {
	EventID     int64  `json:"event_id"`
	Participant string `json:"participant"`
	Score       int64  `json:"score"`
}

type LedgerEntryResponse struct {
	ID      int64          `json:"id"`
	TS      string         `json:"ts" format:"date-time"`
	Type    string         `json:"type"`
	EventID int64          `json:"event_id,omitempty"`
	Entity  string         `json:"entity"`
	Actor   string         `json:"actor"`
	Payload map[string]any `json:"payload,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is the plaintext key, returned only on creation.
	Key string `json:"key,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Conversion helpers

func serviceResponse(c domain.Config) ServiceResponse {
	return ServiceResponse(c)
}

func eventResponse(ev domain.Event) EventResponse {
	res := EventResponse(ev)
	res.PuzzleIDs = nonNilSlice(res.PuzzleIDs)
	return res
}

func tokenResponse(t domain.EventToken) TokenResponse {
	return TokenResponse(t)
}

func ledgerEntryResponse(e domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:      e.ID,
		TS:      e.TS,
		Type:    e.Type,
		EventID: e.EventID,
		Entity:  e.Entity,
		Actor:   e.Actor,
		Payload: decodeJSONMap(e.Payload),
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, ev := range items {
		res = append(res, eventResponse(ev))
	}
	return res
}

func mapTokens(items []domain.EventToken) []TokenResponse {
	res := make([]TokenResponse, 0, len(items))
	for _, t := range items {
		res = append(res, tokenResponse(t))
	}
	return res
}

func mapLedger(items []domain.LedgerEntry) []LedgerEntryResponse {
	res := make([]LedgerEntryResponse, 0, len(items))
	for _, e := range items {
		res = append(res, ledgerEntryResponse(e))
	}
	return res
}

func mapAPIKeys(items []domain.APIKey) []APIKeyResponse {
	res := make([]APIKeyResponse, 0, len(items))
	for _, k := range items {
		res = append(res, apiKeyResponse(k))
	}
	return res
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
