package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"huntline/internal/domain"
	"huntline/internal/engine"
	"huntline/internal/engine/guard"
	"huntline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"reward_already_claimed"`
	Message string         `json:"message" example:"reward already claimed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"event_id\":1}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Huntline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Huntline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerService(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerCompletions(group, cfg.Engine)
	registerClaims(group, cfg.Engine)
	registerTokens(group, cfg.Engine)
	registerLedger(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ue guard.UnauthorizedError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"required": ue.Required})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	switch {
	case errors.Is(err, guard.ErrAlreadyInitialized):
		return newAPIError(http.StatusConflict, "already_initialized", err.Error(), nil)
	case errors.Is(err, guard.ErrAlreadyCompleted):
		return newAPIError(http.StatusConflict, "puzzle_already_completed", err.Error(), nil)
	case errors.Is(err, guard.ErrAlreadyClaimed):
		return newAPIError(http.StatusConflict, "reward_already_claimed", err.Error(), nil)
	case errors.Is(err, guard.ErrAlreadyMinted):
		return newAPIError(http.StatusConflict, "token_already_minted", err.Error(), nil)
	case errors.Is(err, guard.ErrPaused):
		return newAPIError(http.StatusUnprocessableEntity, "service_paused", err.Error(), nil)
	case errors.Is(err, guard.ErrEventNotActive):
		return newAPIError(http.StatusUnprocessableEntity, "event_not_active", err.Error(), nil)
	case errors.Is(err, guard.ErrNotParticipant):
		return newAPIError(http.StatusUnprocessableEntity, "not_participant", err.Error(), nil)
	case errors.Is(err, guard.ErrRewardNotClaimed):
		return newAPIError(http.StatusUnprocessableEntity, "reward_not_claimed", err.Error(), nil)
	case errors.Is(err, guard.ErrPuzzleNotInEvent):
		return newAPIError(http.StatusUnprocessableEntity, "puzzle_not_in_event", err.Error(), nil)
	case errors.Is(err, guard.ErrInvalidTimeRange):
		return newAPIError(http.StatusBadRequest, "invalid_time_range", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "submit score"):
		return newAPIError(http.StatusBadGateway, "leaderboard_unavailable", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Huntline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerService(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "init-service",
		Method:        http.MethodPost,
		Path:          "/service/init",
		Summary:       "Initialize service",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body InitServiceRequest `json:"body"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Admin == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "admin is required", nil)
		}
		cfg, err := e.Initialize(ctx, input.Body.Admin, input.Body.Leaderboard)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(cfg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-service",
		Method:      http.MethodGet,
		Path:        "/service",
		Summary:     "Service status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		cfg, err := e.Repo.GetConfig(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(cfg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-paused",
		Method:      http.MethodPost,
		Path:        "/service/pause",
		Summary:     "Pause or resume participant-facing operations",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body SetPausedRequest `json:"body"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SetPaused(ctx, actorID, input.Body.Paused); err != nil {
			return nil, handleError(err)
		}
		cfg, err := e.Repo.GetConfig(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(cfg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-leaderboard",
		Method:      http.MethodPost,
		Path:        "/service/leaderboard",
		Summary:     "Set leaderboard reference",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body SetLeaderboardRequest `json:"body"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SetLeaderboard(ctx, actorID, input.Body.Leaderboard); err != nil {
			return nil, handleError(err)
		}
		cfg, err := e.Repo.GetConfig(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(cfg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-verifier",
		Method:      http.MethodPost,
		Path:        "/service/verifiers",
		Summary:     "Grant verifier role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body AddVerifierRequest `json:"body"`
	}) (*struct{}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Verifier == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "verifier is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AddVerifier(ctx, actorID, input.Body.Verifier); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-verifier",
		Method:      http.MethodDelete,
		Path:        "/service/verifiers/{verifier}",
		Summary:     "Revoke verifier role",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Verifier string `path:"verifier"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveVerifier(ctx, actorID, input.Verifier); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-verifiers",
		Method:      http.MethodGet,
		Path:        "/service/verifiers",
		Summary:     "List verifiers",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []string `json:"body"`
	}, error) {
		items, err := e.Repo.ListVerifiers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []string `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Create event",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateEventRequest `json:"body"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.CreateEvent(ctx, actorID, engine.EventCreateOptions{
			Name:          input.Body.Name,
			StartTime:     input.Body.StartTime,
			EndTime:       input.Body.EndTime,
			RewardAmount:  input.Body.RewardAmount,
			BonusBps:      input.Body.BonusBps,
			TokenMetadata: input.Body.TokenMetadata,
			PuzzleIDs:     input.Body.PuzzleIDs,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.ListEvents(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}",
		Summary:     "Get event",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"event_id"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		ev, err := e.GetEvent(ctx, input.EventID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-event-times",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}/times",
		Summary:     "Update event window",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		EventID int64                   `path:"event_id"`
		Body    UpdateEventTimesRequest `json:"body"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.UpdateEventTimes(ctx, actorID, input.EventID, input.Body.StartTime, input.Body.EndTime)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-event-rewards",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}/rewards",
		Summary:     "Update event reward configuration",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		EventID int64                     `path:"event_id"`
		Body    UpdateEventRewardsRequest `json:"body"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.UpdateEventRewards(ctx, actorID, input.EventID, input.Body.RewardAmount, input.Body.BonusBps, input.Body.TokenMetadata)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-event-puzzles",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}/puzzles",
		Summary:     "Replace event puzzle set",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		EventID int64                     `path:"event_id"`
		Body    UpdateEventPuzzlesRequest `json:"body"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.UpdateEventPuzzles(ctx, actorID, input.EventID, input.Body.PuzzleIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-event-cancelled",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}/cancelled",
		Summary:     "Cancel or reinstate event",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		EventID int64                    `path:"event_id"`
		Body    SetEventCancelledRequest `json:"body"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.SetEventCancelled(ctx, actorID, input.EventID, input.Body.Cancelled)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "is-event-active",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/active",
		Summary:     "Event activity at the current time",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"event_id"`
	}) (*struct {
		Body map[string]bool `json:"body"`
	}, error) {
		active, err := e.IsEventActive(ctx, input.EventID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]bool `json:"body"`
		}{Body: map[string]bool{"active": active}}, nil
	})
}

func registerCompletions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-completion",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/completions",
		Summary:       "Record a scored puzzle completion",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		EventID int64                   `path:"event_id"`
		Body    RecordCompletionRequest `json:"body"`
	}) (*struct {
		Body CompletionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Participant == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "participant is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		total, err := e.RecordCompletion(ctx, actorID, input.EventID, input.Body.Participant, input.Body.PuzzleID, input.Body.Score)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CompletionResponse `json:"body"`
		}{Body: CompletionResponse{
			Participant: input.Body.Participant,
			PuzzleID:    input.Body.PuzzleID,
			Score:       input.Body.Score,
			Total:       total,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-score",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/participants/{participant}/score",
		Summary:     "Participant running total",
	}, func(ctx context.Context, input *struct {
		EventID     int64  `path:"event_id"`
		Participant string `path:"participant"`
	}) (*struct {
		Body ScoreResponse `json:"body"`
	}, error) {
		score, err := e.GetEventScore(ctx, input.EventID, input.Participant)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScoreResponse `json:"body"`
		}{Body: ScoreResponse{
			EventID:     input.EventID,
			Participant: input.Participant,
			Score:       score,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "has-completed-puzzle",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/participants/{participant}/completions/{puzzle_id}",
		Summary:     "Whether the participant completed the puzzle",
	}, func(ctx context.Context, input *struct {
		EventID     int64  `path:"event_id"`
		Participant string `path:"participant"`
		PuzzleID    int64  `path:"puzzle_id"`
	}) (*struct {
		Body map[string]bool `json:"body"`
	}, error) {
		done, err := e.HasCompletedPuzzle(ctx, input.EventID, input.Participant, input.PuzzleID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]bool `json:"body"`
		}{Body: map[string]bool{"completed": done}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "is-participant",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/participants/{participant}",
		Summary:     "Whether the address participates in the event",
	}, func(ctx context.Context, input *struct {
		EventID     int64  `path:"event_id"`
		Participant string `path:"participant"`
	}) (*struct {
		Body map[string]bool `json:"body"`
	}, error) {
		ok, err := e.IsParticipant(ctx, input.EventID, input.Participant)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]bool `json:"body"`
		}{Body: map[string]bool{"participant": ok}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "can-access-content",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/participants/{participant}/access",
		Summary:     "Whether the participant may view gated event content",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID     int64  `path:"event_id"`
		Participant string `path:"participant"`
	}) (*struct {
		Body map[string]bool `json:"body"`
	}, error) {
		ok, err := e.CanAccessEventContent(ctx, input.EventID, input.Participant)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]bool `json:"body"`
		}{Body: map[string]bool{"allowed": ok}}, nil
	})
}

func registerClaims(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "claim-reward",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/claim",
		Summary:       "Claim the one-time event reward",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"event_id"`
	}) (*struct {
		Body ClaimResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		amount, err := e.ClaimReward(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClaimResponse `json:"body"`
		}{Body: ClaimResponse{
			EventID:     input.EventID,
			Participant: actorID,
			Amount:      amount,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-claim",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/participants/{participant}/claim",
		Summary:     "Get a recorded reward claim",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID     int64  `path:"event_id"`
		Participant string `path:"participant"`
	}) (*struct {
		Body ClaimResponse `json:"body"`
	}, error) {
		claim, err := e.Repo.GetRewardClaim(ctx, input.EventID, input.Participant)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClaimResponse `json:"body"`
		}{Body: ClaimResponse{
			EventID:     claim.EventID,
			Participant: claim.Participant,
			Amount:      claim.Amount,
		}}, nil
	})
}

func registerTokens(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "mint-token",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/tokens",
		Summary:       "Mint the commemorative event token",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"event_id"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		token, err := e.MintEventToken(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: tokenResponse(token)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-token",
		Method:      http.MethodGet,
		Path:        "/tokens/{token_id}",
		Summary:     "Get token",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TokenID int64 `path:"token_id"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		token, err := e.GetToken(ctx, input.TokenID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: tokenResponse(token)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tokens",
		Method:      http.MethodGet,
		Path:        "/tokens",
		Summary:     "List tokens",
	}, func(ctx context.Context, input *struct {
		Owner string `query:"owner"`
	}) (*struct {
		Body []TokenResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListTokens(ctx, input.Owner)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TokenResponse `json:"body"`
		}{Body: mapTokens(items)}, nil
	})
}

func registerLedger(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ledger",
		Method:      http.MethodGet,
		Path:        "/ledger",
		Summary:     "Tail the mutation ledger",
	}, func(ctx context.Context, input *struct {
		Limit   int   `query:"limit" default:"50"`
		EventID int64 `query:"event_id"`
	}) (*struct {
		Body []LedgerEntryResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		if limit > 200 {
			limit = 200
		}
		items, err := e.Repo.ListLedger(ctx, limit, input.EventID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []LedgerEntryResponse `json:"body"`
		}{Body: mapLedger(items)}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		plaintext := uuid.NewString()
		key := newAPIKey(input.Body.ActorID, input.Body.Name, plaintext)
		if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
			return nil, handleError(err)
		}
		res := apiKeyResponse(key)
		res.Key = plaintext
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: mapAPIKeys(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func newAPIKey(actorID, name, plaintext string) domain.APIKey {
	return domain.APIKey{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Name:    name,
		KeyHash: repo.HashAPIKey(plaintext),
	}
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}
