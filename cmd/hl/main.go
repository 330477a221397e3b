package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"huntline/internal/app"
	"huntline/internal/config"
	"huntline/internal/db"
	"huntline/internal/domain"
	"huntline/internal/engine"
	"huntline/internal/leaderboard"
	"huntline/internal/repo"
	"huntline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Huntline CLI",
	Long: `Huntline runs time-gated puzzle events with scored completions,
one-time rewards, and commemorative tokens.
- Workspace: your .huntline directory holding the database.
- Event: a named time window with a puzzle set, a reward, and a bonus multiplier.
- Completion: a verifier-reported scored puzzle solve; totals feed the leaderboard.
- Claim: the one-time reward payout, available while the event is active.
- Token: the one-per-participant keepsake, mintable only after claiming.
- Ledger: diary of every committed change, view with 'hl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("HUNTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serviceCmd())
	rootCmd.AddCommand(verifierCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(completionCmd())
	rootCmd.AddCommand(claimCmd())
	rootCmd.AddCommand(mintCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var admin, lb string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if admin == "" {
				admin = viper.GetString("actor-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cfg, err := e.Initialize(ctx, admin, lb)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "admin address (defaults to --actor-id)")
	cmd.Flags().StringVar(&lb, "leaderboard", "", "leaderboard endpoint")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default huntline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	return cfg
}

func serviceCmd() *cobra.Command {
	svc := &cobra.Command{Use: "service", Short: "Service administration"}

	svc.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show service state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cfg, err := e.Repo.GetConfig(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	})

	var paused bool
	pause := &cobra.Command{
		Use:   "pause",
		Short: "Pause or resume participant-facing operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetPaused(ctx, viper.GetString("actor-id"), paused)
			})
		},
	}
	pause.Flags().BoolVar(&paused, "paused", true, "paused state")
	svc.AddCommand(pause)

	var ref string
	lb := &cobra.Command{
		Use:   "leaderboard",
		Short: "Set the leaderboard endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetLeaderboard(ctx, viper.GetString("actor-id"), ref)
			})
		},
	}
	lb.Flags().StringVar(&ref, "ref", "", "leaderboard endpoint (empty disables notifications)")
	svc.AddCommand(lb)

	return svc
}

func verifierCmd() *cobra.Command {
	ver := &cobra.Command{Use: "verifier", Short: "Manage verifiers"}

	ver.AddCommand(&cobra.Command{
		Use:   "add <address>",
		Short: "Grant verifier role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.AddVerifier(ctx, viper.GetString("actor-id"), args[0])
			})
		},
	})

	ver.AddCommand(&cobra.Command{
		Use:   "remove <address>",
		Short: "Revoke verifier role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveVerifier(ctx, viper.GetString("actor-id"), args[0])
			})
		},
	})

	ver.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List verifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListVerifiers(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})

	return ver
}

func eventCmd() *cobra.Command {
	ev := &cobra.Command{
		Use:   "event",
		Short: "Manage events",
		Long:  "Events are time windows with a puzzle set, a reward amount, and a bonus multiplier in basis points (10000 = 1.0x).",
	}
	ev.AddCommand(eventCreateCmd())
	ev.AddCommand(eventListCmd())
	ev.AddCommand(eventShowCmd())
	ev.AddCommand(eventUpdateTimesCmd())
	ev.AddCommand(eventUpdateRewardsCmd())
	ev.AddCommand(eventUpdatePuzzlesCmd())
	ev.AddCommand(eventCancelCmd())
	return ev
}

func eventCreateCmd() *cobra.Command {
	var opts engine.EventCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateEvent(ctx, viper.GetString("actor-id"), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "event name")
	cmd.Flags().Int64Var(&opts.StartTime, "start", 0, "start time (unix seconds, inclusive)")
	cmd.Flags().Int64Var(&opts.EndTime, "end", 0, "end time (unix seconds, inclusive)")
	cmd.Flags().Int64Var(&opts.RewardAmount, "reward", 0, "base reward amount")
	cmd.Flags().Int64Var(&opts.BonusBps, "bonus-bps", 0, "bonus multiplier in bps (0 means 10000)")
	cmd.Flags().StringVar(&opts.TokenMetadata, "metadata", "", "token metadata")
	cmd.Flags().Int64SliceVar(&opts.PuzzleIDs, "puzzle", []int64{}, "puzzle id (repeatable)")
	return cmd
}

func eventListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				now := time.Now().Unix()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "Reward", "Bonus bps", "Active"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.StartTime, it.EndTime, it.RewardAmount, it.BonusBps, it.ActiveAt(now)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func eventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.GetEvent(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
}

func eventUpdateTimesCmd() *cobra.Command {
	var start, end int64
	cmd := &cobra.Command{
		Use:   "update-times <event-id>",
		Short: "Move the event window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.UpdateEventTimes(ctx, viper.GetString("actor-id"), id, start, end)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().Int64Var(&start, "start", 0, "start time (unix seconds)")
	cmd.Flags().Int64Var(&end, "end", 0, "end time (unix seconds)")
	return cmd
}

func eventUpdateRewardsCmd() *cobra.Command {
	var reward, bonus int64
	var metadata string
	cmd := &cobra.Command{
		Use:   "update-rewards <event-id>",
		Short: "Update reward amount, bonus, and token metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.UpdateEventRewards(ctx, viper.GetString("actor-id"), id, reward, bonus, metadata)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().Int64Var(&reward, "reward", 0, "base reward amount")
	cmd.Flags().Int64Var(&bonus, "bonus-bps", 0, "bonus multiplier in bps (0 means 10000)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "token metadata")
	return cmd
}

func eventUpdatePuzzlesCmd() *cobra.Command {
	var puzzles []int64
	cmd := &cobra.Command{
		Use:   "update-puzzles <event-id>",
		Short: "Replace the puzzle set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.UpdateEventPuzzles(ctx, viper.GetString("actor-id"), id, puzzles)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&puzzles, "puzzle", []int64{}, "puzzle id (repeatable)")
	return cmd
}

func eventCancelCmd() *cobra.Command {
	var reinstate bool
	cmd := &cobra.Command{
		Use:   "cancel <event-id>",
		Short: "Cancel an event (or reinstate with --reinstate)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.SetEventCancelled(ctx, viper.GetString("actor-id"), id, !reinstate)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().BoolVar(&reinstate, "reinstate", false, "clear the cancelled flag instead")
	return cmd
}

func completionCmd() *cobra.Command {
	comp := &cobra.Command{Use: "completion", Short: "Record puzzle completions"}
	var participant string
	var puzzleID, score int64
	record := &cobra.Command{
		Use:   "record <event-id>",
		Short: "Record a scored completion (admin or verifier)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if participant == "" {
				return fmt.Errorf("--participant required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				total, err := e.RecordCompletion(ctx, viper.GetString("actor-id"), id, participant, puzzleID, score)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"event_id":    id,
					"participant": participant,
					"puzzle_id":   puzzleID,
					"score":       score,
					"total":       total,
				})
			})
		},
	}
	record.Flags().StringVar(&participant, "participant", "", "participant address")
	record.Flags().Int64Var(&puzzleID, "puzzle", 0, "puzzle id")
	record.Flags().Int64Var(&score, "score", 0, "score")
	comp.AddCommand(record)
	return comp
}

func claimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <event-id>",
		Short: "Claim the one-time event reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				amount, err := e.ClaimReward(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"event_id": id, "amount": amount})
			})
		},
	}
}

func mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <event-id>",
		Short: "Mint the commemorative event token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				token, err := e.MintEventToken(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(token)
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Inspect minted tokens"}

	tok.AddCommand(&cobra.Command{
		Use:   "show <token-id>",
		Short: "Show a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetToken(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	})

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTokens(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Event", "Owner", "Minted at"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.EventID, it.Owner, it.MintedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "filter by owner")
	tok.AddCommand(list)

	return tok
}

func scoreCmd() *cobra.Command {
	var participant string
	cmd := &cobra.Command{
		Use:   "score <event-id>",
		Short: "Show a participant's running total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if participant == "" {
				participant = viper.GetString("actor-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				score, err := e.GetEventScore(ctx, id, participant)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"event_id":    id,
					"participant": participant,
					"score":       score,
				})
			})
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "", "participant address (defaults to --actor-id)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Mutation ledger",
		Long:  "The diary of every committed change: events, completions, claims, mints, and admin actions.",
	}
	var n int
	var eventID int64
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Repo.ListLedger(ctx, n, eventID)
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of entries")
	tail.Flags().Int64Var(&eventID, "event", 0, "filter by event id")
	log.AddCommand(tail)
	return log
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}

	var actor, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plaintext, err := newAPIKey(actor, name)
				if err != nil {
					return err
				}
				if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				fmt.Println("api key (store it now, it is not retrievable):", plaintext)
				return nil
			})
		},
	}
	create.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	create.Flags().StringVar(&name, "name", "", "key label")
	ak.AddCommand(create)

	var listActor string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, listActor)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	list.Flags().StringVar(&listActor, "actor", "", "filter by actor")
	ak.AddCommand(list)

	ak.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	})

	return ak
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			e, closeDB, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer closeDB()

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			timeout := time.Duration(e.Config.Leaderboard.TimeoutSeconds) * time.Second
			e.Leaderboard = leaderboard.NewClient(timeout, logger)

			if addr == "" {
				addr = e.Config.Server.Addr
			}
			if basePath == "" {
				basePath = e.Config.Server.BasePath
			}
			secret := os.Getenv("HUNTLINE_JWT_SECRET")
			if secret == "" {
				secret = e.Config.Auth.JWTSecret
			}
			authCfg := server.AuthConfig{
				JWTSecret:              secret,
				AllowLegacyActorHeader: e.Config.Auth.AllowLegacyActorHeader,
				Logger:                 logger,
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyActorHeader {
				return fmt.Errorf("HUNTLINE_JWT_SECRET is required when the legacy actor header is disabled")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving Huntline API",
				zap.String("addr", addr),
				zap.String("base_path", basePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, closeDB, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(ctx, e)
}

func newAPIKey(actorID, name string) (domain.APIKey, string, error) {
	plaintext := uuid.NewString()
	key := domain.APIKey{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Name:    name,
		KeyHash: repo.HashAPIKey(plaintext),
	}
	return key, plaintext, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
