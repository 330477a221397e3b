package app

import (
	"fmt"

	"huntline/internal/config"
	"huntline/internal/db"
	"huntline/internal/engine"
	"huntline/internal/migrate"
)

// Open prepares a workspace for use: ensures the directory, opens the
// database, applies migrations, loads huntline.yml (defaults if absent)
// and builds the engine. The caller owns the returned close func.
func Open(workspace string) (engine.Engine, func() error, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return engine.Engine{}, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	return engine.New(conn, cfg), conn.Close, nil
}
