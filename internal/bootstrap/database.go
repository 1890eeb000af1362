package bootstrap

import (
	"fmt"

	"github.com/CLewisMessina/wolfalert/internal/config"
	"github.com/CLewisMessina/wolfalert/internal/database"
)

// SetupDatabase creates the PostgreSQL connection pool.
func SetupDatabase(cfg *config.Config) (*database.Connection, error) {
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	return db, nil
}
