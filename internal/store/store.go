package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/model"
)

// Store persists operator-adjustable settings (setpoints, eco schedule,
// zone enables) so they survive restarts. Values arriving over the bus
// are written through on every accepted command.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK(id=1),
	snowmelt_enabled BOOLEAN NOT NULL,
	dhw_enabled BOOLEAN NOT NULL,
	eco_enabled BOOLEAN NOT NULL,
	glycol_high REAL NOT NULL,
	glycol_delta REAL NOT NULL,
	dhw_high REAL NOT NULL,
	dhw_delta REAL NOT NULL,
	eco_high REAL NOT NULL,
	eco_delta REAL NOT NULL,
	eco_start TEXT NOT NULL,
	eco_end TEXT NOT NULL
)`

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the persisted settings, seeding the table with defaults
// on first run.
func (s *Store) Load(defaults model.Settings) (model.Settings, error) {
	var st model.Settings
	err := s.db.QueryRow(`SELECT snowmelt_enabled, dhw_enabled, eco_enabled,
		glycol_high, glycol_delta, dhw_high, dhw_delta, eco_high, eco_delta,
		eco_start, eco_end FROM settings WHERE id = 1`).Scan(
		&st.SnowmeltEnabled, &st.DHWEnabled, &st.EcoEnabled,
		&st.Glycol.HighTemp, &st.Glycol.DeltaT,
		&st.DHW.HighTemp, &st.DHW.DeltaT,
		&st.Eco.HighTemp, &st.Eco.DeltaT,
		&st.EcoStart, &st.EcoEnd,
	)
	if err == sql.ErrNoRows {
		log.Info().Msg("No persisted settings found, seeding defaults")
		if err := s.Save(defaults); err != nil {
			return defaults, err
		}
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("failed to load settings: %w", err)
	}

	log.Info().Msg("Loaded persisted settings")
	return st, nil
}

func (s *Store) Save(st model.Settings) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings
		(id, snowmelt_enabled, dhw_enabled, eco_enabled,
		 glycol_high, glycol_delta, dhw_high, dhw_delta, eco_high, eco_delta,
		 eco_start, eco_end)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.SnowmeltEnabled, st.DHWEnabled, st.EcoEnabled,
		st.Glycol.HighTemp, st.Glycol.DeltaT,
		st.DHW.HighTemp, st.DHW.DeltaT,
		st.Eco.HighTemp, st.Eco.DeltaT,
		st.EcoStart, st.EcoEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
