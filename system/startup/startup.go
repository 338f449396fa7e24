package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/config"
	"snowmelt-controller/internal/model"
	"snowmelt-controller/internal/pinctrl"
)

var readLevel = pinctrl.ReadLevel

// ValidatePins reads every configured relay pin before the engine takes
// over. A read failure means pinctrl is missing or the pin map is wrong
// and the controller must not start. A pin already at its active level
// is only logged: the engine reasserts every relay within one cycle.
func ValidatePins(cfg *config.Config) error {
	for _, role := range model.EquipmentRoles {
		pin := cfg.Relays[role]
		level, err := readLevel(pin)
		if err != nil {
			return fmt.Errorf("relay pin %d (%s): %w", pin, role, err)
		}
		if level == cfg.RelayActiveHigh {
			log.Warn().
				Int("pin", pin).
				Str("equipment", string(role)).
				Msg("Relay pin energized at startup")
		}
	}
	return nil
}

// WriteBootScript regenerates the script systemd runs at boot, before
// the controller starts, driving every relay to its off level so a cold
// boot never energizes equipment. Regenerated on every start so pin map
// changes take effect at the next boot.
func WriteBootScript(path string, cfg *config.Config) error {
	lines := []string{"#!/bin/bash", "", "# Relay pin configuration at boot: everything off", ""}

	offDrive := "dl"
	if !cfg.RelayActiveHigh {
		offDrive = "dh"
	}

	for _, role := range model.EquipmentRoles {
		lines = append(lines, fmt.Sprintf("# %s", role))
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", cfg.Relays[role], offDrive))
		lines = append(lines, "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating boot script dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o755); err != nil {
		return fmt.Errorf("writing boot script: %w", err)
	}

	log.Info().Str("path", path).Msg("Wrote relay boot script")
	return nil
}
