package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"snowmelt-controller/internal/model"
)

type MQTT struct {
	BrokerURL       string `json:"broker_url"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	BaseTopic       string `json:"base_topic"`
	DiscoveryPrefix string `json:"discovery_prefix"`
}

type EcoSchedule struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
}

type Config struct {
	ConfigFile  string
	DBFile      string
	LogLevel    zerolog.Level
	SafeMode    bool
	MockSensors bool
	NoMQTT      bool

	// role -> 1-wire device address (e.g. 28-000005e2fdc3)
	Sensors map[model.SensorRole]string `json:"sensors"`
	// role -> BCM pin number
	Relays map[model.EquipmentRole]int `json:"relays"`

	RelayActiveHigh bool `json:"relay_active_high"`

	Setpoints struct {
		Glycol model.Setpoints `json:"glycol"`
		DHW    model.Setpoints `json:"dhw"`
		Eco    model.Setpoints `json:"eco"`
	} `json:"setpoints"`
	EcoSchedule EcoSchedule `json:"eco_schedule"`

	PollIntervalSeconds  int     `json:"poll_interval_seconds"`
	CycleIntervalSeconds int     `json:"cycle_interval_seconds"`
	SensorGraceSeconds   int     `json:"sensor_grace_seconds"`
	SensorReadRetries    int     `json:"sensor_read_retries"`
	BypassMinDeltaT      float64 `json:"bypass_min_delta_t"`

	MQTT MQTT `json:"mqtt"`

	// Regenerated on every start; empty disables it.
	BootScriptPath string `json:"boot_script_path"`

	LogFile       string   `json:"log_file"`
	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`
	NtfyTopic     string   `json:"ntfy_topic"`
}

func Load() *Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.DBFile, "db-file", "data/snowmelt.db", "Path to the setpoint database file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.SafeMode, "safe-mode", false, "Disable all relay writes system-wide")
	flag.BoolVar(&cfg.MockSensors, "mock-sensors", false, "Use mock temperature sensors")
	flag.BoolVar(&cfg.NoMQTT, "no-mqtt", false, "Run without the MQTT bridge")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return &cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = 2
	}
	if cfg.CycleIntervalSeconds == 0 {
		cfg.CycleIntervalSeconds = 5
	}
	if cfg.SensorGraceSeconds == 0 {
		cfg.SensorGraceSeconds = 30
	}
	if cfg.SensorReadRetries == 0 {
		cfg.SensorReadRetries = 3
	}
	if cfg.BypassMinDeltaT == 0 {
		cfg.BypassMinDeltaT = 5.0
	}
	if cfg.MQTT.BaseTopic == "" {
		cfg.MQTT.BaseTopic = "snowmelt"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if cfg.EcoSchedule.StartTime == "" {
		cfg.EcoSchedule.StartTime = "22:00"
	}
	if cfg.EcoSchedule.EndTime == "" {
		cfg.EcoSchedule.EndTime = "06:00"
	}
}

func (cfg *Config) validate() {
	var problems []string

	for _, role := range model.SensorRoles {
		if cfg.Sensors[role] == "" {
			problems = append(problems, fmt.Sprintf("sensors.%s is missing", role))
		}
	}

	usedPins := map[int]model.EquipmentRole{}
	for _, role := range model.EquipmentRoles {
		pin, ok := cfg.Relays[role]
		if !ok {
			problems = append(problems, fmt.Sprintf("relays.%s is missing", role))
			continue
		}
		if other, exists := usedPins[pin]; exists {
			problems = append(problems, fmt.Sprintf("relays.%s and relays.%s both use pin %d", role, other, pin))
		} else {
			usedPins[pin] = role
		}
	}

	for name, sp := range map[string]model.Setpoints{
		"glycol": cfg.Setpoints.Glycol,
		"dhw":    cfg.Setpoints.DHW,
		"eco":    cfg.Setpoints.Eco,
	} {
		if sp.DeltaT < 0 {
			problems = append(problems, fmt.Sprintf("setpoints.%s.delta_t must be >= 0", name))
		}
	}

	for _, tod := range []string{cfg.EcoSchedule.StartTime, cfg.EcoSchedule.EndTime} {
		if _, err := time.Parse("15:04", tod); err != nil {
			problems = append(problems, fmt.Sprintf("eco_schedule time %q is not HH:MM", tod))
		}
	}

	if !cfg.NoMQTT && cfg.MQTT.BrokerURL == "" {
		problems = append(problems, "mqtt.broker_url is missing")
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}

// DefaultSettings builds the engine settings used when no persisted
// values exist yet. Snowmelt starts disabled; DHW recirculation starts
// enabled.
func (cfg *Config) DefaultSettings() model.Settings {
	return model.Settings{
		SnowmeltEnabled: false,
		DHWEnabled:      true,
		EcoEnabled:      cfg.EcoSchedule.Enabled,
		Glycol:          cfg.Setpoints.Glycol,
		DHW:             cfg.Setpoints.DHW,
		Eco:             cfg.Setpoints.Eco,
		EcoStart:        cfg.EcoSchedule.StartTime,
		EcoEnd:          cfg.EcoSchedule.EndTime,
	}
}
