package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/datadog"
	"snowmelt-controller/internal/model"
	"snowmelt-controller/internal/notifications"
	"snowmelt-controller/internal/sensors"
)

// swapped in tests
var notify = notifications.Send

// Actuator is the engine's view of the relay driver. Apply returns the
// per-role fault flags after the write pass.
type Actuator interface {
	Apply(commands map[model.EquipmentRole]bool) map[model.EquipmentRole]bool
}

// SettingsStore persists accepted settings changes.
type SettingsStore interface {
	Save(model.Settings) error
}

type SensorState struct {
	TempF     float64
	Available bool
}

type EquipmentState struct {
	Mode  model.EquipmentMode
	On    bool
	Fault bool
}

// State is the published view of one completed cycle. It is a value:
// consumers may hold it without locking.
type State struct {
	Sensors   map[model.SensorRole]SensorState
	Equipment map[model.EquipmentRole]EquipmentState

	HXDeltaT          float64
	HXDeltaTAvailable bool

	Settings  model.Settings
	EcoActive bool

	SnowmeltState model.ZoneState
	DHWState      model.ZoneState

	TimerActive        bool
	TimerRemainingSecs int
}

type Engine struct {
	sensors sensors.Reader
	relays  Actuator
	store   SettingsStore
	publish func(State)

	interval        time.Duration
	bypassMinDeltaT float64

	queue chan Command

	// Everything below is owned by the run loop goroutine.
	settings     model.Settings
	modes        map[model.EquipmentRole]model.EquipmentMode
	commands     map[model.EquipmentRole]bool
	timerActive  bool
	timerEnd     time.Time
	faultAlerted map[model.EquipmentRole]bool
}

func New(reader sensors.Reader, relays Actuator, store SettingsStore,
	settings model.Settings, interval time.Duration, bypassMinDeltaT float64) *Engine {

	modes := make(map[model.EquipmentRole]model.EquipmentMode, len(model.EquipmentRoles))
	commands := make(map[model.EquipmentRole]bool, len(model.EquipmentRoles))
	for _, role := range model.EquipmentRoles {
		modes[role] = model.ModeAuto
		commands[role] = false
	}

	return &Engine{
		sensors:         reader,
		relays:          relays,
		store:           store,
		interval:        interval,
		bypassMinDeltaT: bypassMinDeltaT,
		queue:           make(chan Command, 32),
		settings:        settings,
		modes:           modes,
		commands:        commands,
		faultAlerted:    make(map[model.EquipmentRole]bool),
	}
}

// SetPublisher registers the state sink called after every cycle. Must
// be set before Run.
func (e *Engine) SetPublisher(fn func(State)) {
	e.publish = fn
}

// Submit queues a validated command for the next cycle boundary. It
// never blocks; a full queue drops the command.
func (e *Engine) Submit(cmd Command) bool {
	select {
	case e.queue <- cmd:
		return true
	default:
		log.Warn().Int("kind", int(cmd.Kind)).Msg("Command queue full, dropping command")
		return false
	}
}

// Run drives the fixed-period control cycle until ctx is cancelled.
// On shutdown the relays hold their last commanded state.
func (e *Engine) Run(ctx context.Context) {
	log.Info().
		Dur("interval", e.interval).
		Float64("bypass_min_delta_t", e.bypassMinDeltaT).
		Msg("Starting control engine")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.runCycle(time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Control engine stopped, relays hold last state")
			return
		case now := <-ticker.C:
			e.runCycle(now)
		}
	}
}

func (e *Engine) runCycle(now time.Time) {
	e.drainCommands(now)
	e.checkShutdownTimer(now)

	snap := e.sensors.Snapshot()

	res := evaluate(evalInput{
		snap:            snap,
		settings:        e.settings,
		modes:           e.modes,
		prev:            e.commands,
		bypassMinDeltaT: e.bypassMinDeltaT,
		now:             now,
	})

	faults := e.relays.Apply(res.commands)
	e.commands = res.commands
	e.alertActuationFaults(faults)

	state := e.buildState(snap, res, faults, now)
	e.emitMetrics(state)

	log.Debug().
		Str("snowmelt", string(state.SnowmeltState)).
		Str("dhw", string(state.DHWState)).
		Bool("eco_active", state.EcoActive).
		Msg("Control cycle complete")

	if e.publish != nil {
		e.publish(state)
	}
}

// drainCommands applies every queued command so the evaluation sees a
// single consistent settings snapshot for the whole cycle.
func (e *Engine) drainCommands(now time.Time) {
	changed := false
	for {
		select {
		case cmd := <-e.queue:
			if e.applyCommand(cmd, now) {
				changed = true
			}
		default:
			if changed && e.store != nil {
				if err := e.store.Save(e.settings); err != nil {
					log.Error().Err(err).Msg("Failed to persist settings")
				}
			}
			return
		}
	}
}

// applyCommand mutates engine state for one command and reports whether
// persisted settings changed.
func (e *Engine) applyCommand(cmd Command, now time.Time) bool {
	switch cmd.Kind {
	case CmdEquipmentMode:
		log.Info().
			Str("equipment", string(cmd.Equipment)).
			Str("mode", string(cmd.Mode)).
			Msg("Equipment mode changed")
		e.modes[cmd.Equipment] = cmd.Mode
		return false

	case CmdSystemEnable:
		switch cmd.System {
		case SystemSnowmelt:
			e.settings.SnowmeltEnabled = cmd.Enabled
			if !cmd.Enabled {
				e.timerActive = false
			}
		case SystemDHW:
			e.settings.DHWEnabled = cmd.Enabled
		case SystemEco:
			e.settings.EcoEnabled = cmd.Enabled
		default:
			log.Warn().Str("system", cmd.System).Msg("Unknown system in enable command")
			return false
		}
		log.Info().Str("system", cmd.System).Bool("enabled", cmd.Enabled).Msg("System enable changed")
		return true

	case CmdSetpoint:
		if err := e.applySetpoint(cmd.Setpoint, cmd.Value); err != nil {
			log.Warn().Err(err).Msg("Rejected setpoint command")
			return false
		}
		log.Info().Str("setpoint", cmd.Setpoint).Float64("value", cmd.Value).Msg("Setpoint changed")
		return true

	case CmdEcoSchedule:
		if _, err := parseTimeOfDay(cmd.EcoStart); err != nil {
			log.Warn().Err(err).Msg("Rejected eco schedule command")
			return false
		}
		if _, err := parseTimeOfDay(cmd.EcoEnd); err != nil {
			log.Warn().Err(err).Msg("Rejected eco schedule command")
			return false
		}
		e.settings.EcoStart = cmd.EcoStart
		e.settings.EcoEnd = cmd.EcoEnd
		log.Info().Str("start", cmd.EcoStart).Str("end", cmd.EcoEnd).Msg("Eco schedule changed")
		return true

	case CmdTimerStart:
		if cmd.TimerMinutes <= 0 {
			log.Warn().Int("minutes", cmd.TimerMinutes).Msg("Rejected shutdown timer command")
			return false
		}
		e.timerActive = true
		e.timerEnd = now.Add(time.Duration(cmd.TimerMinutes) * time.Minute)
		log.Info().Int("minutes", cmd.TimerMinutes).Msg("Shutdown timer started")
		return false

	case CmdTimerCancel:
		e.timerActive = false
		log.Info().Msg("Shutdown timer cancelled")
		return false
	}

	log.Warn().Int("kind", int(cmd.Kind)).Msg("Unknown command kind")
	return false
}

func (e *Engine) applySetpoint(field string, value float64) error {
	var target *model.Setpoints
	var high bool

	switch field {
	case SetpointGlycolHigh:
		target, high = &e.settings.Glycol, true
	case SetpointGlycolDelta:
		target, high = &e.settings.Glycol, false
	case SetpointDHWHigh:
		target, high = &e.settings.DHW, true
	case SetpointDHWDelta:
		target, high = &e.settings.DHW, false
	case SetpointEcoHigh:
		target, high = &e.settings.Eco, true
	case SetpointEcoDelta:
		target, high = &e.settings.Eco, false
	default:
		return fmt.Errorf("unknown setpoint %q", field)
	}

	if high {
		target.HighTemp = value
		return nil
	}
	if value < 0 {
		return fmt.Errorf("delta_t must be >= 0, got %v", value)
	}
	target.DeltaT = value
	return nil
}

// alertActuationFaults pushes one notification per fault transition:
// when a relay write starts failing and again when it recovers.
func (e *Engine) alertActuationFaults(faults map[model.EquipmentRole]bool) {
	for _, role := range model.EquipmentRoles {
		switch {
		case faults[role] && !e.faultAlerted[role]:
			e.faultAlerted[role] = true
			if err := notify("Snowmelt Relay Fault",
				fmt.Sprintf("[%s] relay write failing, other equipment unaffected", role)); err != nil {
				log.Error().Err(err).Msg("Failed to send relay fault notification")
			}
		case !faults[role] && e.faultAlerted[role]:
			e.faultAlerted[role] = false
			if err := notify("Snowmelt Relay Recovery",
				fmt.Sprintf("[%s] relay write recovered", role)); err != nil {
				log.Error().Err(err).Msg("Failed to send relay recovery notification")
			}
		}
	}
}

func (e *Engine) checkShutdownTimer(now time.Time) {
	if !e.timerActive || now.Before(e.timerEnd) {
		return
	}

	log.Info().Msg("Shutdown timer expired, disabling snowmelt zone")
	e.timerActive = false
	e.settings.SnowmeltEnabled = false
	if e.store != nil {
		if err := e.store.Save(e.settings); err != nil {
			log.Error().Err(err).Msg("Failed to persist settings")
		}
	}
}

func (e *Engine) buildState(snap sensors.Snapshot, res evalResult,
	faults map[model.EquipmentRole]bool, now time.Time) State {

	st := State{
		Sensors:           make(map[model.SensorRole]SensorState, len(model.SensorRoles)),
		Equipment:         make(map[model.EquipmentRole]EquipmentState, len(model.EquipmentRoles)),
		HXDeltaT:          res.hxDeltaT,
		HXDeltaTAvailable: res.hxDeltaTOK,
		Settings:          e.settings,
		EcoActive:         res.ecoActive,
		SnowmeltState:     res.snowmeltState,
		DHWState:          res.dhwState,
		TimerActive:       e.timerActive,
	}

	if e.timerActive {
		remaining := e.timerEnd.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		st.TimerRemainingSecs = int(remaining.Seconds())
	}

	for _, role := range model.SensorRoles {
		r := snap[role]
		st.Sensors[role] = SensorState{TempF: r.TempF, Available: r.Available}
	}

	for _, role := range model.EquipmentRoles {
		st.Equipment[role] = EquipmentState{
			Mode:  e.modes[role],
			On:    res.commands[role],
			Fault: faults[role],
		}
	}

	return st
}

func (e *Engine) emitMetrics(st State) {
	for role, s := range st.Sensors {
		if s.Available {
			datadog.Gauge("sensor.temperature", s.TempF, "sensor:"+string(role))
		}
	}
	if st.HXDeltaTAvailable {
		datadog.Gauge("heat_exchanger.delta_t", st.HXDeltaT)
	}
	for role, eq := range st.Equipment {
		v := 0.0
		if eq.On {
			v = 1.0
		}
		datadog.Gauge("equipment.state", v, "equipment:"+string(role))
	}
}
