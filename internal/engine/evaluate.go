package engine

import (
	"time"

	"snowmelt-controller/internal/model"
	"snowmelt-controller/internal/sensors"
)

type evalInput struct {
	snap            sensors.Snapshot
	settings        model.Settings
	modes           map[model.EquipmentRole]model.EquipmentMode
	prev            map[model.EquipmentRole]bool
	bypassMinDeltaT float64
	now             time.Time
}

type evalResult struct {
	commands      map[model.EquipmentRole]bool
	snowmeltState model.ZoneState
	dhwState      model.ZoneState
	ecoActive     bool
	hxDeltaT      float64
	hxDeltaTOK    bool
}

// evaluate is the decision function, run exactly once per control
// cycle. It is pure: same inputs, same commands.
func evaluate(in evalInput) evalResult {
	res := evalResult{
		commands:  make(map[model.EquipmentRole]bool, len(model.EquipmentRoles)),
		ecoActive: in.settings.EcoEnabled && inEcoWindow(in.settings.EcoStart, in.settings.EcoEnd, in.now),
	}

	hxIn, inOK := in.snap.Temp(model.SensorHXIn)
	hxOut, outOK := in.snap.Temp(model.SensorHXOut)
	if inOK && outOK {
		res.hxDeltaT = hxIn - hxOut
		res.hxDeltaTOK = true
	}

	auto := map[model.EquipmentRole]bool{}
	res.snowmeltState = evaluateSnowmelt(in, res, auto)
	res.dhwState = evaluateDHW(in, res.ecoActive, auto)

	// Manual modes always win; Auto takes the zone logic's target.
	for _, role := range model.EquipmentRoles {
		switch in.modes[role] {
		case model.ModeOn:
			res.commands[role] = true
		case model.ModeOff:
			res.commands[role] = false
		default:
			res.commands[role] = auto[role]
		}
	}

	return res
}

func evaluateSnowmelt(in evalInput, res evalResult, auto map[model.EquipmentRole]bool) model.ZoneState {
	if !in.settings.SnowmeltEnabled {
		auto[model.EquipGlycolPump] = false
		auto[model.EquipPrimaryPump] = false
		auto[model.EquipBypassValve] = false
		return model.ZoneIdle
	}

	// The slab loop circulates whenever the zone is enabled.
	auto[model.EquipGlycolPump] = true

	returnTemp, ok := in.snap.Temp(model.SensorGlycolReturn)
	if !ok {
		// Governing sensor unavailable: fail the zone safe.
		auto[model.EquipPrimaryPump] = false
		auto[model.EquipBypassValve] = false
		return model.ZoneError
	}

	auto[model.EquipPrimaryPump] = hysteresis(returnTemp, in.settings.Glycol, in.prev[model.EquipPrimaryPump])

	// The bypass valve is derived, not thermostated: divert around the
	// exchanger when it is transferring too little heat to matter.
	auto[model.EquipBypassValve] = res.hxDeltaTOK && res.hxDeltaT <= in.bypassMinDeltaT

	if auto[model.EquipPrimaryPump] {
		return model.ZoneHeating
	}
	return model.ZoneBypass
}

func evaluateDHW(in evalInput, ecoActive bool, auto map[model.EquipmentRole]bool) model.ZoneState {
	if !in.settings.DHWEnabled {
		auto[model.EquipDHWPump] = false
		return model.ZoneIdle
	}

	tankTemp, ok := in.snap.Temp(model.SensorDHWTank)
	if !ok {
		auto[model.EquipDHWPump] = false
		return model.ZoneError
	}

	setpoints := in.settings.DHW
	if ecoActive {
		setpoints = in.settings.Eco
	}

	auto[model.EquipDHWPump] = hysteresis(tankTemp, setpoints, in.prev[model.EquipDHWPump])

	if auto[model.EquipDHWPump] {
		return model.ZoneHeating
	}
	return model.ZoneIdle
}

// hysteresis implements the bang-bang control law: on at or below the
// low edge, off at or above the high edge, hold inside the deadband.
func hysteresis(temp float64, sp model.Setpoints, prev bool) bool {
	switch {
	case temp >= sp.HighTemp:
		return false
	case temp <= sp.LowTemp():
		return true
	default:
		return prev
	}
}
