package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"snowmelt-controller/internal/model"
	"snowmelt-controller/internal/sensors"
)

func testSettings() model.Settings {
	return model.Settings{
		SnowmeltEnabled: true,
		DHWEnabled:      true,
		EcoEnabled:      false,
		Glycol:          model.Setpoints{HighTemp: 110, DeltaT: 15},
		DHW:             model.Setpoints{HighTemp: 125, DeltaT: 10},
		Eco:             model.Setpoints{HighTemp: 115, DeltaT: 15},
		EcoStart:        "22:00",
		EcoEnd:          "06:00",
	}
}

func testSnap(glycolReturn, dhwTank, hxIn, hxOut float64) sensors.Snapshot {
	return sensors.Snapshot{
		model.SensorGlycolReturn: {TempF: glycolReturn, Available: true},
		model.SensorGlycolSupply: {TempF: glycolReturn + 10, Available: true},
		model.SensorDHWTank:      {TempF: dhwTank, Available: true},
		model.SensorHXIn:         {TempF: hxIn, Available: true},
		model.SensorHXOut:        {TempF: hxOut, Available: true},
	}
}

func autoModes() map[model.EquipmentRole]model.EquipmentMode {
	modes := make(map[model.EquipmentRole]model.EquipmentMode)
	for _, role := range model.EquipmentRoles {
		modes[role] = model.ModeAuto
	}
	return modes
}

func noon() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.Local)
}

func run(snap sensors.Snapshot, settings model.Settings,
	modes map[model.EquipmentRole]model.EquipmentMode,
	prev map[model.EquipmentRole]bool) evalResult {
	if prev == nil {
		prev = map[model.EquipmentRole]bool{}
	}
	return evaluate(evalInput{
		snap:            snap,
		settings:        settings,
		modes:           modes,
		prev:            prev,
		bypassMinDeltaT: 5.0,
		now:             noon(),
	})
}

func TestHysteresisBandEdges(t *testing.T) {
	// H=110, D=15: on at or below 95, off at or above 110, hold between.
	tests := []struct {
		name string
		temp float64
		prev bool
		want bool
	}{
		{"below low edge turns on", 90, false, true},
		{"at low edge turns on", 95, false, true},
		{"above high edge turns off", 115, true, false},
		{"at high edge turns off", 110, true, false},
		{"deadband holds off", 100, false, false},
		{"deadband holds on", 100, true, true},
		{"just under high edge holds", 109.9, true, true},
		{"just over low edge holds", 95.1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := map[model.EquipmentRole]bool{model.EquipPrimaryPump: tt.prev}
			res := run(testSnap(tt.temp, 125, 140, 120), testSettings(), autoModes(), prev)
			assert.Equal(t, tt.want, res.commands[model.EquipPrimaryPump])
		})
	}
}

func TestHysteresisScenarioSequence(t *testing.T) {
	// H=110, D=15; temps 100 -> 112 -> 95 must command on -> off -> on.
	settings := testSettings()
	modes := autoModes()
	prev := map[model.EquipmentRole]bool{}

	// Initial state off; 100 is in the deadband but the pump was never
	// on, so the first cycle that matters starts from a cold slab.
	res := run(testSnap(85, 125, 140, 120), settings, modes, prev)
	assert.True(t, res.commands[model.EquipPrimaryPump])
	prev = res.commands

	res = run(testSnap(100, 125, 140, 120), settings, modes, prev)
	assert.True(t, res.commands[model.EquipPrimaryPump], "deadband holds heating")
	prev = res.commands

	res = run(testSnap(112, 125, 140, 120), settings, modes, prev)
	assert.False(t, res.commands[model.EquipPrimaryPump], "above high edge turns off")
	assert.Equal(t, model.ZoneBypass, res.snowmeltState)
	prev = res.commands

	res = run(testSnap(95, 125, 140, 120), settings, modes, prev)
	assert.True(t, res.commands[model.EquipPrimaryPump], "at low edge turns back on")
	assert.Equal(t, model.ZoneHeating, res.snowmeltState)
}

func TestManualModeOverridesHysteresis(t *testing.T) {
	settings := testSettings()

	modes := autoModes()
	modes[model.EquipPrimaryPump] = model.ModeOn
	// 140 is far above the high edge; On still wins.
	res := run(testSnap(140, 125, 140, 120), settings, modes, nil)
	assert.True(t, res.commands[model.EquipPrimaryPump])

	modes[model.EquipPrimaryPump] = model.ModeOff
	// 50 is far below the low edge; Off still wins.
	res = run(testSnap(50, 125, 140, 120), settings, modes, nil)
	assert.False(t, res.commands[model.EquipPrimaryPump])
}

func TestSnowmeltDisabledForcesIdle(t *testing.T) {
	settings := testSettings()
	settings.SnowmeltEnabled = false

	prev := map[model.EquipmentRole]bool{
		model.EquipGlycolPump:  true,
		model.EquipPrimaryPump: true,
	}
	res := run(testSnap(50, 125, 140, 120), settings, autoModes(), prev)

	assert.False(t, res.commands[model.EquipGlycolPump])
	assert.False(t, res.commands[model.EquipPrimaryPump])
	assert.False(t, res.commands[model.EquipBypassValve])
	assert.Equal(t, model.ZoneIdle, res.snowmeltState)
}

func TestGlycolPumpRunsWheneverZoneEnabled(t *testing.T) {
	// Even with the slab at temperature, the glycol loop keeps moving.
	res := run(testSnap(120, 125, 140, 120), testSettings(), autoModes(), nil)
	assert.True(t, res.commands[model.EquipGlycolPump])
	assert.Equal(t, model.ZoneBypass, res.snowmeltState)
}

func TestUnavailableGoverningSensorFailsSafe(t *testing.T) {
	snap := testSnap(50, 125, 140, 120)
	snap[model.SensorGlycolReturn] = sensors.Reading{Fault: true, Available: false}

	prev := map[model.EquipmentRole]bool{model.EquipPrimaryPump: true}
	res := run(snap, testSettings(), autoModes(), prev)

	assert.False(t, res.commands[model.EquipPrimaryPump])
	assert.False(t, res.commands[model.EquipBypassValve])
	assert.True(t, res.commands[model.EquipGlycolPump], "glycol loop keeps circulating")
	assert.Equal(t, model.ZoneError, res.snowmeltState)
}

func TestSensorRecoveryResumesControl(t *testing.T) {
	settings := testSettings()
	modes := autoModes()

	snap := testSnap(90, 125, 140, 120)
	snap[model.SensorGlycolReturn] = sensors.Reading{Fault: true, Available: false}
	res := run(snap, settings, modes, nil)
	assert.Equal(t, model.ZoneError, res.snowmeltState)

	// Next cycle the reading is back: normal evaluation resumes.
	res = run(testSnap(90, 125, 140, 120), settings, modes, res.commands)
	assert.Equal(t, model.ZoneHeating, res.snowmeltState)
	assert.True(t, res.commands[model.EquipPrimaryPump])
}

func TestDHWHysteresisAndFailSafe(t *testing.T) {
	settings := testSettings()
	modes := autoModes()

	// H=125, D=10: 114 is below the low edge.
	res := run(testSnap(100, 114, 140, 120), settings, modes, nil)
	assert.True(t, res.commands[model.EquipDHWPump])
	assert.Equal(t, model.ZoneHeating, res.dhwState)

	// 126 is above the high edge.
	res = run(testSnap(100, 126, 140, 120), settings, modes, res.commands)
	assert.False(t, res.commands[model.EquipDHWPump])
	assert.Equal(t, model.ZoneIdle, res.dhwState)

	// Tank sensor gone: pump off, zone errored.
	snap := testSnap(100, 120, 140, 120)
	snap[model.SensorDHWTank] = sensors.Reading{Fault: true, Available: false}
	res = run(snap, settings, modes, map[model.EquipmentRole]bool{model.EquipDHWPump: true})
	assert.False(t, res.commands[model.EquipDHWPump])
	assert.Equal(t, model.ZoneError, res.dhwState)

	// Zone disabled reports idle, not error.
	settings.DHWEnabled = false
	res = run(testSnap(100, 114, 140, 120), settings, modes, nil)
	assert.False(t, res.commands[model.EquipDHWPump])
	assert.Equal(t, model.ZoneIdle, res.dhwState)
}

func TestEcoModeSwapsDHWSetpoints(t *testing.T) {
	settings := testSettings()
	settings.EcoEnabled = true

	// 23:00 is inside the 22:00-06:00 window. Eco H=115: a 118 tank is
	// above the eco high edge, so the pump stays off overnight.
	night := time.Date(2026, 1, 15, 23, 0, 0, 0, time.Local)
	res := evaluate(evalInput{
		snap:            testSnap(100, 118, 140, 120),
		settings:        settings,
		modes:           autoModes(),
		prev:            map[model.EquipmentRole]bool{},
		bypassMinDeltaT: 5.0,
		now:             night,
	})
	assert.True(t, res.ecoActive)
	assert.False(t, res.commands[model.EquipDHWPump])

	// Same tank temp at noon uses the normal setpoints: 118 is in the
	// DHW deadband [115, 125), holds previous.
	res = evaluate(evalInput{
		snap:            testSnap(100, 118, 140, 120),
		settings:        settings,
		modes:           autoModes(),
		prev:            map[model.EquipmentRole]bool{model.EquipDHWPump: true},
		bypassMinDeltaT: 5.0,
		now:             noon(),
	})
	assert.False(t, res.ecoActive)
	assert.True(t, res.commands[model.EquipDHWPump])
}

func TestEcoDisabledIgnoresWindow(t *testing.T) {
	settings := testSettings()
	settings.EcoEnabled = false

	night := time.Date(2026, 1, 15, 23, 0, 0, 0, time.Local)
	res := evaluate(evalInput{
		snap:            testSnap(100, 118, 140, 120),
		settings:        settings,
		modes:           autoModes(),
		prev:            map[model.EquipmentRole]bool{},
		bypassMinDeltaT: 5.0,
		now:             night,
	})
	assert.False(t, res.ecoActive)
}

func TestBypassValveFollowsExchangerDeltaT(t *testing.T) {
	settings := testSettings()
	modes := autoModes()

	// Exchanger moving plenty of heat (delta 20): valve stays closed.
	res := run(testSnap(90, 125, 140, 120), settings, modes, nil)
	assert.False(t, res.commands[model.EquipBypassValve])
	assert.Equal(t, 20.0, res.hxDeltaT)

	// Delta collapses to the threshold: divert around the exchanger.
	res = run(testSnap(90, 125, 125, 120), settings, modes, nil)
	assert.True(t, res.commands[model.EquipBypassValve])

	// Exchanger pair unavailable: valve fails safe (closed).
	snap := testSnap(90, 125, 125, 120)
	snap[model.SensorHXOut] = sensors.Reading{Fault: true, Available: false}
	res = run(snap, settings, modes, nil)
	assert.False(t, res.commands[model.EquipBypassValve])
	assert.False(t, res.hxDeltaTOK)

	// Manual override still wins.
	modes[model.EquipBypassValve] = model.ModeOn
	res = run(testSnap(90, 125, 140, 120), settings, modes, nil)
	assert.True(t, res.commands[model.EquipBypassValve])
}
