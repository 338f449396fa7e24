package model

import "time"

type EquipmentMode string

const (
	ModeAuto EquipmentMode = "auto"
	ModeOn   EquipmentMode = "on"
	ModeOff  EquipmentMode = "off"
)

// ParseEquipmentMode returns the mode for a wire value, or false if the
// value is not a recognized mode.
func ParseEquipmentMode(s string) (EquipmentMode, bool) {
	switch EquipmentMode(s) {
	case ModeAuto, ModeOn, ModeOff:
		return EquipmentMode(s), true
	}
	return ModeAuto, false
}

type ZoneState string

const (
	ZoneIdle    ZoneState = "idle"
	ZoneHeating ZoneState = "heating"
	ZoneBypass  ZoneState = "bypass"
	ZoneError   ZoneState = "error"
)

type SensorRole string

const (
	SensorGlycolReturn SensorRole = "glycol_return"
	SensorGlycolSupply SensorRole = "glycol_supply"
	SensorHXIn         SensorRole = "heat_exchanger_in"
	SensorHXOut        SensorRole = "heat_exchanger_out"
	SensorDHWTank      SensorRole = "dhw_tank"
)

// SensorRoles lists every role the controller expects a probe for.
var SensorRoles = []SensorRole{
	SensorGlycolReturn,
	SensorGlycolSupply,
	SensorHXIn,
	SensorHXOut,
	SensorDHWTank,
}

type EquipmentRole string

const (
	EquipGlycolPump  EquipmentRole = "glycol_pump"
	EquipPrimaryPump EquipmentRole = "primary_pump"
	EquipBypassValve EquipmentRole = "bypass_valve"
	EquipDHWPump     EquipmentRole = "dhw_recirc_pump"
)

var EquipmentRoles = []EquipmentRole{
	EquipGlycolPump,
	EquipPrimaryPump,
	EquipBypassValve,
	EquipDHWPump,
}

type GPIOPin struct {
	Number     int
	ActiveHigh bool
}

// Setpoints is one hysteresis band: equipment turns on at or below
// HighTemp-DeltaT and off at or above HighTemp.
type Setpoints struct {
	HighTemp float64 `json:"high_temp"`
	DeltaT   float64 `json:"delta_t"`
}

func (s Setpoints) LowTemp() float64 {
	return s.HighTemp - s.DeltaT
}

// Settings is the mutable configuration the engine evaluates against.
// It is swapped as a whole at cycle boundaries, never field by field
// mid-cycle.
type Settings struct {
	SnowmeltEnabled bool      `json:"snowmelt_enabled"`
	DHWEnabled      bool      `json:"dhw_enabled"`
	EcoEnabled      bool      `json:"eco_enabled"`
	Glycol          Setpoints `json:"glycol"`
	DHW             Setpoints `json:"dhw"`
	Eco             Setpoints `json:"eco"`
	EcoStart        string    `json:"eco_start"` // HH:MM
	EcoEnd          string    `json:"eco_end"`   // HH:MM
}

// Reading is the sensor service's view of one probe. TempF and ReadAt
// reflect the last valid acquisition; Fault is set while the probe is
// unreadable.
type Reading struct {
	Role   SensorRole
	TempF  float64
	ReadAt time.Time
	Fault  bool
}
