package engine

import "snowmelt-controller/internal/model"

type CommandKind int

const (
	CmdEquipmentMode CommandKind = iota
	CmdSystemEnable
	CmdSetpoint
	CmdEcoSchedule
	CmdTimerStart
	CmdTimerCancel
)

// System identifiers accepted by CmdSystemEnable.
const (
	SystemSnowmelt = "snowmelt"
	SystemDHW      = "dhw"
	SystemEco      = "eco"
)

// Setpoint field identifiers accepted by CmdSetpoint. These double as
// the wire names on the setpoint topics.
const (
	SetpointGlycolHigh  = "glycol_high"
	SetpointGlycolDelta = "glycol_delta"
	SetpointDHWHigh     = "dhw_high"
	SetpointDHWDelta    = "dhw_delta"
	SetpointEcoHigh     = "eco_high"
	SetpointEcoDelta    = "eco_delta"
)

// Command is one validated inbound request. Commands are queued and
// drained at the top of the next control cycle so an in-progress
// evaluation never sees a half-applied change.
type Command struct {
	Kind CommandKind

	Equipment model.EquipmentRole
	Mode      model.EquipmentMode

	System  string
	Enabled bool

	Setpoint string
	Value    float64

	EcoStart string
	EcoEnd   string

	TimerMinutes int
}
