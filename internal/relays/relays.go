package relays

import (
	"sync"

	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/model"
	"snowmelt-controller/internal/pinctrl"
)

// swapped in tests
var setPin = pinctrl.SetPin

// Driver is the exclusive owner of the relay outputs. Commands are
// reapplied every cycle; pinctrl writes are idempotent at the
// electrical level.
type Driver struct {
	pins     map[model.EquipmentRole]model.GPIOPin
	safeMode bool

	mu     sync.Mutex
	faults map[model.EquipmentRole]bool
}

func New(pins map[model.EquipmentRole]int, activeHigh bool, safeMode bool) *Driver {
	d := &Driver{
		pins:     make(map[model.EquipmentRole]model.GPIOPin, len(pins)),
		safeMode: safeMode,
		faults:   make(map[model.EquipmentRole]bool),
	}
	for role, pin := range pins {
		d.pins[role] = model.GPIOPin{Number: pin, ActiveHigh: activeHigh}
	}
	if safeMode {
		log.Warn().Msg("SAFE MODE ENABLED — relay writes are disabled system-wide")
	}
	return d
}

// Apply drives every commanded relay. A write failure marks that role
// faulted and moves on; one bad relay never blocks the rest of the
// cycle.
func (d *Driver) Apply(commands map[model.EquipmentRole]bool) map[model.EquipmentRole]bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, role := range model.EquipmentRoles {
		on, ok := commands[role]
		if !ok {
			continue
		}
		pin, ok := d.pins[role]
		if !ok {
			continue
		}

		if d.safeMode {
			d.faults[role] = false
			continue
		}

		if err := d.write(pin, on); err != nil {
			log.Error().
				Err(err).
				Str("equipment", string(role)).
				Int("pin", pin.Number).
				Bool("on", on).
				Msg("Relay write failed")
			d.faults[role] = true
			continue
		}
		d.faults[role] = false
	}

	return d.faultsLocked()
}

func (d *Driver) write(pin model.GPIOPin, on bool) error {
	drive := "dl"
	if on == pin.ActiveHigh {
		drive = "dh"
	}
	return setPin(pin.Number, "op", "pn", drive)
}

// Faults reports which roles failed their most recent write.
func (d *Driver) Faults() map[model.EquipmentRole]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faultsLocked()
}

func (d *Driver) faultsLocked() map[model.EquipmentRole]bool {
	out := make(map[model.EquipmentRole]bool, len(d.faults))
	for role, f := range d.faults {
		out[role] = f
	}
	return out
}
