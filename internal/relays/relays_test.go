package relays

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowmelt-controller/internal/model"
)

type pinWrite struct {
	pin   int
	drive string
}

func captureWrites(t *testing.T) *[]pinWrite {
	t.Helper()
	orig := setPin
	t.Cleanup(func() { setPin = orig })

	writes := &[]pinWrite{}
	setPin = func(pin int, opts ...string) error {
		*writes = append(*writes, pinWrite{pin: pin, drive: opts[len(opts)-1]})
		return nil
	}
	return writes
}

func TestApplyActiveHigh(t *testing.T) {
	writes := captureWrites(t)

	d := New(map[model.EquipmentRole]int{
		model.EquipGlycolPump: 5,
		model.EquipDHWPump:    16,
	}, true, false)

	faults := d.Apply(map[model.EquipmentRole]bool{
		model.EquipGlycolPump: true,
		model.EquipDHWPump:    false,
	})

	require.Len(t, *writes, 2)
	assert.Contains(t, *writes, pinWrite{pin: 5, drive: "dh"})
	assert.Contains(t, *writes, pinWrite{pin: 16, drive: "dl"})
	assert.False(t, faults[model.EquipGlycolPump])
	assert.False(t, faults[model.EquipDHWPump])
}

func TestApplyActiveLow(t *testing.T) {
	writes := captureWrites(t)

	d := New(map[model.EquipmentRole]int{model.EquipBypassValve: 13}, false, false)
	d.Apply(map[model.EquipmentRole]bool{model.EquipBypassValve: true})

	require.Len(t, *writes, 1)
	assert.Equal(t, pinWrite{pin: 13, drive: "dl"}, (*writes)[0])
}

func TestApplyWriteFailureIsolated(t *testing.T) {
	orig := setPin
	defer func() { setPin = orig }()

	setPin = func(pin int, opts ...string) error {
		if pin == 6 {
			return fmt.Errorf("pinctrl set failed")
		}
		return nil
	}

	d := New(map[model.EquipmentRole]int{
		model.EquipGlycolPump:  5,
		model.EquipPrimaryPump: 6,
		model.EquipDHWPump:     16,
	}, true, false)

	faults := d.Apply(map[model.EquipmentRole]bool{
		model.EquipGlycolPump:  true,
		model.EquipPrimaryPump: true,
		model.EquipDHWPump:     true,
	})

	assert.True(t, faults[model.EquipPrimaryPump])
	assert.False(t, faults[model.EquipGlycolPump])
	assert.False(t, faults[model.EquipDHWPump])

	// Fault clears once the write succeeds again.
	setPin = func(pin int, opts ...string) error { return nil }
	faults = d.Apply(map[model.EquipmentRole]bool{model.EquipPrimaryPump: true})
	assert.False(t, faults[model.EquipPrimaryPump])
}

func TestApplySafeModeSkipsWrites(t *testing.T) {
	writes := captureWrites(t)

	d := New(map[model.EquipmentRole]int{model.EquipGlycolPump: 5}, true, true)
	faults := d.Apply(map[model.EquipmentRole]bool{model.EquipGlycolPump: true})

	assert.Empty(t, *writes)
	assert.False(t, faults[model.EquipGlycolPump])
}
