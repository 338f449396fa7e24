package sensors

import (
	"sync"

	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/model"
)

// Mock serves fixed temperatures for hardware-free runs. Values can be
// changed at runtime (tests, bench setups) and individual roles can be
// marked unavailable.
type Mock struct {
	mu    sync.RWMutex
	temps map[model.SensorRole]float64
	down  map[model.SensorRole]bool
}

func NewMock() *Mock {
	log.Info().Msg("Using mock temperature sensors")
	return &Mock{
		temps: map[model.SensorRole]float64{
			model.SensorGlycolReturn: 95.0,
			model.SensorGlycolSupply: 105.0,
			model.SensorHXIn:         140.0,
			model.SensorHXOut:        120.0,
			model.SensorDHWTank:      118.0,
		},
		down: make(map[model.SensorRole]bool),
	}
}

func (m *Mock) Set(role model.SensorRole, tempF float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temps[role] = tempF
	m.down[role] = false
}

func (m *Mock) SetUnavailable(role model.SensorRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down[role] = true
}

func (m *Mock) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := make(Snapshot, len(m.temps))
	for role, temp := range m.temps {
		snap[role] = Reading{
			TempF:     temp,
			Available: !m.down[role],
			Fault:     m.down[role],
		}
	}
	return snap
}
