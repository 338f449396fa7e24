package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/model"
	"snowmelt-controller/internal/notifications"
	"snowmelt-controller/internal/onewire"
)

// Reading is one role's view at snapshot time. Available means the
// value is trustworthy: either the last acquisition succeeded or the
// probe faulted less than the grace period ago.
type Reading struct {
	TempF     float64
	Available bool
	Fault     bool
}

// Snapshot is what the control engine evaluates against each cycle.
type Snapshot map[model.SensorRole]Reading

// Temp returns the reading for a role if it is usable.
func (s Snapshot) Temp(role model.SensorRole) (float64, bool) {
	r, ok := s[role]
	if !ok || !r.Available {
		return 0, false
	}
	return r.TempF, true
}

// Reader is the engine's view of the sensor layer.
type Reader interface {
	Snapshot() Snapshot
}

// Notifier interface for sending notifications
type Notifier interface {
	Send(title, message string) error
}

type realNotifier struct{}

func (realNotifier) Send(title, message string) error {
	return notifications.Send(title, message)
}

// swapped in tests
var readTempF = onewire.ReadTempF

type Service struct {
	mu        sync.RWMutex
	addresses map[model.SensorRole]string
	readings  map[model.SensorRole]model.Reading

	basePath     string
	pollInterval time.Duration
	grace        time.Duration
	retries      int

	notifier Notifier
	// roles we have already alerted on, cleared on recovery
	alerted map[model.SensorRole]bool
}

func New(addresses map[model.SensorRole]string, pollInterval, grace time.Duration, retries int) *Service {
	return &Service{
		addresses:    addresses,
		readings:     make(map[model.SensorRole]model.Reading),
		basePath:     onewire.BasePath,
		pollInterval: pollInterval,
		grace:        grace,
		retries:      retries,
		notifier:     realNotifier{},
		alerted:      make(map[model.SensorRole]bool),
	}
}

// Run polls every probe on its own schedule until ctx is cancelled.
// Probe conversion time dominates the cycle, so this never runs on the
// control tick goroutine.
func (s *Service) Run(ctx context.Context) {
	log.Info().
		Int("sensors", len(s.addresses)).
		Dur("interval", s.pollInterval).
		Msg("Starting sensor polling")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.readAll(time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sensor polling stopped")
			return
		case now := <-ticker.C:
			s.readAll(now)
		}
	}
}

func (s *Service) readAll(now time.Time) {
	for _, role := range model.SensorRoles {
		addr, ok := s.addresses[role]
		if !ok {
			continue
		}

		temp, err := s.readWithRetries(addr)
		if err != nil {
			s.recordFault(role, now, err)
			continue
		}
		s.recordReading(role, temp, now)
	}
}

func (s *Service) readWithRetries(addr string) (float64, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(250 * time.Millisecond)
		}
		temp, err := readTempF(s.basePath, addr)
		if err == nil {
			return temp, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

func (s *Service) recordReading(role model.SensorRole, temp float64, now time.Time) {
	s.mu.Lock()
	wasAlerted := s.alerted[role]
	s.readings[role] = model.Reading{
		Role:   role,
		TempF:  temp,
		ReadAt: now,
		Fault:  false,
	}
	s.alerted[role] = false
	s.mu.Unlock()

	log.Debug().
		Str("sensor", string(role)).
		Float64("temp", temp).
		Msg("Sensor reading accepted")

	if wasAlerted {
		log.Info().Str("sensor", string(role)).Msg("Sensor recovered")
		if err := s.notifier.Send("Snowmelt Sensor Recovery",
			fmt.Sprintf("[%s] recovered: %.1f°F", role, temp)); err != nil {
			log.Error().Err(err).Msg("Failed to send sensor recovery notification")
		}
	}
}

func (s *Service) recordFault(role model.SensorRole, now time.Time, readErr error) {
	s.mu.Lock()
	prev, hadReading := s.readings[role]
	prev.Role = role
	prev.Fault = true
	s.readings[role] = prev

	// Alert once per outage, and only after the last valid reading has
	// aged out of the grace period.
	expired := !hadReading || now.Sub(prev.ReadAt) > s.grace
	shouldAlert := expired && !s.alerted[role]
	if shouldAlert {
		s.alerted[role] = true
	}
	s.mu.Unlock()

	log.Warn().
		Err(readErr).
		Str("sensor", string(role)).
		Bool("grace_expired", expired).
		Msg("Sensor read failed")

	if shouldAlert {
		if err := s.notifier.Send("Snowmelt Sensor Failure",
			fmt.Sprintf("[%s] unreadable beyond grace period, zone failing safe", role)); err != nil {
			log.Error().Err(err).Msg("Failed to send sensor failure notification")
		}
	}
}

// Snapshot returns a consistent copy of all readings with availability
// already evaluated against the grace period.
func (s *Service) Snapshot() Snapshot {
	return s.snapshotAt(time.Now())
}

func (s *Service) snapshotAt(now time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.readings))
	for role, r := range s.readings {
		hasValue := !r.ReadAt.IsZero()
		available := hasValue && (!r.Fault || now.Sub(r.ReadAt) <= s.grace)
		snap[role] = Reading{
			TempF:     r.TempF,
			Available: available,
			Fault:     r.Fault,
		}
	}
	return snap
}
