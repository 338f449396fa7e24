package sensors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowmelt-controller/internal/model"
)

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Send(title, message string) error {
	f.sent = append(f.sent, title+": "+message)
	return nil
}

func newTestService(notifier Notifier) *Service {
	s := New(
		map[model.SensorRole]string{model.SensorDHWTank: "28-test"},
		time.Second,
		30*time.Second,
		0,
	)
	s.notifier = notifier
	return s
}

func TestSnapshotFreshReading(t *testing.T) {
	s := newTestService(&fakeNotifier{})
	now := time.Now()

	s.recordReading(model.SensorDHWTank, 118.5, now)

	snap := s.snapshotAt(now)
	temp, ok := snap.Temp(model.SensorDHWTank)
	require.True(t, ok)
	assert.Equal(t, 118.5, temp)
	assert.False(t, snap[model.SensorDHWTank].Fault)
}

func TestSnapshotFaultWithinGrace(t *testing.T) {
	s := newTestService(&fakeNotifier{})
	now := time.Now()

	s.recordReading(model.SensorDHWTank, 118.5, now)
	s.recordFault(model.SensorDHWTank, now.Add(10*time.Second), fmt.Errorf("crc failed"))

	// Last valid reading is 10s old, grace is 30s: still usable.
	snap := s.snapshotAt(now.Add(10 * time.Second))
	temp, ok := snap.Temp(model.SensorDHWTank)
	require.True(t, ok)
	assert.Equal(t, 118.5, temp)
	assert.True(t, snap[model.SensorDHWTank].Fault)
}

func TestSnapshotFaultBeyondGrace(t *testing.T) {
	s := newTestService(&fakeNotifier{})
	now := time.Now()

	s.recordReading(model.SensorDHWTank, 118.5, now)
	s.recordFault(model.SensorDHWTank, now.Add(45*time.Second), fmt.Errorf("crc failed"))

	snap := s.snapshotAt(now.Add(45 * time.Second))
	_, ok := snap.Temp(model.SensorDHWTank)
	assert.False(t, ok)
	assert.True(t, snap[model.SensorDHWTank].Fault)
}

func TestSnapshotNeverRead(t *testing.T) {
	s := newTestService(&fakeNotifier{})

	s.recordFault(model.SensorDHWTank, time.Now(), fmt.Errorf("no such device"))

	snap := s.snapshotAt(time.Now())
	_, ok := snap.Temp(model.SensorDHWTank)
	assert.False(t, ok)
}

func TestFaultNotificationOncePerOutage(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestService(notifier)
	now := time.Now()

	s.recordReading(model.SensorDHWTank, 118.5, now)

	// Faults inside the grace window do not alert.
	s.recordFault(model.SensorDHWTank, now.Add(5*time.Second), fmt.Errorf("crc failed"))
	assert.Empty(t, notifier.sent)

	// First fault past the grace window alerts, repeats do not.
	s.recordFault(model.SensorDHWTank, now.Add(40*time.Second), fmt.Errorf("crc failed"))
	s.recordFault(model.SensorDHWTank, now.Add(50*time.Second), fmt.Errorf("crc failed"))
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "Sensor Failure")

	// Recovery alerts once and re-arms the failure alert.
	s.recordReading(model.SensorDHWTank, 119.0, now.Add(60*time.Second))
	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[1], "Sensor Recovery")
}

func TestReadAllUsesConfiguredAddresses(t *testing.T) {
	origRead := readTempF
	defer func() { readTempF = origRead }()

	var readAddrs []string
	readTempF = func(basePath, address string) (float64, error) {
		readAddrs = append(readAddrs, address)
		return 100.0, nil
	}

	s := newTestService(&fakeNotifier{})
	s.readAll(time.Now())

	assert.Equal(t, []string{"28-test"}, readAddrs)

	temp, ok := s.Snapshot().Temp(model.SensorDHWTank)
	require.True(t, ok)
	assert.Equal(t, 100.0, temp)
}

func TestMockSnapshot(t *testing.T) {
	m := NewMock()

	temp, ok := m.Snapshot().Temp(model.SensorGlycolReturn)
	require.True(t, ok)
	assert.Equal(t, 95.0, temp)

	m.Set(model.SensorGlycolReturn, 112.0)
	temp, _ = m.Snapshot().Temp(model.SensorGlycolReturn)
	assert.Equal(t, 112.0, temp)

	m.SetUnavailable(model.SensorGlycolReturn)
	_, ok = m.Snapshot().Temp(model.SensorGlycolReturn)
	assert.False(t, ok)
}
