package onewire

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// BasePath is where the kernel w1 driver exposes DS18B20 probes.
const BasePath = "/sys/bus/w1/devices"

// ReadTempF reads one probe by its bus address and returns the
// temperature in Fahrenheit. The read blocks for the probe's conversion
// time (~750ms), so callers poll from a dedicated goroutine.
func ReadTempF(basePath, address string) (float64, error) {
	file := filepath.Join(basePath, address, "w1_slave")
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, fmt.Errorf("failed to read sensor %s: %w", address, err)
	}
	return ParseSlave(string(data))
}

// ParseSlave parses the two-line w1_slave format:
//
//	4b 46 7f ff 05 10 e9 : crc=e9 YES
//	4b 46 7f ff 05 10 e9 t=23062
func ParseSlave(data string) (float64, error) {
	lines := strings.Split(data, "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("temperature data missing or malformed")
	}

	if !strings.Contains(lines[0], "YES") {
		return 0, fmt.Errorf("sensor CRC check failed")
	}

	idx := strings.Index(lines[1], "t=")
	if idx == -1 {
		return 0, fmt.Errorf("temperature value not found")
	}

	milliC, err := strconv.Atoi(strings.TrimSpace(lines[1][idx+2:]))
	if err != nil {
		return 0, fmt.Errorf("failed to parse temperature value: %w", err)
	}

	tempC := float64(milliC) / 1000.0
	return tempC*9.0/5.0 + 32.0, nil
}

// Discover lists the addresses of all DS18B20 probes on the bus
// (family code 28).
func Discover(basePath string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(basePath, "28-*"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", basePath, err)
	}

	addresses := make([]string, 0, len(matches))
	for _, m := range matches {
		addresses = append(addresses, filepath.Base(m))
	}
	sort.Strings(addresses)
	return addresses, nil
}
