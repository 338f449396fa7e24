package main

import (
	"flag"
	"fmt"
	"os"

	"snowmelt-controller/internal/onewire"
)

// discover-sensors scans the 1-wire bus and prints each probe's address
// with a live reading, for building the sensors section of the config.
func main() {
	basePath := flag.String("base-path", onewire.BasePath, "1-wire devices directory")
	flag.Parse()

	addresses, err := onewire.Discover(*basePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan failed:", err)
		os.Exit(1)
	}
	if len(addresses) == 0 {
		fmt.Println("No DS18B20 probes found. Is the w1-gpio overlay enabled?")
		return
	}

	fmt.Printf("%-20s %s\n", "ADDRESS", "TEMP (F)")
	for _, addr := range addresses {
		temp, err := onewire.ReadTempF(*basePath, addr)
		if err != nil {
			fmt.Printf("%-20s read error: %v\n", addr, err)
			continue
		}
		fmt.Printf("%-20s %.1f\n", addr, temp)
	}
}
