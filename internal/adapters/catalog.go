// Package adapters provides a catalog of known bridge host adapter profiles
// and the buses they drive. The bridge itself is the authority on which
// profiles it accepts; the catalog resolves aliases and describes hardware.
package adapters

import (
	"slices"
	"strings"
)

// Bus is a serial bus or I/O facility a host adapter can drive.
type Bus string

const (
	// BusI2C is the I2C bus.
	BusI2C Bus = "i2c"
	// BusI3C is the I3C bus.
	BusI3C Bus = "i3c"
	// BusSPI is the SPI bus.
	BusSPI Bus = "spi"
	// BusUART is the UART.
	BusUART Bus = "uart"
	// BusGPIO is general-purpose I/O.
	BusGPIO Bus = "gpio"
)

// Adapter holds metadata for a single host adapter profile.
type Adapter struct {
	// ID is the profile name passed to the bridge (e.g. "BinhoSupernova").
	ID string
	// Name is the human-readable display name.
	Name string
	// Aliases are shorthand names accepted in configuration (e.g. "supernova").
	Aliases []string
	// Buses lists what the adapter drives.
	Buses []Bus
	// SimulatedAddress is the device address that opens the bridge's
	// simulated device, or empty if the profile has none.
	SimulatedAddress string
}

// HasBus reports whether the adapter drives the given bus.
func (a Adapter) HasBus(bus Bus) bool {
	return slices.Contains(a.Buses, bus)
}

// BusStrings returns buses as a string slice for interop with string-based
// systems.
func (a Adapter) BusStrings() []string {
	out := make([]string, 0, len(a.Buses))
	for _, b := range a.Buses {
		out = append(out, string(b))
	}

	return out
}

// All returns a copy of every known adapter in the catalog.
func All() []Adapter {
	out := make([]Adapter, len(registry))
	copy(out, registry)

	return out
}

// ByID looks up an adapter by its profile name. It checks in order:
//  1. Exact match on ID
//  2. Alias match
//  3. Case-insensitive match on ID
//
// Returns nil if no adapter is found.
func ByID(id string) *Adapter {
	for i := range registry {
		if registry[i].ID == id {
			a := registry[i]

			return &a
		}
	}

	for i := range registry {
		if slices.Contains(registry[i].Aliases, id) {
			a := registry[i]

			return &a
		}
	}

	for i := range registry {
		if strings.EqualFold(registry[i].ID, id) {
			a := registry[i]

			return &a
		}
	}

	return nil
}

// ByBus returns all adapters that drive the given bus.
func ByBus(bus Bus) []Adapter {
	var out []Adapter

	for _, a := range registry {
		if a.HasBus(bus) {
			out = append(out, a)
		}
	}

	return out
}

// Resolve maps a configured profile to the name passed to the bridge.
// Known IDs and aliases resolve to the canonical ID; anything else is
// returned verbatim with known set to false.
func Resolve(profile string) (id string, known bool) {
	if a := ByID(profile); a != nil {
		return a.ID, true
	}

	return profile, false
}
