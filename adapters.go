package bridgesdk

import (
	"fmt"

	"github.com/wagiedev/bridge-sdk-go/internal/adapters"
	"github.com/wagiedev/bridge-sdk-go/internal/errors"
)

// Re-export adapter types from internal/adapters.

// Adapter holds metadata for a single host adapter profile.
type Adapter = adapters.Adapter

// AdapterBus represents a bus or I/O facility an adapter drives.
type AdapterBus = adapters.Bus

// Adapter bus constants.
const (
	// AdapterBusI2C is the I2C bus.
	AdapterBusI2C = adapters.BusI2C
	// AdapterBusI3C is the I3C bus.
	AdapterBusI3C = adapters.BusI3C
	// AdapterBusSPI is the SPI bus.
	AdapterBusSPI = adapters.BusSPI
	// AdapterBusUART is the UART.
	AdapterBusUART = adapters.BusUART
	// AdapterBusGPIO is general-purpose I/O.
	AdapterBusGPIO = adapters.BusGPIO
)

// Adapters returns a copy of all known adapter profiles.
func Adapters() []Adapter {
	return adapters.All()
}

// AdapterByID looks up an adapter by profile name, alias, or
// case-insensitive profile name. Returns nil if no adapter is found.
func AdapterByID(id string) *Adapter {
	return adapters.ByID(id)
}

// AdaptersByBus returns all adapters that drive the given bus.
func AdaptersByBus(bus AdapterBus) []Adapter {
	return adapters.ByBus(bus)
}

// LookupAdapter is like AdapterByID but returns an error matching
// ErrUnknownAdapter when the profile is not in the catalog.
func LookupAdapter(id string) (*Adapter, error) {
	if a := adapters.ByID(id); a != nil {
		return a, nil
	}

	return nil, fmt.Errorf("%w: %q", errors.ErrUnknownAdapter, id)
}
