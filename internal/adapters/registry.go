package adapters

// registry is the internal list of all known adapter profiles.
var registry = []Adapter{
	{
		ID:               "BinhoSupernova",
		Name:             "Binho Supernova",
		Aliases:          []string{"supernova"},
		Buses:            []Bus{BusI2C, BusI3C, BusSPI, BusUART, BusGPIO},
		SimulatedAddress: "SupernovaSimulatedPort",
	},
	{
		ID:      "BinhoPulsar",
		Name:    "Binho Pulsar",
		Aliases: []string{"pulsar"},
		Buses:   []Bus{BusI2C, BusSPI, BusUART, BusGPIO},
	},
}
