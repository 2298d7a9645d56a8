package elmo

// Register map of the Elmo Modbus gateway. Addresses are the ones the panel
// documents, used as-is on the wire.
const (
	MaxSectors = 64
	MaxInOut   = 1024

	// armed state per sector, one discrete input each.
	RegisterStatusStart uint16 = 12289
	// alarm (triggered) state per sector.
	RegisterAlarmStart uint16 = 5121
	// arm/disarm command coils, one per sector.
	RegisterCommandStart uint16 = 12289

	InputSensorStart         uint16 = 4097
	InputSensorExcludedStart uint16 = 8193
	OutputSwitchStart        uint16 = 20481

	RegisterTemperature uint16 = 0x0180
	temperatureInvalid  uint16 = 0x8000
)

// protocol limits per request.
const (
	maxReadBits      = 2000
	maxReadRegisters = 125
)

func InputAddress(index int) uint16 {
	return InputSensorStart + uint16(index) - 1
}

func InputExcludedAddress(index int) uint16 {
	return InputSensorExcludedStart + uint16(index) - 1
}

func OutputAddress(index int) uint16 {
	return OutputSwitchStart + uint16(index) - 1
}
