package elmo

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// DeviceClass mirrors the binary sensor classes of Home Assistant.
type DeviceClass string

const (
	DeviceClassNone    DeviceClass = ""
	DeviceClassProblem DeviceClass = "problem"
	DeviceClassBattery DeviceClass = "battery"
	DeviceClassTamper  DeviceClass = "tamper"
	DeviceClassSafety  DeviceClass = "safety"
)

// BinarySensor describes an entity backed by one discrete input.
type BinarySensor struct {
	Key         string
	Name        string
	Address     uint16
	DeviceClass DeviceClass
	Diagnostic  bool
	ObjectID    string

	// Input is the alarm input number, zero for diagnostics.
	Input           int
	ExcludedAddress uint16
}

func (b BinarySensor) HasExcluded() bool {
	return b.Input > 0
}

// Value reads the sensor from the snapshot; ok is false when the value is
// unknown.
func (b BinarySensor) Value(s Snapshot) (on, ok bool) {
	return s.DiscreteInput(b.Address)
}

// Excluded reports whether the input is excluded from the alarm.
func (b BinarySensor) Excluded(s Snapshot) (excluded, ok bool) {
	if !b.HasExcluded() {
		return false, false
	}
	return s.DiscreteInput(b.ExcludedAddress)
}

func diagnostic(key, name string, addr uint16, class DeviceClass) BinarySensor {
	return BinarySensor{
		Key:         key,
		Name:        name,
		Address:     addr,
		DeviceClass: class,
		Diagnostic:  true,
		ObjectID:    key,
	}
}

// DiagnosticSensors are the panel-wide troubles and summaries.
var DiagnosticSensors = []BinarySensor{
	diagnostic("central_power_fault", "Central power fault", 0x0100, DeviceClassProblem),
	diagnostic("central_battery_fault", "Central battery fault", 0x0101, DeviceClassBattery),
	diagnostic("central_tamper_fault", "Central tamper", 0x0102, DeviceClassTamper),
	diagnostic("pstn_fault", "PSTN fault", 0x0103, DeviceClassProblem),
	diagnostic("cellular_fault", "Cellular fault", 0x0104, DeviceClassProblem),
	diagnostic("sensor_power_fault_1", "Sensor power fault 1", 0x0105, DeviceClassProblem),
	diagnostic("sensor_power_fault_2", "Sensor power fault 2", 0x0106, DeviceClassProblem),
	diagnostic("siren_power_fault", "Siren power fault", 0x0107, DeviceClassProblem),
	diagnostic("central_general_alarm", "General alarm", 0x0200, DeviceClassSafety),
	diagnostic("central_general_tamper", "General tamper", 0x0201, DeviceClassTamper),
	diagnostic("sectors_not_armable", "Sectors not armable", 0x0401, DeviceClassNone),
	diagnostic("sectors_inserted", "Sectors armed", 0x0402, DeviceClassNone),
	diagnostic("sectors_inserted_max_security", "Sectors armed max security", 0x0403, DeviceClassNone),
	diagnostic("sectors_inputs_alarm", "Sectors inputs alarm", 0x0404, DeviceClassNone),
	diagnostic("sectors_inputs_memory_alarm", "Sectors inputs alarm memory", 0x0405, DeviceClassNone),
	diagnostic("excluded_zones", "Excluded zones", 0x0406, DeviceClassNone),
}

// Diagnostic returns the diagnostic sensor with the given key.
func Diagnostic(key string) BinarySensor {
	for _, d := range DiagnosticSensors {
		if d.Key == key {
			return d
		}
	}
	panic("unknown diagnostic sensor: " + key)
}

// InputSensors describes the configured alarm inputs, sorted by number.
func InputSensors(inputs []int, names map[int]string) []BinarySensor {
	used := map[string]bool{}
	var result []BinarySensor
	for _, n := range sortedCopy(inputs) {
		key := fmt.Sprintf("alarm_input_%d", n)
		name, objectID := entityName(names[n], fmt.Sprintf("Input %d", n), key)
		result = append(result, BinarySensor{
			Key:             key,
			Name:            name,
			Address:         InputAddress(n),
			DeviceClass:     DeviceClassSafety,
			ObjectID:        uniqueObjectID(objectID, n, used),
			Input:           n,
			ExcludedAddress: InputExcludedAddress(n),
		})
	}
	return result
}

// Output describes a switch backed by one coil.
type Output struct {
	Key      string
	Name     string
	Index    int
	Address  uint16
	ObjectID string
}

func (o Output) Value(s Snapshot) (on, ok bool) {
	return s.Coil(o.Address)
}

// OutputSwitches describes the configured outputs, sorted by number.
func OutputSwitches(outputs []int, names map[int]string) []Output {
	used := map[string]bool{}
	var result []Output
	for _, n := range sortedCopy(outputs) {
		key := fmt.Sprintf("output_switch_%d", n)
		name, objectID := entityName(names[n], fmt.Sprintf("Output %d", n), key)
		result = append(result, Output{
			Key:      key,
			Name:     name,
			Index:    n,
			Address:  OutputAddress(n),
			ObjectID: uniqueObjectID(objectID, n, used),
		})
	}
	return result
}

// RegisterSensor describes a measurement backed by one holding register.
type RegisterSensor struct {
	Key     string
	Name    string
	Address uint16
	Unit    string
	Invalid []uint16
	Scale   float64
}

var TemperatureSensor = RegisterSensor{
	Key:     "central_temperature",
	Name:    "Central temperature",
	Address: RegisterTemperature,
	Unit:    "°C",
	Invalid: []uint16{temperatureInvalid},
	Scale:   10,
}

// Value decodes the register as a signed 16 bit integer divided by the
// scale. Missing and invalid values are reported as not ok.
func (r RegisterSensor) Value(s Snapshot) (float64, bool) {
	raw, ok := s.HoldingRegister(r.Address)
	if !ok {
		return 0, false
	}
	return r.Decode(raw)
}

func (r RegisterSensor) Decode(raw uint16) (float64, bool) {
	if slices.Contains(r.Invalid, raw) {
		return 0, false
	}
	v := float64(int16(raw))
	if r.Scale != 0 {
		v /= r.Scale
	}
	return math.Round(v*100) / 100, true
}

func entityName(custom, fallback, key string) (name, objectID string) {
	if custom == "" {
		return fallback, key
	}
	if id := Slugify(custom); id != "" {
		return custom, id
	}
	return custom, key
}

func uniqueObjectID(id string, n int, used map[string]bool) string {
	if used[id] {
		id = fmt.Sprintf("%s_%d", id, n)
	}
	used[id] = true
	return id
}

func sortedCopy(v []int) []int {
	out := slices.Clone(v)
	slices.Sort(out)
	return slices.Compact(out)
}
