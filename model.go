package elmo

// Status is the arming and alarm state of every sector, index 0 being
// sector 1.
type Status struct {
	Armed     []bool
	Triggered []bool
}

func (s Status) armedSectors() []int {
	return sectorsWhere(s.Armed, true)
}

func (s Status) triggeredSectors() []int {
	return sectorsWhere(s.Triggered, true)
}

func sectorsWhere(bits []bool, v bool) []int {
	var result []int
	for i, b := range bits {
		if b == v {
			result = append(result, i+1)
		}
	}
	return result
}

// Snapshot is the cached state of the inventory after a poll cycle.
// A nil Status means the status spans are not polled (or were never read).
type Snapshot struct {
	Status           *Status
	DiscreteInputs   map[uint16]bool
	Coils            map[uint16]bool
	HoldingRegisters map[uint16]*uint16
}

func (s Snapshot) DiscreteInput(addr uint16) (value, ok bool) {
	value, ok = s.DiscreteInputs[addr]
	return
}

func (s Snapshot) Coil(addr uint16) (value, ok bool) {
	value, ok = s.Coils[addr]
	return
}

// HoldingRegister reports ok=false when the register is not polled or the
// device did not return it.
func (s Snapshot) HoldingRegister(addr uint16) (uint16, bool) {
	v, ok := s.HoldingRegisters[addr]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		DiscreteInputs:   make(map[uint16]bool, len(s.DiscreteInputs)),
		Coils:            make(map[uint16]bool, len(s.Coils)),
		HoldingRegisters: make(map[uint16]*uint16, len(s.HoldingRegisters)),
	}
	if s.Status != nil {
		out.Status = &Status{
			Armed:     append([]bool(nil), s.Status.Armed...),
			Triggered: append([]bool(nil), s.Status.Triggered...),
		}
	}
	for k, v := range s.DiscreteInputs {
		out.DiscreteInputs[k] = v
	}
	for k, v := range s.Coils {
		out.Coils[k] = v
	}
	for k, v := range s.HoldingRegisters {
		if v != nil {
			v := *v
			out.HoldingRegisters[k] = &v
			continue
		}
		out.HoldingRegisters[k] = nil
	}
	return out
}
