package elmo

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// Dialer opens a new connection to the panel.
type Dialer func() (Conn, error)

// Inventory keeps track of the addresses polled from the panel and caches
// the last values read. The connection is opened lazily and dropped on any
// failure, so the next operation reconnects.
type Inventory struct {
	dial        Dialer
	sectorCount int

	mu             sync.Mutex
	conn           Conn
	statusRequired bool
	discrete       map[uint16]struct{}
	coils          map[uint16]struct{}
	registers      map[uint16]struct{}
	cache          Snapshot
}

func NewInventory(dial Dialer, sectorCount int) *Inventory {
	return &Inventory{
		dial:        dial,
		sectorCount: clamp(sectorCount, 1, MaxSectors),
		discrete:    map[uint16]struct{}{},
		coils:       map[uint16]struct{}{},
		registers:   map[uint16]struct{}{},
		cache: Snapshot{
			DiscreteInputs:   map[uint16]bool{},
			Coils:            map[uint16]bool{},
			HoldingRegisters: map[uint16]*uint16{},
		},
	}
}

func (inv *Inventory) SectorCount() int {
	return inv.sectorCount
}

// RequireStatus enables polling of the arming and alarm spans. It returns
// false if they were already enabled.
func (inv *Inventory) RequireStatus() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.statusRequired {
		return false
	}
	inv.statusRequired = true
	return true
}

func (inv *Inventory) AddDiscreteInputs(addrs ...uint16) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return addAll(inv.discrete, addrs)
}

func (inv *Inventory) AddCoils(addrs ...uint16) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return addAll(inv.coils, addrs)
}

func (inv *Inventory) AddHoldingRegisters(addrs ...uint16) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return addAll(inv.registers, addrs)
}

func addAll(set map[uint16]struct{}, addrs []uint16) bool {
	before := len(set)
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return len(set) != before
}

// Refresh polls every registered address. The cache is only replaced when
// all reads succeed.
func (inv *Inventory) Refresh() (Snapshot, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	next := inv.cache.clone()

	if inv.statusRequired {
		status, err := inv.readStatus()
		if err != nil {
			return inv.cache.clone(), inv.fail(err)
		}
		next.Status = &status
	}

	if len(inv.discrete) > 0 {
		values, err := inv.readBits(inv.discrete, maxReadBits, Conn.ReadDiscreteInputs)
		if err != nil {
			return inv.cache.clone(), inv.fail(fmt.Errorf("discrete inputs: %w", err))
		}
		next.DiscreteInputs = values
	}

	if len(inv.coils) > 0 {
		values, err := inv.readBits(inv.coils, maxReadBits, Conn.ReadCoils)
		if err != nil {
			return inv.cache.clone(), inv.fail(fmt.Errorf("coils: %w", err))
		}
		next.Coils = values
	}

	if len(inv.registers) > 0 {
		values, err := inv.readRegisters()
		if err != nil {
			return inv.cache.clone(), inv.fail(fmt.Errorf("holding registers: %w", err))
		}
		next.HoldingRegisters = values
	}

	inv.cache = next
	return next.clone(), nil
}

// Snapshot returns the cached values without polling.
func (inv *Inventory) Snapshot() Snapshot {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.cache.clone()
}

func (inv *Inventory) readStatus() (Status, error) {
	conn, err := inv.connection()
	if err != nil {
		return Status{}, err
	}
	count := uint16(inv.sectorCount)
	armed, err := conn.ReadDiscreteInputs(RegisterStatusStart, count)
	if err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	triggered, err := conn.ReadDiscreteInputs(RegisterAlarmStart, count)
	if err != nil {
		return Status{}, fmt.Errorf("alarms: %w", err)
	}
	return Status{
		Armed:     fit(armed, inv.sectorCount),
		Triggered: fit(triggered, inv.sectorCount),
	}, nil
}

func (inv *Inventory) readBits(
	set map[uint16]struct{},
	limit int,
	read func(Conn, uint16, uint16) ([]bool, error),
) (map[uint16]bool, error) {
	result := make(map[uint16]bool, len(set))
	for _, span := range groupAddresses(set, limit) {
		conn, err := inv.connection()
		if err != nil {
			return nil, err
		}
		bits, err := read(conn, span.start, span.count)
		if err != nil {
			return nil, err
		}
		for i, addr := range span.addrs {
			result[addr] = i < len(bits) && bits[i]
		}
	}
	return result, nil
}

func (inv *Inventory) readRegisters() (map[uint16]*uint16, error) {
	result := make(map[uint16]*uint16, len(inv.registers))
	for _, span := range groupAddresses(inv.registers, maxReadRegisters) {
		conn, err := inv.connection()
		if err != nil {
			return nil, err
		}
		regs, err := conn.ReadHoldingRegisters(span.start, span.count)
		if err != nil {
			return nil, err
		}
		for i, addr := range span.addrs {
			if i >= len(regs) {
				result[addr] = nil
				continue
			}
			v := regs[i]
			result[addr] = &v
		}
	}
	return result, nil
}

// WriteCoil writes a single coil and updates the cached value.
func (inv *Inventory) WriteCoil(addr uint16, value bool) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	conn, err := inv.connection()
	if err != nil {
		return err
	}
	if err := conn.WriteCoil(addr, value); err != nil {
		return inv.fail(err)
	}
	inv.cache.Coils[addr] = value
	return nil
}

// WriteCoils writes consecutive coils starting at start. Cached values are
// only updated for addresses that are tracked or already cached.
func (inv *Inventory) WriteCoils(start uint16, values []bool) error {
	if len(values) == 0 {
		return nil
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	conn, err := inv.connection()
	if err != nil {
		return err
	}
	if err := conn.WriteCoils(start, values); err != nil {
		return inv.fail(err)
	}
	for i, v := range values {
		addr := start + uint16(i)
		_, tracked := inv.coils[addr]
		_, cached := inv.cache.Coils[addr]
		if tracked || cached {
			inv.cache.Coils[addr] = v
		}
	}
	return nil
}

// SetInputExclusion excludes (or re-activates) the given inputs. The panel
// expects the excluded coil to be written false to exclude an input.
func (inv *Inventory) SetInputExclusion(inputs []int, excluded bool) error {
	for _, input := range inputs {
		if input < 1 || input > MaxInOut {
			return fmt.Errorf("input %d: %w", input, ErrInvalidSelection)
		}
	}
	for _, input := range inputs {
		log.Info("set input exclusion", "input", input, "excluded", excluded)
		if err := inv.WriteCoil(InputExcludedAddress(input), !excluded); err != nil {
			return fmt.Errorf("could not set exclusion of input %d: %w", input, err)
		}
	}
	return nil
}

func (inv *Inventory) Close() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.conn == nil {
		return nil
	}
	err := inv.conn.Close()
	inv.conn = nil
	return err
}

// connection must be called with the lock held.
func (inv *Inventory) connection() (Conn, error) {
	if inv.conn != nil {
		return inv.conn, nil
	}
	conn, err := inv.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect: %w", ErrConnection, err)
	}
	inv.conn = conn
	return conn, nil
}

// fail drops the connection so the next operation dials again.
func (inv *Inventory) fail(err error) error {
	if inv.conn != nil {
		if cerr := inv.conn.Close(); cerr != nil {
			log.Warn("could not close connection", "err", cerr)
		}
		inv.conn = nil
	}
	if errors.Is(err, ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

type addressSpan struct {
	start uint16
	count uint16
	addrs []uint16
}

// groupAddresses sorts the addresses and groups consecutive runs into
// spans no longer than limit.
func groupAddresses(set map[uint16]struct{}, limit int) []addressSpan {
	ordered := make([]uint16, 0, len(set))
	for a := range set {
		ordered = append(ordered, a)
	}
	slices.Sort(ordered)

	var spans []addressSpan
	for _, addr := range ordered {
		if n := len(spans); n > 0 {
			last := &spans[n-1]
			if addr == last.addrs[len(last.addrs)-1]+1 && len(last.addrs) < limit {
				last.addrs = append(last.addrs, addr)
				last.count++
				continue
			}
		}
		spans = append(spans, addressSpan{start: addr, count: 1, addrs: []uint16{addr}})
	}
	return spans
}

func fit(bits []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, bits)
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
