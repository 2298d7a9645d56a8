package elmo

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	logp "github.com/charmbracelet/log"
	"github.com/goburrow/modbus"
	"github.com/j-keck/arping"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "modbus",
})

// SetLogLevel changes the level of the field-bus logger.
func SetLogLevel(level logp.Level) {
	log.SetLevel(level)
}

const DefaultTimeout = 5 * time.Second

// Conn is the subset of Modbus operations the inventory needs.
type Conn interface {
	ReadDiscreteInputs(addr, count uint16) ([]bool, error)
	ReadCoils(addr, count uint16) ([]bool, error)
	ReadHoldingRegisters(addr, count uint16) ([]uint16, error)
	WriteCoil(addr uint16, value bool) error
	WriteCoils(addr uint16, values []bool) error
	Close() error
}

// Client is a Modbus TCP connection to the alarm panel.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
	addr    string
}

var _ Conn = &Client{}

func New(host, port string, unitID byte, timeout time.Duration) (*Client, error) {
	if host == "" {
		return nil, errors.New("could not connect: host is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	addr := net.JoinHostPort(host, port)
	h := modbus.NewTCPClientHandler(addr)
	h.Timeout = timeout
	h.SlaveId = unitID
	if log.GetLevel() <= logp.DebugLevel {
		h.Logger = log.StandardLog(logp.StandardLogOptions{
			ForceLevel: logp.DebugLevel,
		})
	}
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
		addr:    addr,
	}, nil
}

func MacAddress(ip string) (string, error) {
	hw, _, err := arping.Ping(net.ParseIP(ip))
	if err != nil {
		return "", fmt.Errorf("could not get the mac address: %w", err)
	}
	return hw.String(), nil
}

func (c *Client) ReadDiscreteInputs(addr, count uint16) ([]bool, error) {
	log.Debug("read discrete inputs", "addr", addr, "count", count)
	resp, err := c.client.ReadDiscreteInputs(addr, count)
	if err != nil {
		return nil, fmt.Errorf("could not read discrete inputs %d+%d: %w", addr, count, err)
	}
	return unpackBits(resp, int(count)), nil
}

func (c *Client) ReadCoils(addr, count uint16) ([]bool, error) {
	log.Debug("read coils", "addr", addr, "count", count)
	resp, err := c.client.ReadCoils(addr, count)
	if err != nil {
		return nil, fmt.Errorf("could not read coils %d+%d: %w", addr, count, err)
	}
	return unpackBits(resp, int(count)), nil
}

func (c *Client) ReadHoldingRegisters(addr, count uint16) ([]uint16, error) {
	log.Debug("read holding registers", "addr", addr, "count", count)
	resp, err := c.client.ReadHoldingRegisters(addr, count)
	if err != nil {
		return nil, fmt.Errorf("could not read holding registers %d+%d: %w", addr, count, err)
	}
	return unpackRegisters(resp), nil
}

func (c *Client) WriteCoil(addr uint16, value bool) error {
	log.Debug("write coil", "addr", addr, "value", value)
	var v uint16
	if value {
		v = 0xff00
	}
	if _, err := c.client.WriteSingleCoil(addr, v); err != nil {
		return fmt.Errorf("could not write coil %d=%v: %w", addr, value, err)
	}
	return nil
}

func (c *Client) WriteCoils(addr uint16, values []bool) error {
	log.Debug("write coils", "addr", addr, "count", len(values))
	if len(values) == 0 {
		return nil
	}
	if _, err := c.client.WriteMultipleCoils(addr, uint16(len(values)), packBits(values)); err != nil {
		return fmt.Errorf("could not write %d coils at %d: %w", len(values), addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.handler.Close(); err != nil {
		return fmt.Errorf("could not disconnect from %s: %w", c.addr, err)
	}
	return nil
}

// unpackBits expands a packed LSB-first bit field, padding short responses
// with false.
func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		if i/8 >= len(data) {
			break
		}
		out[i] = data[i/8]&(1<<(i%8)) != 0
	}
	return out
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, v := range bits {
		if v {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
