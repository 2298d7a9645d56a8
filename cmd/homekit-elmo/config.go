package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	elmo "github.com/caarlos0/homekit-elmo"
	"gopkg.in/yaml.v3"
)

const maxScanInterval = time.Hour

type Config struct {
	Host         string        `env:"HOST,notEmpty"`
	Port         string        `env:"PORT"          envDefault:"502"`
	UnitID       uint8         `env:"UNIT_ID"       envDefault:"1"`
	Sectors      int           `env:"SECTORS"       envDefault:"64"`
	ScanInterval time.Duration `env:"SCAN_INTERVAL" envDefault:"1s"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"5s"`

	// Inputs and Outputs are selections such as "1-8, 12".
	Inputs      string   `env:"INPUTS"`
	Outputs     string   `env:"OUTPUTS"`
	InputNames  []string `env:"INPUT_NAMES"`
	OutputNames []string `env:"OUTPUT_NAMES"`

	AwaySectors   []int `env:"AWAY"`
	HomeSectors   []int `env:"HOME"`
	NightSectors  []int `env:"NIGHT"`
	DisarmSectors []int `env:"DISARM"`

	UserCodes []string `env:"USER_CODES"`
	Layout    string   `env:"LAYOUT"`

	Address string `env:"LISTEN" envDefault:":9009"`
	Pin     string `env:"PIN"    envDefault:"00102003"`
	DB      string `env:"DB"     envDefault:"./db"`
	Debug   bool   `env:"DEBUG"`

	MQTT   MQTTConfig   `envPrefix:"MQTT_"`
	Influx InfluxConfig `envPrefix:"INFLUX_"`
}

type MQTTConfig struct {
	Broker          string `env:"BROKER"`
	ClientID        string `env:"CLIENT_ID"        envDefault:"homekit-elmo"`
	Username        string `env:"USERNAME"`
	Password        string `env:"PASSWORD"`
	DiscoveryPrefix string `env:"DISCOVERY_PREFIX" envDefault:"homeassistant"`
	Topic           string `env:"TOPIC"            envDefault:"elmo"`
}

func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type InfluxConfig struct {
	URL         string `env:"URL"`
	Token       string `env:"TOKEN"`
	Org         string `env:"ORG"`
	Bucket      string `env:"BUCKET"      envDefault:"elmo"`
	Measurement string `env:"MEASUREMENT" envDefault:"alarm"`
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// Layout is the optional YAML file describing the panels and the names of
// inputs and outputs.
type Layout struct {
	Panels      []elmo.PanelConfig `yaml:"panels"`
	InputNames  map[int]string     `yaml:"input_names"`
	OutputNames map[int]string     `yaml:"output_names"`
}

// Setup is the validated, normalized configuration.
type Setup struct {
	Panels  []elmo.Panel
	Inputs  []elmo.BinarySensor
	Outputs []elmo.Output
	Codes   elmo.Codes
}

func readLayout(path string) (Layout, error) {
	var layout Layout
	if path == "" {
		return layout, nil
	}
	bts, err := os.ReadFile(path)
	if err != nil {
		return layout, fmt.Errorf("could not read layout: %w", err)
	}
	if err := yaml.Unmarshal(bts, &layout); err != nil {
		return layout, fmt.Errorf("could not parse layout %s: %w", path, err)
	}
	return layout, nil
}

// Load validates the configuration and builds the entities it describes.
func (c Config) Load() (Setup, error) {
	var errs []error

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q: must be between 1 and 65535", c.Port))
	}
	if c.ScanInterval < elmo.MinScanInterval || c.ScanInterval > maxScanInterval {
		errs = append(errs, fmt.Errorf(
			"invalid scan interval %s: must be between %s and %s",
			c.ScanInterval, elmo.MinScanInterval, maxScanInterval,
		))
	}
	if c.Sectors < 1 || c.Sectors > elmo.MaxSectors {
		errs = append(errs, fmt.Errorf("invalid sector count %d: must be between 1 and %d", c.Sectors, elmo.MaxSectors))
	}

	inputs, err := optionalSelection(c.Inputs)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid inputs: %w", err))
	}
	outputs, err := optionalSelection(c.Outputs)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid outputs: %w", err))
	}
	codes, err := elmo.NewCodes(c.UserCodes)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid user codes: %w", err))
	}
	layout, err := readLayout(c.Layout)
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return Setup{}, errors.Join(errs...)
	}

	panels := elmo.LoadPanels(layout.Panels, elmo.LegacyConfig{
		Away:   c.AwaySectors,
		Home:   c.HomeSectors,
		Night:  c.NightSectors,
		Disarm: c.DisarmSectors,
	}, c.Sectors)
	if len(panels) == 0 {
		return Setup{}, errors.New("layout has no panels")
	}

	return Setup{
		Panels:  panels,
		Inputs:  elmo.InputSensors(inputs, names(c.InputNames, layout.InputNames)),
		Outputs: elmo.OutputSwitches(outputs, names(c.OutputNames, layout.OutputNames)),
		Codes:   codes,
	}, nil
}

func optionalSelection(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return elmo.ParseSelection(value, elmo.MaxInOut)
}

// names merges the positional names from the environment with the ones
// from the layout file, which win.
func names(positional []string, byNumber map[int]string) map[int]string {
	result := map[int]string{}
	for i, name := range positional {
		if name = strings.TrimSpace(name); name != "" {
			result[i+1] = name
		}
	}
	for n, name := range byNumber {
		if name = strings.TrimSpace(name); name != "" {
			result[n] = name
		}
	}
	return result
}

func (s Setup) String() string {
	var lines []string
	for _, p := range s.Panels {
		var modes []string
		for _, m := range elmo.Modes {
			if p.Supports(m) {
				modes = append(modes, fmt.Sprintf("%s: %s", m, elmo.FormatSelection(p.ModeSectors(m))))
			}
		}
		lines = append(lines, fmt.Sprintf("panel %q (%s) %s", p.Name, p.Slug, strings.Join(modes, ", ")))
	}
	for _, in := range s.Inputs {
		lines = append(lines, fmt.Sprintf("input %d: %q", in.Input, in.Name))
	}
	for _, out := range s.Outputs {
		lines = append(lines, fmt.Sprintf("output %d: %q", out.Index, out.Name))
	}
	return strings.Join(lines, "\n")
}
