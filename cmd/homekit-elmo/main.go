package main

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/caarlos0/env/v11"
	elmo "github.com/caarlos0/homekit-elmo"
	"github.com/caarlos0/homekit-elmo/mqtt"
	logp "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed index.html
var index []byte

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "homekit",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	manufacturer = "Elmo"
	model        = "Modbus gateway"

	// accessory ids, kept stable across restarts.
	panelIDOffset  = 2
	thermometerID  = 100
	inputIDOffset  = 1000
	outputIDOffset = 3000
)

func main() {
	log.Info(
		"homekit-elmo",
		"version", version,
		"commit", commit,
		"date", date,
		"info", strings.Join([]string{
			"Homekit bridge for Elmo alarm systems over Modbus TCP",
			"© Carlos Alexandro Becker",
			"https://becker.software",
		}, "\n"),
	)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}
	if cfg.Debug {
		log.SetLevel(logp.DebugLevel)
		elmo.SetLogLevel(logp.DebugLevel)
	}

	setup, err := cfg.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err.Error()+"\n")
	}
	log.Info("loading accessories", "layout", setup.String())

	inv := elmo.NewInventory(func() (elmo.Conn, error) {
		return elmo.New(cfg.Host, cfg.Port, cfg.UnitID, cfg.Timeout)
	}, cfg.Sectors)
	register(inv, setup)

	coordinator := elmo.NewCoordinator(inv, cfg.ScanInterval)
	coordinator.OnRequest = func(err error) {
		requestCounter.Inc()
		if err != nil {
			requestErrorCounter.Inc()
		}
	}
	if err := coordinator.Refresh(); err != nil {
		log.Fatal("could not init accessories", "err", err)
	}
	defer func() {
		if err := coordinator.Close(); err != nil {
			log.Error("could not close modbus client", "err", err)
		}
	}()

	macAddr, err := elmo.MacAddress(cfg.Host)
	if err != nil {
		log.Warn(
			"could not get the mac address, needs 'cap_net_raw+ep' capabilities",
			"err", err,
		)
	}
	log.Info(
		"got alarm system information",
		"manufacturer", manufacturer,
		"sectors", inv.SectorCount(),
		"mac", macAddr,
	)

	bridge := accessory.NewBridge(accessory.Info{
		Name:         "Alarm Bridge",
		Manufacturer: manufacturer,
		Firmware:     version,
	})

	var alarms []*SecuritySystem
	for i, panel := range setup.Panels {
		a := NewSecuritySystem(accessory.Info{
			Name:         panel.Name,
			SerialNumber: strings.TrimSpace(macAddr + " " + panel.Slug),
			Manufacturer: manufacturer,
			Model:        model,
			Firmware:     version,
		}, panel, coordinator)
		a.Id = uint64(panelIDOffset + i)
		alarms = append(alarms, a)
	}
	inputs := setupInputs(setup.Inputs, coordinator)
	outputs := setupOutputs(setup.Outputs, coordinator)
	thermometer := newThermometer(accessory.Info{
		Name:         "Alarm Temperature",
		Manufacturer: manufacturer,
	}, elmo.TemperatureSensor)
	thermometer.Id = thermometerID

	update := func(snap elmo.Snapshot) {
		for _, a := range alarms {
			a.Update(snap)
		}
		for _, a := range inputs {
			a.Update(snap)
		}
		for _, a := range outputs {
			a.Update(snap)
		}
		thermometer.Update(snap)
		for _, d := range elmo.DiagnosticSensors {
			if on, ok := d.Value(snap); ok {
				diagnosticGauge.WithLabelValues(d.Key).Set(boolAs[float64](on))
			}
		}
	}
	if snap, ok := coordinator.Data(); ok {
		update(snap)
	}
	coordinator.Subscribe(update)
	availableGauge.Set(1)
	coordinator.WatchAvailability(func(available bool) {
		availableGauge.Set(boolAs[float64](available))
	})

	if cfg.MQTT.Enabled() {
		stop := setupMQTT(cfg, setup, coordinator, macAddr)
		defer stop()
	}
	if cfg.Influx.Enabled() {
		stop := setupInflux(cfg, setup, coordinator)
		defer stop()
	}

	fs := hap.NewFsStore(cfg.DB)

	server, err := hap.NewServer(
		fs, bridge.A,
		homekitAccessories(alarms, inputs, outputs, thermometer)...,
	)
	if err != nil {
		log.Fatal("fail to create server", "error", err)
	}
	server.Addr = cfg.Address
	server.Pin = cfg.Pin
	server.ServeMux().Handle("/metrics", promhttp.Handler())
	server.ServeMux().Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, _ := coordinator.Data()
		tpl := template.Must(template.New("index").Parse(string(index)))
		if err := tpl.Execute(w, newPage(setup, snap, coordinator.Available())); err != nil {
			log.Error("could not render page", "err", err)
		}
	}))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c
		log.Info("stopping server")
		signal.Stop(c)
		cancel()
	}()

	go coordinator.Run(ctx)

	log.Info("starting server", "addr", server.Addr)
	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to close server", "err", err)
	}
}

// register adds every address the entities read to the inventory.
func register(inv *elmo.Inventory, setup Setup) {
	inv.RequireStatus()
	for _, d := range elmo.DiagnosticSensors {
		inv.AddDiscreteInputs(d.Address)
	}
	for _, in := range setup.Inputs {
		inv.AddDiscreteInputs(in.Address, in.ExcludedAddress)
	}
	for _, out := range setup.Outputs {
		inv.AddCoils(out.Address)
	}
	inv.AddHoldingRegisters(elmo.TemperatureSensor.Address)
}

func setupMQTT(cfg Config, setup Setup, coordinator *elmo.Coordinator, macAddr string) func() {
	node := "elmo_" + elmo.Slugify(cfg.Host)
	device := mqtt.Device{
		Identifiers:  []string{node},
		Name:         "Elmo alarm panel",
		Manufacturer: manufacturer,
		Model:        model,
		SWVersion:    version,
	}
	if macAddr != "" {
		device.Connections = [][2]string{{"mac", macAddr}}
	}

	client := mqtt.NewClient(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		WillTopic:   strings.TrimSuffix(cfg.MQTT.Topic, "/") + "/availability",
		WillPayload: mqtt.Offline,
	})
	b := NewMQTTBridge(client, coordinator, cfg.MQTT, node, device, setup)
	client.OnConnect(func() {
		snap, ok := coordinator.Data()
		b.Resync(snap, ok, coordinator.Available())
	})
	if err := client.Connect(); err != nil {
		log.Fatal("could not connect to mqtt broker", "err", err)
	}
	coordinator.Subscribe(b.Update)
	coordinator.WatchAvailability(b.SetAvailable)

	return func() {
		b.SetAvailable(false)
		client.Disconnect()
	}
}

func homekitAccessories(
	alarms []*SecuritySystem,
	inputs []*InputSensor,
	outputs []*OutputSwitch,
	thermometer *Thermometer,
) []*accessory.A {
	var result []*accessory.A
	for _, c := range alarms {
		result = append(result, c.A)
	}
	for _, c := range inputs {
		result = append(result, c.A)
	}
	for _, c := range outputs {
		result = append(result, c.A)
	}
	return append(result, thermometer.A)
}

func boolAs[T int | float64](b bool) T {
	if b {
		return 1
	}
	return 0
}
