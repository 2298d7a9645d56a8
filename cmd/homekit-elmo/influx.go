package main

import (
	"fmt"
	"time"

	elmo "github.com/caarlos0/homekit-elmo"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// PointWriter is the part of the influx write api the exporter uses.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// InfluxExporter writes one point per snapshot with every known value.
type InfluxExporter struct {
	writer      PointWriter
	measurement string
	host        string
	setup       Setup
	now         func() time.Time
}

func NewInfluxExporter(writer PointWriter, measurement, host string, setup Setup) *InfluxExporter {
	return &InfluxExporter{
		writer:      writer,
		measurement: measurement,
		host:        host,
		setup:       setup,
		now:         time.Now,
	}
}

func (e *InfluxExporter) Update(snap elmo.Snapshot) {
	fields := e.fields(snap)
	if len(fields) == 0 {
		return
	}
	e.writer.WritePoint(influxdb2.NewPoint(
		e.measurement,
		map[string]string{"host": e.host},
		fields,
		e.now(),
	))
}

func (e *InfluxExporter) fields(snap elmo.Snapshot) map[string]interface{} {
	fields := map[string]interface{}{}
	if snap.Status != nil {
		for _, p := range e.setup.Panels {
			fields["panel_"+p.Slug] = p.State(snap.Status).String()
		}
	}
	for _, d := range elmo.DiagnosticSensors {
		if on, ok := d.Value(snap); ok {
			fields[d.Key] = on
		}
	}
	for _, in := range e.setup.Inputs {
		if on, ok := in.Value(snap); ok {
			fields[fmt.Sprintf("input_%d", in.Input)] = on
		}
		if excluded, ok := in.Excluded(snap); ok {
			fields[fmt.Sprintf("input_%d_excluded", in.Input)] = excluded
		}
	}
	for _, out := range e.setup.Outputs {
		if on, ok := out.Value(snap); ok {
			fields[fmt.Sprintf("output_%d", out.Index)] = on
		}
	}
	if v, ok := elmo.TemperatureSensor.Value(snap); ok {
		fields["temperature"] = v
	}
	return fields
}

func setupInflux(cfg Config, setup Setup, coordinator *elmo.Coordinator) func() {
	client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	writeAPI := client.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Error("could not write to influxdb", "err", err)
		}
	}()

	e := NewInfluxExporter(writeAPI, cfg.Influx.Measurement, cfg.Host, setup)
	if snap, ok := coordinator.Data(); ok {
		e.Update(snap)
	}
	coordinator.Subscribe(e.Update)
	log.Info("exporting to influxdb", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)

	return func() {
		writeAPI.Flush()
		client.Close()
	}
}
