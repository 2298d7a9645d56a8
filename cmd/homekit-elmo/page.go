package main

import (
	"strconv"

	elmo "github.com/caarlos0/homekit-elmo"
)

type Page struct {
	Available   bool
	Panels      []PagePanel
	Inputs      []PageItem
	Outputs     []PageItem
	Diagnostics []PageItem
	Temperature string
}

type PagePanel struct {
	Name    string
	State   string
	Armed   string
	Managed string
}

type PageItem struct {
	Number   int
	Name     string
	Value    string
	Excluded string
}

func newPage(setup Setup, snap elmo.Snapshot, available bool) Page {
	page := Page{
		Available:   available,
		Temperature: "unknown",
	}
	if v, ok := elmo.TemperatureSensor.Value(snap); ok {
		page.Temperature = strconv.FormatFloat(v, 'f', 1, 64) + " " + elmo.TemperatureSensor.Unit
	}

	for _, p := range setup.Panels {
		attrs := p.Attributes(snap.Status)
		item := PagePanel{
			Name:  p.Name,
			State: p.State(snap.Status).String(),
		}
		if armed, ok := attrs["armed_sectors"].([]int); ok {
			item.Armed = elmo.FormatSelection(armed)
		}
		if managed, ok := attrs["panel_managed_sectors"].([]int); ok {
			item.Managed = elmo.FormatSelection(managed)
		}
		page.Panels = append(page.Panels, item)
	}

	for _, in := range setup.Inputs {
		item := PageItem{
			Number:   in.Input,
			Name:     in.Name,
			Value:    describe(in.Value(snap)),
			Excluded: describe(in.Excluded(snap)),
		}
		page.Inputs = append(page.Inputs, item)
	}

	for _, out := range setup.Outputs {
		page.Outputs = append(page.Outputs, PageItem{
			Number: out.Index,
			Name:   out.Name,
			Value:  describe(out.Value(snap)),
		})
	}

	for i, d := range elmo.DiagnosticSensors {
		page.Diagnostics = append(page.Diagnostics, PageItem{
			Number: i + 1,
			Name:   d.Name,
			Value:  describe(d.Value(snap)),
		})
	}
	return page
}

func describe(on, ok bool) string {
	switch {
	case !ok:
		return "unknown"
	case on:
		return "on"
	default:
		return "off"
	}
}
