package main

import (
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	elmo "github.com/caarlos0/homekit-elmo"
)

type OutputSwitch struct {
	*accessory.Switch
	output elmo.Output
}

func (a *OutputSwitch) Update(snap elmo.Snapshot) {
	on, ok := a.output.Value(snap)
	if !ok {
		return
	}
	outputGauge.WithLabelValues(a.output.Name).Set(boolAs[float64](on))
	if a.Switch.Switch.On.Value() != on {
		a.Switch.Switch.On.SetValue(on)
		log.Info("output", "output", a.output.Index, "name", a.output.Name, "on", on)
	}
}

func setupOutputs(outputs []elmo.Output, cmd Commander) []*OutputSwitch {
	var result []*OutputSwitch
	for _, output := range outputs {
		output := output
		a := &OutputSwitch{
			Switch: accessory.NewSwitch(accessory.Info{
				Name:         output.Name,
				SerialNumber: output.Key,
				Manufacturer: manufacturer,
			}),
			output: output,
		}
		a.Switch.Switch.On.SetValueRequestFunc = func(value interface{}, _ *http.Request) (response interface{}, code int) {
			on, _ := value.(bool)
			if err := cmd.SetOutput(output, on); err != nil {
				log.Error("failed to set output", "output", output.Index, "on", on, "err", err)
				return nil, hap.JsonStatusResourceBusy
			}
			return nil, hap.JsonStatusSuccess
		}
		a.Id = uint64(outputIDOffset + output.Index)
		result = append(result, a)
	}
	return result
}
