package main

import (
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	elmo "github.com/caarlos0/homekit-elmo"
)

// InputSensor is an alarm input: a contact sensor open while the input is
// active, plus a switch that is on while the input is not excluded.
type InputSensor struct {
	*accessory.A
	Contact *service.ContactSensor
	Bypass  *service.Switch

	sensor elmo.BinarySensor
	cmd    Commander
}

func newInputSensor(info accessory.Info, sensor elmo.BinarySensor, cmd Commander) *InputSensor {
	a := &InputSensor{
		sensor: sensor,
		cmd:    cmd,
	}
	a.A = accessory.New(info, accessory.TypeSensor)

	a.Contact = service.NewContactSensor()
	a.AddS(a.Contact.S)

	a.Bypass = service.NewSwitch()
	a.Bypass.On.SetValue(true)
	a.Bypass.On.SetValueRequestFunc = a.bypassHandler
	a.AddS(a.Bypass.S)

	return a
}

func (a *InputSensor) bypassHandler(value interface{}, _ *http.Request) (response interface{}, code int) {
	on, _ := value.(bool)
	log.Info("set input exclusion", "input", a.sensor.Input, "excluded", !on)
	if err := a.cmd.SetInputExclusion([]int{a.sensor.Input}, !on); err != nil {
		log.Error("failed to set input exclusion", "input", a.sensor.Input, "err", err)
		return nil, hap.JsonStatusResourceBusy
	}
	return nil, hap.JsonStatusSuccess
}

func (a *InputSensor) Update(snap elmo.Snapshot) {
	if active, ok := a.sensor.Value(snap); ok {
		inputActiveGauge.WithLabelValues(a.sensor.Name).Set(boolAs[float64](active))
		state := characteristic.ContactSensorStateContactDetected
		if active {
			state = characteristic.ContactSensorStateContactNotDetected
		}
		if a.Contact.ContactSensorState.Value() != state {
			_ = a.Contact.ContactSensorState.SetValue(state)
			log.Info("input", "input", a.sensor.Input, "name", a.sensor.Name, "active", active)
		}
	}

	if excluded, ok := a.sensor.Excluded(snap); ok {
		inputExcludedGauge.WithLabelValues(a.sensor.Name).Set(boolAs[float64](excluded))
		if a.Bypass.On.Value() == excluded {
			a.Bypass.On.SetValue(!excluded)
			log.Info("input exclusion", "input", a.sensor.Input, "name", a.sensor.Name, "excluded", excluded)
		}
	}
}

func setupInputs(sensors []elmo.BinarySensor, cmd Commander) []*InputSensor {
	var result []*InputSensor
	for _, sensor := range sensors {
		a := newInputSensor(accessory.Info{
			Name:         sensor.Name,
			SerialNumber: sensor.Key,
			Manufacturer: manufacturer,
		}, sensor, cmd)
		a.Id = uint64(inputIDOffset + sensor.Input)
		result = append(result, a)
	}
	return result
}
