package main

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	elmo "github.com/caarlos0/homekit-elmo"
)

type Thermometer struct {
	*accessory.Thermometer
	Fault *characteristic.StatusFault

	sensor elmo.RegisterSensor
}

func newThermometer(info accessory.Info, sensor elmo.RegisterSensor) *Thermometer {
	a := &Thermometer{
		Thermometer: accessory.NewTemperatureSensor(info),
		Fault:       characteristic.NewStatusFault(),
		sensor:      sensor,
	}
	a.TempSensor.CurrentTemperature.SetMinValue(-40)
	a.TempSensor.CurrentTemperature.SetMaxValue(100)
	a.TempSensor.AddC(a.Fault.C)
	return a
}

// Update shows invalid readings as a fault, keeping the last temperature.
func (a *Thermometer) Update(snap elmo.Snapshot) {
	v, ok := a.sensor.Value(snap)
	fault := characteristic.StatusFaultNoFault
	if !ok {
		fault = characteristic.StatusFaultGeneralFault
	}
	if a.Fault.Value() != fault {
		_ = a.Fault.SetValue(fault)
		log.Info("temperature", "valid", ok)
	}
	if !ok {
		return
	}
	temperatureGauge.Set(v)
	if a.TempSensor.CurrentTemperature.Value() != v {
		a.TempSensor.CurrentTemperature.SetValue(v)
		log.Debug("temperature", "value", v)
	}
}
