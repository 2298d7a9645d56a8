package main

import (
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	elmo "github.com/caarlos0/homekit-elmo"
)

// Commander sends commands to the panel.
type Commander interface {
	Arm(p elmo.Panel, m elmo.Mode, codes elmo.Codes, code string) error
	Disarm(p elmo.Panel, codes elmo.Codes, code string) error
	SetOutput(o elmo.Output, on bool) error
	SetInputExclusion(inputs []int, excluded bool) error
}

var _ Commander = &elmo.Coordinator{}

type SecuritySystem struct {
	*accessory.A
	SecuritySystem *service.SecuritySystem
	Tampered       *characteristic.StatusTampered
	LowBattery     *characteristic.StatusLowBattery
	Fault          *characteristic.StatusFault

	panel elmo.Panel
	cmd   Commander
	state elmo.State
}

func NewSecuritySystem(info accessory.Info, panel elmo.Panel, cmd Commander) *SecuritySystem {
	a := &SecuritySystem{
		panel: panel,
		cmd:   cmd,
	}
	a.A = accessory.New(info, accessory.TypeSecuritySystem)

	a.SecuritySystem = service.NewSecuritySystem()
	a.AddS(a.SecuritySystem.S)

	a.Tampered = characteristic.NewStatusTampered()
	a.SecuritySystem.AddC(a.Tampered.C)

	a.LowBattery = characteristic.NewStatusLowBattery()
	a.SecuritySystem.AddC(a.LowBattery.C)

	a.Fault = characteristic.NewStatusFault()
	a.SecuritySystem.AddC(a.Fault.C)

	// only offer the modes the panel has sectors for.
	valid := []int{characteristic.SecuritySystemTargetStateDisarm}
	for _, m := range elmo.Modes {
		if panel.Supports(m) {
			valid = append(valid, targetState(m.State()))
		}
	}
	a.SecuritySystem.SecuritySystemTargetState.ValidVals = valid
	a.SecuritySystem.SecuritySystemTargetState.SetValueRequestFunc = a.updateHandler

	return a
}

// currentState maps a panel state to HomeKit, -1 when it has no
// equivalent.
func currentState(s elmo.State) int {
	switch s {
	case elmo.StateTriggered:
		return characteristic.SecuritySystemCurrentStateAlarmTriggered
	case elmo.StateDisarmed:
		return characteristic.SecuritySystemCurrentStateDisarmed
	case elmo.StateArmedAway:
		return characteristic.SecuritySystemCurrentStateAwayArm
	case elmo.StateArmedHome, elmo.StateArmedCustomBypass:
		return characteristic.SecuritySystemCurrentStateStayArm
	case elmo.StateArmedNight:
		return characteristic.SecuritySystemCurrentStateNightArm
	default:
		return -1
	}
}

func targetState(s elmo.State) int {
	switch s {
	case elmo.StateDisarmed:
		return characteristic.SecuritySystemTargetStateDisarm
	case elmo.StateArmedAway:
		return characteristic.SecuritySystemTargetStateAwayArm
	case elmo.StateArmedHome:
		return characteristic.SecuritySystemTargetStateStayArm
	case elmo.StateArmedNight:
		return characteristic.SecuritySystemTargetStateNightArm
	default:
		return -1
	}
}

func (a *SecuritySystem) Update(snap elmo.Snapshot) {
	state := a.panel.State(snap.Status)
	armStateGauge.WithLabelValues(a.panel.Slug).Set(float64(state))

	if v := currentState(state); v >= 0 && a.SecuritySystem.SecuritySystemCurrentState.Value() != v {
		err := a.SecuritySystem.SecuritySystemCurrentState.SetValue(v)
		log.Info("set current state", "panel", a.panel.Slug, "state", state, "err", err)
	}
	// the target only follows the panel when its state changes, so a
	// pending request is not reverted before the panel latches it.
	if state != a.state {
		a.state = state
		if v := targetState(state); v >= 0 && a.SecuritySystem.SecuritySystemTargetState.Value() != v {
			_ = a.SecuritySystem.SecuritySystemTargetState.SetValue(v)
		}
	}

	if v, ok := anyDiagnostic(snap, "central_tamper_fault", "central_general_tamper"); ok &&
		a.Tampered.Value() != boolAs[int](v) {
		_ = a.Tampered.SetValue(boolAs[int](v))
		log.Info("alarm status", "panel", a.panel.Slug, "tamper", v)
	}
	if v, ok := anyDiagnostic(snap, "central_battery_fault"); ok &&
		a.LowBattery.Value() != boolAs[int](v) {
		_ = a.LowBattery.SetValue(boolAs[int](v))
		log.Info("alarm status", "panel", a.panel.Slug, "low-battery", v)
	}
	if v, ok := anyDiagnostic(
		snap,
		"central_power_fault",
		"pstn_fault",
		"cellular_fault",
		"sensor_power_fault_1",
		"sensor_power_fault_2",
		"siren_power_fault",
	); ok && a.Fault.Value() != boolAs[int](v) {
		_ = a.Fault.SetValue(boolAs[int](v))
		log.Info("alarm status", "panel", a.panel.Slug, "fault", v)
	}
}

// anyDiagnostic is true if any of the diagnostic sensors is on; ok is false
// when none of them is known.
func anyDiagnostic(snap elmo.Snapshot, keys ...string) (on, ok bool) {
	for _, key := range keys {
		v, known := elmo.Diagnostic(key).Value(snap)
		ok = ok || known
		on = on || v
	}
	return on, ok
}

func (a *SecuritySystem) updateHandler(
	v interface{},
	_ *http.Request,
) (response interface{}, code int) {
	target, _ := v.(int)

	// HomeKit authenticates the paired controller, user codes are only
	// checked for commands coming from other hosts.
	var err error
	switch target {
	case characteristic.SecuritySystemTargetStateStayArm:
		err = a.cmd.Arm(a.panel, elmo.ModeHome, nil, "")
	case characteristic.SecuritySystemTargetStateAwayArm:
		err = a.cmd.Arm(a.panel, elmo.ModeAway, nil, "")
	case characteristic.SecuritySystemTargetStateNightArm:
		err = a.cmd.Arm(a.panel, elmo.ModeNight, nil, "")
	case characteristic.SecuritySystemTargetStateDisarm:
		err = a.cmd.Disarm(a.panel, nil, "")
	default:
		return nil, hap.JsonStatusResourceDoesNotExist
	}
	if err != nil {
		log.Error("could not change alarm state", "panel", a.panel.Slug, "target", target, "err", err)
		if elmo.IsPermanent(err) {
			return nil, hap.JsonStatusInvalidValueInRequest
		}
		return nil, hap.JsonStatusResourceBusy
	}
	return nil, hap.JsonStatusSuccess
}
