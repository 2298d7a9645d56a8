package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	elmo "github.com/caarlos0/homekit-elmo"
	"github.com/caarlos0/homekit-elmo/mqtt"
	"golang.org/x/exp/slices"
)

// Publisher is the part of the MQTT client the bridge uses.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
	PublishJSON(topic string, retained bool, v any) error
	Subscribe(topic string, fn mqtt.MessageHandler) error
}

var _ Publisher = &mqtt.Client{}

// MQTTBridge exposes the panel to Home Assistant through MQTT discovery.
type MQTTBridge struct {
	pub    Publisher
	cmd    Commander
	prefix string
	base   string
	node   string
	device mqtt.Device

	setup Setup

	mu   sync.Mutex
	last map[string]string
}

func NewMQTTBridge(pub Publisher, cmd Commander, cfg MQTTConfig, node string, device mqtt.Device, setup Setup) *MQTTBridge {
	return &MQTTBridge{
		pub:    pub,
		cmd:    cmd,
		prefix: strings.TrimSuffix(cfg.DiscoveryPrefix, "/"),
		base:   strings.TrimSuffix(cfg.Topic, "/"),
		node:   node,
		device: device,
		setup:  setup,
		last:   map[string]string{},
	}
}

func (b *MQTTBridge) AvailabilityTopic() string {
	return b.base + "/availability"
}

func (b *MQTTBridge) ExclusionTopic() string {
	return b.base + "/set_input_exclusion"
}

func (b *MQTTBridge) topic(parts ...string) string {
	return strings.Join(append([]string{b.base}, parts...), "/")
}

func (b *MQTTBridge) uniqueID(kind, key string) string {
	return strings.Join([]string{b.node, kind, key}, ":")
}

func (b *MQTTBridge) entity(name, kind, objectID string) mqtt.Entity {
	return mqtt.Entity{
		Name:              name,
		UniqueID:          b.uniqueID(kind, objectID),
		ObjectID:          objectID,
		AvailabilityTopic: b.AvailabilityTopic(),
		Device:            b.device,
	}
}

// Discover publishes the config of every entity and subscribes to the
// command topics.
func (b *MQTTBridge) Discover() error {
	var errs []error
	announce := func(component, objectID string, e mqtt.Entity) {
		topic := mqtt.DiscoveryTopic(b.prefix, component, b.node, objectID)
		if err := b.pub.PublishJSON(topic, true, e); err != nil {
			errs = append(errs, err)
		}
	}
	subscribe := func(topic string, fn mqtt.MessageHandler) {
		if err := b.pub.Subscribe(topic, fn); err != nil {
			errs = append(errs, err)
		}
	}

	required := b.setup.Codes.Required()
	for _, p := range b.setup.Panels {
		p := p
		e := b.entity(p.Name, "alarm", p.Slug)
		e.StateTopic = b.topic("alarm", p.Slug, "state")
		e.JSONAttributesTopic = b.topic("alarm", p.Slug, "attributes")
		e.CommandTopic = b.topic("alarm", p.Slug, "set")
		e.CommandTemplate = mqtt.CommandTemplate
		e.CodeArmRequired = &required
		e.CodeDisarmRequired = &required
		switch b.setup.Codes.Format() {
		case "number":
			e.Code = mqtt.RemoteCode
		case "text":
			e.Code = mqtt.RemoteCodeText
		}
		for _, m := range elmo.Modes {
			if p.Supports(m) {
				e.SupportedFeatures = append(e.SupportedFeatures, "arm_"+string(m))
			}
		}
		announce(mqtt.ComponentAlarmPanel, p.Slug, e)
		subscribe(e.CommandTopic, func(_ string, payload []byte) {
			b.handlePanelCommand(p, payload)
		})
	}

	for _, d := range elmo.DiagnosticSensors {
		e := b.entity(d.Name, "binary", d.ObjectID)
		e.StateTopic = b.topic("binary_sensor", d.Key, "state")
		e.DeviceClass = string(d.DeviceClass)
		e.EntityCategory = "diagnostic"
		announce(mqtt.ComponentBinarySensor, d.ObjectID, e)
	}

	for _, in := range b.setup.Inputs {
		e := b.entity(in.Name, "binary", in.Key)
		e.ObjectID = in.ObjectID
		e.StateTopic = b.topic("binary_sensor", in.Key, "state")
		e.JSONAttributesTopic = b.topic("binary_sensor", in.Key, "attributes")
		e.DeviceClass = string(in.DeviceClass)
		announce(mqtt.ComponentBinarySensor, in.Key, e)
	}

	for _, out := range b.setup.Outputs {
		out := out
		e := b.entity(out.Name, "switch", out.Key)
		e.ObjectID = out.ObjectID
		e.StateTopic = b.topic("switch", out.Key, "state")
		e.CommandTopic = b.topic("switch", out.Key, "set")
		e.PayloadOn = mqtt.PayloadOn
		e.PayloadOff = mqtt.PayloadOff
		announce(mqtt.ComponentSwitch, out.Key, e)
		subscribe(e.CommandTopic, func(_ string, payload []byte) {
			b.handleOutputCommand(out, payload)
		})
	}

	temp := elmo.TemperatureSensor
	e := b.entity(temp.Name, "sensor", temp.Key)
	e.StateTopic = b.topic("sensor", temp.Key, "state")
	e.DeviceClass = "temperature"
	e.UnitOfMeasurement = temp.Unit
	e.StateClass = "measurement"
	e.EntityCategory = "diagnostic"
	announce(mqtt.ComponentSensor, temp.Key, e)

	subscribe(b.ExclusionTopic(), func(_ string, payload []byte) {
		b.handleExclusion(payload)
	})

	return errors.Join(errs...)
}

// SetAvailable publishes the availability of the panel.
func (b *MQTTBridge) SetAvailable(available bool) {
	payload := mqtt.Offline
	if available {
		payload = mqtt.Online
	}
	b.publish(b.AvailabilityTopic(), payload)
}

// Resync forgets what was published and sends discovery, availability and
// the current states again.
func (b *MQTTBridge) Resync(snap elmo.Snapshot, hasData, available bool) {
	b.mu.Lock()
	b.last = map[string]string{}
	b.mu.Unlock()

	if err := b.Discover(); err != nil {
		log.Error("could not publish discovery", "err", err)
	}
	b.SetAvailable(available)
	if hasData {
		b.Update(snap)
	}
}

// Update publishes the states that changed since the last snapshot.
func (b *MQTTBridge) Update(snap elmo.Snapshot) {
	for _, p := range b.setup.Panels {
		b.publish(b.topic("alarm", p.Slug, "state"), alarmState(p.State(snap.Status)))
		b.publishJSON(b.topic("alarm", p.Slug, "attributes"), p.Attributes(snap.Status))
	}

	for _, d := range elmo.DiagnosticSensors {
		b.publish(b.topic("binary_sensor", d.Key, "state"), onOff(d.Value(snap)))
	}

	for _, in := range b.setup.Inputs {
		b.publish(b.topic("binary_sensor", in.Key, "state"), onOff(in.Value(snap)))
		attrs := map[string]any{"input": in.Input}
		if excluded, ok := in.Excluded(snap); ok {
			attrs["excluded"] = strings.ToLower(mqtt.OnOff(excluded))
		}
		b.publishJSON(b.topic("binary_sensor", in.Key, "attributes"), attrs)
	}

	for _, out := range b.setup.Outputs {
		b.publish(b.topic("switch", out.Key, "state"), onOff(out.Value(snap)))
	}

	temp := mqtt.PayloadUnknown
	if v, ok := elmo.TemperatureSensor.Value(snap); ok {
		temp = strconv.FormatFloat(v, 'f', -1, 64)
	}
	b.publish(b.topic("sensor", elmo.TemperatureSensor.Key, "state"), temp)
}

// alarmState is the alarm panel payload; Home Assistant rejects "unknown".
func alarmState(s elmo.State) string {
	if s == elmo.StateUnknown {
		return mqtt.PayloadUnknown
	}
	return s.String()
}

func onOff(on, ok bool) string {
	if !ok {
		return mqtt.PayloadUnknown
	}
	return mqtt.OnOff(on)
}

func (b *MQTTBridge) publishJSON(topic string, v any) {
	bts, err := json.Marshal(v)
	if err != nil {
		log.Error("could not encode mqtt payload", "topic", topic, "err", err)
		return
	}
	b.publish(topic, string(bts))
}

// publish sends payload, retained, unless it was the last payload sent to
// the topic.
func (b *MQTTBridge) publish(topic, payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if last, ok := b.last[topic]; ok && last == payload {
		return
	}
	if err := b.pub.Publish(topic, true, []byte(payload)); err != nil {
		log.Error("could not publish", "topic", topic, "err", err)
		return
	}
	b.last[topic] = payload
}

func (b *MQTTBridge) handlePanelCommand(p elmo.Panel, payload []byte) {
	cmd := mqtt.ParseCommand(payload)
	log.Info("panel command", "panel", p.Slug, "action", cmd.Action)

	var err error
	switch cmd.Action {
	case "ARM_AWAY":
		err = b.cmd.Arm(p, elmo.ModeAway, b.setup.Codes, cmd.Code)
	case "ARM_HOME":
		err = b.cmd.Arm(p, elmo.ModeHome, b.setup.Codes, cmd.Code)
	case "ARM_NIGHT":
		err = b.cmd.Arm(p, elmo.ModeNight, b.setup.Codes, cmd.Code)
	case "DISARM":
		err = b.cmd.Disarm(p, b.setup.Codes, cmd.Code)
	default:
		err = fmt.Errorf("unsupported action %q", cmd.Action)
	}
	if err != nil {
		log.Error("could not change alarm state", "panel", p.Slug, "action", cmd.Action, "err", err)
	}
}

func (b *MQTTBridge) handleOutputCommand(out elmo.Output, payload []byte) {
	on, err := coerceBool(strings.TrimSpace(string(payload)))
	if err != nil {
		log.Error("invalid output command", "output", out.Index, "err", err)
		return
	}
	if err := b.cmd.SetOutput(out, on); err != nil {
		log.Error("failed to set output", "output", out.Index, "on", on, "err", err)
	}
}

// ExclusionRequest is the payload of the input exclusion service. Inputs
// may be a selection string, a number or a list of numbers; entities are
// input keys or object ids, optionally prefixed with "binary_sensor.".
type ExclusionRequest struct {
	Inputs   any      `json:"inputs"`
	Entities []string `json:"input_entities"`
	Excluded any      `json:"excluded"`
}

func (b *MQTTBridge) handleExclusion(payload []byte) {
	inputs, excluded, err := b.parseExclusion(payload)
	if err != nil {
		log.Error("invalid input exclusion request", "err", err)
		return
	}
	if err := b.cmd.SetInputExclusion(inputs, excluded); err != nil {
		log.Error("failed to set input exclusion", "inputs", elmo.FormatSelection(inputs), "err", err)
	}
}

func (b *MQTTBridge) parseExclusion(payload []byte) ([]int, bool, error) {
	var req ExclusionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, false, fmt.Errorf("invalid payload: %w", err)
	}

	excluded := true
	if req.Excluded != nil {
		v, err := coerceBool(req.Excluded)
		if err != nil {
			return nil, false, err
		}
		excluded = v
	}

	inputs, err := coerceInputs(req.Inputs)
	if err != nil {
		return nil, false, err
	}
	for _, entity := range req.Entities {
		n, ok := b.inputByEntity(entity)
		if !ok {
			return nil, false, fmt.Errorf("%w: unknown input entity %q", elmo.ErrInvalidSelection, entity)
		}
		inputs = append(inputs, n)
	}

	slices.Sort(inputs)
	inputs = slices.Compact(inputs)
	if len(inputs) == 0 {
		return nil, false, fmt.Errorf("%w: no inputs", elmo.ErrInvalidSelection)
	}
	return inputs, excluded, nil
}

func (b *MQTTBridge) inputByEntity(entity string) (int, bool) {
	id := strings.TrimPrefix(strings.TrimSpace(entity), mqtt.ComponentBinarySensor+".")
	for _, in := range b.setup.Inputs {
		if id == in.Key || id == in.ObjectID {
			return in.Input, true
		}
	}
	return 0, false
}

func coerceInputs(v any) ([]int, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return elmo.ParseSelection(v, elmo.MaxInOut)
	case float64:
		return coerceInputs([]any{v})
	case []any:
		var result []int
		for _, item := range v {
			switch item := item.(type) {
			case float64:
				if item != math.Trunc(item) || item < 1 || item > elmo.MaxInOut {
					return nil, fmt.Errorf("%w: %v", elmo.ErrInvalidSelection, item)
				}
				result = append(result, int(item))
			case string:
				values, err := elmo.ParseSelection(item, elmo.MaxInOut)
				if err != nil {
					return nil, err
				}
				result = append(result, values...)
			default:
				return nil, fmt.Errorf("%w: %v", elmo.ErrInvalidSelection, item)
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: %v", elmo.ErrInvalidSelection, v)
	}
}

// coerceBool accepts booleans, numbers and the usual on/off words.
func coerceBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("invalid boolean value: %v", v)
}
