package mqtt

import (
	"encoding/json"
	"strings"
)

// Home Assistant entity platforms.
const (
	ComponentAlarmPanel   = "alarm_control_panel"
	ComponentBinarySensor = "binary_sensor"
	ComponentSensor       = "sensor"
	ComponentSwitch       = "switch"
)

const (
	PayloadOn      = "ON"
	PayloadOff     = "OFF"
	PayloadUnknown = "None"
	Online         = "online"
	Offline        = "offline"

	// RemoteCode makes Home Assistant ask for a code and forward it with
	// the command instead of validating it locally.
	RemoteCode = "REMOTE_CODE"
	// RemoteCodeText is the same, with a text keypad.
	RemoteCodeText = "REMOTE_CODE_TEXT"
)

// Device groups every entity of the bridge in the device registry.
type Device struct {
	Identifiers  []string    `json:"identifiers"`
	Name         string      `json:"name"`
	Manufacturer string      `json:"manufacturer,omitempty"`
	Model        string      `json:"model,omitempty"`
	SWVersion    string      `json:"sw_version,omitempty"`
	Connections  [][2]string `json:"connections,omitempty"`
}

// Entity is a discovery config payload. Only the fields used by the bridge
// are modeled.
type Entity struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	ObjectID            string   `json:"object_id,omitempty"`
	StateTopic          string   `json:"state_topic,omitempty"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	CommandTemplate     string   `json:"command_template,omitempty"`
	JSONAttributesTopic string   `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	EntityCategory      string   `json:"entity_category,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	PayloadOn           string   `json:"payload_on,omitempty"`
	PayloadOff          string   `json:"payload_off,omitempty"`
	Code                string   `json:"code,omitempty"`
	CodeArmRequired     *bool    `json:"code_arm_required,omitempty"`
	CodeDisarmRequired  *bool    `json:"code_disarm_required,omitempty"`
	SupportedFeatures   []string `json:"supported_features,omitempty"`
	Device              Device   `json:"device"`
}

// DiscoveryTopic is the topic Home Assistant listens to for the config of
// an entity.
func DiscoveryTopic(prefix, component, nodeID, objectID string) string {
	return strings.Join([]string{prefix, component, nodeID, objectID, "config"}, "/")
}

// Command is the payload sent on an alarm panel command topic, as produced
// by CommandTemplate.
type Command struct {
	Action string `json:"action"`
	Code   string `json:"code,omitempty"`
}

// CommandTemplate renders the action and the code typed by the user as a
// Command.
const CommandTemplate = `{"action":"{{ action }}","code":"{{ code }}"}`

// ParseCommand decodes an alarm panel command. Plain payloads such as
// "ARM_AWAY" are accepted as well.
func ParseCommand(payload []byte) Command {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err == nil && cmd.Action != "" {
		cmd.Action = strings.ToUpper(strings.TrimSpace(cmd.Action))
		cmd.Code = strings.TrimSpace(cmd.Code)
		return cmd
	}
	return Command{Action: strings.ToUpper(strings.TrimSpace(string(payload)))}
}

func OnOff(b bool) string {
	if b {
		return PayloadOn
	}
	return PayloadOff
}
