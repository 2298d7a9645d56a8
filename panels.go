package elmo

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/exp/slices"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Mode string

const (
	ModeAway  Mode = "away"
	ModeHome  Mode = "home"
	ModeNight Mode = "night"
)

// Modes in the order they are matched.
var Modes = []Mode{ModeAway, ModeHome, ModeNight}

func (m Mode) Label() string {
	switch m {
	case ModeAway:
		return "Arm Away"
	case ModeHome:
		return "Arm Home"
	case ModeNight:
		return "Arm Night"
	default:
		return string(m)
	}
}

// priority breaks ties when more than one mode overlaps the armed sectors.
func (m Mode) priority() int {
	switch m {
	case ModeAway:
		return 3
	case ModeNight:
		return 2
	case ModeHome:
		return 1
	default:
		return 0
	}
}

func (m Mode) State() State {
	switch m {
	case ModeAway:
		return StateArmedAway
	case ModeHome:
		return StateArmedHome
	case ModeNight:
		return StateArmedNight
	default:
		return StateUnknown
	}
}

type State uint8

const (
	StateUnknown State = iota
	StateDisarmed
	StateArmedAway
	StateArmedHome
	StateArmedNight
	StateArmedCustomBypass
	StateTriggered
)

// String returns the state name used by Home Assistant.
func (s State) String() string {
	switch s {
	case StateDisarmed:
		return "disarmed"
	case StateArmedAway:
		return "armed_away"
	case StateArmedHome:
		return "armed_home"
	case StateArmedNight:
		return "armed_night"
	case StateArmedCustomBypass:
		return "armed_custom_bypass"
	case StateTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// PanelConfig is the stored form of a panel.
type PanelConfig struct {
	Name  string         `yaml:"name"             json:"name"`
	Slug  string         `yaml:"entity_id_suffix" json:"entity_id_suffix"`
	Modes map[Mode][]int `yaml:"modes"            json:"modes"`
}

// LegacyConfig is the single-panel layout: sectors per mode plus the
// sectors to disarm.
type LegacyConfig struct {
	Away   []int
	Home   []int
	Night  []int
	Disarm []int
}

// Panel is a normalized alarm panel: a named group of sectors armed
// together according to a mode.
type Panel struct {
	Name        string
	Slug        string
	Modes       map[Mode][]int
	ExtraDisarm []int
}

func (p Panel) ModeSectors(m Mode) []int {
	return slices.Clone(p.Modes[m])
}

func (p Panel) Supports(m Mode) bool {
	return len(p.Modes[m]) > 0
}

// Managed returns every sector the panel controls, sorted.
func (p Panel) Managed() []int {
	var all []int
	for _, sectors := range p.Modes {
		all = append(all, sectors...)
	}
	all = append(all, p.ExtraDisarm...)
	slices.Sort(all)
	return slices.Compact(all)
}

// scope is the set of sectors a panel looks at: its managed sectors or,
// when it manages none, every sector.
func (p Panel) scope(total int) []int {
	if managed := p.Managed(); len(managed) > 0 {
		return managed
	}
	return FirstN(total, MaxSectors)
}

// State derives the panel state from the sector bits.
func (p Panel) State(status *Status) State {
	if status == nil {
		return StateUnknown
	}

	scope := p.scope(len(status.Armed))
	if len(intersect(status.triggeredSectors(), scope)) > 0 {
		return StateTriggered
	}

	armed := intersect(status.armedSectors(), scope)
	if len(armed) == 0 {
		return StateDisarmed
	}

	for _, m := range Modes {
		if sectors := p.Modes[m]; len(sectors) > 0 && slices.Equal(armed, sectors) {
			return m.State()
		}
	}

	if len(armed) == len(scope) {
		return StateArmedAway
	}

	best, bestOverlap := Mode(""), 0
	for _, m := range Modes {
		overlap := len(intersect(armed, p.Modes[m]))
		if overlap == 0 {
			continue
		}
		if overlap > bestOverlap ||
			(overlap == bestOverlap && m.priority() > best.priority()) {
			best, bestOverlap = m, overlap
		}
	}
	if bestOverlap > 0 {
		return best.State()
	}
	return StateArmedCustomBypass
}

// TargetSectors returns the sectors to arm for the mode.
func (p Panel) TargetSectors(m Mode) ([]int, error) {
	if sectors := p.Modes[m]; len(sectors) > 0 {
		return slices.Clone(sectors), nil
	}
	return nil, fmt.Errorf("%w: %s on panel %s", ErrModeNotConfigured, m.Label(), p.Name)
}

// DisarmSectors returns the sectors to disarm.
func (p Panel) DisarmSectors(total int) []int {
	return p.scope(total)
}

// CommandPayload builds the command coil values for sectorCount sectors.
// Sectors outside the panel keep their current armed bit, in-scope sectors
// are cleared and targets are set to value.
func (p Panel) CommandPayload(status *Status, sectorCount int, targets []int, value bool) []bool {
	payload := make([]bool, sectorCount)
	if status != nil && len(status.Armed) >= sectorCount {
		copy(payload, status.Armed[:sectorCount])
	}
	for _, s := range p.scope(sectorCount) {
		if s >= 1 && s <= sectorCount {
			payload[s-1] = false
		}
	}
	for _, s := range targets {
		if s >= 1 && s <= sectorCount {
			payload[s-1] = value
		}
	}
	return payload
}

// Attributes exposes the sector details of the panel.
func (p Panel) Attributes(status *Status) map[string]any {
	if status == nil {
		return map[string]any{}
	}
	scope := p.scope(len(status.Armed))
	armed := intersect(status.armedSectors(), scope)
	disarmed := intersect(sectorsWhere(status.Armed, false), scope)
	raw := make([]bool, 0, len(scope))
	for _, s := range scope {
		raw = append(raw, s <= len(status.Armed) && status.Armed[s-1])
	}

	result := map[string]any{
		"armed_sectors":         nonNil(armed),
		"disarmed_sectors":      nonNil(disarmed),
		"raw_sector_bits":       raw,
		"panel_managed_sectors": scope,
		"panel_slug":            p.Slug,
	}
	for _, m := range Modes {
		sectors := p.Modes[m]
		if len(sectors) == 0 {
			continue
		}
		result[fmt.Sprintf("configured_%s_sectors", m)] = sectors
		result[fmt.Sprintf("is_%s", m.State())] = slices.Equal(armed, sectors)
	}
	return result
}

// LoadPanels normalizes stored panels. When raw is nil the legacy layout
// is used instead, producing a single panel.
func LoadPanels(raw []PanelConfig, legacy LegacyConfig, maxSector int) []Panel {
	used := map[string]bool{}
	if raw == nil {
		return []Panel{legacyPanel(legacy, used, maxSector)}
	}
	panels := make([]Panel, 0, len(raw))
	for i, pc := range raw {
		panels = append(panels, storedPanel(pc, used, i+1, maxSector))
	}
	return panels
}

func storedPanel(pc PanelConfig, used map[string]bool, index, maxSector int) Panel {
	name := strings.TrimSpace(pc.Name)
	if name == "" {
		name = fmt.Sprintf("Panel %d", index)
	}
	candidate := Slugify(name)
	if suffix := strings.TrimSpace(pc.Slug); suffix != "" {
		candidate = Slugify(suffix)
	}
	if candidate == "" {
		candidate = fmt.Sprintf("panel_%d", index)
	}

	modes := map[Mode][]int{}
	for _, m := range Modes {
		if sectors := SanitizeSectors(pc.Modes[m], maxSector); len(sectors) > 0 {
			modes[m] = sectors
		}
	}
	return Panel{
		Name:  name,
		Slug:  uniqueSlug(candidate, used),
		Modes: modes,
	}
}

func legacyPanel(legacy LegacyConfig, used map[string]bool, maxSector int) Panel {
	const name = "Alarm Panel"
	slug := Slugify(name)
	if slug == "" {
		slug = "alarm_panel"
	}

	modes := map[Mode][]int{}
	for m, sectors := range map[Mode][]int{
		ModeAway:  legacy.Away,
		ModeHome:  legacy.Home,
		ModeNight: legacy.Night,
	} {
		if sectors := SanitizeSectors(sectors, maxSector); len(sectors) > 0 {
			modes[m] = sectors
		}
	}
	if len(modes) == 0 {
		// without any mode, away arms everything.
		modes[ModeAway] = FirstN(maxSector, MaxSectors)
	}

	var extra []int
	for _, s := range SanitizeSectors(legacy.Disarm, maxSector) {
		if !slices.Contains(modes[ModeAway], s) {
			extra = append(extra, s)
		}
	}

	return Panel{
		Name:        name,
		Slug:        uniqueSlug(slug, used),
		Modes:       modes,
		ExtraDisarm: extra,
	}
}

// ToConfig returns the stored form of the panel.
func (p Panel) ToConfig() PanelConfig {
	modes := map[Mode][]int{}
	for m, sectors := range p.Modes {
		if len(sectors) > 0 {
			modes[m] = slices.Clone(sectors)
		}
	}
	return PanelConfig{
		Name:  p.Name,
		Slug:  p.Slug,
		Modes: modes,
	}
}

// SanitizeSectors keeps valid sector numbers, sorted and unique.
func SanitizeSectors(values []int, maxSector int) []int {
	return NormalizeSelection(values, maxSector)
}

func uniqueSlug(candidate string, used map[string]bool) string {
	base := candidate
	if base == "" {
		base = "panel"
	}
	slug := base
	for i := 2; used[slug]; i++ {
		slug = fmt.Sprintf("%s_%d", base, i)
	}
	used[slug] = true
	return slug
}

// Slugify lowercases s, strips accents and joins the alphanumeric runs
// with underscores.
func Slugify(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripMarks, s)
	if err != nil {
		plain = s
	}
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(plain) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return sb.String()
}

func intersect(a, b []int) []int {
	var result []int
	for _, v := range a {
		if slices.Contains(b, v) {
			result = append(result, v)
		}
	}
	return result
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
