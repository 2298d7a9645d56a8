package elmo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func status(n int, armed []int, triggered ...int) *Status {
	s := &Status{
		Armed:     make([]bool, n),
		Triggered: make([]bool, n),
	}
	for _, i := range armed {
		s.Armed[i-1] = true
	}
	for _, i := range triggered {
		s.Triggered[i-1] = true
	}
	return s
}

func TestSanitizeSectors(t *testing.T) {
	require.Equal(t, []int{1, 2}, SanitizeSectors([]int{2, 1, 0, 65, 2}, 4))
	require.Empty(t, SanitizeSectors([]int{5}, 4))
}

func TestUniqueSlug(t *testing.T) {
	used := map[string]bool{"panel": true, "panel_2": true}
	require.Equal(t, "panel_3", uniqueSlug("panel", used))
	require.Equal(t, "panel_4", uniqueSlug("panel", used))
	require.Equal(t, "panel", uniqueSlug("", map[string]bool{}))
}

func TestSlugify(t *testing.T) {
	for in, out := range map[string]string{
		"Alarm Panel":       "alarm_panel",
		"Zona Giorno #1":    "zona_giorno_1",
		"  Área  Nördlich ": "area_nordlich",
		"--":                "",
		"Casa_principale":   "casa_principale",
	} {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, out, Slugify(in))
		})
	}
}

func TestLoadPanels(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		panels := LoadPanels([]PanelConfig{
			{Name: "Panel A", Slug: "panel", Modes: map[Mode][]int{ModeAway: {1}}},
			{Name: "Panel B", Slug: "panel", Modes: map[Mode][]int{ModeHome: {2, 65}}},
			{Modes: map[Mode][]int{ModeAway: {2, 1, 1}, ModeNight: {}}},
		}, LegacyConfig{}, 4)
		require.Len(t, panels, 3)
		require.Equal(t, "panel", panels[0].Slug)
		require.Equal(t, "panel_2", panels[1].Slug)
		require.Equal(t, map[Mode][]int{ModeHome: {2}}, panels[1].Modes)
		require.Equal(t, "Panel 3", panels[2].Name)
		require.Equal(t, "panel_3", panels[2].Slug)
		require.Equal(t, map[Mode][]int{ModeAway: {1, 2}}, panels[2].Modes)
		require.False(t, panels[2].Supports(ModeNight))
	})

	t.Run("slug from name", func(t *testing.T) {
		panels := LoadPanels([]PanelConfig{{Name: "Piano Terra"}}, LegacyConfig{}, 4)
		require.Equal(t, "piano_terra", panels[0].Slug)
	})

	t.Run("legacy", func(t *testing.T) {
		panels := LoadPanels(nil, LegacyConfig{
			Away:   []int{1, 2, 3},
			Home:   []int{2},
			Disarm: []int{3, 4},
		}, 4)
		require.Len(t, panels, 1)
		p := panels[0]
		require.Equal(t, "Alarm Panel", p.Name)
		require.Equal(t, "alarm_panel", p.Slug)
		require.Equal(t, []int{1, 2, 3}, p.Modes[ModeAway])
		require.Equal(t, []int{2}, p.Modes[ModeHome])
		require.Equal(t, []int{4}, p.ExtraDisarm)
		require.Equal(t, []int{1, 2, 3, 4}, p.Managed())
		require.Equal(t, []int{1, 2, 3, 4}, p.DisarmSectors(4))
	})

	t.Run("legacy defaults", func(t *testing.T) {
		panels := LoadPanels(nil, LegacyConfig{}, 2)
		require.Len(t, panels, 1)
		require.Equal(t, []int{1, 2}, panels[0].Modes[ModeAway])
		require.Empty(t, panels[0].ExtraDisarm)
	})

	t.Run("empty stored list", func(t *testing.T) {
		require.Empty(t, LoadPanels([]PanelConfig{}, LegacyConfig{}, 4))
	})
}

func TestPanelToConfig(t *testing.T) {
	panels := LoadPanels([]PanelConfig{
		{Name: "Main", Slug: "main", Modes: map[Mode][]int{ModeAway: {1, 2}}},
		{Name: "Aux", Slug: "main", Modes: map[Mode][]int{ModeHome: {3}}},
	}, LegacyConfig{}, 4)
	require.Equal(t, PanelConfig{
		Name:  "Main",
		Slug:  "main",
		Modes: map[Mode][]int{ModeAway: {1, 2}},
	}, panels[0].ToConfig())
	require.Equal(t, "main_2", panels[1].ToConfig().Slug)
}

func TestPanelState(t *testing.T) {
	p := Panel{
		Name: "House",
		Slug: "house",
		Modes: map[Mode][]int{
			ModeAway:  {1, 2, 3},
			ModeHome:  {2},
			ModeNight: {1, 3},
		},
	}

	for name, tc := range map[string]struct {
		status   *Status
		expected State
	}{
		"unknown":             {nil, StateUnknown},
		"disarmed":            {status(4, nil), StateDisarmed},
		"out of scope armed":  {status(4, []int{4}), StateDisarmed},
		"triggered":           {status(4, []int{1, 2, 3}, 2), StateTriggered},
		"triggered unarmed":   {status(4, nil, 1), StateTriggered},
		"out of scope alarm":  {status(4, nil, 4), StateDisarmed},
		"away":                {status(4, []int{1, 2, 3}), StateArmedAway},
		"home":                {status(4, []int{2}), StateArmedHome},
		"night":               {status(4, []int{1, 3}), StateArmedNight},
		"home ignores others": {status(4, []int{2, 4}), StateArmedHome},
		"partial overlap":     {status(4, []int{1, 2}), StateArmedAway},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, p.State(tc.status))
		})
	}

	t.Run("all managed armed", func(t *testing.T) {
		p := Panel{Modes: map[Mode][]int{ModeAway: {1, 2}, ModeHome: {3}}}
		require.Equal(t, StateArmedAway, p.State(status(3, []int{1, 2, 3})))
	})

	t.Run("largest overlap", func(t *testing.T) {
		p := Panel{Modes: map[Mode][]int{ModeAway: {1, 2, 3, 4}, ModeNight: {5, 6, 7}}}
		require.Equal(t, StateArmedNight, p.State(status(8, []int{5, 6})))
		require.Equal(t, StateArmedAway, p.State(status(8, []int{1, 2, 3, 5})))
	})

	t.Run("priority on ties", func(t *testing.T) {
		p := Panel{Modes: map[Mode][]int{ModeNight: {1, 2}, ModeHome: {1, 3}}}
		require.Equal(t, StateArmedNight, p.State(status(3, []int{1})))
	})

	t.Run("custom bypass", func(t *testing.T) {
		p := Panel{Modes: map[Mode][]int{ModeAway: {1}, ModeHome: {2}}, ExtraDisarm: []int{3}}
		require.Equal(t, StateArmedCustomBypass, p.State(status(4, []int{3})))
	})

	t.Run("no managed sectors", func(t *testing.T) {
		p := Panel{}
		require.Equal(t, StateArmedAway, p.State(status(2, []int{1, 2})))
		require.Equal(t, StateArmedCustomBypass, p.State(status(2, []int{1})))
	})
}

func TestStateString(t *testing.T) {
	require.Equal(t, "armed_custom_bypass", StateArmedCustomBypass.String())
	require.Equal(t, "disarmed", StateDisarmed.String())
	require.Equal(t, "unknown", State(99).String())
}

func TestTargetSectors(t *testing.T) {
	p := Panel{Name: "House", Modes: map[Mode][]int{ModeAway: {1, 2}}}
	sectors, err := p.TargetSectors(ModeAway)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, sectors)

	_, err = p.TargetSectors(ModeNight)
	require.ErrorIs(t, err, ErrModeNotConfigured)
	require.ErrorContains(t, err, "Arm Night")
	require.True(t, IsPermanent(err))
}

func TestCommandPayload(t *testing.T) {
	t.Run("limited to managed sectors", func(t *testing.T) {
		p := Panel{Modes: map[Mode][]int{ModeAway: {1, 3, 4}}}
		st := &Status{
			Armed:     []bool{true, true, false, true, false},
			Triggered: make([]bool, 5),
		}
		require.Equal(t,
			[]bool{false, true, true, false, false},
			p.CommandPayload(st, 5, []int{3}, true),
		)
	})

	t.Run("without status", func(t *testing.T) {
		require.Equal(t,
			[]bool{false, true, false, true},
			Panel{}.CommandPayload(nil, 4, []int{2, 4}, true),
		)
	})

	t.Run("disarm keeps other panels", func(t *testing.T) {
		p := Panel{Modes: map[Mode][]int{ModeAway: {1, 2}}}
		require.Equal(t,
			[]bool{false, false, true, false},
			p.CommandPayload(status(4, []int{1, 3}), 4, p.DisarmSectors(4), false),
		)
	})

	t.Run("short status", func(t *testing.T) {
		p := Panel{Modes: map[Mode][]int{ModeAway: {1}}}
		require.Equal(t,
			[]bool{true, false, false},
			p.CommandPayload(status(2, []int{2}), 3, []int{1, 9}, true),
		)
	})
}

func TestPanelAttributes(t *testing.T) {
	p := Panel{Slug: "house", Modes: map[Mode][]int{ModeAway: {1, 2}, ModeHome: {2}}}
	require.Empty(t, p.Attributes(nil))
	require.Equal(t, map[string]any{
		"armed_sectors":           []int{2},
		"disarmed_sectors":        []int{1},
		"raw_sector_bits":         []bool{false, true},
		"panel_managed_sectors":   []int{1, 2},
		"panel_slug":              "house",
		"configured_away_sectors": []int{1, 2},
		"is_armed_away":           false,
		"configured_home_sectors": []int{2},
		"is_armed_home":           true,
	}, p.Attributes(status(4, []int{2, 3})))
}
