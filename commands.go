package elmo

import "fmt"

// Arm arms the panel sectors configured for mode.
func (c *Coordinator) Arm(p Panel, m Mode, codes Codes, code string) error {
	if err := codes.Check(code); err != nil {
		return err
	}
	targets, err := p.TargetSectors(m)
	if err != nil {
		return err
	}
	log.Info("arm", "panel", p.Slug, "mode", m, "sectors", targets)
	return c.sendCommand(p, targets, true)
}

// Disarm disarms every sector the panel manages.
func (c *Coordinator) Disarm(p Panel, codes Codes, code string) error {
	if err := codes.Check(code); err != nil {
		return err
	}
	targets := p.DisarmSectors(c.inv.SectorCount())
	log.Info("disarm", "panel", p.Slug, "sectors", targets)
	return c.sendCommand(p, targets, false)
}

func (c *Coordinator) sendCommand(p Panel, targets []int, value bool) error {
	if err := c.Execute(func(inv *Inventory) error {
		payload := p.CommandPayload(inv.Snapshot().Status, inv.SectorCount(), targets, value)
		return inv.WriteCoils(RegisterCommandStart, payload)
	}); err != nil {
		return fmt.Errorf("failed to send command to panel %s: %w", p.Slug, err)
	}
	c.RequestRefresh()
	return nil
}

// SetOutput turns an output on or off.
func (c *Coordinator) SetOutput(o Output, on bool) error {
	log.Info("set output", "output", o.Index, "on", on)
	if err := c.Execute(func(inv *Inventory) error {
		return inv.WriteCoil(o.Address, on)
	}); err != nil {
		return fmt.Errorf("failed to update output %d: %w", o.Index, err)
	}
	c.RequestRefresh()
	return nil
}

// SetInputExclusion excludes or re-activates alarm inputs.
func (c *Coordinator) SetInputExclusion(inputs []int, excluded bool) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrInvalidSelection)
	}
	if err := c.Execute(func(inv *Inventory) error {
		return inv.SetInputExclusion(inputs, excluded)
	}); err != nil {
		return fmt.Errorf("failed to update input exclusion state: %w", err)
	}
	c.RequestRefresh()
	return nil
}
