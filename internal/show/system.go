package show

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"

	"lightrig/internal/logger"
)

// Force asks the external force bridge to switch to set. The bridge is best
// effort: failures are logged and set is returned regardless.
func (c *Controller) Force(ctx context.Context, set int) int {
	if c.force.URL == "" {
		return set
	}
	u := fmt.Sprintf("%s/mode?set=%d&key=%s", c.force.URL, set, url.QueryEscape(c.force.Key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.log.Debugf("force bridge: %v", err)
		return set
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugf("force bridge: %v", err)
		return set
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Debugf("force bridge: status %s", resp.Status)
	}
	return set
}

// SafeShutdown starts the shutdown script and returns without waiting for it.
func (c *Controller) SafeShutdown() error {
	if c.script == "" {
		return ErrNoScript
	}
	c.log.Warnf("starting shutdown script %s", c.script)
	if err := c.startScript(c.script); err != nil {
		return fmt.Errorf("shutdown script: %w", err)
	}
	c.rec.Record("shutdown", nil, nil)
	return nil
}

func startDetached(path string) error {
	cmd := exec.Command("bash", path)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}

// MIDILog records a message from the MIDI web page.
func (c *Controller) MIDILog(payload map[string]any) map[string]any {
	c.log.With(logger.Fields(payload)).Info("midi")
	return payload
}
