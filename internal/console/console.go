// Package console is the headless model of the terminal page. It wires the
// gateway client, the tab registry and the stored preferences the way the
// page's scripts do, so the page flow can be driven and tested without a
// browser.
package console

import (
	"context"
	"errors"
	"log"

	"github.com/DrorShokoPeer/ttydx/internal/client"
	"github.com/DrorShokoPeer/ttydx/internal/prefs"
	"github.com/DrorShokoPeer/ttydx/internal/terminal"
)

var _ Gateway = (*client.Client)(nil)

// ErrUnauthenticated means the page was opened without a valid session.
var ErrUnauthenticated = errors.New("not authenticated")

const (
	// LoginPath is where a logged-out view is sent.
	LoginPath = "/"

	defaultSessionName = "Main"
)

// Gateway is the part of client.Client the console uses.
type Gateway interface {
	Status(ctx context.Context) (client.Status, error)
	Logout(ctx context.Context) (string, error)
}

// Window is the browser window: it can leave the page and show a blocking
// notice.
type Window interface {
	Redirect(path string)
	Notify(message string)
}

type Console struct {
	gateway  Gateway
	registry *terminal.Registry
	prefs    *prefs.Store
	window   Window

	current prefs.DisplayPreferences
	user    string
}

func New(gateway Gateway, registry *terminal.Registry, store *prefs.Store, window Window) *Console {
	return &Console{
		gateway:  gateway,
		registry: registry,
		prefs:    store,
		window:   window,
		current:  prefs.Defaults(),
	}
}

// Open checks the session before anything is shown. A failed check counts
// as logged out.
func (c *Console) Open(ctx context.Context) error {
	st, err := c.gateway.Status(ctx)
	if err != nil || !st.Authenticated {
		if err != nil {
			log.Printf("[console] auth check failed: %v", err)
		}
		c.window.Redirect(LoginPath)
		return ErrUnauthenticated
	}
	if st.User != nil {
		c.user = st.User.Username
	}

	c.current = c.prefs.Load()
	prefs.Apply(c.current, c.registry)
	if c.registry.Len() == 0 {
		c.registry.CreateSession(defaultSessionName, true)
	}
	return nil
}

// User is the username reported by the gateway at Open.
func (c *Console) User() string {
	return c.user
}

func (c *Console) Preferences() prefs.DisplayPreferences {
	return c.current
}

// NewSession opens a background tab with the next default name.
func (c *Console) NewSession() terminal.TerminalSession {
	return c.registry.CreateSession(c.registry.NextName(), false)
}

// Switch activates a tab. Unknown ids are ignored.
func (c *Console) Switch(id string) {
	if err := c.registry.SwitchTo(id); err != nil {
		log.Printf("[console] switch to %s: %v", id, err)
	}
}

// Close closes a tab. Closing the last one shows a notice instead.
func (c *Console) Close(id string) {
	err := c.registry.Close(id)
	switch {
	case errors.Is(err, terminal.ErrLastSession):
		c.window.Notify("Cannot close the last session")
	case err != nil:
		log.Printf("[console] close %s: %v", id, err)
	}
}

// ToggleTheme flips the theme, applies it and saves it.
func (c *Console) ToggleTheme() error {
	next := c.current
	next.Theme = prefs.Toggle(next.Theme)
	return c.SavePreferences(next)
}

// SavePreferences persists p and applies it to the open tabs.
func (c *Console) SavePreferences(p prefs.DisplayPreferences) error {
	if err := c.prefs.Save(p); err != nil {
		return err
	}
	c.current = p
	prefs.Apply(p, c.registry)
	return nil
}

// Logout ends the session and leaves the page even if the call failed.
func (c *Console) Logout(ctx context.Context) {
	target, err := c.gateway.Logout(ctx)
	if err != nil {
		log.Printf("[console] logout failed: %v", err)
	}
	if target == "" {
		target = LoginPath
	}
	c.window.Redirect(target)
}
