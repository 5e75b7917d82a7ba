// Package terminal tracks the terminal tabs of one browser view.
//
// A Registry holds an ordered set of logical terminal sessions, each routed to
// the external terminal backend by URL. Exactly one session is active once the
// first has been created, and the registry never becomes empty again: closing
// the last session is rejected. Every mutation ends with a render of the
// post-mutation state.
package terminal

import (
	"errors"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("terminal session not found")
	ErrLastSession = errors.New("cannot close the last terminal session")
)

// DefaultPrefix is the path the terminal backend is mounted at.
const DefaultPrefix = "/ttyd"

// TerminalSession is one logical tab.
type TerminalSession struct {
	ID          string
	DisplayName string
	BackendURL  string
	Active      bool
}

// SessionView is the render projection of one tab.
type SessionView struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Active      bool   `json:"active"`
}

// Surface is the display the active session is shown on.
type Surface interface {
	// Navigate points the display at url, reloading it if already there.
	Navigate(url string)
	// SetTheme sets the theme attribute of the display.
	SetTheme(theme string)
}

type nopSurface struct{}

func (nopSurface) Navigate(string) {}
func (nopSurface) SetTheme(string) {}

type entry struct {
	id   string
	name string
}

// Registry is the session list of one view. Side effects on the Surface and
// the render hook run after the registry lock is released.
type Registry struct {
	prefix  string
	surface Surface

	mu       sync.Mutex
	sessions []*entry // insertion order
	byID     map[string]*entry
	activeID string

	fontSize   string
	fontFamily string

	onRender func([]SessionView)

	// newID generates session ids. Replaced in tests.
	newID func() string
}

// NewRegistry creates an empty registry. A nil surface discards navigation.
func NewRegistry(prefix string, surface Surface) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if surface == nil {
		surface = nopSurface{}
	}
	return &Registry{
		prefix:  prefix,
		surface: surface,
		byID:    make(map[string]*entry),
		newID:   uuid.NewString,
	}
}

// OnRender installs a hook called with the projection after every mutation.
func (r *Registry) OnRender(fn func([]SessionView)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRender = fn
}

// backendURL builds prefix?session=<id>[&fontSize=..&fontFamily=..].
// Caller must hold r.mu.
func (r *Registry) backendURL(id string) string {
	u := r.prefix + "?session=" + url.QueryEscape(id)
	if r.fontSize != "" {
		u += "&fontSize=" + url.QueryEscape(r.fontSize)
	}
	if r.fontFamily != "" {
		u += "&fontFamily=" + url.QueryEscape(r.fontFamily)
	}
	return u
}

// Caller must hold r.mu.
func (r *Registry) snapshot(e *entry) TerminalSession {
	return TerminalSession{
		ID:          e.id,
		DisplayName: e.name,
		BackendURL:  r.backendURL(e.id),
		Active:      e.id == r.activeID,
	}
}

// Caller must hold r.mu.
func (r *Registry) views() []SessionView {
	out := make([]SessionView, len(r.sessions))
	for i, e := range r.sessions {
		out[i] = SessionView{ID: e.id, DisplayName: e.name, Active: e.id == r.activeID}
	}
	return out
}

// unlockAndNotify releases r.mu, then navigates to navURL (if any) and
// renders.
func (r *Registry) unlockAndNotify(navURL string) {
	views := r.views()
	hook := r.onRender
	r.mu.Unlock()

	if navURL != "" {
		r.surface.Navigate(navURL)
	}
	if hook != nil {
		hook(views)
	}
}

// NextName is the default display name for a new tab: "Session N" with N
// one more than the current size.
func (r *Registry) NextName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return "Session " + strconv.Itoa(len(r.sessions)+1)
}

// CreateSession adds a tab. It becomes active when makeDefault is set or it
// is the first tab. An empty name selects NextName.
func (r *Registry) CreateSession(name string, makeDefault bool) TerminalSession {
	r.mu.Lock()
	if name == "" {
		name = "Session " + strconv.Itoa(len(r.sessions)+1)
	}
	id := r.newID()
	for {
		if _, taken := r.byID[id]; !taken && id != "" {
			break
		}
		id = r.newID()
	}
	e := &entry{id: id, name: name}
	r.sessions = append(r.sessions, e)
	r.byID[id] = e

	var nav string
	if makeDefault || r.activeID == "" {
		r.activeID = id
		nav = r.backendURL(id)
	}
	s := r.snapshot(e)
	r.unlockAndNotify(nav)
	return s
}

// SwitchTo activates id. Switching to the active tab changes nothing.
func (r *Registry) SwitchTo(id string) error {
	r.mu.Lock()
	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	var nav string
	if r.activeID != id {
		r.activeID = id
		nav = r.backendURL(id)
	}
	r.unlockAndNotify(nav)
	return nil
}

// Close removes id. Closing the active tab activates the oldest remaining.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if len(r.sessions) == 1 {
		r.mu.Unlock()
		return ErrLastSession
	}

	for i, e := range r.sessions {
		if e.id == id {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			break
		}
	}
	delete(r.byID, id)

	var nav string
	if r.activeID == id {
		r.activeID = r.sessions[0].id
		nav = r.backendURL(r.activeID)
	}
	r.unlockAndNotify(nav)
	return nil
}

// List returns the tabs in insertion order.
func (r *Registry) List() []TerminalSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TerminalSession, len(r.sessions))
	for i, e := range r.sessions {
		out[i] = r.snapshot(e)
	}
	return out
}

// Active returns the active tab. ok is false only before the first create.
func (r *Registry) Active() (TerminalSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[r.activeID]
	if !ok {
		return TerminalSession{}, false
	}
	return r.snapshot(e), true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Render returns the current projection without side effects.
func (r *Registry) Render() []SessionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views()
}

// SetTheme forwards the theme to the surface.
func (r *Registry) SetTheme(theme string) {
	r.surface.SetTheme(theme)
}

// SetFont sets the font query parameters for every tab and reloads the
// active one. An empty size or family omits that parameter.
func (r *Registry) SetFont(size, family string) {
	r.mu.Lock()
	r.fontSize = size
	r.fontFamily = family
	var nav string
	if r.activeID != "" {
		nav = r.backendURL(r.activeID)
	}
	r.unlockAndNotify(nav)
}
