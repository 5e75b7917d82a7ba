package terminal

import (
	"errors"
	"math/rand"
	"strconv"
	"testing"
)

type fakeSurface struct {
	navigations []string
	themes      []string
}

func (s *fakeSurface) Navigate(url string)   { s.navigations = append(s.navigations, url) }
func (s *fakeSurface) SetTheme(theme string) { s.themes = append(s.themes, theme) }

func (s *fakeSurface) last() string {
	if len(s.navigations) == 0 {
		return ""
	}
	return s.navigations[len(s.navigations)-1]
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id" + strconv.Itoa(n)
	}
}

func newTestRegistry() (*Registry, *fakeSurface) {
	s := &fakeSurface{}
	r := NewRegistry("/ttyd", s)
	r.newID = sequentialIDs()
	return r, s
}

func activeName(t *testing.T, r *Registry) string {
	t.Helper()
	a, ok := r.Active()
	if !ok {
		t.Fatal("no active session")
	}
	return a.DisplayName
}

func TestRegistry_TabScenario(t *testing.T) {
	r, surface := newTestRegistry()

	main := r.CreateSession("Main", true)
	if !main.Active || main.BackendURL != "/ttyd?session=id1" {
		t.Fatalf("Main = %+v", main)
	}
	if surface.last() != "/ttyd?session=id1" {
		t.Errorf("navigated to %q", surface.last())
	}

	s2 := r.CreateSession("Session 2", false)
	if s2.Active {
		t.Error("non-default session became active")
	}
	if activeName(t, r) != "Main" || r.Len() != 2 {
		t.Fatalf("after create: active=%s len=%d", activeName(t, r), r.Len())
	}
	if len(surface.navigations) != 1 {
		t.Errorf("background create navigated: %v", surface.navigations)
	}

	if err := r.SwitchTo(s2.ID); err != nil {
		t.Fatal(err)
	}
	list := r.List()
	if list[0].Active || !list[1].Active {
		t.Errorf("after switch: %+v", list)
	}
	if surface.last() != s2.BackendURL {
		t.Errorf("navigated to %q, want %q", surface.last(), s2.BackendURL)
	}

	if err := r.Close(main.ID); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 || activeName(t, r) != "Session 2" {
		t.Errorf("after close: len=%d active=%s", r.Len(), activeName(t, r))
	}

	if err := r.Close(s2.ID); !errors.Is(err, ErrLastSession) {
		t.Fatalf("closing last session err = %v, want ErrLastSession", err)
	}
	if r.Len() != 1 || activeName(t, r) != "Session 2" {
		t.Error("rejected close changed state")
	}
}

func TestRegistry_FirstSessionIsActive(t *testing.T) {
	r, _ := newTestRegistry()
	if _, ok := r.Active(); ok {
		t.Fatal("empty registry has an active session")
	}
	s := r.CreateSession("", false)
	if !s.Active {
		t.Error("first session not active")
	}
	if s.DisplayName != "Session 1" {
		t.Errorf("DisplayName = %q, want Session 1", s.DisplayName)
	}
	if r.NextName() != "Session 2" {
		t.Errorf("NextName = %q", r.NextName())
	}
}

func TestRegistry_MakeDefaultActivates(t *testing.T) {
	r, surface := newTestRegistry()
	r.CreateSession("a", true)
	b := r.CreateSession("b", true)
	if activeName(t, r) != "b" {
		t.Errorf("active = %s, want b", activeName(t, r))
	}
	if surface.last() != b.BackendURL {
		t.Errorf("navigated to %q", surface.last())
	}
}

func TestRegistry_CloseActiveActivatesOldest(t *testing.T) {
	r, surface := newTestRegistry()
	a := r.CreateSession("a", true)
	b := r.CreateSession("b", false)
	c := r.CreateSession("c", true)

	if err := r.Close(c.ID); err != nil {
		t.Fatal(err)
	}
	if activeName(t, r) != "a" {
		t.Errorf("active = %s, want a", activeName(t, r))
	}
	if surface.last() != a.BackendURL {
		t.Errorf("navigated to %q", surface.last())
	}

	// Closing an inactive session keeps the active one and does not navigate.
	n := len(surface.navigations)
	if err := r.Close(b.ID); err != nil {
		t.Fatal(err)
	}
	if activeName(t, r) != "a" || len(surface.navigations) != n {
		t.Error("closing inactive session disturbed the active one")
	}
}

func TestRegistry_NotFound(t *testing.T) {
	r, surface := newTestRegistry()
	r.CreateSession("a", true)
	before := r.List()
	n := len(surface.navigations)

	if err := r.SwitchTo("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SwitchTo err = %v", err)
	}
	if err := r.Close("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Close err = %v", err)
	}
	after := r.List()
	if len(after) != len(before) || after[0] != before[0] || len(surface.navigations) != n {
		t.Error("not-found operation changed state")
	}
}

func TestRegistry_SwitchToActiveIsNoop(t *testing.T) {
	r, surface := newTestRegistry()
	a := r.CreateSession("a", true)
	n := len(surface.navigations)
	if err := r.SwitchTo(a.ID); err != nil {
		t.Fatal(err)
	}
	if len(surface.navigations) != n {
		t.Error("switching to the active session navigated")
	}
}

func TestRegistry_IDCollisionRedrawn(t *testing.T) {
	r, _ := newTestRegistry()
	ids := []string{"dup", "dup", "", "fresh"}
	r.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	a := r.CreateSession("a", true)
	b := r.CreateSession("b", false)
	if a.ID != "dup" || b.ID != "fresh" {
		t.Errorf("ids = %q, %q", a.ID, b.ID)
	}
}

func TestRegistry_DefaultIDsAreUnique(t *testing.T) {
	r := NewRegistry("", nil)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s := r.CreateSession("", false)
		if seen[s.ID] {
			t.Fatalf("duplicate id %s", s.ID)
		}
		seen[s.ID] = true
	}
	if a, _ := r.Active(); a.BackendURL[:len(DefaultPrefix)] != DefaultPrefix {
		t.Errorf("BackendURL = %q", a.BackendURL)
	}
}

func TestRegistry_SetFont(t *testing.T) {
	r, surface := newTestRegistry()
	r.CreateSession("a", true)
	r.CreateSession("b", false)

	r.SetFont("16", "Fira Code")
	list := r.List()
	if list[0].BackendURL != "/ttyd?session=id1&fontSize=16&fontFamily=Fira+Code" {
		t.Errorf("a URL = %q", list[0].BackendURL)
	}
	if list[1].BackendURL != "/ttyd?session=id2&fontSize=16&fontFamily=Fira+Code" {
		t.Errorf("b URL = %q", list[1].BackendURL)
	}
	if surface.last() != list[0].BackendURL {
		t.Errorf("active not reloaded, last nav %q", surface.last())
	}

	c := r.CreateSession("c", false)
	if c.BackendURL != "/ttyd?session=id3&fontSize=16&fontFamily=Fira+Code" {
		t.Errorf("new session URL = %q", c.BackendURL)
	}

	r.SetFont("14px", "")
	if a, _ := r.Active(); a.BackendURL != "/ttyd?session=id1&fontSize=14px" {
		t.Errorf("URL with unit = %q", a.BackendURL)
	}
}

func TestRegistry_SetTheme(t *testing.T) {
	r, surface := newTestRegistry()
	r.SetTheme("light")
	if len(surface.themes) != 1 || surface.themes[0] != "light" {
		t.Errorf("themes = %v", surface.themes)
	}
}

func TestRegistry_RenderAfterEveryMutation(t *testing.T) {
	r, _ := newTestRegistry()
	var renders [][]SessionView
	r.OnRender(func(v []SessionView) { renders = append(renders, v) })

	a := r.CreateSession("a", true)
	b := r.CreateSession("b", false)
	r.SwitchTo(b.ID)
	r.Close(a.ID)
	r.Close(b.ID) // rejected, no render

	if len(renders) != 4 {
		t.Fatalf("renders = %d, want 4", len(renders))
	}
	last := renders[3]
	if len(last) != 1 || last[0].DisplayName != "b" || !last[0].Active {
		t.Errorf("final render = %+v", last)
	}
	if got := r.Render(); len(got) != 1 || got[0] != last[0] {
		t.Errorf("Render() = %+v", got)
	}
}

func TestRegistry_RandomOpsKeepOneActive(t *testing.T) {
	r, _ := newTestRegistry()
	r.CreateSession("Main", true)
	rng := rand.New(rand.NewSource(1))

	for step := 0; step < 2000; step++ {
		list := r.List()
		pick := list[rng.Intn(len(list))].ID
		switch rng.Intn(4) {
		case 0:
			r.CreateSession("", rng.Intn(2) == 0)
		case 1:
			r.SwitchTo(pick)
		case 2:
			err := r.Close(pick)
			if len(list) == 1 && !errors.Is(err, ErrLastSession) {
				t.Fatalf("step %d: closing sole session err = %v", step, err)
			}
		case 3:
			r.SwitchTo("missing")
		}

		list = r.List()
		if len(list) == 0 {
			t.Fatalf("step %d: registry empty", step)
		}
		active := 0
		for _, s := range list {
			if s.Active {
				active++
			}
		}
		if active != 1 {
			t.Fatalf("step %d: %d active sessions", step, active)
		}
	}
}
