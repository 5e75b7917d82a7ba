package console

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DrorShokoPeer/ttydx/internal/auth"
	"github.com/DrorShokoPeer/ttydx/internal/client"
	"github.com/DrorShokoPeer/ttydx/internal/prefs"
	"github.com/DrorShokoPeer/ttydx/internal/terminal"
)

type fakeGateway struct {
	status    client.Status
	statusErr error
	logoutErr error
	logouts   int
}

func (g *fakeGateway) Status(context.Context) (client.Status, error) {
	return g.status, g.statusErr
}

func (g *fakeGateway) Logout(context.Context) (string, error) {
	g.logouts++
	if g.logoutErr != nil {
		return "", g.logoutErr
	}
	return "/", nil
}

type fakeWindow struct {
	redirects []string
	notices   []string
}

func (w *fakeWindow) Redirect(path string)  { w.redirects = append(w.redirects, path) }
func (w *fakeWindow) Notify(message string) { w.notices = append(w.notices, message) }

type fakeSurface struct {
	navigations []string
	theme       string
}

func (s *fakeSurface) Navigate(url string)   { s.navigations = append(s.navigations, url) }
func (s *fakeSurface) SetTheme(theme string) { s.theme = theme }

type fixture struct {
	console *Console
	gateway *fakeGateway
	window  *fakeWindow
	surface *fakeSurface
	storage *prefs.MemoryStorage
	reg     *terminal.Registry
}

func newFixture(authenticated bool) *fixture {
	f := &fixture{
		gateway: &fakeGateway{},
		window:  &fakeWindow{},
		surface: &fakeSurface{},
		storage: prefs.NewMemoryStorage(),
	}
	if authenticated {
		f.gateway.status = client.Status{
			Authenticated: true,
			User:          &auth.PrincipalInfo{Username: "user", Role: auth.RoleUser},
		}
	}
	f.reg = terminal.NewRegistry("/ttyd", f.surface)
	f.console = New(f.gateway, f.reg, prefs.NewStore(f.storage), f.window)
	return f
}

func TestOpen_Unauthenticated(t *testing.T) {
	f := newFixture(false)
	if err := f.console.Open(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Open err = %v", err)
	}
	if len(f.window.redirects) != 1 || f.window.redirects[0] != "/" {
		t.Errorf("redirects = %v", f.window.redirects)
	}
	if f.reg.Len() != 0 {
		t.Error("sessions created for unauthenticated view")
	}
}

func TestOpen_StatusErrorFailsSafe(t *testing.T) {
	f := newFixture(true)
	f.gateway.statusErr = errors.New("connection refused")
	if err := f.console.Open(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Open err = %v", err)
	}
	if len(f.window.redirects) != 1 {
		t.Errorf("redirects = %v", f.window.redirects)
	}
	if f.reg.Len() != 0 {
		t.Error("sessions created after failed status check")
	}
}

func TestOpen_CreatesMainWithSavedPreferences(t *testing.T) {
	f := newFixture(true)
	prefs.NewStore(f.storage).Save(prefs.DisplayPreferences{Theme: prefs.ThemeLight, FontSize: "16", FontFamily: "Menlo"})

	if err := f.console.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.console.User() != "user" {
		t.Errorf("User = %q", f.console.User())
	}
	active, ok := f.reg.Active()
	if !ok || active.DisplayName != "Main" {
		t.Fatalf("active = %+v, %v", active, ok)
	}
	if f.surface.theme != prefs.ThemeLight {
		t.Errorf("theme = %q", f.surface.theme)
	}
	want := "/ttyd?session=" + active.ID + "&fontSize=16&fontFamily=Menlo"
	if active.BackendURL != want {
		t.Errorf("BackendURL = %q, want %q", active.BackendURL, want)
	}
	if last := f.surface.navigations[len(f.surface.navigations)-1]; last != want {
		t.Errorf("last navigation = %q", last)
	}
	if len(f.window.redirects) != 0 {
		t.Errorf("unexpected redirects %v", f.window.redirects)
	}
}

func TestConsole_TabFlow(t *testing.T) {
	f := newFixture(true)
	if err := f.console.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	main, _ := f.reg.Active()

	s2 := f.console.NewSession()
	if s2.DisplayName != "Session 2" || s2.Active {
		t.Errorf("new session = %+v", s2)
	}

	f.console.Switch(s2.ID)
	f.console.Switch("missing")
	if a, _ := f.reg.Active(); a.ID != s2.ID {
		t.Errorf("active = %s, want %s", a.DisplayName, s2.DisplayName)
	}

	f.console.Close(main.ID)
	f.console.Close(s2.ID)
	if f.reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", f.reg.Len())
	}
	if len(f.window.notices) != 1 || !strings.Contains(f.window.notices[0], "last session") {
		t.Errorf("notices = %v", f.window.notices)
	}
}

func TestConsole_ToggleThemePersists(t *testing.T) {
	f := newFixture(true)
	f.console.Open(context.Background())

	if err := f.console.ToggleTheme(); err != nil {
		t.Fatal(err)
	}
	if f.surface.theme != prefs.ThemeLight {
		t.Errorf("theme = %q", f.surface.theme)
	}
	if got := prefs.NewStore(f.storage).Load().Theme; got != prefs.ThemeLight {
		t.Errorf("stored theme = %q", got)
	}

	f.console.ToggleTheme()
	if f.console.Preferences().Theme != prefs.ThemeDark {
		t.Errorf("theme after second toggle = %q", f.console.Preferences().Theme)
	}
}

func TestConsole_SavePreferencesRejectsInvalid(t *testing.T) {
	f := newFixture(true)
	f.console.Open(context.Background())
	before := f.console.Preferences()

	err := f.console.SavePreferences(prefs.DisplayPreferences{Theme: "neon", FontSize: "14", FontFamily: "x"})
	if !errors.Is(err, prefs.ErrInvalidPreferences) {
		t.Fatalf("err = %v", err)
	}
	if f.console.Preferences() != before {
		t.Error("invalid preferences applied")
	}
}

func TestConsole_PreferencesSurviveLogout(t *testing.T) {
	f := newFixture(true)
	f.console.Open(context.Background())
	f.console.SavePreferences(prefs.DisplayPreferences{Theme: prefs.ThemeLight, FontSize: "20px", FontFamily: "Menlo"})
	f.console.Logout(context.Background())

	again := New(f.gateway, terminal.NewRegistry("/ttyd", nil), prefs.NewStore(f.storage), f.window)
	if err := again.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p := again.Preferences(); p.FontSize != "20px" || p.Theme != prefs.ThemeLight {
		t.Errorf("preferences after re-login = %+v", p)
	}
}

func TestConsole_LogoutRedirectsEvenOnError(t *testing.T) {
	f := newFixture(true)
	f.gateway.logoutErr = errors.New("network down")
	f.console.Logout(context.Background())
	if f.gateway.logouts != 1 {
		t.Errorf("logouts = %d", f.gateway.logouts)
	}
	if len(f.window.redirects) != 1 || f.window.redirects[0] != "/" {
		t.Errorf("redirects = %v", f.window.redirects)
	}
}
