// Package prefs persists the display preferences of the terminal view.
//
// Preferences are three flat string keys in a key-value Storage, mirroring
// the page's localStorage. They are independent of the login session and
// survive logout.
package prefs

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"

	DefaultTheme      = ThemeDark
	DefaultFontSize   = "14"
	DefaultFontFamily = "monospace"

	KeyTheme      = "theme"
	KeyFontSize   = "font-size"
	KeyFontFamily = "font-family"
)

var ErrInvalidPreferences = errors.New("invalid display preferences")

// DisplayPreferences are the view settings. FontSize is passed to the
// terminal backend verbatim, so units such as "14px" survive.
type DisplayPreferences struct {
	Theme      string `json:"theme"`
	FontSize   string `json:"fontSize"`
	FontFamily string `json:"fontFamily"`
}

func Defaults() DisplayPreferences {
	return DisplayPreferences{
		Theme:      DefaultTheme,
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
	}
}

func (p DisplayPreferences) Validate() error {
	if p.Theme != ThemeDark && p.Theme != ThemeLight {
		return fmt.Errorf("%w: theme %q", ErrInvalidPreferences, p.Theme)
	}
	if strings.TrimSpace(p.FontSize) == "" {
		return fmt.Errorf("%w: empty font size", ErrInvalidPreferences)
	}
	if strings.TrimSpace(p.FontFamily) == "" {
		return fmt.Errorf("%w: empty font family", ErrInvalidPreferences)
	}
	return nil
}

// Storage is a flat string key-value store. SetAll must apply all pairs or
// none.
type Storage interface {
	Get(key string) (string, bool)
	SetAll(values map[string]string) error
}

// Target receives applied preferences; terminal.Registry implements it.
type Target interface {
	SetTheme(theme string)
	SetFont(size, family string)
}

type Store struct {
	storage Storage
}

func NewStore(storage Storage) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Store{storage: storage}
}

// Load returns the saved preferences. Missing or unreadable fields fall back
// to their defaults one by one.
func (s *Store) Load() DisplayPreferences {
	p := Defaults()
	if v, ok := s.storage.Get(KeyTheme); ok && (v == ThemeDark || v == ThemeLight) {
		p.Theme = v
	}
	if v, ok := s.storage.Get(KeyFontSize); ok && strings.TrimSpace(v) != "" {
		p.FontSize = v
	}
	if v, ok := s.storage.Get(KeyFontFamily); ok && strings.TrimSpace(v) != "" {
		p.FontFamily = v
	}
	return p
}

// Save persists all three fields as one unit.
func (s *Store) Save(p DisplayPreferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.storage.SetAll(map[string]string{
		KeyTheme:      p.Theme,
		KeyFontSize:   p.FontSize,
		KeyFontFamily: p.FontFamily,
	})
}

// Apply sets the theme and font on t.
func Apply(p DisplayPreferences, t Target) {
	t.SetTheme(p.Theme)
	t.SetFont(p.FontSize, p.FontFamily)
}

// Toggle returns the other theme.
func Toggle(theme string) string {
	if theme == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}
