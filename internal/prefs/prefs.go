// Package prefs persists user preferences (clock speed, pass threshold,
// observer location) between runs.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/star/sattrack/internal/orbit"
)

// Preferences are the persisted user settings. A nil Observer means no
// location has been saved.
type Preferences struct {
	Speed           float64         `json:"speed"`
	MinElevationDeg float64         `json:"min_elevation_deg"`
	Observer        *orbit.Observer `json:"observer,omitempty"`
}

// Defaults returns the preferences used before anything is saved.
func Defaults() Preferences {
	return Preferences{Speed: 1, MinElevationDeg: 10}
}

// Store loads and saves preferences.
type Store interface {
	Load() (Preferences, error)
	Save(Preferences) error
}

const (
	keySpeed    = "speed"
	keyMinElev  = "min_elevation_deg"
	keyObserver = "observer"
	keyLat      = "observer.lat"
	keyLon      = "observer.lon"
	keyAlt      = "observer.alt_m"
)

// FileStore keeps preferences in a JSON or YAML file chosen by extension.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store at path. The extension must be .json, .yaml
// or .yml.
func NewFileStore(path string) (*FileStore, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("prefs file %q: unsupported extension", path)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file yields Defaults.
func (s *FileStore) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Defaults()
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return p, nil
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetDefault(keySpeed, p.Speed)
	v.SetDefault(keyMinElev, p.MinElevationDeg)
	if err := v.ReadInConfig(); err != nil {
		return p, fmt.Errorf("reading prefs %s: %w", s.path, err)
	}

	p.Speed = v.GetFloat64(keySpeed)
	p.MinElevationDeg = v.GetFloat64(keyMinElev)
	if v.IsSet(keyLat) && v.IsSet(keyLon) {
		obs, err := orbit.NewObserver(v.GetFloat64(keyLat), v.GetFloat64(keyLon), v.GetFloat64(keyAlt))
		if err != nil {
			return p, fmt.Errorf("prefs observer: %w", err)
		}
		p.Observer = &obs
	}
	return p, nil
}

// Save writes p, replacing the file.
func (s *FileStore) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating prefs dir: %w", err)
		}
	}

	v := viper.New()
	v.Set(keySpeed, p.Speed)
	v.Set(keyMinElev, p.MinElevationDeg)
	if p.Observer != nil {
		v.Set(keyObserver, map[string]any{
			"lat":   p.Observer.LatitudeDeg,
			"lon":   p.Observer.LongitudeDeg,
			"alt_m": p.Observer.AltitudeMeters,
		})
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing prefs %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore keeps preferences in memory.
type MemoryStore struct {
	mu    sync.Mutex
	prefs Preferences
	saves int
}

// NewMemoryStore returns a store holding Defaults.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: Defaults()}
}

func (m *MemoryStore) Load() (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.prefs
	if p.Observer != nil {
		obs := *p.Observer
		p.Observer = &obs
	}
	return p, nil
}

func (m *MemoryStore) Save(p Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Observer != nil {
		obs := *p.Observer
		p.Observer = &obs
	}
	m.prefs = p
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
