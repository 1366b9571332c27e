package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-user directory holding config.yaml and profiles.yaml.
const DirName = ".immortals"

// Profile is a named, saved set of run settings.
type Profile struct {
	Name     string   `yaml:"name"`
	Settings Settings `yaml:"settings"`
}

// Profiles is the content of profiles.yaml.
type Profiles struct {
	Profiles []Profile `yaml:"profiles"`
}

// Dir returns $HOME/.immortals.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// ProfilesPath returns the default profiles file.
func ProfilesPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.yaml"), nil
}

// LoadProfiles loads profiles from the default location
func LoadProfiles() (*Profiles, error) {
	path, err := ProfilesPath()
	if err != nil {
		return nil, err
	}
	return LoadProfilesFromFile(path)
}

// LoadProfilesFromFile loads profiles from path. A missing file yields the
// built-in profiles.
func LoadProfilesFromFile(path string) (*Profiles, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultProfiles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}
	return &p, nil
}

// SaveProfiles saves profiles to the default location
func SaveProfiles(p *Profiles) error {
	path, err := ProfilesPath()
	if err != nil {
		return err
	}
	return SaveProfilesToFile(p, path)
}

// SaveProfilesToFile writes p to path.
func SaveProfilesToFile(p *Profiles, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// Find returns the profile called name.
func (p *Profiles) Find(name string) (*Settings, bool) {
	for i := range p.Profiles {
		if p.Profiles[i].Name == name {
			s := p.Profiles[i].Settings
			return &s, true
		}
	}
	return nil, false
}

// Add appends a profile. Names must be unique and settings valid.
func (p *Profiles) Add(name string, s *Settings) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if _, exists := p.Find(name); exists {
		return fmt.Errorf("profile %s already exists", name)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	p.Profiles = append(p.Profiles, Profile{Name: name, Settings: *s})
	return nil
}

// Remove deletes the profile called name and reports whether it existed.
func (p *Profiles) Remove(name string) bool {
	kept := make([]Profile, 0, len(p.Profiles))
	for _, profile := range p.Profiles {
		if profile.Name != name {
			kept = append(kept, profile)
		}
	}
	removed := len(kept) != len(p.Profiles)
	p.Profiles = kept
	return removed
}

// Names returns the profile names sorted.
func (p *Profiles) Names() []string {
	names := make([]string, len(p.Profiles))
	for i, profile := range p.Profiles {
		names[i] = profile.Name
	}
	sort.Strings(names)
	return names
}

// defaultProfiles returns the built-in profiles
func defaultProfiles() *Profiles {
	small := Default()
	small.Count = 4
	small.Duration = 5 * time.Second

	deadlock := Default()
	deadlock.Count = 2
	deadlock.FightMode = "naive"
	deadlock.Duration = 5 * time.Second

	return &Profiles{
		Profiles: []Profile{
			{Name: "default", Settings: *Default()},
			{Name: "small", Settings: *small},
			{Name: "deadlock-demo", Settings: *deadlock},
		},
	}
}
