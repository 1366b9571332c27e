package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Krayangel/ARSW-LAB03/pkg/immortals"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if s.Mode() != immortals.FightOrdered {
		t.Errorf("Expected ordered mode, got %s", s.Mode())
	}
	if s.Health != immortals.DefaultHealth || s.Damage != immortals.DefaultDamage {
		t.Errorf("Unexpected health/damage %d/%d", s.Health, s.Damage)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero count", func(s *Settings) { s.Count = 0 }},
		{"negative health", func(s *Settings) { s.Health = -1 }},
		{"zero damage", func(s *Settings) { s.Damage = 0 }},
		{"unknown mode", func(s *Settings) { s.FightMode = "optimistic" }},
		{"empty mode", func(s *Settings) { s.FightMode = "" }},
		{"negative duration", func(s *Settings) { s.Duration = -time.Second }},
		{"negative report interval", func(s *Settings) { s.ReportInterval = -time.Second }},
		{"negative pause timeout", func(s *Settings) { s.PauseTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Expected ErrInvalidSettings, got %v", err)
			}
		})
	}

	s := Default()
	s.FightMode = " TryLock "
	if err := s.Validate(); err != nil {
		t.Errorf("Mode matching should ignore case and spaces: %v", err)
	}
}

func TestMergeWithCLIOverrides(t *testing.T) {
	s := Default()
	MergeWithCLIOverrides(s, map[string]interface{}{
		KeyCount:          8,
		KeyHealth:         float64(250),
		KeyDamage:         -3,
		KeyFightMode:      "NAIVE",
		KeyDuration:       "1m30s",
		KeyReportInterval: 5,
		KeyTurnDelay:      time.Millisecond,
		"unknown":         true,
	})

	if s.Count != 8 {
		t.Errorf("Expected count 8, got %d", s.Count)
	}
	if s.Health != 250 {
		t.Errorf("Expected health 250, got %d", s.Health)
	}
	if s.Damage != immortals.DefaultDamage {
		t.Errorf("Negative damage should be ignored, got %d", s.Damage)
	}
	if s.FightMode != "naive" {
		t.Errorf("Expected naive, got %s", s.FightMode)
	}
	if s.Duration != 90*time.Second {
		t.Errorf("Expected 1m30s, got %v", s.Duration)
	}
	if s.ReportInterval != 5*time.Second {
		t.Errorf("Expected 5s report interval, got %v", s.ReportInterval)
	}
	if s.TurnDelay != time.Millisecond {
		t.Errorf("Expected 1ms turn delay, got %v", s.TurnDelay)
	}

	if !s.StopOnWinner {
		t.Errorf("Expected stop_on_winner to default to true")
	}
	MergeWithCLIOverrides(s, map[string]interface{}{KeyStopOnWinner: "false"})
	if s.StopOnWinner {
		t.Errorf("Expected stop_on_winner false from a flag string")
	}
	MergeWithCLIOverrides(s, map[string]interface{}{KeyStopOnWinner: 2})
	if s.StopOnWinner {
		t.Errorf("Non-boolean stop_on_winner should be ignored")
	}

	MergeWithCLIOverrides(s, map[string]interface{}{KeyFightMode: "bogus"})
	if s.FightMode != "naive" {
		t.Errorf("Unknown mode should be ignored, got %s", s.FightMode)
	}
}

func TestFromViperEnvironment(t *testing.T) {
	t.Setenv("IMMORTALS_COUNT", "12")
	t.Setenv("IMMORTALS_FIGHT_MODE", "trylock")
	t.Setenv("IMMORTALS_DURATION", "3s")
	t.Setenv("IMMORTALS_STOP_ON_WINNER", "false")

	v := viper.New()
	v.SetEnvPrefix("IMMORTALS")
	v.AutomaticEnv()

	s := FromViper(v)
	if s.Count != 12 {
		t.Errorf("Expected count 12 from env, got %d", s.Count)
	}
	if s.Mode() != immortals.FightTryLock {
		t.Errorf("Expected trylock from env, got %s", s.FightMode)
	}
	if s.Duration != 3*time.Second {
		t.Errorf("Expected 3s from env, got %v", s.Duration)
	}
	if s.StopOnWinner {
		t.Errorf("Expected stop_on_winner false from env")
	}
	if s.Health != immortals.DefaultHealth {
		t.Errorf("Unset keys should keep defaults, got health %d", s.Health)
	}
}

func TestFromViperConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "count: 6\nhealth: 40\nreport_interval: 500ms\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	s := FromViper(v)
	if s.Count != 6 || s.Health != 40 {
		t.Errorf("Unexpected count/health %d/%d", s.Count, s.Health)
	}
	if s.ReportInterval != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", s.ReportInterval)
	}

	if got := FromViper(nil); got.Count != Default().Count {
		t.Errorf("nil viper should yield defaults")
	}
}

func TestSaveAndLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.yaml")

	s := Default()
	s.Count = 3
	s.FightMode = "trylock"
	s.Duration = 2 * time.Second
	if err := SaveSettings(s, path); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "duration: 2s") {
		t.Errorf("Durations should be written as strings:\n%s", data)
	}

	loaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if *loaded != *s {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", *loaded, *s)
	}

	bad := Default()
	bad.Count = 0
	if err := SaveSettings(bad, path); err == nil {
		t.Error("Expected invalid settings to be rejected")
	}
}

func TestProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")

	profiles, err := LoadProfilesFromFile(path)
	if err != nil {
		t.Fatalf("Missing file should load defaults: %v", err)
	}
	if _, ok := profiles.Find("default"); !ok {
		t.Fatal("Expected built-in default profile")
	}

	custom := Default()
	custom.Count = 20
	if err := profiles.Add("twenty", custom); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := profiles.Add("twenty", custom); err == nil {
		t.Error("Duplicate profile should be rejected")
	}
	if err := profiles.Add("", custom); err == nil {
		t.Error("Empty name should be rejected")
	}

	if err := SaveProfilesToFile(profiles, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := LoadProfilesFromFile(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	got, ok := reloaded.Find("twenty")
	if !ok || got.Count != 20 {
		t.Fatalf("Expected profile twenty with count 20, got %+v", got)
	}

	if !reloaded.Remove("twenty") {
		t.Error("Remove should report the profile existed")
	}
	if reloaded.Remove("twenty") {
		t.Error("Second remove should report nothing removed")
	}

	names := reloaded.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Names not sorted: %v", names)
		}
	}
}

func TestProfilesPathUsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := ProfilesPath()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(home, DirName, "profiles.yaml")
	if path != want {
		t.Errorf("Expected %s, got %s", want, path)
	}
}
