package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigDerivesBrokerURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	content := "mqtt:\n  host: broker.local\n  port: 8883\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.MQTT.BrokerURL != "tcp://broker.local:8883" {
		t.Fatalf("BrokerURL=%q, want tcp://broker.local:8883", cfg.MQTT.BrokerURL)
	}
}

func TestLoadConfigExplicitBrokerURLWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	content := "mqtt:\n  broker_url: ssl://secure.local:8883\n  host: ignored.local\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.MQTT.BrokerURL != "ssl://secure.local:8883" {
		t.Fatalf("BrokerURL=%q, want explicit url preserved", cfg.MQTT.BrokerURL)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.MQTT.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("BrokerURL=%q, want default broker", cfg.MQTT.BrokerURL)
	}
	if !strings.HasPrefix(cfg.MQTT.ClientID, "skillhost-") {
		t.Fatalf("ClientID=%q, want generated skillhost- prefix", cfg.MQTT.ClientID)
	}
	if cfg.SkillsDir != filepath.Join(dir, "skills.d") {
		t.Fatalf("SkillsDir=%q, want rooted skills.d", cfg.SkillsDir)
	}
	if cfg.TranscriptsDir != filepath.Join(dir, "data", "transcripts") {
		t.Fatalf("TranscriptsDir=%q, want rooted data/transcripts", cfg.TranscriptsDir)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level=%q, want info", cfg.Log.Level)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte("mqtt:\n  host: file.local\n"), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	t.Setenv("SKILL_MQTT_HOST", "env.local")
	t.Setenv("SKILL_MQTT_CLIENT_ID", "fixed-client")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.MQTT.Host != "env.local" {
		t.Fatalf("Host=%q, want env override", cfg.MQTT.Host)
	}
	if cfg.MQTT.ClientID != "fixed-client" {
		t.Fatalf("ClientID=%q, want fixed-client", cfg.MQTT.ClientID)
	}
}

func TestScanSkillManifests(t *testing.T) {
	dir := t.TempDir()
	disabled := "name: weather\nenabled: false\n"
	fallback := "name: fallback\noptions:\n  text: \"Pardon?\"\n"
	if err := os.WriteFile(filepath.Join(dir, "20-weather.yaml"), []byte(disabled), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "10-fallback.yaml"), []byte(fallback), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a manifest"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	manifests, err := ScanSkillManifests(dir)
	if err != nil {
		t.Fatalf("ScanSkillManifests error: %v", err)
	}
	if len(manifests) != 2 {
		t.Fatalf("manifests=%d, want 2", len(manifests))
	}
	if manifests[0].Name != "fallback" || manifests[1].Name != "weather" {
		t.Fatalf("order=%q,%q, want filename order", manifests[0].Name, manifests[1].Name)
	}
	if !manifests[0].IsEnabled() {
		t.Fatal("fallback should be enabled by default")
	}
	if manifests[1].IsEnabled() {
		t.Fatal("weather should be disabled")
	}
	if got := manifests[0].Option("text", "default"); got != "Pardon?" {
		t.Fatalf("Option(text)=%q, want Pardon?", got)
	}
	if got := manifests[0].Option("missing", "default"); got != "default" {
		t.Fatalf("Option(missing)=%q, want fallback value", got)
	}
}

func TestScanSkillManifestsMissingDir(t *testing.T) {
	manifests, err := ScanSkillManifests(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ScanSkillManifests error: %v", err)
	}
	if manifests != nil {
		t.Fatalf("manifests=%v, want nil for missing dir", manifests)
	}
}

func TestSkillManifestNameDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "timers.yaml"), []byte("options:\n  max: \"5\"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifests, err := ScanSkillManifests(dir)
	if err != nil {
		t.Fatalf("ScanSkillManifests error: %v", err)
	}
	if len(manifests) != 1 || manifests[0].Name != "timers" {
		t.Fatalf("manifests=%+v, want single manifest named timers", manifests)
	}
	if _, ok := FindSkillManifest(manifests, "timers"); !ok {
		t.Fatal("FindSkillManifest(timers) not found")
	}
}
