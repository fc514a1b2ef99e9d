package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Baud != 2_000_000 {
		t.Fatalf("default baud = %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeout != 100*time.Millisecond {
		t.Fatalf("default read timeout = %v", cfg.Serial.ReadTimeout)
	}
	if cfg.Replay.Speed != 1.0 || !cfg.Replay.Realtime {
		t.Fatalf("default replay = %+v", cfg.Replay)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firm.yaml")
	data := `
serial:
  port: /dev/ttyACM3
  baud: 115200
  read_timeout: 250ms
stream:
  udp_dest: 127.0.0.1:4000
  print_every: 10
replay:
  speed: 2.5
  realtime: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM3" || cfg.Serial.Baud != 115200 {
		t.Fatalf("serial = %+v", cfg.Serial)
	}
	if cfg.Serial.ReadTimeout != 250*time.Millisecond {
		t.Fatalf("read timeout = %v", cfg.Serial.ReadTimeout)
	}
	if cfg.Stream.UDPDest != "127.0.0.1:4000" || cfg.Stream.PrintEvery != 10 {
		t.Fatalf("stream = %+v", cfg.Stream)
	}
	if cfg.Replay.Speed != 2.5 || cfg.Replay.Realtime {
		t.Fatalf("replay = %+v", cfg.Replay)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firm.yaml")
	if err := os.WriteFile(path, []byte("serial:\n  port: /dev/ttyUSB0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	t.Setenv("FIRM_PORT", "/dev/ttyACM9")
	t.Setenv("FIRM_BAUD", "921600")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM9" {
		t.Fatalf("port = %q, env override lost", cfg.Serial.Port)
	}
	if cfg.Serial.Baud != 921600 {
		t.Fatalf("baud = %d, env override lost", cfg.Serial.Baud)
	}
}

func TestLoad_RejectsNegativeSpeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firm.yaml")
	if err := os.WriteFile(path, []byte("replay:\n  speed: -1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() accepted negative replay speed")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("Load() succeeded on missing file")
	}
}
