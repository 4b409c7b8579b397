package config

import (
	"testing"
	"time"
)

// configEnvKeys 列出 Load 读取的全部环境变量，测试前清空以获得确定的默认值。
var configEnvKeys = []string{
	"PORT",
	"WS_URL",
	"WS_RECONNECT_INTERVAL_MS",
	"WS_MAX_RECONNECT_ATTEMPTS",
	"VIDEO_FPS",
	"VIDEO_WIDTH",
	"VIDEO_HEIGHT",
	"VIDEO_QUALITY",
	"AUDIO_SAMPLE_RATE",
	"AUDIO_CHANNELS",
	"AUDIO_BITS",
	"AUDIO_BUFFER_SIZE",
	"AUDIO_FORMAT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected addr :8000, got %s", cfg.Server.Addr)
	}
	if cfg.WS.URL != "ws://localhost:8000/v1/ws/identify" {
		t.Errorf("unexpected default ws url: %s", cfg.WS.URL)
	}
	if cfg.WS.ReconnectInterval != 3*time.Second {
		t.Errorf("expected 3s reconnect interval, got %s", cfg.WS.ReconnectInterval)
	}
	if cfg.WS.MaxReconnectAttempts != 0 {
		t.Errorf("auto reconnect must default to disabled, got %d", cfg.WS.MaxReconnectAttempts)
	}
	if cfg.Video.FPS != 1 || cfg.Video.Width != 1080 || cfg.Video.Height != 1920 || cfg.Video.Quality != 80 {
		t.Errorf("unexpected video defaults: %+v", cfg.Video)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.Bits != 16 || cfg.Audio.BufferSize != 800 || cfg.Audio.Format != "pcm" {
		t.Errorf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if !cfg.Video.Valid() || !cfg.Audio.Valid() {
		t.Error("defaults must form a valid capture configuration")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("WS_URL", "ws://identify.example.com/v1/ws/identify")
	t.Setenv("WS_RECONNECT_INTERVAL_MS", "500")
	t.Setenv("WS_MAX_RECONNECT_ATTEMPTS", "5")
	t.Setenv("VIDEO_FPS", "2")
	t.Setenv("AUDIO_FORMAT", "opus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
	if cfg.WS.URL != "ws://identify.example.com/v1/ws/identify" {
		t.Errorf("ws url override ignored: %s", cfg.WS.URL)
	}
	if cfg.WS.ReconnectInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms interval, got %s", cfg.WS.ReconnectInterval)
	}
	if cfg.WS.MaxReconnectAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.WS.MaxReconnectAttempts)
	}
	if cfg.Video.FPS != 2 {
		t.Errorf("expected fps 2, got %d", cfg.Video.FPS)
	}
	if cfg.Audio.Format != "opus" {
		t.Errorf("expected opus format, got %s", cfg.Audio.Format)
	}
}

func TestLoadAcceptsFullListenAddr(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "127.0.0.1:8000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8000" {
		t.Errorf("full listen address must pass through, got %s", cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric interval", "WS_RECONNECT_INTERVAL_MS", "abc"},
		{"zero interval", "WS_RECONNECT_INTERVAL_MS", "0"},
		{"negative interval", "WS_RECONNECT_INTERVAL_MS", "-100"},
		{"negative attempts", "WS_MAX_RECONNECT_ATTEMPTS", "-1"},
		{"zero fps", "VIDEO_FPS", "0"},
		{"negative width", "VIDEO_WIDTH", "-1"},
		{"non numeric sample rate", "AUDIO_SAMPLE_RATE", "fast"},
		{"zero channels", "AUDIO_CHANNELS", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestLoadBlankEnvFallsBackToDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("WS_RECONNECT_INTERVAL_MS", "  ")
	t.Setenv("VIDEO_FPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WS.ReconnectInterval != 3*time.Second || cfg.Video.FPS != 1 {
		t.Errorf("blank values must fall back to defaults, got %+v", cfg)
	}
}
