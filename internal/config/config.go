package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个客户端与模拟后端的配置项。
type Config struct {
	Server Server
	WS     WS
	Video  Video
	Audio  Audio
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ws, err := loadWSConfig()
	if err != nil {
		return nil, err
	}

	video, err := loadVideoConfig()
	if err != nil {
		return nil, err
	}

	audio, err := loadAudioConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, WS: ws, Video: video, Audio: audio}, nil
}

// Server 描述模拟识别后端的 HTTP 服务配置。
type Server struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (Server, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return Server{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return Server{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return Server{Addr: ":" + port}, nil
}

// WS 描述识别后端 WebSocket 连接与重连策略。
type WS struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int // 0 表示禁用自动重连
}

func loadWSConfig() (WS, error) {
	interval := 3000
	if override, err := parseOptionalIntEnv("WS_RECONNECT_INTERVAL_MS"); err != nil {
		return WS{}, err
	} else if override != nil {
		if *override <= 0 {
			return WS{}, fmt.Errorf("WS_RECONNECT_INTERVAL_MS must be positive, got %d", *override)
		}
		interval = *override
	}

	attempts := 0
	if override, err := parseOptionalIntEnv("WS_MAX_RECONNECT_ATTEMPTS"); err != nil {
		return WS{}, err
	} else if override != nil {
		if *override < 0 {
			return WS{}, fmt.Errorf("WS_MAX_RECONNECT_ATTEMPTS must be non-negative, got %d", *override)
		}
		attempts = *override
	}

	return WS{
		URL:                  getEnvOrDefault("WS_URL", "ws://localhost:8000/v1/ws/identify"),
		ReconnectInterval:    time.Duration(interval) * time.Millisecond,
		MaxReconnectAttempts: attempts,
	}, nil
}

// Video 描述视频帧采集参数。
type Video struct {
	FPS     int
	Width   int
	Height  int
	Quality int
}

func loadVideoConfig() (Video, error) {
	fps, err := parseIntEnv("VIDEO_FPS", 1)
	if err != nil {
		return Video{}, err
	}
	width, err := parseIntEnv("VIDEO_WIDTH", 1080)
	if err != nil {
		return Video{}, err
	}
	height, err := parseIntEnv("VIDEO_HEIGHT", 1920)
	if err != nil {
		return Video{}, err
	}
	quality, err := parseIntEnv("VIDEO_QUALITY", 80)
	if err != nil {
		return Video{}, err
	}

	if fps <= 0 || width <= 0 || height <= 0 {
		return Video{}, fmt.Errorf("video capture parameters must be positive: fps=%d width=%d height=%d", fps, width, height)
	}

	return Video{FPS: fps, Width: width, Height: height, Quality: quality}, nil
}

// Valid 表示视频采集参数是否完整。
func (v Video) Valid() bool {
	return v.FPS > 0 && v.Width > 0 && v.Height > 0
}

// Audio 描述音频采集参数。
type Audio struct {
	SampleRate int
	Channels   int
	Bits       int
	BufferSize int
	Format     string
}

func loadAudioConfig() (Audio, error) {
	// 16kHz 单声道 16-bit PCM，约 100ms 一块，语音识别的折中取值
	sampleRate, err := parseIntEnv("AUDIO_SAMPLE_RATE", 16000)
	if err != nil {
		return Audio{}, err
	}
	channels, err := parseIntEnv("AUDIO_CHANNELS", 1)
	if err != nil {
		return Audio{}, err
	}
	bits, err := parseIntEnv("AUDIO_BITS", 16)
	if err != nil {
		return Audio{}, err
	}
	bufferSize, err := parseIntEnv("AUDIO_BUFFER_SIZE", 800)
	if err != nil {
		return Audio{}, err
	}

	if sampleRate <= 0 || channels <= 0 || bits <= 0 {
		return Audio{}, fmt.Errorf("audio capture parameters must be positive: rate=%d channels=%d bits=%d", sampleRate, channels, bits)
	}

	return Audio{
		SampleRate: sampleRate,
		Channels:   channels,
		Bits:       bits,
		BufferSize: bufferSize,
		Format:     getEnvOrDefault("AUDIO_FORMAT", "pcm"),
	}, nil
}

// Valid 表示音频采集参数是否完整。
func (a Audio) Valid() bool {
	return a.SampleRate > 0 && a.Channels > 0 && a.Bits > 0
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	override, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if override == nil {
		return defaultValue, nil
	}
	return *override, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
