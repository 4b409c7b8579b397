package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovelo/moovy-go/internal/config"
	"github.com/ovelo/moovy-go/internal/model/stream"
	"github.com/ovelo/moovy-go/internal/service/identify"
	streamsvc "github.com/ovelo/moovy-go/internal/service/stream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	endpoint := flag.String("url", cfg.WS.URL, "识别后端 WebSocket 地址")
	duration := flag.Duration("duration", 15*time.Second, "会话最长持续时间")
	stopOnResult := flag.Bool("stop-on-result", true, "收到识别结果后立即结束会话")
	flag.Parse()

	opts := streamsvc.Options{
		ReconnectInterval:    cfg.WS.ReconnectInterval,
		MaxReconnectAttempts: cfg.WS.MaxReconnectAttempts,
	}
	client := streamsvc.NewClient(*endpoint, opts)

	var svcOpts []identify.Option
	if *stopOnResult {
		svcOpts = append(svcOpts, identify.WithStopOnResult())
	}
	svc := identify.NewService(client, cfg.Video, cfg.Audio, svcOpts...)
	tracker := identify.NewTracker(svc)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	done := make(chan struct{})
	results := make(chan stream.Response, 1)
	producerCtx, stopProducers := context.WithCancel(ctx)
	defer stopProducers()

	callbacks := identify.Callbacks{
		OnSessionStart: func(sessionID string) {
			log.Printf("会话开始 session=%s", sessionID)
		},
		OnFrameProducerReady: func(push func(base64 string)) {
			go produceFrames(producerCtx, cfg.Video, push)
		},
		OnAudioProducerReady: func(push func(base64 string)) {
			go produceAudio(producerCtx, cfg.Audio, push)
		},
		OnProgress: func(progress float64, message string) {
			log.Printf("识别进度 %.0f%% %s", progress*100, message)
		},
		OnResult: func(resp stream.Response) {
			printResult(resp)
			select {
			case results <- resp:
			default:
			}
		},
		OnError: func(message string) {
			log.Printf("[ERROR] 后端报错: %s", message)
		},
		OnSessionEnd: func(sessionID string) {
			log.Printf("会话结束 session=%s", sessionID)
			close(done)
		},
	}

	session, err := tracker.Start(ctx, callbacks)
	if err != nil {
		log.Fatalf("启动会话失败: %v", err)
	}
	log.Printf("已连接，占位 id 被替换为 %s", session.SessionID)

wait:
	for {
		select {
		case <-done:
			break wait
		case <-results:
			if *stopOnResult {
				break wait
			}
		case <-ctx.Done():
			log.Println("达到时长上限，主动停止")
			break wait
		}
	}

	stopProducers()
	tracker.Stop()

	stats := tracker.Stats()
	log.Printf("统计: session=%s frames=%d audio=%d duration=%dms status=%s",
		stats.SessionID, stats.FramesSent, stats.AudioSent, stats.DurationMillis, stats.ConnectionStatus)
}

// produceFrames 以配置帧率推送合成视频帧。
func produceFrames(ctx context.Context, video config.Video, push func(string)) {
	interval := time.Second / time.Duration(video.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			push(syntheticPayload(4096))
		}
	}
}

// produceAudio 以缓冲区时长节奏推送合成音频块。
func produceAudio(ctx context.Context, audio config.Audio, push func(string)) {
	chunkMillis := audio.BufferSize * 1000 / audio.SampleRate
	if chunkMillis <= 0 {
		chunkMillis = 100
	}
	ticker := time.NewTicker(time.Duration(chunkMillis) * time.Millisecond)
	defer ticker.Stop()

	bytesPerChunk := audio.BufferSize * audio.Channels * audio.Bits / 8

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			push(syntheticPayload(bytesPerChunk))
		}
	}
}

func syntheticPayload(size int) string {
	if size <= 0 {
		size = 320
	}
	buf := make([]byte, size)
	rand.Read(buf)
	return base64.StdEncoding.EncodeToString(buf)
}

func printResult(resp stream.Response) {
	if !resp.Success {
		log.Printf("识别失败: %s", resp.Error)
		return
	}
	pretty, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		log.Printf("识别成功但序列化失败: %v", err)
		return
	}
	fmt.Printf("识别结果 (confidence=%.2f, %dms):\n%s\n", resp.Confidence, resp.ProcessingTime, pretty)
}
