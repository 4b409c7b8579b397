package stream

// Resolution 捕获帧的像素尺寸
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FrameMetadata 视频帧的可选采集参数
type FrameMetadata struct {
	FPS        int         `json:"fps,omitempty"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

// Frame 一帧编码后的视频数据（base64）
type Frame struct {
	Type     string         `json:"type"` // "video"
	Data     string         `json:"data"`
	Metadata *FrameMetadata `json:"metadata,omitempty"`
}

// AudioMetadata 音频块的采集参数
type AudioMetadata struct {
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Format     string `json:"format"`  // pcm, opus, aac
	Bitrate    int    `json:"bitrate"` // bits per sample
	Duration   int64  `json:"duration,omitempty"` // milliseconds
}

// Audio 一段编码后的音频数据（base64）
type Audio struct {
	Type     string         `json:"type"` // "audio"
	Data     string         `json:"data"`
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}
