package stream

import "time"

// VideoResult 识别出的影视内容。除 ID 外所有字段都是可选的，
// 核心逻辑不得假设任何字段一定存在。
type VideoResult struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	PosterURL    string    `json:"posterUrl,omitempty"`
	Year         int       `json:"year,omitempty"`
	Director     string    `json:"director,omitempty"`
	Genre        string    `json:"genre,omitempty"`
	Description  string    `json:"description,omitempty"`
	TrailerURL   string    `json:"trailerUrl,omitempty"`
	IMDBRating   float64   `json:"imdbRating,omitempty"`
	Duration     string    `json:"duration,omitempty"`
	IdentifiedAt time.Time `json:"identifiedAt,omitempty"`
	Source       string    `json:"source,omitempty"` // camera, screen
}

// Response 后端针对一次会话推送的识别结果
type Response struct {
	Success        bool          `json:"success"`
	SessionID      string        `json:"sessionId"`
	Result         *VideoResult  `json:"result,omitempty"`
	Confidence     float64       `json:"confidence,omitempty"`
	ProcessingTime int64         `json:"processingTime,omitempty"` // milliseconds
	Alternatives   []VideoResult `json:"alternatives,omitempty"`
	Error          string        `json:"error,omitempty"`
}
