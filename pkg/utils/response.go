package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON 以给定状态码写出 JSON 负载。编码失败时状态码已经发出，
// 只能记录日志。
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[http] encode response failed: %v", err)
	}
}

// RespondError 写出统一格式的错误负载 {"error": message}。
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}
