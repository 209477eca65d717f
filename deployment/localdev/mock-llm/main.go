package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"
)

type responsesRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// The body mimics a model that wraps its JSON answer in prose, which the
// service's parser has to cut out.
const strategyBody = `다음은 요청하신 전략입니다.
{
  "strategy_cards": [
    {"title": "추천 전략 01 - 복귀 혜택", "headline": "즉각 혜택 제공", "desc": "단기 혜택으로 재방문을 유도", "bullets": ["혜택 중심 메시지", "유효기간 명확화"], "kpi_left_label": "이탈률", "kpi_left_value": 15, "kpi_left_direction": "down", "kpi_right_label": "반응률", "kpi_right_value": 22, "kpi_right_direction": "up"},
    {"title": "추천 전략 02 - 등급 유지", "headline": "등급 하락 예고", "desc": "카드 등급 유지 조건 안내", "bullets": ["잔여 실적 안내"], "kpi_left_label": "이탈률", "kpi_left_value": 9, "kpi_left_direction": "down", "kpi_right_label": "이용액", "kpi_right_value": 12, "kpi_right_direction": "up"}
  ],
  "channel_table": [
    {"channel": "Push", "score": 5, "message_point": "혜택 + 긴급성", "reason": "즉각 반응"},
    {"channel": "SMS", "score": "4", "message_point": "이탈 방지", "reason": "높은 도달률"},
    {"channel": "Email", "score": 3, "message_point": "정보성 콘텐츠", "reason": "장기 관계 유지"},
    {"channel": "In-app", "score": 7, "message_point": "행동 유도", "reason": "사용 흐름 연결"}
  ],
  "message_examples": [
    {"channel": "Push", "text": "지금 돌아오시면 포인트 2배 혜택을 드려요. 오늘까지!"},
    {"channel": "SMS", "text": "[카드] 고객님만을 위한 복귀 혜택이 도착했어요."}
  ]
}
이상입니다.`

func main() {
	addr := os.Getenv("MOCK_LLM_ADDR")
	if addr == "" {
		addr = ":8090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/responses", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]any{"error": map[string]string{"message": "missing api key"}})
			return
		}
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"error": map[string]string{"message": "model and input are required"}})
			return
		}
		writeJSON(w, map[string]any{
			"id":    "resp_mock",
			"model": req.Model,
			"output": []map[string]any{{
				"type": "message",
				"content": []map[string]string{
					{"type": "output_text", "text": strategyBody},
				},
			}},
		})
	})

	logger := log.New(log.Writer(), "llm-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    addr,
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on " + addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
