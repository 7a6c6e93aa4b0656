package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"quiz-score-service/internal/app"
	"quiz-score-service/internal/domain"
)

// userIDHeader carries the pre-authenticated user identity. Token issuance
// and validation live in an upstream auth layer; this service only trusts
// the header it is handed.
const userIDHeader = "X-User-ID"

// RESTHandler exposes the quiz use cases over JSON HTTP.
type RESTHandler struct {
	service *app.QuizService
}

func NewRESTHandler(service *app.QuizService) *RESTHandler {
	return &RESTHandler{service: service}
}

// Register mounts all REST routes on the mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /quizzes", h.listQuizzes)
	mux.HandleFunc("GET /quizzes/{id}", h.getQuiz)
	mux.HandleFunc("POST /quizzes/{id}/submit", h.submitQuiz)
	mux.HandleFunc("GET /me/stats", h.userStats)
	mux.HandleFunc("GET /me/attempts", h.userAttempts)
}

type submitRequest struct {
	// Keys are string-encoded question ids, values the selected answer ids.
	Answers   map[string][]int64 `json:"answers"`
	StartedAt string             `json:"started_at,omitempty"` // RFC 3339
}

type submitResponse struct {
	AttemptID      int64                   `json:"attempt_id"`
	Score          float64                 `json:"score"`
	EarnedPoints   int                     `json:"earned_points"`
	TotalPoints    int                     `json:"total_points"`
	ElapsedSeconds *int64                  `json:"elapsed_seconds,omitempty"`
	Results        []domain.QuestionResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *RESTHandler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *RESTHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, domain.ErrQuizNotFound)
		return
	}
	quiz, err := h.service.GetQuiz(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *RESTHandler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := trustedUser(w, r)
	if !ok {
		return
	}
	quizID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, domain.ErrQuizNotFound)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	answers, err := decodeAnswers(req.Answers)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var startedAt time.Time
	if req.StartedAt != "" {
		startedAt, err = time.Parse(time.RFC3339, req.StartedAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "started_at must be RFC 3339"})
			return
		}
	}

	attempt, err := h.service.Submit(r.Context(), userID, quizID, answers, startedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		AttemptID:      attempt.ID,
		Score:          attempt.Score,
		EarnedPoints:   attempt.EarnedPoints,
		TotalPoints:    attempt.TotalPoints,
		ElapsedSeconds: attempt.ElapsedSeconds,
		Results:        attempt.Results,
	})
}

func (h *RESTHandler) userStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := trustedUser(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *RESTHandler) userAttempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := trustedUser(w, r)
	if !ok {
		return
	}
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	attempts, err := h.service.RecentAttempts(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// decodeAnswers converts the wire form (string-encoded question ids) into the
// domain submission map.
func decodeAnswers(wire map[string][]int64) (domain.SubmittedAnswerSet, error) {
	answers := make(domain.SubmittedAnswerSet, len(wire))
	for key, ids := range wire {
		questionID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, errors.New("answer keys must be question ids")
		}
		answers[questionID] = ids
	}
	return answers, nil
}

func trustedUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, domain.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSubmission):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrPersistence):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}
