package tutor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/pkg/contract"
	ptu "inkwell/plugins/prompt/tutor"
)

// Attempt: 一次已评估的提交。
type Attempt struct {
	ID           string              `json:"id"`
	Notes        contract.NotesField `json:"notes"`
	Score        float64             `json:"score"`
	Feedback     string              `json:"feedback"`
	Strengths    []string            `json:"strengths"`
	Improvements []string            `json:"improvements"`
	Timestamp    time.Time           `json:"timestamp"`
}

// History: 单个会话内的评估历史，仅存于内存。并发安全。
type History struct {
	mu       sync.Mutex
	clk      func() time.Time
	attempts []Attempt
}

// NewHistory: clk 为空时使用 time.Now。
func NewHistory(clk func() time.Time) *History {
	if clk == nil {
		clk = time.Now
	}
	return &History{clk: clk}
}

// Add 记录一次评估结果；分配 ID 并打时间戳，返回已入库的副本。
func (h *History) Add(notes contract.UserNotes, a ptu.Analysis) Attempt {
	at := Attempt{
		ID:           uuid.NewString(),
		Notes:        contract.NotesField{UserNotes: notes},
		Score:        a.Score,
		Feedback:     a.Feedback,
		Strengths:    append([]string(nil), a.Strengths...),
		Improvements: append([]string(nil), a.Improvements...),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	at.Timestamp = h.clk()
	h.attempts = append(h.attempts, at)
	return at
}

// Clear 清空历史。
func (h *History) Clear() {
	h.mu.Lock()
	h.attempts = nil
	h.mu.Unlock()
}

// Len 返回尝试次数。
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attempts)
}

// Attempts 返回全部尝试（按时间先后）的副本。
func (h *History) Attempts() []Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Attempt(nil), h.attempts...)
}

// Latest 返回最近一次尝试；为空时 ok=false。
func (h *History) Latest() (Attempt, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.attempts) == 0 {
		return Attempt{}, false
	}
	return h.attempts[len(h.attempts)-1], true
}

// Previous 以再评估所需的形态返回全部尝试。
func (h *History) Previous() []PreviousAttempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]PreviousAttempt, len(h.attempts))
	for i, a := range h.attempts {
		out[i] = PreviousAttempt{Notes: a.Notes, Score: a.Score, Feedback: a.Feedback}
	}
	return out
}

// NotesTexts 返回各次尝试的笔记文本，供范例摘要提示词使用。
func (h *History) NotesTexts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.attempts))
	for i, a := range h.attempts {
		out[i] = contract.NotesText(a.Notes.UserNotes)
	}
	return out
}
