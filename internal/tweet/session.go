package tweet

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"inkwell/internal/segment"
	"inkwell/pkg/contract"
)

// Session 为单个编辑会话的内存状态：当前草稿 + 锁定集合。
// 换稿不清空锁定；不在草稿中的锁定在切分时被忽略。Reset 后全部丢弃，从不持久化。
type Session struct {
	svc *Service

	mu    sync.Mutex
	draft string
	locks []string
}

// NewSession 绑定服务创建会话；svc 可为 nil（仅使用本地编辑能力）。
func NewSession(svc *Service) *Session { return &Session{svc: svc} }

// Draft 返回当前草稿。
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft 替换草稿（例如用户手动编辑）。
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Lock 将 text 加入锁定集合；text 必须非空且为当前草稿的子串。重复加入无副作用。
func (s *Session) Lock(text string) error {
	if text == "" {
		return fmt.Errorf("lock: empty text: %w", contract.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.Contains(s.draft, text) {
		return fmt.Errorf("lock %q: not in draft: %w", text, contract.ErrInvalidInput)
	}
	for _, l := range s.locks {
		if l == text {
			return nil
		}
	}
	s.locks = append(s.locks, text)
	return nil
}

// Unlock 从锁定集合移除 text；不存在时无操作。
func (s *Session) Unlock(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = without(s.locks, text)
}

// Locks 返回锁定集合副本（加入顺序）。
func (s *Session) Locks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.locks...)
}

// Segments 按当前锁定集合切分草稿。
func (s *Session) Segments() []contract.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return segment.Compute(s.draft, s.locks)
}

// Reset 丢弃草稿与锁定。
func (s *Session) Reset() {
	s.mu.Lock()
	s.draft = ""
	s.locks = nil
	s.mu.Unlock()
}

// Submit: 草稿为空白时生成首稿，否则在保留锁定的前提下改写；成功后替换草稿。
// 生成期间不持锁，失败时草稿保持不变。
func (s *Session) Submit(ctx context.Context, idea string) (Result, error) {
	if s.svc == nil {
		return Result{}, fmt.Errorf("session: no service: %w", contract.ErrInvalidInput)
	}
	draft, locks := s.snapshot()
	var (
		res Result
		err error
	)
	if strings.TrimSpace(draft) == "" {
		res, err = s.svc.Create(ctx, CreateInput{Idea: idea})
	} else {
		res, err = s.svc.EditWithLocks(ctx, EditInput{Previous: draft, Locked: locks, Idea: idea})
	}
	if err != nil {
		return Result{}, err
	}
	s.SetDraft(res.Tweet)
	return res, nil
}

// Operate 对草稿中的 target 执行单目标操作；target 自身不计入锁定列表。
func (s *Session) Operate(ctx context.Context, target string, op contract.Operation) (Result, error) {
	if s.svc == nil {
		return Result{}, fmt.Errorf("session: no service: %w", contract.ErrInvalidInput)
	}
	draft, locks := s.snapshot()
	res, err := s.svc.OperateOnTarget(ctx, TargetInput{
		Previous:  draft,
		Target:    target,
		Operation: op,
		Locked:    without(locks, target),
	})
	if err != nil {
		return Result{}, err
	}
	s.SetDraft(res.Tweet)
	return res, nil
}

func (s *Session) snapshot() (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, append([]string(nil), s.locks...)
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, l := range list {
		if l != v {
			out = append(out, l)
		}
	}
	return out
}
