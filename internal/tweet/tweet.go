// Package tweet 实现推文生成/改写服务：组装提示词、调用 LLM、修正长度。
//
// 单次尝试、失败即上抛：不重试、不校验锁定串是否被保留。
package tweet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"inkwell/internal/diag"
	"inkwell/pkg/contract"
	ptw "inkwell/plugins/prompt/tweet"
)

// 推文串数量约束。
const (
	DefaultThreadCount = 5
	MinThreadCount     = 2
	MaxThreadCount     = 20
)

const comp = "tweet"

// Service 无状态、并发安全；LLM 由组合根注入并共享。
type Service struct {
	LLM     contract.LLMClient
	Builder *ptw.Builder
	Logger  *diag.Logger
	// DefaultThreadCount: CreateThread 未指定数量时使用；<=0 取包级默认值。
	DefaultThreadCount int
}

// New 构造服务；builder 为空时使用默认 280 字上限。
func New(llm contract.LLMClient, builder *ptw.Builder, logger *diag.Logger) *Service {
	if builder == nil {
		builder = ptw.New(nil)
	}
	return &Service{LLM: llm, Builder: builder, Logger: logger}
}

// MaxLength 返回生效的长度上限。
func (s *Service) MaxLength() int { return s.Builder.MaxLength() }

// CreateInput: 首稿。
type CreateInput struct {
	Idea string `json:"idea"`
}

// EditInput: 保留锁定串的整体改写。
type EditInput struct {
	Previous string   `json:"previous"`
	Locked   []string `json:"locked"`
	Idea     string   `json:"idea,omitempty"`
}

// TargetInput: 单目标改写。
type TargetInput struct {
	Previous  string             `json:"previous"`
	Target    string             `json:"target"`
	Operation contract.Operation `json:"operation"`
	Locked    []string           `json:"locked,omitempty"`
	Idea      string             `json:"idea,omitempty"`
}

// ThreadInput: 推文串。Count 为 0 时取默认值。
type ThreadInput struct {
	Idea  string `json:"idea"`
	Count int    `json:"count,omitempty"`
	Style string `json:"style,omitempty"`
}

// Result: 单条推文结果。
type Result struct {
	Tweet string `json:"tweet"`
}

// ThreadResult: 推文串结果。
type ThreadResult struct {
	Tweets []ptw.ThreadTweet `json:"tweets"`
}

func invalid(field, why string) error {
	return fmt.Errorf("tweet: %s %s: %w", field, why, contract.ErrInvalidInput)
}

// Create 根据主题生成首稿。
func (s *Service) Create(ctx context.Context, in CreateInput) (Result, error) {
	if strings.TrimSpace(in.Idea) == "" {
		return Result{}, invalid("idea", "is required")
	}
	return s.generate(ctx, "create", s.Builder.Initial(in.Idea))
}

// EditWithLocks 在 Previous 基础上改写，提示模型逐字保留 Locked。
func (s *Service) EditWithLocks(ctx context.Context, in EditInput) (Result, error) {
	if in.Previous == "" {
		return Result{}, invalid("previous", "is required")
	}
	return s.generate(ctx, "edit", s.Builder.EditWithLocks(in.Previous, in.Locked, in.Idea))
}

// OperateOnTarget 对 Target 的第一次精确出现执行 rephrase/condense。
func (s *Service) OperateOnTarget(ctx context.Context, in TargetInput) (Result, error) {
	if in.Previous == "" {
		return Result{}, invalid("previous", "is required")
	}
	if in.Target == "" {
		return Result{}, invalid("target", "is required")
	}
	op, err := contract.ParseOperation(string(in.Operation))
	if err != nil {
		return Result{}, err
	}
	return s.generate(ctx, "target:"+string(op), s.Builder.TargetOperation(in.Previous, in.Target, op, in.Locked, in.Idea))
}

// CreateThread 以结构化输出生成推文串；每条独立截断。
func (s *Service) CreateThread(ctx context.Context, in ThreadInput) (ThreadResult, error) {
	if strings.TrimSpace(in.Idea) == "" {
		return ThreadResult{}, invalid("idea", "is required")
	}
	count := in.Count
	if count == 0 {
		count = s.DefaultThreadCount
		if count <= 0 {
			count = DefaultThreadCount
		}
	}
	if count < MinThreadCount || count > MaxThreadCount {
		return ThreadResult{}, invalid("count", fmt.Sprintf("must be in [%d,%d], got %d", MinThreadCount, MaxThreadCount, count))
	}

	tm := s.Logger.StartWithKV(comp, "thread", "", "thread", map[string]string{"count": strconv.Itoa(count)})
	raw, err := s.LLM.Invoke(ctx, s.Builder.ThreadPrompt(in.Idea, count, in.Style))
	if err != nil {
		tm.Fail("thread generation failed", err)
		return ThreadResult{}, fmt.Errorf("tweet thread: %w", err)
	}
	tweets, err := decodeThread(raw.Text)
	if err != nil {
		tm.Fail("thread decode failed", err)
		return ThreadResult{}, err
	}
	max := s.MaxLength()
	for i := range tweets {
		tweets[i].Text = s.enforce(tweets[i].Text, max)
	}
	tm.Finish("ok", int64(len(tweets)))
	return ThreadResult{Tweets: tweets}, nil
}

// generate: 单次调用 + 长度修正。
func (s *Service) generate(ctx context.Context, subject, prompt string) (Result, error) {
	tm := s.Logger.StartWith(comp, "generate", "", subject)
	raw, err := s.LLM.Invoke(ctx, contract.TextPrompt(prompt))
	if err != nil {
		tm.Fail("generation failed", err)
		return Result{}, fmt.Errorf("tweet %s: %w", subject, err)
	}
	out := s.enforce(raw.Text, s.MaxLength())
	tm.Finish("ok", int64(utf8.RuneCountInString(out)))
	return Result{Tweet: out}, nil
}

func (s *Service) enforce(text string, max int) string {
	out := EnforceLength(text, max)
	if len(out) != len(text) {
		s.Logger.Warn(comp, "output truncated", map[string]string{
			"from": strconv.Itoa(utf8.RuneCountInString(text)),
			"to":   strconv.Itoa(max),
		})
	}
	return out
}

// decodeThread 严格解码 {tweets:[{text}]}；允许外层 ```json 代码块包裹。
// 空数组或空文本视为响应无效。
func decodeThread(s string) ([]ptw.ThreadTweet, error) {
	var res ptw.ThreadResult
	dec := json.NewDecoder(bytes.NewReader([]byte(stripFences(s))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("tweet thread decode: %v: %w", err, contract.ErrResponseInvalid)
	}
	if len(res.Tweets) == 0 {
		return nil, fmt.Errorf("tweet thread: no tweets: %w", contract.ErrResponseInvalid)
	}
	for i, t := range res.Tweets {
		if strings.TrimSpace(t.Text) == "" {
			return nil, fmt.Errorf("tweet thread: tweet %d empty: %w", i+1, contract.ErrResponseInvalid)
		}
	}
	return res.Tweets, nil
}

// stripFences 去除 Markdown 代码块围栏（部分兼容网关会在 JSON 外包一层）。
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
