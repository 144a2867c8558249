// Package tutor 实现阅读辅导服务：摘要评估、再评估、范例摘要与问答。
//
// 笔记统一经 contract.Normalize 处理；含图片时提示词改为会话形态：
// 文本提示词作为 system 消息，user 消息携带文本与图片。
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"inkwell/internal/diag"
	"inkwell/pkg/contract"
	ptu "inkwell/plugins/prompt/tutor"
)

// DefaultExtendedMaxTokens: 完整版范例摘要的输出上限。
const DefaultExtendedMaxTokens = 8192

const comp = "tutor"

// Variant: 范例摘要版本。
type Variant string

const (
	VariantConcise      Variant = "concise"
	VariantExtended     Variant = "extended"
	VariantExtendedText Variant = "extended_text"
)

// ParseVariant 解析版本名；空串视为 concise。
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VariantConcise, nil
	case VariantConcise, VariantExtended, VariantExtendedText:
		return v, nil
	default:
		return "", fmt.Errorf("variant %q: %w", s, contract.ErrInvalidInput)
	}
}

// Service 无状态；LLM 在组合根构造后共享。
type Service struct {
	LLM    contract.LLMClient
	Logger *diag.Logger
	// ExtendedMaxTokens: <=0 取 DefaultExtendedMaxTokens。
	ExtendedMaxTokens int
}

// New 构造服务。
func New(llm contract.LLMClient, logger *diag.Logger) *Service {
	return &Service{LLM: llm, Logger: logger, ExtendedMaxTokens: DefaultExtendedMaxTokens}
}

// PreviousAttempt: 再评估输入中的一次历史尝试。
type PreviousAttempt struct {
	Notes    contract.NotesField `json:"notes"`
	Score    float64             `json:"score"`
	Feedback string              `json:"feedback"`
}

// AnalyzeInput: 首次评估。
type AnalyzeInput struct {
	Chapter string              `json:"chapterText"`
	Notes   contract.NotesField `json:"userNotes"`
}

// ReanalyzeInput: 再评估。
type ReanalyzeInput struct {
	Chapter  string              `json:"chapterText"`
	Notes    contract.NotesField `json:"userNotes"`
	Previous []PreviousAttempt   `json:"previousAttempts"`
}

// IdealInput: 范例摘要。
type IdealInput struct {
	Chapter  string   `json:"chapterText"`
	Attempts []string `json:"userAttempts"`
	Variant  Variant  `json:"variant,omitempty"`
}

// AnswerInput: 问答。
type AnswerInput struct {
	Chapter  string              `json:"chapterText"`
	Notes    contract.NotesField `json:"userNotes"`
	History  []ptu.Turn          `json:"conversationHistory"`
	Question string              `json:"question"`
}

// IdealPair: 简版与完整版范例。
type IdealPair struct {
	Concise  ptu.IdealSummary `json:"concise"`
	Extended ptu.IdealSummary `json:"extended"`
}

func requireChapter(ch string) error {
	if strings.TrimSpace(ch) == "" {
		return fmt.Errorf("tutor: chapterText is required: %w", contract.ErrInvalidInput)
	}
	return nil
}

// Analyze 评估摘要。
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (ptu.Analysis, error) {
	if err := requireChapter(in.Chapter); err != nil {
		return ptu.Analysis{}, err
	}
	mc := contract.Normalize(in.Notes.UserNotes)
	p, err := withImages(ptu.BuildAnalysis(in.Chapter, mc.Text), mc)
	if err != nil {
		return ptu.Analysis{}, err
	}
	var out ptu.Analysis
	if err := s.structured(ctx, "analyze", ptu.NameAnalysis, p, ptu.AnalysisSchema(), &out); err != nil {
		return ptu.Analysis{}, err
	}
	return out, validateAnalysis(out)
}

// Reanalyze 结合历史尝试再评估；历史笔记只取文本。
func (s *Service) Reanalyze(ctx context.Context, in ReanalyzeInput) (ptu.Reanalysis, error) {
	if err := requireChapter(in.Chapter); err != nil {
		return ptu.Reanalysis{}, err
	}
	prev := make([]ptu.Attempt, len(in.Previous))
	for i, a := range in.Previous {
		prev[i] = ptu.Attempt{Notes: contract.NotesText(a.Notes.UserNotes), Score: a.Score, Feedback: a.Feedback}
	}
	mc := contract.Normalize(in.Notes.UserNotes)
	p, err := withImages(ptu.BuildReanalysis(in.Chapter, mc.Text, prev), mc)
	if err != nil {
		return ptu.Reanalysis{}, err
	}
	var out ptu.Reanalysis
	if err := s.structured(ctx, "reanalyze", ptu.NameReanalysis, p, ptu.ReanalysisSchema(), &out); err != nil {
		return ptu.Reanalysis{}, err
	}
	return out, validateAnalysis(out.Analysis)
}

// IdealSummary 生成指定版本的范例摘要。
// extended 使用结构化输出并提高输出上限；extended_text 使用纯文本生成。
func (s *Service) IdealSummary(ctx context.Context, in IdealInput) (ptu.IdealSummary, error) {
	if err := requireChapter(in.Chapter); err != nil {
		return ptu.IdealSummary{}, err
	}
	v, err := ParseVariant(string(in.Variant))
	if err != nil {
		return ptu.IdealSummary{}, err
	}
	var out ptu.IdealSummary
	switch v {
	case VariantExtendedText:
		tm := s.Logger.StartWith(comp, "ideal", "", string(v))
		raw, err := s.LLM.Invoke(ctx, contract.TextPrompt(ptu.BuildIdealExtendedText(in.Chapter, in.Attempts)))
		if err != nil {
			tm.Fail("ideal summary failed", err)
			return out, fmt.Errorf("tutor ideal: %w", err)
		}
		tm.Finish("ok", int64(len(raw.Text)))
		out.IdealSummary = raw.Text
	case VariantExtended:
		p := contract.Tuned{Prompt: contract.TextPrompt(ptu.BuildIdealExtended(in.Chapter, in.Attempts)), MaxOutputTokens: s.extendedMax()}
		err = s.structured(ctx, "ideal:"+string(v), ptu.NameIdealSummary, p, ptu.IdealSummarySchema(), &out)
	default:
		p := contract.TextPrompt(ptu.BuildIdeal(in.Chapter, in.Attempts))
		err = s.structured(ctx, "ideal:"+string(v), ptu.NameIdealSummary, p, ptu.IdealSummarySchema(), &out)
	}
	if err != nil {
		return ptu.IdealSummary{}, err
	}
	if strings.TrimSpace(out.IdealSummary) == "" {
		return ptu.IdealSummary{}, fmt.Errorf("tutor ideal: empty summary: %w", contract.ErrResponseInvalid)
	}
	return out, nil
}

// IdealSummaries 并发生成简版与完整版；任一失败即返回该错误并取消另一路。
func (s *Service) IdealSummaries(ctx context.Context, chapter string, attempts []string) (IdealPair, error) {
	var pair IdealPair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.IdealSummary(gctx, IdealInput{Chapter: chapter, Attempts: attempts, Variant: VariantConcise})
		pair.Concise = r
		return err
	})
	g.Go(func() error {
		r, err := s.IdealSummary(gctx, IdealInput{Chapter: chapter, Attempts: attempts, Variant: VariantExtended})
		pair.Extended = r
		return err
	})
	if err := g.Wait(); err != nil {
		return IdealPair{}, err
	}
	return pair, nil
}

// Answer 回答关于章节/笔记的问题（纯文本生成）。
// 含图片时：system 为问答提示词，随后是历史轮次，最后一条 user 消息携带问题与图片。
func (s *Service) Answer(ctx context.Context, in AnswerInput) (ptu.Answer, error) {
	if err := requireChapter(in.Chapter); err != nil {
		return ptu.Answer{}, err
	}
	if strings.TrimSpace(in.Question) == "" {
		return ptu.Answer{}, fmt.Errorf("tutor: question is required: %w", contract.ErrInvalidInput)
	}
	for i, t := range in.History {
		if t.Role != contract.RoleUser && t.Role != contract.RoleAssistant {
			return ptu.Answer{}, fmt.Errorf("tutor: history[%d] role %q: %w", i, t.Role, contract.ErrInvalidInput)
		}
	}
	mc := contract.Normalize(in.Notes.UserNotes)
	text := ptu.BuildConversation(in.Chapter, mc.Text, in.History, in.Question)
	var p contract.Prompt = contract.TextPrompt(text)
	if len(mc.Images) > 0 {
		imgs, err := decodeImages(mc.Images)
		if err != nil {
			return ptu.Answer{}, err
		}
		chat := contract.ChatPrompt{{Role: contract.RoleSystem, Content: text}}
		for _, t := range in.History {
			chat = append(chat, contract.Message{Role: t.Role, Content: t.Content})
		}
		chat = append(chat, contract.Message{Role: contract.RoleUser, Content: in.Question, Images: imgs})
		p = chat
	}

	tm := s.Logger.StartWith(comp, "answer", "", "answer")
	raw, err := s.LLM.Invoke(ctx, p)
	if err != nil {
		tm.Fail("answer failed", err)
		return ptu.Answer{}, fmt.Errorf("tutor answer: %w", err)
	}
	tm.Finish("ok", int64(len(raw.Text)))
	return ptu.Answer{Answer: raw.Text}, nil
}

func (s *Service) extendedMax() int {
	if s.ExtendedMaxTokens > 0 {
		return s.ExtendedMaxTokens
	}
	return DefaultExtendedMaxTokens
}

// structured: 单次结构化调用 + 严格解码。
func (s *Service) structured(ctx context.Context, subject, name string, p contract.Prompt, schema json.RawMessage, out any) error {
	tm := s.Logger.StartWith(comp, "structured", "", subject)
	raw, err := s.LLM.Invoke(ctx, contract.StructuredPrompt{Name: name, Prompt: p, Schema: schema})
	if err != nil {
		tm.Fail(subject+" failed", err)
		return fmt.Errorf("tutor %s: %w", subject, err)
	}
	if err := decodeStrict(raw.Text, out); err != nil {
		tm.Fail(subject+" decode failed", err)
		return fmt.Errorf("tutor %s: %w", subject, err)
	}
	tm.Finish("ok", int64(len(raw.Text)))
	return nil
}

func decodeStrict(text string, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripFences(text))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode: %v: %w", err, contract.ErrResponseInvalid)
	}
	return nil
}

// 分数超出 0..100 不做截断，直接视为响应无效。
func validateAnalysis(a ptu.Analysis) error {
	if a.Score < 0 || a.Score > 100 {
		return fmt.Errorf("tutor: score %s out of range: %w", ptu.FormatScore(a.Score), contract.ErrResponseInvalid)
	}
	if strings.TrimSpace(a.Feedback) == "" {
		return fmt.Errorf("tutor: empty feedback: %w", contract.ErrResponseInvalid)
	}
	return nil
}

func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
}

// withImages: 无图片时返回纯文本提示词；否则转为 system + user(文本+图片) 会话。
func withImages(prompt string, mc contract.MultimodalContent) (contract.Prompt, error) {
	if len(mc.Images) == 0 {
		return contract.TextPrompt(prompt), nil
	}
	imgs, err := decodeImages(mc.Images)
	if err != nil {
		return nil, err
	}
	return contract.ChatPrompt{
		{Role: contract.RoleSystem, Content: prompt},
		{Role: contract.RoleUser, Content: mc.Text, Images: imgs},
	}, nil
}

func decodeImages(atts []contract.ImageAttachment) ([]contract.Image, error) {
	out := make([]contract.Image, 0, len(atts))
	for _, a := range atts {
		img, err := contract.DecodeDataURL(a.Data)
		if err != nil {
			return nil, fmt.Errorf("tutor: image %q: %w", a.ID, err)
		}
		out = append(out, img)
	}
	return out, nil
}
