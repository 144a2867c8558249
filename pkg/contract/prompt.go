package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt: 不透明载荷，由具体 PromptBuilder/LLMClient 配对解释。
// 已知形态：TextPrompt、ChatPrompt、StructuredPrompt、Tuned（可嵌套）。
type Prompt any

// 会话角色（最小集合）。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image: 内联图片（已解码的字节 + MIME）。
type Image struct {
	MIMEType string
	Data     []byte
}

// Message: 最小会话消息形状；Images 仅对 user 消息有意义。
type Message struct {
	Role    string
	Content string
	Images  []Image
}

// TextPrompt: 文本型提示词载荷。
type TextPrompt string

// ChatPrompt: 会话型提示词载荷（最小集合）。
type ChatPrompt []Message

// StructuredPrompt: 要求模型按 JSON Schema 返回的提示词。
// Prompt 为内层 TextPrompt 或 ChatPrompt；Schema 为原样 JSON Schema。
type StructuredPrompt struct {
	Name   string
	Prompt Prompt
	Schema json.RawMessage
}

// Tuned: 为单次调用附加生成参数（例如长文输出需要更大的输出上限）。
type Tuned struct {
	Prompt          Prompt
	MaxOutputTokens int
}

// Request: Resolve 展开后的调用描述，供 LLMClient 实现直接消费。
type Request struct {
	// Messages 恒为非空；TextPrompt 展开为单条 user 消息。
	Messages        []Message
	Text            bool // 原始形态是否为 TextPrompt
	SchemaName      string
	Schema          json.RawMessage
	MaxOutputTokens int
}

// Resolve 逐层展开 Tuned / StructuredPrompt，得到统一的调用描述。
// 未知形态或空会话返回 ErrInvalidInput。
func Resolve(p Prompt) (Request, error) {
	var req Request
	for depth := 0; depth < 8; depth++ {
		switch v := p.(type) {
		case Tuned:
			if v.MaxOutputTokens > 0 && req.MaxOutputTokens == 0 {
				req.MaxOutputTokens = v.MaxOutputTokens
			}
			p = v.Prompt
		case *Tuned:
			if v == nil {
				return Request{}, fmt.Errorf("prompt: nil tuned: %w", ErrInvalidInput)
			}
			p = *v
		case StructuredPrompt:
			if req.Schema == nil {
				req.SchemaName, req.Schema = v.Name, v.Schema
			}
			p = v.Prompt
		case *StructuredPrompt:
			if v == nil {
				return Request{}, fmt.Errorf("prompt: nil structured: %w", ErrInvalidInput)
			}
			p = *v
		case TextPrompt:
			req.Text = true
			req.Messages = []Message{{Role: RoleUser, Content: string(v)}}
			return req, nil
		case ChatPrompt:
			if len(v) == 0 {
				return Request{}, fmt.Errorf("prompt: empty chat: %w", ErrInvalidInput)
			}
			req.Messages = []Message(v)
			return req, nil
		default:
			return Request{}, fmt.Errorf("prompt: unsupported type %T: %w", p, ErrInvalidInput)
		}
	}
	return Request{}, fmt.Errorf("prompt: nesting too deep: %w", ErrInvalidInput)
}

// TokenEstimator: 文本→token 的近似估算函数。
// 典型实现：ceil(len(utf8_bytes)/BytesPerToken)。
type TokenEstimator func(s string) int

// PromptText 将 Prompt 展平为纯文本（用于 token 估算、日志与 mock 回显）。
// 会话消息以空行连接；图片不计入；未知形态返回空串。
func PromptText(p Prompt) string {
	req, err := Resolve(p)
	if err != nil {
		return ""
	}
	parts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// ImageCount 统计 Prompt 中携带的图片数量。
func ImageCount(p Prompt) int {
	req, err := Resolve(p)
	if err != nil {
		return 0
	}
	n := 0
	for _, m := range req.Messages {
		n += len(m.Images)
	}
	return n
}
