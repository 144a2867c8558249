package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"inkwell/pkg/contract"
)

// Options: 离线调试配置（可选）。
type Options struct {
	Prefix string `json:"prefix"` // 输出前缀，默认 "MOCK"
	// APIKey: 仅用于限流分组（调试用），不参与任何网络请求。
	APIKey string `json:"api_key,omitempty"`
	// ResponseMode:
	//  - "auto"（默认）: 文本提示词回显；结构化提示词按 Schema 生成占位 JSON。
	//  - "echo": 一律回显 Prefix + 提示词文本。
	//  - "fixed": 一律返回 Text。
	//  - "json": 结构化提示词返回 JSON（为空则按 Schema 生成），文本提示词回显。
	ResponseMode string          `json:"response_mode,omitempty"`
	Text         string          `json:"text,omitempty"`
	JSON         json.RawMessage `json:"json,omitempty"`
}

type Client struct {
	prefix string
	mode   string
	text   string
	json   json.RawMessage
}

// New 严格解码选项；未知模式报错。
func New(raw json.RawMessage) (contract.LLMClient, error) {
	var o Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return nil, fmt.Errorf("mock options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	if o.Prefix == "" {
		o.Prefix = "MOCK"
	}
	mode := strings.ToLower(strings.TrimSpace(o.ResponseMode))
	switch mode {
	case "":
		mode = "auto"
	case "auto", "echo", "fixed", "json":
	default:
		return nil, fmt.Errorf("mock: unknown response_mode %q: %w", o.ResponseMode, contract.ErrInvalidInput)
	}
	if len(o.JSON) > 0 && !json.Valid(o.JSON) {
		return nil, fmt.Errorf("mock: json option is not valid JSON: %w", contract.ErrInvalidInput)
	}
	return &Client{prefix: o.Prefix, mode: mode, text: o.Text, json: o.JSON}, nil
}

// Invoke 不访问网络；尊重 ctx 取消。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	if err := ctx.Err(); err != nil {
		return contract.Raw{}, err
	}
	req, err := contract.Resolve(p)
	if err != nil {
		return contract.Raw{}, fmt.Errorf("mock: %w", err)
	}
	switch c.mode {
	case "fixed":
		return contract.Raw{Text: c.text}, nil
	case "echo":
		return contract.Raw{Text: c.echo(req)}, nil
	}
	if len(req.Schema) == 0 {
		return contract.Raw{Text: c.echo(req)}, nil
	}
	if c.mode == "json" && len(c.json) > 0 {
		return contract.Raw{Text: string(c.json)}, nil
	}
	var schema map[string]any
	if err := json.Unmarshal(req.Schema, &schema); err != nil {
		return contract.Raw{}, fmt.Errorf("mock: schema: %v: %w", err, contract.ErrInvalidInput)
	}
	b, _ := json.Marshal(c.stub(schema, req.SchemaName))
	return contract.Raw{Text: string(b)}, nil
}

// echo: 回显最后一条非 system 消息（无则为全部文本），图片计数附在末尾。
func (c *Client) echo(req contract.Request) string {
	text := ""
	images := 0
	for _, m := range req.Messages {
		images += len(m.Images)
		if m.Role != contract.RoleSystem {
			text = m.Content
		}
	}
	if text == "" && len(req.Messages) > 0 {
		text = req.Messages[len(req.Messages)-1].Content
	}
	out := c.prefix + ": " + text
	if images > 0 {
		out += fmt.Sprintf(" [%d image(s)]", images)
	}
	return out
}

// stub 按 JSON Schema 生成最小合法占位值。
// 数值取 [minimum, maximum] 中点；数组长度取 max(minItems, 1)。
func (c *Client) stub(s map[string]any, name string) any {
	switch typeOf(s) {
	case "object":
		props, _ := s["properties"].(map[string]any)
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(props))
		for _, k := range keys {
			sub, _ := props[k].(map[string]any)
			out[k] = c.stub(sub, k)
		}
		return out
	case "array":
		n := 1
		if v, ok := s["minItems"].(float64); ok && int(v) > n {
			n = int(v)
		}
		items, _ := s["items"].(map[string]any)
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, c.stub(items, fmt.Sprintf("%s %d", name, i+1)))
		}
		return out
	case "integer", "number":
		lo, hasLo := s["minimum"].(float64)
		hi, hasHi := s["maximum"].(float64)
		switch {
		case hasLo && hasHi:
			return float64(int((lo + hi) / 2))
		case hasLo:
			return lo
		case hasHi:
			return hi
		default:
			return 0
		}
	case "boolean":
		return false
	default:
		return c.prefix + " " + name
	}
}

func typeOf(s map[string]any) string {
	if s == nil {
		return "string"
	}
	switch t := s["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if str, ok := v.(string); ok && str != "null" {
				return str
			}
		}
	}
	if _, ok := s["properties"]; ok {
		return "object"
	}
	return "string"
}

var _ contract.LLMClient = (*Client)(nil)
