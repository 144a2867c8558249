package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"inkwell/pkg/contract"
)

// DefaultModel 为未配置 model 时使用的模型。
const DefaultModel = "gemini-2.5-flash"

// Options: Gemini（google.golang.org/genai）客户端配置。
type Options struct {
	Model     string `json:"model"`       // 默认 gemini-2.5-flash
	APIKeyEnv string `json:"api_key_env"` // 默认依次尝试 GEMINI_API_KEY、GOOGLE_API_KEY
	APIKey    string `json:"api_key"`
	// BaseURL/APIVersion 用于代理或兼容网关；留空使用 SDK 默认。
	BaseURL    string `json:"base_url,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
	// 客户端超时（秒）。未设置或 <=0 时采用默认 60 秒。
	TimeoutSeconds  int               `json:"timeout_seconds,omitempty"`
	MaxOutputTokens int               `json:"max_output_tokens,omitempty"`
	Temperature     *float32          `json:"temperature,omitempty"`
	ExtraHeaders    map[string]string `json:"extra_headers,omitempty"`
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
}

func (o *Options) apiKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	if o.APIKeyEnv != "" {
		return os.Getenv(o.APIKeyEnv)
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// Client 持有单个 genai.Client；并发安全，应在组合根构造一次后共享。
type Client struct {
	models    *genai.Models
	model     string
	maxTokens int32
	temp      *float32
}

// New 从原样 JSON 选项构造客户端（严格解码，未知字段报错）。
func New(raw json.RawMessage) (contract.LLMClient, error) {
	var opts Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("gemini options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	opts.defaults()
	key := opts.apiKey()
	if key == "" {
		return nil, fmt.Errorf("gemini: %w: missing api key", contract.ErrInvalidInput)
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    opts.BaseURL,
			APIVersion: opts.APIVersion,
		},
	}
	if len(opts.ExtraHeaders) > 0 {
		h := http.Header{}
		for k, v := range opts.ExtraHeaders {
			if k != "" {
				h.Set(k, v)
			}
		}
		cfg.HTTPOptions.Headers = h
	}
	gc, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %v: %w", err, contract.ErrInvalidInput)
	}
	return &Client{models: gc.Models, model: opts.Model, maxTokens: int32(opts.MaxOutputTokens), temp: opts.Temperature}, nil
}

// upstreamError 实现 net.Error 与 contract.UpstreamError，承载上游状态码。
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string           { return fmt.Sprintf("gemini upstream %d: %s", e.status, e.msg) }
func (e upstreamError) Timeout() bool           { return e.status == http.StatusRequestTimeout }
func (e upstreamError) Temporary() bool         { return e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

// buildContents 将通用会话映射为 genai 结构：
// system 消息合并为 SystemInstruction；assistant→model；图片作为内联 part 附在所属消息上。
// 仅有 system 消息时，将其降级为 user 内容。
func buildContents(msgs []contract.Message) (sys *genai.Content, contents []*genai.Content) {
	var sysParts []string
	for _, m := range msgs {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role == contract.RoleSystem {
			if m.Content != "" {
				sysParts = append(sysParts, m.Content)
			}
			continue
		}
		var gr genai.Role = genai.RoleUser
		if role == contract.RoleAssistant || role == "model" {
			gr = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, 1+len(m.Images))
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, img := range m.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, gr))
	}
	if len(sysParts) > 0 {
		text := strings.Join(sysParts, "\n\n")
		if len(contents) == 0 {
			contents = []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
		} else {
			sys = genai.NewContentFromText(text, genai.RoleUser)
		}
	}
	return sys, contents
}

// Invoke: 单次调用，同步返回；不重试。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	req, err := contract.Resolve(p)
	if err != nil {
		return contract.Raw{}, fmt.Errorf("gemini: %w", err)
	}
	sys, contents := buildContents(req.Messages)
	if len(contents) == 0 {
		return contract.Raw{}, fmt.Errorf("gemini: empty prompt: %w", contract.ErrInvalidInput)
	}
	cfg := &genai.GenerateContentConfig{SystemInstruction: sys, Temperature: c.temp, MaxOutputTokens: c.maxTokens}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if len(req.Schema) > 0 {
		var schema any
		if err := json.Unmarshal(req.Schema, &schema); err != nil {
			return contract.Raw{}, fmt.Errorf("gemini: schema %q: %v: %w", req.SchemaName, err, contract.ErrInvalidInput)
		}
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = schema
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return contract.Raw{}, mapError(ctx, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return contract.Raw{}, fmt.Errorf("gemini: empty candidate: %w", contract.ErrResponseInvalid)
	}
	return contract.Raw{Text: text}, nil
}

// mapError 将 SDK 错误映射为哨兵错误，同时保留上游状态码：
// 429 → ErrRateLimited；408/5xx → ErrUpstream；其余 4xx → ErrInvalidInput。
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ae genai.APIError
	if !errors.As(err, &ae) {
		return fmt.Errorf("gemini: %v: %w", err, contract.ErrUpstream)
	}
	ue := upstreamError{status: ae.Code, msg: ae.Message}
	switch {
	case ae.Code == http.StatusTooManyRequests:
		return fmt.Errorf("gemini: %w: %w", contract.ErrRateLimited, ue)
	case ae.Code == http.StatusRequestTimeout || ae.Code/100 == 5:
		return fmt.Errorf("gemini: %w: %w", contract.ErrUpstream, ue)
	case ae.Code/100 == 4:
		return fmt.Errorf("gemini: %w: %w", contract.ErrInvalidInput, ue)
	default:
		return fmt.Errorf("gemini: %w: %w", contract.ErrResponseInvalid, ue)
	}
}

var _ contract.LLMClient = (*Client)(nil)
