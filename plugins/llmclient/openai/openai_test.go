package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inkwell/pkg/contract"
)

func newServer(t *testing.T, status int, reply string, seen *map[string]any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("unexpected auth header %q", got)
		}
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(b, seen)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// UT-OAI-01: 文本提示词与结构化输出
func TestInvokeStructured(t *testing.T) {
	var seen map[string]any
	url := newServer(t, 200, `{"choices":[{"message":{"content":"{\"tweets\":[]}"}}]}`, &seen)
	c, err := New(json.RawMessage(`{"api_key":"k","base_url":"` + url + `"}`))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p := contract.StructuredPrompt{Name: "thread", Prompt: contract.TextPrompt("hi"), Schema: json.RawMessage(`{"type":"object"}`)}
	raw, err := c.Invoke(context.Background(), contract.Tuned{Prompt: p, MaxOutputTokens: 99})
	if err != nil || raw.Text != `{"tweets":[]}` {
		t.Fatalf("invoke: %q %v", raw.Text, err)
	}
	rf, _ := seen["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("应启用 json_schema: %#v", seen)
	}
	if seen["max_tokens"] != float64(99) {
		t.Fatalf("max_tokens 未透传: %#v", seen["max_tokens"])
	}
}

// UT-OAI-02: 图片编码为 content parts
func TestInvokeMultimodal(t *testing.T) {
	var seen map[string]any
	url := newServer(t, 200, `{"choices":[{"message":{"content":"ok"}}]}`, &seen)
	c, _ := New(json.RawMessage(`{"api_key":"k","base_url":"` + url + `"}`))
	p := contract.ChatPrompt{
		{Role: contract.RoleSystem, Content: "sys"},
		{Role: contract.RoleUser, Content: "notes", Images: []contract.Image{{MIMEType: "image/png", Data: []byte("hi")}}},
	}
	if _, err := c.Invoke(context.Background(), p); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	msgs := seen["messages"].([]any)
	user := msgs[1].(map[string]any)
	parts, ok := user["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("user content 应为 parts: %#v", user)
	}
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	if !strings.HasPrefix(img["url"].(string), "data:image/png;base64,aGk=") {
		t.Fatalf("图片 data url 错误: %v", img["url"])
	}
}

// UT-OAI-03: 错误映射
func TestInvokeErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusTooManyRequests:     contract.ErrRateLimited,
		http.StatusBadGateway:          contract.ErrUpstream,
		http.StatusUnauthorized:        contract.ErrInvalidInput,
		http.StatusInternalServerError: contract.ErrUpstream,
	}
	for st, want := range cases {
		url := newServer(t, st, "boom", nil)
		c, _ := New(json.RawMessage(`{"api_key":"k","base_url":"` + url + `"}`))
		_, err := c.Invoke(context.Background(), contract.TextPrompt("x"))
		if !errors.Is(err, want) {
			t.Fatalf("status %d: want %v got %v", st, want, err)
		}
		var ue contract.UpstreamError
		if !errors.As(err, &ue) || ue.UpstreamStatus() != st || ue.UpstreamMessage() != "boom" {
			t.Fatalf("应携带上游状态: %v", err)
		}
	}
	url := newServer(t, 200, `{"choices":[]}`, nil)
	c, _ := New(json.RawMessage(`{"api_key":"k","base_url":"` + url + `"}`))
	if _, err := c.Invoke(context.Background(), contract.TextPrompt("x")); !errors.Is(err, contract.ErrResponseInvalid) {
		t.Fatalf("空 choices 应为 ErrResponseInvalid: %v", err)
	}
}

// 补充覆盖: 选项校验
func TestNewOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New(nil); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("缺少 key 应失败: %v", err)
	}
	if _, err := New(json.RawMessage(`{"api_key":"k","bogus":true}`)); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("未知字段应失败: %v", err)
	}
	c, err := New(json.RawMessage(`{"disable_default_auth":true,"endpoint_path":"https://example.invalid/v1/chat"}`))
	if err != nil {
		t.Fatalf("关闭鉴权时不要求 key: %v", err)
	}
	if c.(*Client).url != "https://example.invalid/v1/chat" {
		t.Fatalf("完整 URL 应原样使用")
	}
}
