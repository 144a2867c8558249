package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"inkwell/pkg/contract"
	flaky "inkwell/plugins/llmclient/flaky"
	gmi "inkwell/plugins/llmclient/gemini"
	mock "inkwell/plugins/llmclient/mock"
	oai "inkwell/plugins/llmclient/openai"
	ptw "inkwell/plugins/prompt/tweet"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewLLMClient 工厂签名：接收原样 JSON Options。
type NewLLMClient func(raw json.RawMessage) (contract.LLMClient, error)

// NewTweetBuilder 工厂签名：接收原样 JSON Options。
type NewTweetBuilder func(raw json.RawMessage) (*ptw.Builder, error)

// LLMClient 工厂注册表（显式、零反射）。各客户端自行严格解码选项。
var LLMClient = map[string]NewLLMClient{
	"openai": func(raw json.RawMessage) (contract.LLMClient, error) { return oai.New(raw) },
	"gemini": func(raw json.RawMessage) (contract.LLMClient, error) { return gmi.New(raw) },
	"mock":   func(raw json.RawMessage) (contract.LLMClient, error) { return mock.New(raw) },
	"flaky":  func(raw json.RawMessage) (contract.LLMClient, error) { return flaky.New(raw) },
}

// TweetBuilder 工厂注册表。
var TweetBuilder = map[string]NewTweetBuilder{
	// default: 锁定保留型推文提示词
	"default": func(raw json.RawMessage) (*ptw.Builder, error) {
		var opts ptw.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("tweet builder options: %v: %w", err, contract.ErrInvalidInput)
		}
		return ptw.New(&opts), nil
	},
}

// BuildLLMClient 按名称查找并构造客户端；未注册名称返回 ErrInvalidInput。
func BuildLLMClient(name string, raw json.RawMessage) (contract.LLMClient, error) {
	f, ok := LLMClient[name]
	if !ok {
		return nil, fmt.Errorf("registry: unknown llm client %q: %w", name, contract.ErrInvalidInput)
	}
	return f(raw)
}

// LLMClientNames 返回排序后的已注册客户端名（用于帮助信息与校验提示）。
func LLMClientNames() []string {
	names := make([]string, 0, len(LLMClient))
	for k := range LLMClient {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
