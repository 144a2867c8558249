package flaky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"inkwell/pkg/contract"
	"inkwell/plugins/llmclient/mock"
)

// Options 定义可选项。
type Options struct {
	// Failures: 前 N 次调用返回 ErrRateLimited，默认 1。
	Failures int `json:"failures"`
	// Mock: 失败次数用尽后委托给 mock 客户端的原样选项。
	Mock json.RawMessage `json:"mock,omitempty"`
	// LogPath: 调试用日志文件，记录每次调用结果（可选）。
	LogPath string `json:"log_path,omitempty"`
}

// Client 是带状态的 LLM 实现：前 Failures 次 Invoke 返回 ErrRateLimited，之后委托 mock。
// 用于验证上层不做重试：失败应原样传递给调用方。
type Client struct {
	failures int32
	next     contract.LLMClient
	logPath  string
	count    atomic.Int32
}

// New 构造 Client。
func New(raw json.RawMessage) (contract.LLMClient, error) {
	o := Options{Failures: 1}
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return nil, fmt.Errorf("flaky options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	if o.Failures < 0 {
		return nil, fmt.Errorf("flaky: failures must be >= 0: %w", contract.ErrInvalidInput)
	}
	next, err := mock.New(o.Mock)
	if err != nil {
		return nil, fmt.Errorf("flaky: %w", err)
	}
	return &Client{failures: int32(o.Failures), next: next, logPath: o.LogPath}, nil
}

func (c *Client) log(s string) {
	if c.logPath == "" {
		return
	}
	// 追加写入，忽略错误。
	_ = appendFile(c.logPath, s+"\n")
}

// appendFile 以追加方式写入。
func appendFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

// Calls 返回已发生的调用次数。
func (c *Client) Calls() int { return int(c.count.Load()) }

// Invoke 实现 contract.LLMClient。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	n := c.count.Add(1)
	if n <= c.failures {
		c.log("rate_limited")
		return contract.Raw{}, fmt.Errorf("flaky: call %d: %w", n, contract.ErrRateLimited)
	}
	c.log("ok")
	return c.next.Invoke(ctx, p)
}

var _ contract.LLMClient = (*Client)(nil)
