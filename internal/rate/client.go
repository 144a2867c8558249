package rate

import (
	"context"
	"fmt"

	"inkwell/pkg/contract"
)

// Client 在每次 Invoke 之前向 Gate 申请 1 个请求额度与估算的 token 额度。
// 不做重试；额度等待被取消时返回 ctx 错误，超出单请求上限时返回 ErrBudgetExceeded。
type Client struct {
	next     contract.LLMClient
	gate     Gate
	key      LimitKey
	estimate func(contract.Prompt) int
}

// NewClient 以 gate 装饰 next。estimate 为空时 token 维度按 0 申请。
func NewClient(next contract.LLMClient, gate Gate, key LimitKey, estimate func(contract.Prompt) int) *Client {
	return &Client{next: next, gate: gate, key: key, estimate: estimate}
}

// Invoke 实现 contract.LLMClient。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	tokens := 0
	if c.estimate != nil {
		tokens = c.estimate(p)
	}
	if err := c.gate.Wait(ctx, Ask{Key: c.key, Requests: 1, Tokens: tokens}); err != nil {
		return contract.Raw{}, fmt.Errorf("rate wait: %w", err)
	}
	return c.next.Invoke(ctx, p)
}

// Unwrap 返回被装饰的客户端（诊断用）。
func (c *Client) Unwrap() contract.LLMClient { return c.next }

var _ contract.LLMClient = (*Client)(nil)
