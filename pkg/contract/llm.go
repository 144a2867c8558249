package contract

import (
	"context"
	"errors"
)

// Raw: LLM 客户端返回的原始文本载荷（万能容器）。
// 约束：原样返回，不做清洗/截断/归一化；长度修正由调用方完成。
type Raw struct {
	Text string
}

// LLMClient: 以 Prompt 为单位与大模型交互，返回原始文本 Raw。
// 单次调用、同步返回；应尊重 ctx 取消/超时并及时释放资源。
// 客户端不做重试：失败原样上抛，由调用方决定如何呈现。
type LLMClient interface {
	Invoke(ctx context.Context, p Prompt) (Raw, error)
}

// LLMClientFunc 便于以函数形式实现 LLMClient（测试替身常用）。
type LLMClientFunc func(ctx context.Context, p Prompt) (Raw, error)

func (f LLMClientFunc) Invoke(ctx context.Context, p Prompt) (Raw, error) { return f(ctx, p) }

// 最小错误分类（用于上层策略判定）。
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrResponseInvalid = errors.New("response invalid")
	ErrInvalidInput    = errors.New("invalid input")
)
