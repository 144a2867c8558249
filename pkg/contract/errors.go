package contract

import "errors"

// 其余最小错误分类。
var (
	// ErrBudgetExceeded: 预算或配额不足（如单请求 token 上限、上游配额）。
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrUpstream: 上游服务失败（5xx、超时、连接错误等），可与 UpstreamError 同时出现在错误链中。
	ErrUpstream = errors.New("upstream failure")
)
