package diag

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"google.golang.org/genai"

	"inkwell/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总与 HTTP 状态映射，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeNetwork   Code = "network"
	CodeProtocol  Code = "protocol"
	CodeInvariant Code = "invariant"
	CodeBudget    Code = "budget"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误、上游状态码与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	// 预算/配额
	if errors.Is(err, contract.ErrBudgetExceeded) || errors.Is(err, contract.ErrRateLimited) {
		return CodeBudget
	}
	// 协议/解码
	if errors.Is(err, contract.ErrResponseInvalid) {
		return CodeProtocol
	}
	// 不变量
	if errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrInvalidInput) {
		return CodeInvariant
	}
	if errors.Is(err, contract.ErrUpstream) {
		return CodeNetwork
	}
	// 未经客户端映射的上游错误按状态码归类
	if st, _, ok := Upstream(err); ok {
		return classifyStatus(st)
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	// 网络（连接/超时等）
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

func classifyStatus(st int) Code {
	switch {
	case st == http.StatusTooManyRequests:
		return CodeBudget
	case st == http.StatusRequestTimeout || st >= 500:
		return CodeNetwork
	case st >= 400:
		return CodeInvariant
	default:
		return CodeProtocol
	}
}

// Upstream 从错误链中提取上游状态码与消息：
// 先找 contract.UpstreamError，再找 genai.APIError。
func Upstream(err error) (status int, msg string, ok bool) {
	if err == nil {
		return 0, "", false
	}
	var ue contract.UpstreamError
	if errors.As(err, &ue) {
		return ue.UpstreamStatus(), ue.UpstreamMessage(), true
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return ge.Code, ge.Message, true
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return gp.Code, gp.Message, true
	}
	return 0, "", false
}

// HTTPStatus 将错误映射为对外 HTTP 状态码。
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch Classify(err) {
	case CodeInvariant:
		if errors.Is(err, contract.ErrInvalidInput) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case CodeBudget:
		if !errors.Is(err, contract.ErrRateLimited) && errors.Is(err, contract.ErrBudgetExceeded) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusTooManyRequests
	case CodeProtocol, CodeNetwork:
		return http.StatusBadGateway
	case CodeCancel:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		// 499: 客户端关闭连接（nginx 约定）
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
