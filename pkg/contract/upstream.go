package contract

// UpstreamError 用于承载上游（HTTP/SDK）错误的最小诊断信息。
// 实现方应提供状态码与简短消息，便于记录结构化日志字段与 HTTP 层映射。
type UpstreamError interface {
	error
	UpstreamStatus() int
	UpstreamMessage() string
}
