package prompt

import "inkwell/pkg/contract"

// ImageTokens 为单张内联图片的近似 token 开销（按 Gemini 的固定计价近似）。
const ImageTokens = 258

// MakeEstimator 返回一个近似 token 估算器：tokens ≈ ceil(len(utf8_bytes)/bytesPerToken)。
// 当 bytesPerToken<=0 时采用默认 4。
func MakeEstimator(bytesPerToken int) contract.TokenEstimator {
	bpt := bytesPerToken
	if bpt <= 0 {
		bpt = 4
	}
	return func(s string) int {
		n := len(s)
		if n == 0 {
			return 0
		}
		return (n + bpt - 1) / bpt
	}
}

// EstimatePrompt 估算一次调用的输入 token：文本部分经 est，图片按 ImageTokens 计。
// 结构化提示词额外计入 Schema 文本。
func EstimatePrompt(p contract.Prompt, est contract.TokenEstimator) int {
	if est == nil {
		return 0
	}
	n := est(contract.PromptText(p)) + contract.ImageCount(p)*ImageTokens
	if req, err := contract.Resolve(p); err == nil {
		n += est(string(req.Schema))
	}
	return n
}

// MakePromptEstimator 组合估算器与预留输出 token，供限流装饰器使用。
// reserveOutput<0 视为 0。
func MakePromptEstimator(bytesPerToken, reserveOutput int) func(contract.Prompt) int {
	est := MakeEstimator(bytesPerToken)
	if reserveOutput < 0 {
		reserveOutput = 0
	}
	return func(p contract.Prompt) int {
		return EstimatePrompt(p, est) + reserveOutput
	}
}
