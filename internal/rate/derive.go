package rate

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
)

// offlineKey: 离线客户端（mock/flaky）未提供 api_key 时共享的分组键材料。
const offlineKey = "INKWELL_OFFLINE_KEY"

// DeriveKeyFromProviderOptions 从 LLM 客户端标识与其原样 Options JSON 中提取 API Key，
// 并返回按 client+sha256(key) 构造的限流分组键。找不到 key 时返回错误。
// 同一把 key 的多个 provider 因此共享同一组配额。
func DeriveKeyFromProviderOptions(client string, raw json.RawMessage) (LimitKey, error) {
	var obj struct {
		APIKey    string `json:"api_key"`
		APIKeyEnv string `json:"api_key_env"`
	}
	// 选项的严格校验由各客户端工厂负责，这里只按通用键名取值。
	_ = json.Unmarshal(raw, &obj)

	key := obj.APIKey
	if key == "" && obj.APIKeyEnv != "" {
		key = os.Getenv(obj.APIKeyEnv)
	}
	if key == "" {
		switch client {
		case "mock", "flaky":
			key = offlineKey
		case "gemini":
			// 与 gemini 客户端的缺省环境变量保持一致
			key = os.Getenv("GEMINI_API_KEY")
			if key == "" {
				key = os.Getenv("GOOGLE_API_KEY")
			}
		}
	}
	if key == "" {
		return "", fmt.Errorf("rate: missing api key for client %s", client)
	}
	sum := sha256.Sum256([]byte(key))
	return LimitKey(fmt.Sprintf("%s:%x", client, sum[:8])), nil
}
