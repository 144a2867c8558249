package tweet

import "unicode/utf8"

// EnforceLength 将 text 截断为至多 max 个字符（Unicode 码点）；未超长原样返回。
// 静默修正，从不报错；max<=0 返回空串。
func EnforceLength(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(text) <= max || utf8.RuneCountInString(text) <= max {
		return text
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i]
		}
		n++
	}
	return text
}
