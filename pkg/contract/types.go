package contract

import (
	"fmt"
	"strings"
)

// Segment: 草稿按锁定集合切分后的连续片段。
// 每次渲染重新计算，不持久化、无身份。
type Segment struct {
	Text   string `json:"text"`
	Locked bool   `json:"locked"`
}

// Operation: 单目标改写操作。
type Operation string

const (
	OpRephrase Operation = "rephrase"
	OpCondense Operation = "condense"
)

// ParseOperation 解析操作名（大小写不敏感）；未知值返回 ErrInvalidInput。
func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToLower(strings.TrimSpace(s))) {
	case OpRephrase:
		return OpRephrase, nil
	case OpCondense:
		return OpCondense, nil
	default:
		return "", fmt.Errorf("operation %q: %w", s, ErrInvalidInput)
	}
}
