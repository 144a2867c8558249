package diag

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// 进程内计数器（无外部导出）；/healthz 通过 Snapshot 读取。
// 名称：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms_sum{comp,stage}

var counters sync.Map // key -> *atomic.Int64

func add(key string, n int64) {
	v, ok := counters.Load(key)
	if !ok {
		v, _ = counters.LoadOrStore(key, new(atomic.Int64))
	}
	v.(*atomic.Int64).Add(n)
}

func key(name string, labels ...string) string {
	return name + "{" + strings.Join(labels, ",") + "}"
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) { add(key("op_total", comp, stage, result), 1) }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { add(key("error_total", comp, code), 1) }

// ObserveDuration 累加阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	add(key("op_duration_ms_sum", comp, stage), durMS)
}

// Snapshot 返回全部计数器的当前值（按键排序后的拷贝）。
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	counters.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// SnapshotKeys 返回排序后的计数器键（便于稳定输出）。
func SnapshotKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResetMetrics 清空计数器（测试用）。
func ResetMetrics() {
	counters.Range(func(k, _ any) bool {
		counters.Delete(k)
		return true
	})
}
