package tweet

import (
	"encoding/json"
	"strconv"
	"strings"

	"inkwell/pkg/contract"
)

// DefaultMaxLength 为单条推文的默认长度上限（字符）。
const DefaultMaxLength = 280

// Options 为推文 PromptBuilder 的最小配置。
// - MaxLength: 提示词中声明的长度上限；<=0 时取 DefaultMaxLength。
type Options struct {
	MaxLength int `json:"max_length"`
}

func (o *Options) defaults() {
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
}

// Builder: 纯字符串拼装，无 I/O，无错误路径；并发安全。
type Builder struct {
	max int

	rules      string
	editTail   string
	targetTail string
}

// New 创建推文 PromptBuilder。
func New(opts *Options) *Builder {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.defaults()
	n := strconv.Itoa(o.MaxLength)
	return &Builder{
		max:        o.MaxLength,
		rules:      "Write a concise, engaging tweet under " + n + " characters. No emojis. No hashtags unless essential.",
		editTail:   "Return a single tweet under " + n + " characters.",
		targetTail: "Modify only the first exact occurrence of the TARGET within the current draft. Return the FULL tweet with the modified target in place. Do not change any other text besides the target. Keep under " + n + " characters.",
	}
}

// MaxLength 返回构造时确定的长度上限。
func (b *Builder) MaxLength() int { return b.max }

// Rules 返回固定的写作规则段落。
func (b *Builder) Rules() string { return b.rules }

// Initial 构造首稿提示词：规则 + 可选主题。
func (b *Builder) Initial(idea string) string {
	return joinSections(b.rules, withTopic(idea))
}

// EditWithLocks 在上一稿基础上改写，要求逐字保留锁定子串。
func (b *Builder) EditWithLocks(previous string, locked []string, idea string) string {
	return joinSections(b.rules, withTopic(idea), withPrevious(previous), withLocks(locked), b.editTail)
}

// TargetOperation 仅改写草稿中 target 的第一次精确出现。
// op 取值之外的操作不追加指令段（调用方应先经 contract.ParseOperation 校验）。
func (b *Builder) TargetOperation(previous, target string, op contract.Operation, locked []string, idea string) string {
	return joinSections(
		b.rules,
		withTopic(idea),
		withPrevious(previous),
		withLocks(locked),
		opInstructions[op],
		"TARGET:\n"+target,
		b.targetTail,
	)
}

// Thread 构造推文串提示词（逐行拼接，而非空行分段）。
func (b *Builder) Thread(idea string, count int, style string) string {
	lines := []string{
		"Write a Twitter/X thread.",
		"Rules:",
		"- Return ONLY valid JSON matching the provided schema.",
		"- Each tweet MUST be under " + strconv.Itoa(b.max) + " characters.",
		"- Avoid emojis.",
		"- Avoid hashtags unless essential.",
		"- Create exactly " + strconv.Itoa(count) + " tweets that flow logically as a thread.",
	}
	if strings.TrimSpace(style) != "" {
		lines = append(lines, "Style: "+style)
	}
	lines = append(lines, "Topic: "+idea)
	return strings.Join(lines, "\n")
}

// ThreadPrompt 将 Thread 包装为要求 JSON 输出的 StructuredPrompt。
func (b *Builder) ThreadPrompt(idea string, count int, style string) contract.StructuredPrompt {
	return contract.StructuredPrompt{
		Name:   "thread",
		Prompt: contract.TextPrompt(b.Thread(idea, count, style)),
		Schema: ThreadSchema(),
	}
}

var defaultBuilder = New(nil)

// BuildInitial 以默认上限构造首稿提示词。
func BuildInitial(idea string) string { return defaultBuilder.Initial(idea) }

// BuildEditWithLocks 以默认上限构造锁定改写提示词。
func BuildEditWithLocks(previous string, locked []string, idea string) string {
	return defaultBuilder.EditWithLocks(previous, locked, idea)
}

// BuildTargetOperation 以默认上限构造单目标操作提示词。
func BuildTargetOperation(previous, target string, op contract.Operation, locked []string, idea string) string {
	return defaultBuilder.TargetOperation(previous, target, op, locked, idea)
}

// BuildThread 以默认上限构造推文串提示词。
func BuildThread(idea string, count int, style string) string {
	return defaultBuilder.Thread(idea, count, style)
}

var opInstructions = map[contract.Operation]string{
	contract.OpRephrase: "Rephrase the following target substring while preserving its meaning:",
	contract.OpCondense: "Condense the following target substring to be shorter while preserving its meaning:",
}

// withTopic: 空白主题省略。
func withTopic(idea string) string {
	if strings.TrimSpace(idea) == "" {
		return ""
	}
	return "Topic: " + idea
}

func withPrevious(previous string) string {
	return "Start from this current draft:\n" + previous
}

// withLocks: 每个锁定串独占一行 "- <lock>"；空集合省略整段。
func withLocks(locked []string) string {
	if len(locked) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Preserve the following substrings exactly as written. Do not modify, remove, or reorder them:")
	for _, s := range locked {
		sb.WriteString("\n- ")
		sb.WriteString(s)
	}
	return sb.String()
}

// joinSections 以空行连接非空段落。
func joinSections(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// ThreadResult: 推文串结构化输出。
type ThreadResult struct {
	Tweets []ThreadTweet `json:"tweets"`
}

// ThreadTweet: 推文串中的单条。
type ThreadTweet struct {
	Text string `json:"text"`
}

// ThreadSchema 返回推文串的 JSON Schema（副本，可安全修改）。
func ThreadSchema() json.RawMessage {
	return json.RawMessage(threadJSONSchema)
}

const threadJSONSchema = `{"type":"object","additionalProperties":false,"properties":{"tweets":{"type":"array","minItems":1,"items":{"type":"object","additionalProperties":false,"properties":{"text":{"type":"string","minLength":1}},"required":["text"]}}},"required":["tweets"]}`
