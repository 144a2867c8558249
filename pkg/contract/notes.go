package contract

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ImageAttachment: 笔记附带的图片（Data 为 base64 data URL）。
type ImageAttachment struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// MultimodalContent: 笔记的规范形态（文本 + 可选图片）。
type MultimodalContent struct {
	Text   string            `json:"text"`
	Images []ImageAttachment `json:"images"`
}

// UserNotes: 用户笔记的和类型，仅有 TextOnly 与 TextWithImages 两种变体。
// 使用前统一经 Normalize 提升为 MultimodalContent，调用点不做类型判断。
type UserNotes interface {
	isUserNotes()
}

// TextOnly: 纯文本笔记。
type TextOnly string

// TextWithImages: 文本 + 图片笔记。
type TextWithImages MultimodalContent

func (TextOnly) isUserNotes()       {}
func (TextWithImages) isUserNotes() {}

// Normalize 将任一变体提升为 MultimodalContent；nil 视为空文本。
// 返回值的 Images 永不为 nil。
func Normalize(n UserNotes) MultimodalContent {
	switch v := n.(type) {
	case TextOnly:
		return MultimodalContent{Text: string(v), Images: []ImageAttachment{}}
	case TextWithImages:
		out := MultimodalContent{Text: v.Text, Images: make([]ImageAttachment, len(v.Images))}
		copy(out.Images, v.Images)
		return out
	default:
		return MultimodalContent{Images: []ImageAttachment{}}
	}
}

// NotesText 仅取文本部分（用于历史记录等只需文本的场景）。
func NotesText(n UserNotes) string { return Normalize(n).Text }

// NotesField: UserNotes 的 JSON 容器，接受裸字符串或 {text, images} 对象。
type NotesField struct {
	UserNotes
}

// UnmarshalJSON 按首个非空白字节判定变体；null 视为空文本。
func (f *NotesField) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		f.UserNotes = TextOnly("")
		return nil
	}
	switch t[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return fmt.Errorf("notes: %w", ErrInvalidInput)
		}
		f.UserNotes = TextOnly(s)
		return nil
	case '{':
		var mc MultimodalContent
		dec := json.NewDecoder(bytes.NewReader(t))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&mc); err != nil {
			return fmt.Errorf("notes: %v: %w", err, ErrInvalidInput)
		}
		f.UserNotes = TextWithImages(mc)
		return nil
	default:
		return fmt.Errorf("notes: want string or object: %w", ErrInvalidInput)
	}
}

// MarshalJSON 保持变体形态：TextOnly → 字符串，TextWithImages → 对象。
func (f NotesField) MarshalJSON() ([]byte, error) {
	switch v := f.UserNotes.(type) {
	case TextWithImages:
		return json.Marshal(Normalize(v))
	case TextOnly:
		return json.Marshal(string(v))
	default:
		return []byte(`""`), nil
	}
}

// DecodeDataURL 解析 "data:<mime>;base64,<payload>" 形式的图片。
// 无前缀时按裸 base64 处理，MIME 缺省为 image/jpeg。
func DecodeDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	mime := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return Image{}, fmt.Errorf("data url: missing payload: %w", ErrInvalidInput)
		}
		header := s[len("data:"):comma]
		payload = s[comma+1:]
		if !strings.HasSuffix(header, ";base64") {
			return Image{}, fmt.Errorf("data url: only base64 supported: %w", ErrInvalidInput)
		}
		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mime = m
		}
	}
	if payload == "" {
		return Image{}, fmt.Errorf("data url: empty payload: %w", ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("data url: %v: %w", err, ErrInvalidInput)
	}
	return Image{MIMEType: mime, Data: data}, nil
}
