package types

import (
	"fmt"
	"strings"
	"time"
)

// InputKind 区分用户提交内容的来源形态。
type InputKind string

const (
	KindText  InputKind = "text"
	KindImage InputKind = "image"
	KindLink  InputKind = "link"
)

// Valid reports whether k is one of the known kinds.
func (k InputKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindLink:
		return true
	default:
		return false
	}
}

// ParseInputKind normalizes a raw kind string.
func ParseInputKind(raw string) (InputKind, error) {
	k := InputKind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown input kind %q", raw)
	}
	return k, nil
}

// InputRecord 是一次提交的不可变输入。
type InputRecord struct {
	Kind        InputKind `json:"type"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	HasImage    bool      `json:"has_image,omitempty"`
	SubmittedAt time.Time `json:"timestamp"`
}

// NormalizeTags trims tags and drops blanks and repeats, keeping first occurrence order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ExtractedContext 为链接输入抓取到的页面摘要；nil 表示没有上下文。
type ExtractedContext struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	BodyExcerpt string `json:"content,omitempty"`
	SourceURL   string `json:"url,omitempty"`
	Failed      bool   `json:"failed,omitempty"`
}
