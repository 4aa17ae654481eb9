package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "unchanged", tp.TruncateText("unchanged", 0))

	long := strings.Repeat("a", 50)
	truncated := tp.TruncateText(long, 10)
	assert.True(t, strings.HasPrefix(truncated, "aaaaaaaaaa"))
	assert.Contains(t, truncated, "Content truncated")
}

func TestTruncateText_KeepsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	// Cutting at byte 4 would split the second é in half
	text := "aaaéé"
	truncated := tp.TruncateText(text, 4)
	marker := strings.Index(truncated, "\n[")
	assert.True(t, utf8.ValidString(truncated[:marker]))
	assert.Equal(t, "aaé", truncated[:marker])
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "clean text", tp.SanitizeUTF8("clean text"))

	dirty := "valid" + string([]byte{0xff, 0xfe}) + "tail"
	assert.Equal(t, "validtail", tp.SanitizeUTF8(dirty))
	assert.True(t, utf8.ValidString(tp.SanitizeUTF8(dirty)))
}
