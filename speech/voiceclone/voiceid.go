package voiceclone

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/BaSui01/speechflow/types"
)

// 上游对克隆音色 ID 的要求：字母开头，8-256 位
var voiceIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{7,255}$`)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ValidateVoiceID 检查音色 ID 格式
func ValidateVoiceID(id string) error {
	if !voiceIDPattern.MatchString(id) {
		return types.NewValidationError("voice_id",
			"must start with a letter and contain 8-256 letters, digits, '_' or '-', got %q", id)
	}
	return nil
}

// DeriveVoiceID 由文件名生成音色 ID：非法字符替换为 '_'，追加 _cloned，
// 非字母开头时加 voice_ 前缀；与 taken 冲突时依次追加 _1、_2……
func DeriveVoiceID(filename string, taken func(string) bool) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	id := unsafeChars.ReplaceAllString(base, "_") + "_cloned"
	if r := []rune(id)[0]; r > unicode.MaxASCII || !unicode.IsLetter(r) {
		id = "voice_" + id
	}
	if len(id) > 240 {
		id = id[:240]
	}

	candidate := id
	for n := 1; taken(candidate); n++ {
		candidate = id + "_" + strconv.Itoa(n)
	}
	return candidate
}
