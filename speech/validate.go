package speech

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/BaSui01/speechflow/types"
)

// 取值范围
const (
	MinSpeed         = 0.5
	MaxSpeed         = 2.0
	MaxVol           = 10.0
	MinPitch         = -12
	MaxPitch         = 12
	MinModify        = -100
	MaxModify        = 100
	MaxTrailingPause = 99.99
)

var (
	// Emotions 支持的情绪
	Emotions = []string{"happy", "sad", "angry", "fearful", "disgusted", "surprised", "calm", "fluent", "whisper"}
	// SoundEffects 支持的音效
	SoundEffects = []string{"spacious_echo", "auditorium_echo", "lofi_telephone", "robotic"}
	// SampleRates 支持的采样率
	SampleRates = []int{8000, 16000, 22050, 24000, 32000, 44100}
	// Bitrates 支持的比特率
	Bitrates = []int{32000, 64000, 128000, 256000}
	// Formats 支持的音频格式
	Formats = []string{"mp3", "wav", "flac", "pcm"}
)

// Validate checks every parameter range. Out-of-range values are rejected,
// never clamped. maxTextLength <= 0 skips the upper text bound.
func (r *Request) Validate(maxTextLength int) error {
	if strings.TrimSpace(r.Text) == "" {
		return types.NewValidationError("text", "must not be empty")
	}
	if n := r.TextLength(); maxTextLength > 0 && n > maxTextLength {
		return types.NewValidationError("text", "length %d exceeds limit %d", n, maxTextLength)
	}
	if r.Model == "" {
		return types.NewValidationError("model", "must not be empty")
	}

	if err := r.Voice.validate(); err != nil {
		return err
	}
	if err := r.Audio.validate(); err != nil {
		return err
	}
	if r.Modify != nil {
		if err := r.Modify.validate(); err != nil {
			return err
		}
	}

	switch r.OutputFormat {
	case "", OutputHex, OutputURL:
	default:
		return types.NewValidationError("output_format", "must be hex or url, got %q", r.OutputFormat)
	}

	if r.TrailingPause < 0 || r.TrailingPause > MaxTrailingPause || math.IsNaN(r.TrailingPause) {
		return types.NewValidationError("trailing_pause", "must be within [0, %.2f], got %v", MaxTrailingPause, r.TrailingPause)
	}

	for token, pron := range r.Pronunciation {
		if strings.TrimSpace(token) == "" || strings.TrimSpace(pron) == "" {
			return types.NewValidationError("pronunciation_dict", "entries must have a token and a pronunciation")
		}
	}

	return nil
}

func (v VoiceSetting) validate() error {
	if strings.TrimSpace(v.VoiceID) == "" {
		return types.NewValidationError("voice_id", "must not be empty")
	}
	if !(v.Speed >= MinSpeed && v.Speed <= MaxSpeed) {
		return types.NewValidationError("speed", "must be within [%.1f, %.1f], got %v", MinSpeed, MaxSpeed, v.Speed)
	}
	if !(v.Vol > 0 && v.Vol <= MaxVol) {
		return types.NewValidationError("vol", "must be within (0, %.0f], got %v", MaxVol, v.Vol)
	}
	if v.Pitch < MinPitch || v.Pitch > MaxPitch {
		return types.NewValidationError("pitch", "must be within [%d, %d], got %d", MinPitch, MaxPitch, v.Pitch)
	}
	if v.Emotion != "" && !slices.Contains(Emotions, v.Emotion) {
		return types.NewValidationError("emotion", "unsupported value %q", v.Emotion)
	}
	return nil
}

func (a AudioSetting) validate() error {
	if !slices.Contains(SampleRates, a.SampleRate) {
		return types.NewValidationError("sample_rate", "unsupported value %d", a.SampleRate)
	}
	if !slices.Contains(Bitrates, a.Bitrate) {
		return types.NewValidationError("bitrate", "unsupported value %d", a.Bitrate)
	}
	if !slices.Contains(Formats, a.Format) {
		return types.NewValidationError("format", "unsupported value %q", a.Format)
	}
	if a.Channel != 1 && a.Channel != 2 {
		return types.NewValidationError("channel", "must be 1 or 2, got %d", a.Channel)
	}
	for i, m := range a.Mix {
		if err := m.validate(); err != nil {
			err.Message = "audio_mix[" + strconv.Itoa(i) + "]." + err.Message
			return err
		}
	}
	return nil
}

func (m *VoiceModify) validate() error {
	check := func(field string, v int) error {
		if v < MinModify || v > MaxModify {
			return types.NewValidationError(field, "must be within [%d, %d], got %d", MinModify, MaxModify, v)
		}
		return nil
	}
	if err := check("voice_modify.pitch", m.Pitch); err != nil {
		return err
	}
	if err := check("voice_modify.intensity", m.Intensity); err != nil {
		return err
	}
	if err := check("voice_modify.timbre", m.Timbre); err != nil {
		return err
	}
	if m.SoundEffect != "" && !slices.Contains(SoundEffects, m.SoundEffect) {
		return types.NewValidationError("voice_modify.sound_effects", "unsupported value %q", m.SoundEffect)
	}
	return nil
}

func (m AudioMix) validate() *types.Error {
	u, err := url.Parse(m.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.NewValidationError("url", "must be an http(s) URL, got %q", m.URL)
	}
	if !(m.Volume >= 0 && m.Volume <= 1) {
		return types.NewValidationError("volume", "must be within [0, 1], got %v", m.Volume)
	}
	if m.StartMS < 0 {
		return types.NewValidationError("start_ms", "must not be negative, got %d", m.StartMS)
	}
	if m.EndMS != -1 && m.EndMS <= m.StartMS {
		return types.NewValidationError("end_ms", "must be -1 or greater than start_ms, got %d", m.EndMS)
	}
	return nil
}
