package speech

import "maps"

// OutputFormat 控制同步合成返回音频数据还是下载链接
type OutputFormat string

const (
	OutputHex OutputFormat = "hex"
	OutputURL OutputFormat = "url"
)

// Request 是一次语音合成请求
type Request struct {
	Model         string            `json:"model" yaml:"model"`
	Text          string            `json:"text" yaml:"text"`
	Voice         VoiceSetting      `json:"voice_setting" yaml:"voice_setting"`
	Audio         AudioSetting      `json:"audio_setting" yaml:"audio_setting"`
	Modify        *VoiceModify      `json:"voice_modify,omitempty" yaml:"voice_modify,omitempty"`
	Pronunciation map[string]string `json:"pronunciation_dict,omitempty" yaml:"pronunciation_dict,omitempty"`
	LanguageBoost string            `json:"language_boost,omitempty" yaml:"language_boost,omitempty"`
	OutputFormat  OutputFormat      `json:"output_format,omitempty" yaml:"output_format,omitempty"`

	// TrailingPause 在文本末尾追加的停顿秒数，0 表示不追加
	TrailingPause float64 `json:"trailing_pause,omitempty" yaml:"trailing_pause,omitempty"`

	TextNormalization    bool `json:"text_normalization,omitempty" yaml:"text_normalization,omitempty"`
	EnglishNormalization bool `json:"english_normalization,omitempty" yaml:"english_normalization,omitempty"`
	LatexRead            bool `json:"latex_read,omitempty" yaml:"latex_read,omitempty"`
}

// VoiceSetting 音色参数
type VoiceSetting struct {
	VoiceID string  `json:"voice_id" yaml:"voice_id"`
	Speed   float64 `json:"speed" yaml:"speed"`
	Vol     float64 `json:"vol" yaml:"vol"`
	Pitch   int     `json:"pitch" yaml:"pitch"`
	Emotion string  `json:"emotion,omitempty" yaml:"emotion,omitempty"`
}

// AudioSetting 输出音频参数
type AudioSetting struct {
	SampleRate int        `json:"sample_rate" yaml:"sample_rate"`
	Bitrate    int        `json:"bitrate" yaml:"bitrate"`
	Format     string     `json:"format" yaml:"format"`
	Channel    int        `json:"channel" yaml:"channel"`
	Mix        []AudioMix `json:"audio_mix,omitempty" yaml:"audio_mix,omitempty"`
}

// VoiceModify 音效与音色微调
type VoiceModify struct {
	Pitch       int    `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Intensity   int    `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Timbre      int    `json:"timbre,omitempty" yaml:"timbre,omitempty"`
	SoundEffect string `json:"sound_effects,omitempty" yaml:"sound_effects,omitempty"`
}

// IsZero reports whether no modification is requested.
func (m *VoiceModify) IsZero() bool {
	return m == nil || (m.Pitch == 0 && m.Intensity == 0 && m.Timbre == 0 && m.SoundEffect == "")
}

// AudioMix 背景音描述
type AudioMix struct {
	URL     string  `json:"audio_url" yaml:"url"`
	Volume  float64 `json:"volume" yaml:"volume"`
	StartMS int     `json:"start_time" yaml:"start_ms"`
	EndMS   int     `json:"end_time" yaml:"end_ms"` // -1 表示播放到结尾
	Loop    bool    `json:"repeat" yaml:"loop"`
}

// TextLength 返回按字符计的文本长度
func (r *Request) TextLength() int {
	return len([]rune(r.Text))
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.Modify != nil {
		m := *r.Modify
		c.Modify = &m
	}
	if r.Pronunciation != nil {
		c.Pronunciation = maps.Clone(r.Pronunciation)
	}
	if r.Audio.Mix != nil {
		c.Audio.Mix = append([]AudioMix(nil), r.Audio.Mix...)
	}
	return &c
}
