package speech

import (
	"github.com/BaSui01/speechflow/config"
)

// Defaults 由配置构造的请求模板与长度限制
type Defaults struct {
	Request            Request
	MaxTextLength      int
	AsyncMaxTextLength int
}

// Overrides 单次调用对默认参数的覆盖，零值字段不覆盖
type Overrides struct {
	Model        string       `json:"model,omitempty"`
	VoiceID      string       `json:"voice_id,omitempty"`
	Emotion      string       `json:"emotion,omitempty"`
	Speed        *float64     `json:"speed,omitempty"`
	Vol          *float64     `json:"vol,omitempty"`
	Pitch        *int         `json:"pitch,omitempty"`
	Format       string       `json:"format,omitempty"`
	SoundEffect  string       `json:"sound_effect,omitempty"`
	OutputFormat OutputFormat `json:"output_format,omitempty"`
}

// DefaultsFromConfig builds the request template from configuration.
func DefaultsFromConfig(c config.MiniMaxConfig) Defaults {
	req := Request{
		Model: c.Model,
		Voice: VoiceSetting{
			VoiceID: c.VoiceID,
			Speed:   c.Speed,
			Vol:     c.Vol,
			Pitch:   c.Pitch,
			Emotion: c.Emotion,
		},
		Audio: AudioSetting{
			SampleRate: c.SampleRate,
			Bitrate:    c.Bitrate,
			Format:     c.Format,
			Channel:    c.Channel,
		},
		LanguageBoost:        c.LanguageBoost,
		OutputFormat:         OutputFormat(c.OutputFormat),
		TrailingPause:        c.TrailingPause,
		TextNormalization:    c.TextNormalization,
		EnglishNormalization: c.EnglishNormalization,
		LatexRead:            c.LatexRead,
	}

	modify := &VoiceModify{
		Pitch:       c.ModifyPitch,
		Intensity:   c.ModifyIntensity,
		Timbre:      c.ModifyTimbre,
		SoundEffect: c.SoundEffect,
	}
	if !modify.IsZero() {
		req.Modify = modify
	}

	if len(c.PronunciationDict) > 0 {
		req.Pronunciation = make(map[string]string, len(c.PronunciationDict))
		for k, v := range c.PronunciationDict {
			req.Pronunciation[k] = v
		}
	}

	for _, m := range c.AudioMix {
		req.Audio.Mix = append(req.Audio.Mix, AudioMix{
			URL:     m.URL,
			Volume:  m.Volume,
			StartMS: m.StartMS,
			EndMS:   m.EndMS,
			Loop:    m.Loop,
		})
	}

	return Defaults{
		Request:            req,
		MaxTextLength:      c.MaxTextLength,
		AsyncMaxTextLength: c.AsyncMaxTextLength,
	}
}

// NewRequest returns a copy of the template carrying text and overrides.
func (d Defaults) NewRequest(text string, o *Overrides) *Request {
	req := d.Request.Clone()
	req.Text = text
	if o == nil {
		return req
	}

	if o.Model != "" {
		req.Model = o.Model
	}
	if o.VoiceID != "" {
		req.Voice.VoiceID = o.VoiceID
	}
	if o.Emotion != "" {
		req.Voice.Emotion = o.Emotion
	}
	if o.Speed != nil {
		req.Voice.Speed = *o.Speed
	}
	if o.Vol != nil {
		req.Voice.Vol = *o.Vol
	}
	if o.Pitch != nil {
		req.Voice.Pitch = *o.Pitch
	}
	if o.Format != "" {
		req.Audio.Format = o.Format
	}
	if o.SoundEffect != "" {
		if req.Modify == nil {
			req.Modify = &VoiceModify{}
		}
		req.Modify.SoundEffect = o.SoundEffect
	}
	if o.OutputFormat != "" {
		req.OutputFormat = o.OutputFormat
	}
	return req
}

// Check validates the template with a placeholder text so misconfiguration
// surfaces at startup. An empty voice id is allowed since callers may
// always supply one.
func (d Defaults) Check() error {
	req := d.NewRequest("check", nil)
	if req.Voice.VoiceID == "" {
		req.Voice.VoiceID = "placeholder"
	}
	return req.Validate(0)
}

// ModeOptionsFromConfig extracts the selector inputs from configuration.
func ModeOptionsFromConfig(c config.MiniMaxConfig) ModeOptions {
	return ModeOptions{
		AsyncEnabled:   c.AsyncEnabled,
		AsyncThreshold: c.AsyncThreshold,
		StreamEnabled:  c.StreamEnabled,
	}
}
