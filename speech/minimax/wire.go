package minimax

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/speechflow/speech"
)

// ---- 请求体 ----

type t2aRequest struct {
	Model                string             `json:"model"`
	Text                 string             `json:"text"`
	Stream               bool               `json:"stream"`
	LanguageBoost        string             `json:"language_boost,omitempty"`
	OutputFormat         string             `json:"output_format,omitempty"`
	VoiceSetting         voiceSetting       `json:"voice_setting"`
	AudioSetting         audioSetting       `json:"audio_setting"`
	VoiceModify          *voiceModify       `json:"voice_modify,omitempty"`
	PronunciationDict    *pronunciationDict `json:"pronunciation_dict,omitempty"`
	TextNormalization    bool               `json:"text_normalization,omitempty"`
	EnglishNormalization bool               `json:"english_normalization,omitempty"`
	LatexRead            bool               `json:"latex_read,omitempty"`
}

type voiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Vol     float64 `json:"vol"`
	Pitch   int     `json:"pitch"`
	Emotion string  `json:"emotion,omitempty"`
}

type audioSetting struct {
	SampleRate int        `json:"sample_rate"`
	Bitrate    int        `json:"bitrate"`
	Format     string     `json:"format"`
	Channel    int        `json:"channel"`
	AudioMix   []audioMix `json:"audio_mix,omitempty"`
}

type audioMix struct {
	AudioURL  string  `json:"audio_url"`
	StartTime int     `json:"start_time"`
	EndTime   int     `json:"end_time"`
	Volume    float64 `json:"volume"`
	Repeat    bool    `json:"repeat"`
}

type voiceModify struct {
	Pitch        int    `json:"pitch,omitempty"`
	Intensity    int    `json:"intensity,omitempty"`
	Timbre       int    `json:"timbre,omitempty"`
	SoundEffects string `json:"sound_effects,omitempty"`
}

type pronunciationDict struct {
	Tone []string `json:"tone"`
}

// ---- 响应体 ----

type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type t2aResponse struct {
	Data *struct {
		Audio    string `json:"audio"`
		AudioURL string `json:"audio_url"`
		Status   int    `json:"status"`
	} `json:"data"`
	ExtraInfo *speech.AudioInfo `json:"extra_info"`
	TraceID   string            `json:"trace_id"`
	BaseResp  baseResp          `json:"base_resp"`
}

type asyncSubmitResponse struct {
	TaskID flexID `json:"task_id"`
	FileID flexID `json:"file_id"`
	Data   *struct {
		Audio    string `json:"audio"`
		AudioURL string `json:"audio_url"`
	} `json:"data"`
	BaseResp baseResp `json:"base_resp"`
}

type asyncQueryResponse struct {
	TaskID   flexID `json:"task_id"`
	Status   string `json:"status"`
	FileID   flexID `json:"file_id"`
	AudioURL string `json:"audio_url"`
	Data     *struct {
		Audio    string `json:"audio"`
		AudioURL string `json:"audio_url"`
	} `json:"data"`
	BaseResp baseResp `json:"base_resp"`
}

type uploadResponse struct {
	File *struct {
		FileID   int64  `json:"file_id"`
		Filename string `json:"filename"`
		Bytes    int64  `json:"bytes"`
	} `json:"file"`
	BaseResp baseResp `json:"base_resp"`
}

type cloneRequest struct {
	FileID                  int64        `json:"file_id"`
	VoiceID                 string       `json:"voice_id"`
	NeedNoiseReduction      bool         `json:"need_noise_reduction"`
	NeedVolumeNormalization bool         `json:"need_volume_normalization"`
	Accuracy                float64      `json:"accuracy,omitempty"`
	Text                    string       `json:"text,omitempty"`
	Model                   string       `json:"model,omitempty"`
	ClonePrompt             *clonePrompt `json:"clone_prompt,omitempty"`
}

type clonePrompt struct {
	PromptAudio int64  `json:"prompt_audio"`
	PromptText  string `json:"prompt_text"`
}

type cloneResponse struct {
	InputSensitive     bool     `json:"input_sensitive"`
	InputSensitiveType int      `json:"input_sensitive_type"`
	DemoAudio          string   `json:"demo_audio"`
	BaseResp           baseResp `json:"base_resp"`
}

type deleteVoiceRequest struct {
	VoiceType string `json:"voice_type"`
	VoiceID   string `json:"voice_id"`
}

type getVoiceRequest struct {
	VoiceType string `json:"voice_type"`
}

type getVoiceResponse struct {
	VoiceCloning []speech.RemoteVoice `json:"voice_cloning"`
	BaseResp     baseResp             `json:"base_resp"`
}

// flexID 兼容上游以数字或字符串返回的 ID
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

// ---- 转换 ----

// buildT2ARequest converts a validated request into the provider body.
func buildT2ARequest(req *speech.Request, stream bool) *t2aRequest {
	body := &t2aRequest{
		Model:         req.Model,
		Text:          withTrailingPause(req.Text, req.TrailingPause),
		Stream:        stream,
		LanguageBoost: req.LanguageBoost,
		OutputFormat:  string(req.OutputFormat),
		VoiceSetting: voiceSetting{
			VoiceID: req.Voice.VoiceID,
			Speed:   req.Voice.Speed,
			Vol:     req.Voice.Vol,
			Pitch:   req.Voice.Pitch,
			Emotion: req.Voice.Emotion,
		},
		AudioSetting: audioSetting{
			SampleRate: req.Audio.SampleRate,
			Bitrate:    req.Audio.Bitrate,
			Format:     req.Audio.Format,
			Channel:    req.Audio.Channel,
		},
		TextNormalization:    req.TextNormalization,
		EnglishNormalization: req.EnglishNormalization,
		LatexRead:            req.LatexRead,
	}

	// 流式只支持 hex
	if stream {
		body.OutputFormat = ""
	}

	if !req.Modify.IsZero() {
		body.VoiceModify = &voiceModify{
			Pitch:        req.Modify.Pitch,
			Intensity:    req.Modify.Intensity,
			Timbre:       req.Modify.Timbre,
			SoundEffects: req.Modify.SoundEffect,
		}
	}

	if len(req.Pronunciation) > 0 {
		tokens := make([]string, 0, len(req.Pronunciation))
		for token := range req.Pronunciation {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)
		dict := &pronunciationDict{Tone: make([]string, 0, len(tokens))}
		for _, token := range tokens {
			dict.Tone = append(dict.Tone, token+"/"+req.Pronunciation[token])
		}
		body.PronunciationDict = dict
	}

	for _, m := range req.Audio.Mix {
		body.AudioSetting.AudioMix = append(body.AudioSetting.AudioMix, audioMix{
			AudioURL:  m.URL,
			StartTime: m.StartMS,
			EndTime:   m.EndMS,
			Volume:    m.Volume,
			Repeat:    m.Loop,
		})
	}

	return body
}

// withTrailingPause appends a pause marker such as <#1.50#>.
func withTrailingPause(text string, seconds float64) string {
	if seconds <= 0 {
		return text
	}
	if seconds < 0.01 {
		seconds = 0.01
	}
	return fmt.Sprintf("%s<#%.2f#>", text, seconds)
}

// parseTaskState normalizes provider task status strings.
func parseTaskState(s string) (speech.TaskState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued", "queueing", "submitted":
		return speech.TaskPending, true
	case "processing", "running", "in_progress":
		return speech.TaskRunning, true
	case "success", "succeeded", "completed", "finished":
		return speech.TaskSucceeded, true
	case "failed", "fail", "error", "expired":
		return speech.TaskFailed, true
	default:
		return "", false
	}
}
