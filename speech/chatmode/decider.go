package chatmode

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/orchestrator"
	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
)

// Reason 语音回复的触发原因
type Reason string

const (
	ReasonNone    Reason = "none"
	ReasonAlways  Reason = "always"
	ReasonPending Reason = "pending"
	ReasonRandom  Reason = "random"
)

// Decision 一次回复的语音决策
type Decision struct {
	Voice   bool   `json:"voice"`
	Emotion string `json:"emotion,omitempty"`
	Reason  Reason `json:"reason"`
}

// Decider 按优先级决定是否语音回复
type Decider struct {
	store       Store
	probability float64
	rand        func() float64
}

// NewDecider creates a decider. probability is clamped to [0,1].
func NewDecider(store Store, probability float64) *Decider {
	return &Decider{
		store:       store,
		probability: min(max(probability, 0), 1),
		rand:        rand.Float64,
	}
}

// Store 返回底层存储
func (d *Decider) Store() Store { return d.store }

// Decide 常驻语音时也会消费待发标记，以取得其情绪
func (d *Decider) Decide(ctx context.Context, chatID string) (Decision, error) {
	always, err := d.store.IsAlways(ctx, chatID)
	if err != nil {
		return Decision{}, err
	}
	pending, emotion, err := d.store.ConsumePending(ctx, chatID)
	if err != nil {
		return Decision{}, err
	}

	switch {
	case always:
		return Decision{Voice: true, Emotion: emotion, Reason: ReasonAlways}, nil
	case pending:
		return Decision{Voice: true, Emotion: emotion, Reason: ReasonPending}, nil
	case d.probability > 0 && d.rand() < d.probability:
		return Decision{Voice: true, Reason: ReasonRandom}, nil
	}
	return Decision{Reason: ReasonNone}, nil
}

var bracketNote = regexp.MustCompile(`【[^】]*】`)

// CleanReplyText 去掉【...】标注并压缩空白
func CleanReplyText(text string) string {
	text = bracketNote.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Synthesizer 合成回复语音
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speech.Request) (*orchestrator.Result, error)
}

// Reply 一条会话回复
type Reply struct {
	Text     string               `json:"text"`
	Decision Decision             `json:"decision"`
	Audio    *orchestrator.Result `json:"-"`
}

// Responder 组合决策与合成
type Responder struct {
	decider  *Decider
	synth    Synthesizer
	defaults speech.Defaults
	logger   *zap.Logger
}

// NewResponder creates a responder.
func NewResponder(decider *Decider, synth Synthesizer, defaults speech.Defaults, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{decider: decider, synth: synth, defaults: defaults, logger: logger.With(zap.String("component", "chatmode"))}
}

// Decider 返回决策器
func (r *Responder) Decider() *Decider { return r.decider }

// Respond 判断并在需要时合成语音。清理后为空的文本不合成
func (r *Responder) Respond(ctx context.Context, chatID, text string) (*Reply, error) {
	decision, err := r.decider.Decide(ctx, chatID)
	if err != nil {
		return nil, err
	}
	reply := &Reply{Text: text, Decision: decision}
	if !decision.Voice {
		return reply, nil
	}

	cleaned := CleanReplyText(text)
	if cleaned == "" {
		r.logger.Debug("reply empty after cleaning, sending text", zap.String("chat_id", chatID))
		reply.Decision = Decision{Reason: ReasonNone}
		return reply, nil
	}

	var o *speech.Overrides
	if decision.Emotion != "" {
		o = &speech.Overrides{Emotion: decision.Emotion}
	}
	result, err := r.synth.Synthesize(ctx, r.defaults.NewRequest(cleaned, o))
	if err != nil {
		if types.IsErrorCode(err, types.ErrValidation) {
			// 文本不适合合成时退回文字回复
			r.logger.Warn("voice reply rejected, sending text", zap.String("chat_id", chatID), zap.Error(err))
			reply.Decision = Decision{Reason: ReasonNone}
			return reply, nil
		}
		return nil, err
	}
	reply.Audio = result
	return reply, nil
}
