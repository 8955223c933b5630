package chatmode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/orchestrator"
	"github.com/BaSui01/speechflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestDecider_Priority(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		d := NewDecider(NewMemoryStore(0), 0)
		got, err := d.Decide(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, Decision{Reason: ReasonNone}, got)
	})

	t.Run("pending", func(t *testing.T) {
		s := NewMemoryStore(0)
		require.NoError(t, s.MarkPending(ctx, "c", "calm"))
		d := NewDecider(s, 0)

		got, err := d.Decide(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, Decision{Voice: true, Emotion: "calm", Reason: ReasonPending}, got)

		got, err = d.Decide(ctx, "c")
		require.NoError(t, err)
		assert.False(t, got.Voice)
	})

	t.Run("always wins and consumes pending", func(t *testing.T) {
		s := NewMemoryStore(0)
		require.NoError(t, s.SetAlways(ctx, "c", true))
		require.NoError(t, s.MarkPending(ctx, "c", "angry"))
		d := NewDecider(s, 0)

		got, err := d.Decide(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, Decision{Voice: true, Emotion: "angry", Reason: ReasonAlways}, got)

		pending, _, _ := s.ConsumePending(ctx, "c")
		assert.False(t, pending)
	})

	t.Run("random", func(t *testing.T) {
		d := NewDecider(NewMemoryStore(0), 0.3)
		d.rand = func() float64 { return 0.1 }
		got, err := d.Decide(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, ReasonRandom, got.Reason)

		d.rand = func() float64 { return 0.5 }
		got, err = d.Decide(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, ReasonNone, got.Reason)
	})
}

func TestNewDecider_ClampsProbability(t *testing.T) {
	assert.Equal(t, 1.0, NewDecider(NewMemoryStore(0), 7).probability)
	assert.Equal(t, 0.0, NewDecider(NewMemoryStore(0), -1).probability)
}

func TestCleanReplyText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"你好【动作：挥手】世界", "你好世界"},
		{"  hello \n\t world  ", "hello world"},
		{"【全部是标注】", ""},
		{"a【x】 b 【y】c", "a b c"},
		{"未闭合【标注", "未闭合【标注"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanReplyText(tt.in), tt.in)
	}
}

func TestCleanReplyText_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		out := CleanReplyText(rapid.String().Draw(t, "text"))
		assert.NotContains(t, out, "  ")
		assert.Equal(t, out, CleanReplyText(out))
	})
}

type fakeSynth struct {
	reqs []*speech.Request
	err  error
}

func (f *fakeSynth) Synthesize(_ context.Context, req *speech.Request) (*orchestrator.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{Audio: []byte("audio"), Format: req.Audio.Format}, nil
}

func newResponder(store Store, synth Synthesizer) *Responder {
	defaults := speech.DefaultsFromConfig(config.DefaultMiniMaxConfig())
	return NewResponder(NewDecider(store, 0), synth, defaults, zap.NewNop())
}

func TestResponder_VoiceReply(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	require.NoError(t, store.MarkPending(ctx, "c", "happy"))
	synth := &fakeSynth{}

	reply, err := newResponder(store, synth).Respond(ctx, "c", "好的【笑】 马上来")
	require.NoError(t, err)
	require.NotNil(t, reply.Audio)
	assert.Equal(t, "好的【笑】 马上来", reply.Text)
	require.Len(t, synth.reqs, 1)
	assert.Equal(t, "好的 马上来", synth.reqs[0].Text)
	assert.Equal(t, "happy", synth.reqs[0].Voice.Emotion)
}

func TestResponder_TextReply(t *testing.T) {
	synth := &fakeSynth{}
	reply, err := newResponder(NewMemoryStore(0), synth).Respond(context.Background(), "c", "hi")
	require.NoError(t, err)
	assert.Nil(t, reply.Audio)
	assert.Empty(t, synth.reqs)
}

func TestResponder_EmptyAfterCleaning(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.SetAlways(ctx, "c", true))
	synth := &fakeSynth{}

	reply, err := newResponder(store, synth).Respond(ctx, "c", "【只有标注】")
	require.NoError(t, err)
	assert.False(t, reply.Decision.Voice)
	assert.Empty(t, synth.reqs)
}

func TestResponder_Errors(t *testing.T) {
	ctx := context.Background()

	store := NewMemoryStore(0)
	require.NoError(t, store.SetAlways(ctx, "c", true))
	reply, err := newResponder(store, &fakeSynth{err: types.NewValidationError("text", "too long")}).Respond(ctx, "c", "hi")
	require.NoError(t, err)
	assert.Nil(t, reply.Audio)
	assert.Equal(t, ReasonNone, reply.Decision.Reason)

	upstream := types.NewError(types.ErrAuthentication, "bad key")
	_, err = newResponder(store, &fakeSynth{err: upstream}).Respond(ctx, "c", "hi")
	assert.True(t, errors.Is(err, upstream))
}

func TestGuidelines(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	text, active, err := Guidelines(ctx, s, "c")
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, text)

	require.NoError(t, s.SetAlways(ctx, "c", true))
	text, active, err = Guidelines(ctx, s, "c")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Contains(t, text, "<#0.5#>")
	assert.Contains(t, text, "(laughs)")
}
