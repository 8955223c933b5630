package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/orchestrator"
	"github.com/BaSui01/speechflow/speech/voiceclone"
	"github.com/BaSui01/speechflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVoices struct {
	voices   []voiceclone.Voice
	expiring []voiceclone.ExpiringVoice
	remote   []speech.RemoteVoice
	err      error

	cloned     voiceclone.CloneInput
	batchFiles []string
	deleted    string
	testedID   string
	testedText string
}

func (f *fakeVoices) Clone(_ context.Context, in voiceclone.CloneInput) (*voiceclone.Voice, error) {
	f.cloned = in
	if f.err != nil {
		return nil, f.err
	}
	return &voiceclone.Voice{VoiceID: in.VoiceID, SourceFile: in.AudioFile, CreatedAt: time.Now()}, nil
}

func (f *fakeVoices) CloneBatch(_ context.Context, files []string) (*voiceclone.BatchResult, error) {
	f.batchFiles = files
	if f.err != nil {
		return nil, f.err
	}
	return &voiceclone.BatchResult{
		Items:     []voiceclone.BatchItem{{File: "a.mp3", VoiceID: "a_cloned"}, {File: "1.wav", VoiceID: "voice_1_cloned", Error: "rejected"}},
		Succeeded: 1,
		Failed:    1,
	}, nil
}

func (f *fakeVoices) List(context.Context) ([]voiceclone.Voice, error) { return f.voices, f.err }

func (f *fakeVoices) RemoteVoices(context.Context) ([]speech.RemoteVoice, error) {
	return f.remote, f.err
}

func (f *fakeVoices) Expiring(context.Context) ([]voiceclone.ExpiringVoice, error) {
	return f.expiring, nil
}

func (f *fakeVoices) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeVoices) Test(_ context.Context, id, text string) (*orchestrator.Result, error) {
	f.testedID, f.testedText = id, text
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{Audio: []byte("mp3"), Format: "mp3", Mode: speech.ModeSync}, nil
}

func (f *fakeVoices) TestBatch(_ context.Context, text string) ([]voiceclone.TestResult, error) {
	f.testedText = text
	if f.err != nil {
		return nil, f.err
	}
	return []voiceclone.TestResult{
		{VoiceID: "a_cloned", Mode: "sync", Size: 3},
		{VoiceID: "b_cloned", Error: "voice unavailable"},
	}, nil
}

// newVoiceMux 以真实路由模式注册，便于测试 PathValue
func newVoiceMux(h *VoiceHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/voices", h.HandleList)
	mux.HandleFunc("GET /api/v1/voices/remote", h.HandleListRemote)
	mux.HandleFunc("POST /api/v1/voices/clone", h.HandleClone)
	mux.HandleFunc("POST /api/v1/voices/clone/batch", h.HandleCloneBatch)
	mux.HandleFunc("DELETE /api/v1/voices/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/v1/voices/test", h.HandleTestBatch)
	mux.HandleFunc("POST /api/v1/voices/{id}/test", h.HandleTest)
	return mux
}

func TestVoiceHandler_ListMarksExpiring(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	voices := &fakeVoices{
		voices: []voiceclone.Voice{
			{VoiceID: "fresh_voice", CreatedAt: created, LastUsedAt: created.Add(5 * 24 * time.Hour)},
			{VoiceID: "stale_voice", CreatedAt: created, LastUsedAt: created},
		},
	}
	voices.expiring = []voiceclone.ExpiringVoice{{Voice: voices.voices[1], ExpiresAt: created.Add(7 * 24 * time.Hour)}}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/voices", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var out []api.VoiceResponse
	decodeData(t, w, &out)
	require.Len(t, out, 2)
	assert.False(t, out[0].Expiring)
	assert.Nil(t, out[0].ExpiresAt)
	assert.True(t, out[1].Expiring)
	require.NotNil(t, out[1].ExpiresAt)
	assert.True(t, out[1].ExpiresAt.Equal(created.Add(7*24*time.Hour)))
}

func TestVoiceHandler_ListRemoteEmpty(t *testing.T) {
	mux := newVoiceMux(NewVoiceHandler(&fakeVoices{}, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/voices/remote", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestVoiceHandler_Clone(t *testing.T) {
	voices := &fakeVoices{}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/voices/clone",
		`{"audio_file":"speaker.mp3","voice_id":"speaker_cloned","prompt_audio":"p.wav","prompt_text":"你好"}`))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, voiceclone.CloneInput{
		AudioFile:   "speaker.mp3",
		VoiceID:     "speaker_cloned",
		PromptAudio: "p.wav",
		PromptText:  "你好",
	}, voices.cloned)

	var out api.VoiceResponse
	decodeData(t, w, &out)
	assert.Equal(t, "speaker_cloned", out.VoiceID)
	assert.Equal(t, "speaker.mp3", out.SourceFile)
}

func TestVoiceHandler_CloneConflict(t *testing.T) {
	voices := &fakeVoices{err: types.NewError(types.ErrConflict, "voice already registered")}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/voices/clone",
		`{"audio_file":"speaker.mp3","voice_id":"speaker_cloned"}`))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVoiceHandler_CloneBatch(t *testing.T) {
	t.Run("without body clones main dir", func(t *testing.T) {
		voices := &fakeVoices{}
		mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/voices/clone/batch", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, voices.batchFiles)

		var out voiceclone.BatchResult
		decodeData(t, w, &out)
		assert.Equal(t, 1, out.Succeeded)
		assert.Equal(t, 1, out.Failed)
	})

	t.Run("explicit files", func(t *testing.T) {
		voices := &fakeVoices{}
		mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

		r := jsonRequest(http.MethodPost, "/api/v1/voices/clone/batch", `{"files":["a.mp3","b.wav"]}`)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"a.mp3", "b.wav"}, voices.batchFiles)
	})
}

func TestVoiceHandler_Delete(t *testing.T) {
	voices := &fakeVoices{}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/voices/speaker_cloned", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "speaker_cloned", voices.deleted)
}

func TestVoiceHandler_DeleteUpstreamFailure(t *testing.T) {
	voices := &fakeVoices{err: types.NewError(types.ErrTransientNetwork, "connection reset").WithRetryable(true)}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/voices/speaker_cloned", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"retryable":true`)
}

func TestVoiceHandler_Test(t *testing.T) {
	voices := &fakeVoices{}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	r := jsonRequest(http.MethodPost, "/api/v1/voices/speaker_cloned/test", `{"text":"试听一下"}`)
	r.Header.Set("Accept", "audio/mpeg")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "mp3", w.Body.String())
	assert.Equal(t, "speaker_cloned", voices.testedID)
	assert.Equal(t, "试听一下", voices.testedText)
}

func TestVoiceHandler_TestWithoutBody(t *testing.T) {
	voices := &fakeVoices{}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/voices/speaker_cloned/test", strings.NewReader("")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, voices.testedText)

	var out api.SynthesizeResponse
	decodeData(t, w, &out)
	assert.Equal(t, "sync", out.Mode)
}

func TestVoiceHandler_TestBatch(t *testing.T) {
	voices := &fakeVoices{}
	mux := newVoiceMux(NewVoiceHandler(voices, zap.NewNop()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/voices/test", `{"text":"大家好"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "大家好", voices.testedText)
	assert.Empty(t, voices.testedID)

	var out []voiceclone.TestResult
	decodeData(t, w, &out)
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[0].Size)
	assert.Equal(t, "voice unavailable", out[1].Error)
}
