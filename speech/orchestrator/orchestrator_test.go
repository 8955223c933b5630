package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/async"
	"github.com/BaSui01/speechflow/speech/gate"
	"github.com/BaSui01/speechflow/speech/ratelimit"
	"github.com/BaSui01/speechflow/speech/retry"
	"github.com/BaSui01/speechflow/testutil"
	"github.com/BaSui01/speechflow/testutil/mocks"
	"github.com/BaSui01/speechflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	provider *mocks.MockProvider
	gate     *gate.Gate
	orch     *Orchestrator
}

func newFixture(t *testing.T, modes speech.ModeOptions, opts ...Option) *fixture {
	t.Helper()
	provider := mocks.NewMockProvider()
	limiter := ratelimit.New(100, ratelimit.WithWindow(time.Hour))
	retryer := retry.NewBackoffRetryer(retry.NewPolicy(3, time.Millisecond), zap.NewNop())
	g := gate.New(limiter, retryer)
	poller := async.NewPoller(provider, g, 2*time.Millisecond, time.Second)
	limits := Limits{Modes: modes, MaxTextLength: 10000, AsyncMaxTextLength: 100000}
	return &fixture{
		provider: provider,
		gate:     g,
		orch:     New(provider, g, poller, limits, opts...),
	}
}

func request(text string) *speech.Request {
	return &speech.Request{
		Model:        "speech-2.8-hd",
		Text:         text,
		Voice:        speech.VoiceSetting{VoiceID: "male-qn-qingse", Speed: 1, Vol: 1},
		Audio:        speech.AudioSetting{SampleRate: 32000, Bitrate: 128000, Format: "mp3", Channel: 1},
		OutputFormat: speech.OutputHex,
	}
}

func TestSynthesize_ValidationBeforeNetwork(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{})
	req := request("你好")
	req.Voice.Speed = 3.0

	_, err := f.orch.Synthesize(context.Background(), req)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
	assert.Equal(t, 0, f.provider.TotalCalls())
	assert.Equal(t, 100, f.gate.Limiter().Available())
}

func TestSynthesize_Sync(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{})
	f.provider.WithAudio([]byte("sync-audio"))

	res, err := f.orch.Synthesize(context.Background(), request("你好"))
	require.NoError(t, err)
	assert.Equal(t, speech.ModeSync, res.Mode)
	assert.Equal(t, []byte("sync-audio"), res.Audio)
	assert.Equal(t, 1, f.provider.Calls(mocks.OpSynthesize))
	assert.Equal(t, 99, f.gate.Limiter().Available())
}

func TestSynthesize_RetriesTransientThenSucceeds(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{})
	transient := types.NewError(types.ErrTransientNetwork, "reset").WithRetryable(true)
	f.provider.WithFailures(transient, transient)

	_, err := f.orch.Synthesize(context.Background(), request("你好"))
	require.NoError(t, err)
	assert.Equal(t, 3, f.provider.Calls(mocks.OpSynthesize))
	// 每次尝试一个令牌
	assert.Equal(t, 97, f.gate.Limiter().Available())
}

func TestSynthesize_AuthErrorNotRetried(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{})
	f.provider.WithError(types.NewError(types.ErrAuthentication, "invalid key"))

	_, err := f.orch.Synthesize(context.Background(), request("你好"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrAuthentication))
	assert.Equal(t, 1, f.provider.Calls(mocks.OpSynthesize))
}

func TestSynthesize_StreamingCollectsChunks(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{StreamEnabled: true})
	f.provider.WithStreamChunks([]byte("a"), []byte("b"), []byte("c"))

	res, err := f.orch.Synthesize(context.Background(), request("你好"))
	require.NoError(t, err)
	assert.Equal(t, speech.ModeStreaming, res.Mode)
	assert.Equal(t, []byte("abc"), res.Audio)
	assert.Equal(t, 0, f.provider.Calls(mocks.OpSynthesize))
}

func TestSynthesize_StreamInterruptedKeepsPartialAudio(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{StreamEnabled: true})
	f.provider.
		WithStreamChunks([]byte("ab"), []byte("cd")).
		WithStreamError(types.NewError(types.ErrTransientNetwork, "connection reset").WithRetryable(true))

	res, err := f.orch.Synthesize(context.Background(), request("你好"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrStreamInterrupted))
	require.NotNil(t, res)
	assert.Equal(t, []byte("abcd"), res.Audio)
	assert.Equal(t, speech.ModeStreaming, res.Mode)
	// 中途失败不重试
	assert.Equal(t, 1, f.provider.Calls(mocks.OpStream))
}

func TestSynthesize_AsyncEndToEnd(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{AsyncEnabled: true, AsyncThreshold: 5000, StreamEnabled: true})
	f.provider.
		WithAudio([]byte("long-audio")).
		WithAsyncStates(speech.TaskPending, speech.TaskRunning, speech.TaskSucceeded)

	res, err := f.orch.Synthesize(context.Background(), request(strings.Repeat("长", 6000)))
	require.NoError(t, err)
	assert.Equal(t, speech.ModeAsync, res.Mode)
	assert.NotEmpty(t, res.Audio)
	assert.Equal(t, "task-1", res.JobID)

	assert.Equal(t, 1, f.provider.Calls(mocks.OpSubmitAsync))
	assert.Equal(t, 3, f.provider.Calls(mocks.OpQueryAsync))
	assert.Equal(t, 0, f.provider.Calls(mocks.OpStream))
	// 提交 1 + 轮询 3
	assert.Equal(t, 96, f.gate.Limiter().Available())
}

func TestSynthesize_LongTextWithoutAsyncRejected(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{StreamEnabled: true})

	_, err := f.orch.Synthesize(context.Background(), request(strings.Repeat("长", 10001)))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
	assert.Equal(t, 0, f.provider.TotalCalls())
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

type countingRecorder struct {
	mu        sync.Mutex
	statuses  []string
	hits, mis int
}

func (r *countingRecorder) RecordSynthesis(mode, status string, _ time.Duration, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, mode+":"+status)
}

func (r *countingRecorder) RecordCacheHit(string)  { r.mu.Lock(); r.hits++; r.mu.Unlock() }
func (r *countingRecorder) RecordCacheMiss(string) { r.mu.Lock(); r.mis++; r.mu.Unlock() }

func TestSynthesize_CacheHitSkipsProvider(t *testing.T) {
	cache := &memCache{data: map[string][]byte{}}
	rec := &countingRecorder{}
	var used []string
	f := newFixture(t, speech.ModeOptions{},
		WithCache(cache),
		WithRecorder(rec),
		WithVoiceUsage(func(_ context.Context, voiceID string) { used = append(used, voiceID) }))

	first, err := f.orch.Synthesize(context.Background(), request("你好"))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.orch.Synthesize(context.Background(), request("你好"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Audio, second.Audio)

	assert.Equal(t, 1, f.provider.Calls(mocks.OpSynthesize))
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.mis)
	assert.Equal(t, []string{"sync:success", "sync:success"}, rec.statuses)
	assert.Equal(t, []string{"male-qn-qingse"}, used)
}

func TestStream_ForwardsChunksInOrder(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{StreamEnabled: true})
	f.provider.WithStreamChunks([]byte("1"), []byte("2"), []byte("3"))

	ch, err := f.orch.Stream(testutil.TestContext(t), request("你好"))
	require.NoError(t, err)

	got, streamErr := testutil.CollectStreamAudio(ch)
	require.NoError(t, streamErr)
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestStream_ConnectRetried(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{StreamEnabled: true})
	f.provider.WithFailures(types.NewError(types.ErrRateLimited, "429").WithRetryable(true))

	ch, err := f.orch.Stream(context.Background(), request("你好"))
	require.NoError(t, err)
	for range ch {
	}
	assert.Equal(t, 2, f.provider.Calls(mocks.OpStream))
}

func TestStream_CallerCancelStopsForwarding(t *testing.T) {
	f := newFixture(t, speech.ModeOptions{StreamEnabled: true})
	f.provider.WithStreamChunks([]byte("1"), []byte("2"), []byte("3"))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.orch.Stream(ctx, request("你好"))
	require.NoError(t, err)

	<-ch
	cancel()

	assert.True(t, testutil.WaitClosed(ch, time.Second), "stream not closed after cancel")
}
