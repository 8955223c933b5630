package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

// saveAndRestoreGlobalProviders 测试结束后恢复全局 provider
func saveAndRestoreGlobalProviders(t *testing.T) {
	t.Helper()
	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
}

func enabledConfig(name string) config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled:        true,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    name,
		SampleRate:     1.0,
		Environment:    "test",
		Insecure:       true,
		MetricInterval: time.Hour,
	}
}

// initForTest 初始化并注册关闭；没有 collector 时关闭可能返回连接错误
func initForTest(t *testing.T, cfg config.TelemetryConfig) *Providers {
	t.Helper()
	p, err := Init(cfg, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func TestInit_Disabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	p, err := Init(config.TelemetryConfig{Enabled: false}, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.tp)
	assert.Nil(t, p.mp)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	p := initForTest(t, enabledConfig("speechflow-test"))
	assert.NotNil(t, p.tp)
	assert.NotNil(t, p.mp)

	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, tpIsSDK)
	assert.True(t, mpIsSDK)
}

func TestInit_TLSCollector(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	cfg := enabledConfig("speechflow-tls-test")
	cfg.Insecure = false
	p := initForTest(t, cfg)
	assert.NotNil(t, p.tp)
}

func TestInit_SpansReachGlobalTracer(t *testing.T) {
	saveAndRestoreGlobalProviders(t)
	initForTest(t, enabledConfig("speechflow-span-test"))

	_, span := otel.Tracer("speech").Start(context.Background(), "speech.synthesize")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())
}

func TestNewSampler(t *testing.T) {
	root := func(s sdktrace.Sampler) sdktrace.SamplingDecision {
		return s.ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       trace.TraceID{0x01},
			Name:          "speech.synthesize",
		}).Decision
	}

	assert.Equal(t, sdktrace.RecordAndSample, root(newSampler(1)))
	assert.Equal(t, sdktrace.RecordAndSample, root(newSampler(2)))
	assert.Equal(t, sdktrace.Drop, root(newSampler(0)))
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), enabledConfig("speechflow-res"), "v1.2.3")
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "speechflow-res", attrs["service.name"])
	assert.Equal(t, "v1.2.3", attrs["service.version"])
	assert.Equal(t, "minimax", attrs[string(ProviderAttr)])
	assert.Equal(t, "test", attrs["deployment.environment"])
}

func TestProviders_Shutdown_Nil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestBuildVersion(t *testing.T) {
	// 测试二进制的构建信息通常是 "(devel)"
	assert.Equal(t, "dev", buildVersion())
}
