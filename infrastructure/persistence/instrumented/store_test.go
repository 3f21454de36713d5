package instrumented

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"gentree/infrastructure/persistence/memory"
	pkgerrors "gentree/pkg/errors"
	"gentree/pkg/observability"
)

func TestStore_RecordsMetricsAndSpans(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	collector := observability.NewCollector("gentree")

	s := NewStore(memory.NewStore(), "memory", collector, observability.NewTracer("store", provider))

	_, err := s.Get(ctx, "gentree:tree")
	assert.True(t, pkgerrors.IsNotFound(err))
	require.NoError(t, s.Set(ctx, "gentree:tree", []byte(`{}`)))
	_, err = s.Get(ctx, "gentree:tree")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.StoreOperations.WithLabelValues("memory", "get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.StoreOperations.WithLabelValues("memory", "get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.StoreOperations.WithLabelValues("memory", "set", "ok")))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "store.get", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code, "missing key is not a span error")
	assert.Equal(t, "store.set", spans[1].Name())
}

func TestStore_NilCollaborators(t *testing.T) {
	s := NewStore(memory.NewStore(), "memory", nil, nil)
	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
	assert.NoError(t, s.Close())
}
