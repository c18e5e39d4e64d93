package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishTransition(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	w := &recordingWriter{}
	p := &publisher{writer: w, topic: "task.transitions"}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	err := p.PublishTransition(ctx, &domain.TransitionRecord{
		TaskID:             "T1",
		UserID:             "u1",
		Event:              domain.EventHold,
		FromStatus:         domain.StatusStarted,
		ToStatus:           domain.StatusOnHold,
		AccumulatedSeconds: 4530,
		CreatedAt:          at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "task.transitions", msg.Topic)
	assert.Equal(t, "T1", string(msg.Key))
	assert.NotEmpty(t, HeaderCarrier(msg.Headers).Get("traceparent"))

	var body TransitionMessage
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, domain.StatusOnHold, body.To)
	assert.Equal(t, "01:15:30", body.Accumulated)
}

func TestPublishTransitionWrapsWriterError(t *testing.T) {
	p := &publisher{writer: &recordingWriter{err: errors.New("broker down")}, topic: "t"}
	err := p.PublishTransition(context.Background(), &domain.TransitionRecord{TaskID: "T1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	c := HeaderCarrier{}
	c.Set("k", "1")
	c.Set("k", "2")
	c.Set("other", "x")
	assert.Equal(t, "2", c.Get("k"))
	assert.ElementsMatch(t, []string{"k", "other"}, c.Keys())
	assert.Equal(t, "", c.Get("missing"))
}
