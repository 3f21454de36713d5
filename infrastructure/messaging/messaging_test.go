package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gentree/domain/events"
)

type recordingHandler struct {
	only string
	seen []string
	err  error
}

func (h *recordingHandler) CanHandle(eventType string) bool {
	return h.only == "" || h.only == eventType
}

func (h *recordingHandler) Handle(_ context.Context, e events.DomainEvent) error {
	h.seen = append(h.seen, e.GetEventType()+":"+e.GetAggregateID())
	return h.err
}

func TestInProcessBus_Routing(t *testing.T) {
	ctx := context.Background()
	bus := NewInProcessBus(zaptest.NewLogger(t))
	now := time.Now()

	typed := &recordingHandler{}
	all := &recordingHandler{}
	filtered := &recordingHandler{only: events.TypePersonRemoved}
	require.NoError(t, bus.Subscribe(events.TypePersonAdded, typed))
	require.NoError(t, bus.Subscribe(AllEvents, all))
	require.NoError(t, bus.Subscribe(AllEvents, filtered))

	err := bus.PublishBatch(ctx, []events.DomainEvent{
		events.NewPersonAdded("a", "Ann", now),
		events.NewPersonRemoved("b", now),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"person.added:a"}, typed.seen)
	assert.Equal(t, []string{"person.added:a", "person.removed:b"}, all.seen)
	assert.Equal(t, []string{"person.removed:b"}, filtered.seen)
}

func TestInProcessBus_HandlerErrorsJoined(t *testing.T) {
	bus := NewInProcessBus(nil)
	boom := errors.New("boom")
	failing := &recordingHandler{err: boom}
	after := &recordingHandler{}
	require.NoError(t, bus.Subscribe(AllEvents, failing))
	require.NoError(t, bus.Subscribe(AllEvents, after))

	err := bus.Publish(context.Background(), events.NewRootChanged("a", time.Now()))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, after.seen, 1, "later handlers still run")
}

func TestInProcessBus_SubscribeValidation(t *testing.T) {
	bus := NewInProcessBus(nil)
	assert.Error(t, bus.Subscribe("", &recordingHandler{}))
	assert.Error(t, bus.Subscribe(AllEvents, nil))
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	args := m.Called(ctx, channel, message)
	cmd := goredis.NewIntCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	}
	return cmd
}

func TestRedisForwarder_Handle(t *testing.T) {
	pub := &mockPublisher{}
	var published []byte
	pub.On("Publish", mock.Anything, "gentree:events", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil)

	f := NewRedisForwarder(pub, "")
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, f.Handle(context.Background(), events.NewNodeMoved("a", 1, 2, ts)))
	pub.AssertExpectations(t)

	var env Envelope
	require.NoError(t, json.Unmarshal(published, &env))
	assert.Equal(t, events.TypeNodeMoved, env.Type)
	assert.Equal(t, "a", env.AggregateID)
	assert.True(t, ts.Equal(env.OccurredAt))
	assert.Contains(t, string(env.Payload), `"person_id":"a"`)
}

func TestRedisForwarder_PropagatesError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "chan", mock.Anything).Return(errors.New("connection reset"))

	f := NewRedisForwarder(pub, "chan")
	err := f.Handle(context.Background(), events.NewPersonRemoved("a", time.Now()))
	assert.EqualError(t, err, "connection reset")
}
