package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/planner"
	"github.com/nadzzz/cozmoagent/internal/stage"
	"github.com/nadzzz/cozmoagent/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sent struct {
	target  message.Target
	payload []byte
}

type fakeTransport struct {
	name string
	err  error

	mu   sync.Mutex
	sent []sent
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Listen(ctx context.Context, _ transport.Handler) error {
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Send(_ context.Context, target message.Target, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{target, payload})
	return f.err
}

func (f *fakeTransport) Close() error { return nil }

type fakeRecorder struct {
	units []iu.CommandUnit
	err   error
}

func (r *fakeRecorder) Record(_ context.Context, units []iu.CommandUnit) error {
	r.units = append(r.units, units...)
	return r.err
}

func replying(reply string) planner.Func {
	return func(context.Context, string) (message.Reply, error) {
		return message.Reply(reply), nil
	}
}

func TestHandleRoutesPlan(t *testing.T) {
	st := stage.New(replying(`[{"decision":"scan-surroundings","concepts":{}},{"decision":"return-to-base","concepts":{}}]`))
	robot := &fakeTransport{name: "http"}
	bus := &fakeTransport{name: "mqtt"}
	rec := &fakeRecorder{}
	d := New(st, []transport.Transport{robot, bus}, []message.Target{
		{Name: "cozmo", Endpoint: "http://cozmo.local/execute", Protocol: "http"},
		{Name: "audit", Endpoint: "cozmo/audit", Protocol: "mqtt"},
		{Name: "orphan", Endpoint: "x", Protocol: "grpc"},
	}, rec)

	batch := iu.Batch{{Text: "find the cube and go home", Committed: true}}
	result, err := d.Handle(context.Background(), batch)
	require.NoError(t, err)

	require.NotEmpty(t, batch[0].ID, "units without identity are assigned one")
	assert.Equal(t, batch[0].ID, result.BatchID)
	require.Len(t, result.Commands, 2)
	assert.Equal(t, "scan-surroundings", result.Commands[0].Function)
	assert.Equal(t, 2, result.Commands[1].StepNumber)
	assert.Equal(t, []string{"cozmo", "audit"}, result.RoutedTo)
	assert.False(t, result.Dropped)
	assert.Empty(t, result.Error)

	assert.Len(t, rec.units, 2)

	require.Len(t, robot.sent, 1)
	var payload Payload
	require.NoError(t, json.Unmarshal(robot.sent[0].payload, &payload))
	assert.Equal(t, batch[0].ID, payload.GroundedIn)
	require.Len(t, payload.Updates, 4)
	assert.Equal(t, iu.UpdateAdd, payload.Updates[0].Type)
	assert.Equal(t, iu.UpdateCommit, payload.Updates[1].Type)
	assert.Equal(t, "return-to-base", payload.Updates[3].Unit.Function)

	require.Len(t, bus.sent, 1)
	assert.Equal(t, "cozmo/audit", bus.sent[0].target.Endpoint)
}

func TestHandleFailingTargetDoesNotStopOthers(t *testing.T) {
	st := stage.New(replying(`{"decision":"speak","concepts":{"text":"hi"}}`))
	broken := &fakeTransport{name: "grpc", err: errors.New("unavailable")}
	ok := &fakeTransport{name: "http"}
	d := New(st, []transport.Transport{broken, ok}, []message.Target{
		{Name: "first", Protocol: "grpc", Endpoint: "robot:50052"},
		{Name: "second", Protocol: "http", Endpoint: "http://robot/execute"},
	}, &fakeRecorder{err: errors.New("disk full")})

	result, err := d.Handle(context.Background(), iu.Batch{iu.NewTextUnit("say hi", true)})
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, result.RoutedTo)
	assert.Len(t, result.Commands, 1)
	assert.Len(t, broken.sent, 1)
}

func TestHandleNothingCommitted(t *testing.T) {
	st := stage.New(replying(`{"decision":"speak","concepts":{"text":"hi"}}`))
	robot := &fakeTransport{name: "http"}
	d := New(st, []transport.Transport{robot}, []message.Target{{Name: "cozmo", Protocol: "http"}}, nil)

	result, err := d.Handle(context.Background(), iu.Batch{iu.NewTextUnit("say", false)})
	require.NoError(t, err)
	assert.Empty(t, result.Commands)
	assert.Empty(t, result.BatchID)
	assert.Empty(t, robot.sent)
}

func TestHandlePlannerFailure(t *testing.T) {
	st := stage.New(planner.Func(func(context.Context, string) (message.Reply, error) {
		return nil, errors.New("upstream timeout")
	}))
	robot := &fakeTransport{name: "http"}
	d := New(st, []transport.Transport{robot}, []message.Target{{Name: "cozmo", Protocol: "http"}}, nil)

	result, err := d.Handle(context.Background(), iu.Batch{iu.NewTextUnit("go home", true)})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "upstream timeout")
	assert.Empty(t, result.Commands)
	assert.Empty(t, robot.sent)
}

func TestHandleDroppedWhileBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	st := stage.New(planner.Func(func(context.Context, string) (message.Reply, error) {
		close(started)
		<-release
		return message.Reply(`[]`), nil
	}))
	d := New(st, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Handle(context.Background(), iu.Batch{iu.NewTextUnit("go home", true)})
	}()
	<-started

	result, err := d.Handle(context.Background(), iu.Batch{iu.NewTextUnit("stop", true)})
	require.NoError(t, err)
	assert.True(t, result.Dropped)
	assert.Empty(t, result.Commands)

	close(release)
	<-done
}
