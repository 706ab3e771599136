package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fanoutHub имитирует fanout-обменник: каждое сообщение получают все потребители.
type fanoutHub struct {
	mu        sync.Mutex
	consumers []func([]byte) error
	published int
}

type hubTransport struct {
	hub       *fanoutHub
	failWrite bool
	closed    bool
}

func (h *fanoutHub) transport() *hubTransport {
	return &hubTransport{hub: h}
}

func (t *hubTransport) Publish(body []byte) error {
	if t.failWrite {
		return errors.New("broker unavailable")
	}
	t.hub.mu.Lock()
	t.hub.published++
	consumers := append([]func([]byte) error(nil), t.hub.consumers...)
	t.hub.mu.Unlock()
	for _, c := range consumers {
		_ = c(body)
	}
	return nil
}

func (t *hubTransport) Consume(_ context.Context, handler func([]byte) error) error {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.hub.consumers = append(t.hub.consumers, handler)
	return nil
}

func (t *hubTransport) Close() error {
	t.closed = true
	return nil
}

func TestBridge_ForwardsBetweenInstances(t *testing.T) {
	hub := &fanoutHub{}
	busA, busB := newTestBus(t), newTestBus(t)

	bridgeA := NewBridge(newNoopLogger(), busA, hub.transport())
	bridgeB := NewBridge(newNoopLogger(), busB, hub.transport())
	require.NoError(t, bridgeA.Start(context.Background()))
	require.NoError(t, bridgeB.Start(context.Background()))
	require.NotEqual(t, bridgeA.InstanceID(), bridgeB.InstanceID())

	gotB := make(chan Event, 4)
	busB.Subscribe(TopicPresaleSettingsUpdated, func(ev Event) { gotB <- ev })
	gotA := make(chan Event, 4)
	busA.Subscribe(TopicPresaleSettingsUpdated, func(ev Event) { gotA <- ev })

	busA.Publish(TopicPresaleSettingsUpdated)

	select {
	case ev := <-gotB:
		assert.Equal(t, bridgeA.InstanceID(), ev.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not bridged to the other instance")
	}

	select {
	case ev := <-gotA:
		assert.Empty(t, ev.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("local event was not delivered")
	}

	// Ни эха к отправителю, ни повторной пересылки с B.
	assert.Never(t, func() bool { return len(gotA) > 0 || len(gotB) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
	hub.mu.Lock()
	assert.Equal(t, 1, hub.published)
	hub.mu.Unlock()
}

func TestBridge_Receive(t *testing.T) {
	b := newTestBus(t)
	br := NewBridge(newNoopLogger(), b, (&fanoutHub{}).transport())

	encode := func(ev Event) []byte {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		return body
	}

	tests := []struct {
		name    string
		body    []byte
		wantErr bool
	}{
		{name: "own message ignored", body: encode(Event{Topic: TopicPresaleDataUpdated, Origin: br.InstanceID()})},
		{name: "foreign message accepted", body: encode(Event{Topic: TopicPresaleDataUpdated, Origin: "other"})},
		{name: "unknown topic", body: encode(Event{Topic: "balance-updated", Origin: "other"}), wantErr: true},
		{name: "missing origin", body: encode(Event{Topic: TopicPresaleDataUpdated}), wantErr: true},
		{name: "malformed body", body: []byte("{"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := br.receive(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBridge_PublishFailureIsNotFatal(t *testing.T) {
	hub := &fanoutHub{}
	b := newTestBus(t)
	transport := hub.transport()
	transport.failWrite = true

	br := NewBridge(newNoopLogger(), b, transport)
	require.NoError(t, br.Start(context.Background()))

	done := make(chan struct{})
	b.Subscribe(TopicAdminSettingsChanged, func(Event) { close(done) })
	b.Publish(TopicAdminSettingsChanged)
	waitFor(t, done)

	require.NoError(t, br.Close())
	assert.True(t, transport.closed)
	assert.Equal(t, 1, b.Subscribers(TopicAdminSettingsChanged))
}
