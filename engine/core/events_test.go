package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type listener struct {
	name     string
	handled  bool
	received []SystemEventCode
}

func (l *listener) onEvent(code SystemEventCode, sender interface{}, inst interface{}, data EventContext) bool {
	l.received = append(l.received, code)
	return l.handled
}

func TestEventRegisterAndFire(t *testing.T) {
	es := NewEventSystem()
	a := &listener{name: "a"}
	b := &listener{name: "b"}

	assert.True(t, es.Register(EVENT_CODE_CONFIG_RELOADED, a, a.onEvent))
	assert.True(t, es.Register(EVENT_CODE_CONFIG_RELOADED, b, b.onEvent))
	assert.False(t, es.Register(EVENT_CODE_CONFIG_RELOADED, a, a.onEvent))

	assert.False(t, es.Fire(EVENT_CODE_CONFIG_RELOADED, nil, EventContext{Data: DefaultConfig()}))
	assert.Equal(t, []SystemEventCode{EVENT_CODE_CONFIG_RELOADED}, a.received)
	assert.Equal(t, []SystemEventCode{EVENT_CODE_CONFIG_RELOADED}, b.received)
}

func TestEventHandledStopsPropagation(t *testing.T) {
	es := NewEventSystem()
	a := &listener{name: "a", handled: true}
	b := &listener{name: "b"}
	es.Register(EVENT_CODE_DEVICE_LOST, a, a.onEvent)
	es.Register(EVENT_CODE_DEVICE_LOST, b, b.onEvent)

	assert.True(t, es.Fire(EVENT_CODE_DEVICE_LOST, nil, EventContext{}))
	assert.Len(t, a.received, 1)
	assert.Empty(t, b.received)
}

func TestEventUnregister(t *testing.T) {
	es := NewEventSystem()
	a := &listener{name: "a"}
	b := &listener{name: "b"}
	es.Register(EVENT_CODE_RESIZED, a, a.onEvent)
	es.Register(EVENT_CODE_RESIZED, b, b.onEvent)

	assert.True(t, es.Unregister(EVENT_CODE_RESIZED, a))
	assert.False(t, es.Unregister(EVENT_CODE_RESIZED, a))

	es.Fire(EVENT_CODE_RESIZED, nil, EventContext{Data: &ResizeEvent{Width: 10, Height: 10}})
	assert.Empty(t, a.received)
	assert.Len(t, b.received, 1)

	es.Shutdown()
	es.Fire(EVENT_CODE_RESIZED, nil, EventContext{})
	assert.Len(t, b.received, 1)
}
