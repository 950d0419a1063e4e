package core

import "sync"

// EventContext carries a small fixed payload so event dispatch never
// allocates. Kept from the teacher's layout; narrowed is unnecessary since
// the struct is already value-sized and zero-alloc.
type EventContext struct {
	Data struct {
		I64 [2]int64
		U64 [2]uint64
		F64 [2]float64
		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32
		I16 [8]int16
		U16 [8]uint16
	}
}

// SystemEventCode identifies the core-relevant events the frame scheduler and
// host application exchange. Anything above MaxEventCode is reserved for the
// host application's own event bus (input, ECS, scripting) — those are
// external collaborators per spec.md §1 and are not modeled here.
type SystemEventCode int

const (
	// EventApplicationQuit requests a shutdown on the next tick.
	EventApplicationQuit SystemEventCode = 0x01
	// EventResized notifies that the OS-reported framebuffer size changed.
	// No engine code fires this code or registers a listener for it; the
	// renderer façade resizes from Tick and from its
	// EventSwapchainOutOfDate listener instead.
	EventResized SystemEventCode = 0x02
	// EventSwapchainOutOfDate notifies that a present/acquire call reported
	// the swapchain is stale and a resize must run before the next tick.
	EventSwapchainOutOfDate SystemEventCode = 0x03

	MaxEventCode SystemEventCode = 0xFF
)

// FnOnEvent handles a fired event. Returning true marks the event handled,
// stopping further dispatch to other listeners.
type FnOnEvent func(code SystemEventCode, sender, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

var events = &eventBus{registered: make(map[SystemEventCode][]*registeredEvent)}

// EventRegister subscribes listener to events of the given code. A listener
// already registered for that code is rejected, whatever its callback.
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	events.mu.Lock()
	defer events.mu.Unlock()
	for _, e := range events.registered[code] {
		if e.listener == listener {
			return false
		}
	}
	events.registered[code] = append(events.registered[code], &registeredEvent{listener: listener, callback: onEvent})
	return true
}

// EventUnregister removes a previously registered listener for code.
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	events.mu.Lock()
	defer events.mu.Unlock()
	list := events.registered[code]
	for i, e := range list {
		if e.listener == listener {
			events.registered[code] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire dispatches code to all registered listeners in registration
// order, stopping at the first one that reports it handled the event.
func EventFire(code SystemEventCode, sender interface{}, data EventContext) bool {
	events.mu.RLock()
	list := make([]*registeredEvent, len(events.registered[code]))
	copy(list, events.registered[code])
	events.mu.RUnlock()

	for _, e := range list {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}

// EventReset clears every registration. Used by tests and by a full renderer
// shutdown to return the bus to a clean state.
func EventReset() {
	events.mu.Lock()
	defer events.mu.Unlock()
	events.registered = make(map[SystemEventCode][]*registeredEvent)
}
