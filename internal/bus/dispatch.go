package bus

import "sort"

// HandlerFunc processes one delivered message. sender identifies who
// queued it; msg is the message itself.
type HandlerFunc func(sender *Endpoint, msg Message)

// subscription is one module's registered interest in a message Type.
type subscription struct {
	owner       string // module name, for logging
	priority    int    // lower loads first, and is delivered first
	loadOrder   int    // tiebreaker: earlier load wins
	handler     HandlerFunc
	payloadSize int
}

// Dispatcher fans a popped Queued message out to every handler
// registered for its Type, in module-priority order (ties broken by
// load order), exactly once per registered handler. A broadcast
// message is delivered to every subscriber; a unicast message
// (Queued.Recipient != nil) is delivered only to the subscribers
// owned by that recipient's module.
//
// Dispatcher itself does not run concurrently with anything: it is
// invoked synchronously from the mainloop's message-processing step.
type Dispatcher struct {
	subs map[Type][]subscription
	// warn receives a one-line diagnostic whenever a message is
	// dropped due to an ABI size mismatch. May be nil.
	warn func(format string, args ...any)
}

// NewDispatcher returns an empty dispatcher. warn, if non-nil, is
// called to report dropped-message diagnostics (ABI size mismatches).
func NewDispatcher(warn func(format string, args ...any)) *Dispatcher {
	return &Dispatcher{subs: make(map[Type][]subscription), warn: warn}
}

// Register adds a handler for msgType, owned by the named module, at
// the given priority (lower values are delivered first) and expected
// payload size (0 means "no size check"). Registrations are kept
// sorted by (priority, load order) so Dispatch never has to sort on
// the hot path.
func (d *Dispatcher) Register(owner string, msgType Type, priority int, payloadSize int, handler HandlerFunc) {
	loadOrder := len(d.subs[msgType])
	list := append(d.subs[msgType], subscription{
		owner:       owner,
		priority:    priority,
		loadOrder:   loadOrder,
		handler:     handler,
		payloadSize: payloadSize,
	})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].loadOrder < list[j].loadOrder
	})
	d.subs[msgType] = list
}

// Unregister removes every handler owned by the named module, across
// all message types. Used when a module is unloaded.
func (d *Dispatcher) Unregister(owner string) {
	for t, list := range d.subs {
		kept := list[:0]
		for _, s := range list {
			if s.owner != owner {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(d.subs, t)
		} else {
			d.subs[t] = kept
		}
	}
}

// Dispatch delivers one popped message to its subscribers in
// priority order. For a broadcast (q.Recipient == nil) every
// subscriber for q.Msg.Type runs, each against its own copy of the
// message, Extra bytes included, so one handler mutating its copy
// cannot affect another. Payload is copied as an interface value: a
// payload holding a pointer, slice or map still refers to shared data.
// For a unicast, only the subscribers owned by q.Recipient's module
// name run.
func (d *Dispatcher) Dispatch(q Queued) {
	subs := d.subs[q.Msg.Type]
	if len(subs) == 0 {
		return
	}
	for _, s := range subs {
		if q.Recipient != nil && q.Recipient.Name() != s.owner {
			continue
		}
		if s.payloadSize != 0 && q.Msg.PayloadSize != 0 && s.payloadSize != q.Msg.PayloadSize {
			if d.warn != nil {
				d.warn("dropping %s for %s: payload size mismatch (want %d, got %d)",
					q.Msg.Type, s.owner, s.payloadSize, q.Msg.PayloadSize)
			}
			continue
		}
		msgCopy := q.Msg
		msgCopy.Extra = append([]byte(nil), q.Msg.Extra...)
		s.handler(q.Sender, msgCopy)
	}
}
