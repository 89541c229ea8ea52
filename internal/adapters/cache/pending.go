package cache

// pendingCall is the shared handle for an operation in flight.
// data and err are written once, before done is closed.
type pendingCall[T any] struct {
	done chan struct{}
	data T
	err  error

	// Callers that joined after the call was started. Guarded by the Coordinator mutex.
	joined int
}

func newPendingCall[T any]() *pendingCall[T] {
	return &pendingCall[T]{done: make(chan struct{})}
}

func (c *pendingCall[T]) settle(data T, err error) {
	c.data = data
	c.err = err
	close(c.done)
}

// pendingTable is not safe for concurrent use on its own; the Coordinator guards it
type pendingTable[T any] struct {
	calls map[Key]*pendingCall[T]
}

func newPendingTable[T any]() *pendingTable[T] {
	return &pendingTable[T]{
		calls: make(map[Key]*pendingCall[T]),
	}
}

func (p *pendingTable[T]) get(key Key) (*pendingCall[T], bool) {
	call, ok := p.calls[key]
	return call, ok
}

func (p *pendingTable[T]) has(key Key) bool {
	_, ok := p.calls[key]
	return ok
}

func (p *pendingTable[T]) set(key Key, call *pendingCall[T]) {
	if _, ok := p.calls[key]; ok {
		panic("logic error: pending call registered twice for the same key")
	}
	p.calls[key] = call
}

func (p *pendingTable[T]) remove(key Key) {
	delete(p.calls, key)
}

func (p *pendingTable[T]) len() int {
	return len(p.calls)
}
