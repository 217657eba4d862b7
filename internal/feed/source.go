package feed

import "context"

// Handler receives the callbacks of one upstream subscription.
type Handler interface {
	// OnSnapshot delivers a complete result set. It is never a partial merge.
	OnSnapshot(s Snapshot)
	// OnError reports a failure of this subscription only.
	OnError(err error)
}

// Teardown releases an upstream subscription. After it returns no further
// callbacks are made. It is safe to call more than once.
type Teardown func()

// Source is a real-time data source.
type Source interface {
	Subscribe(ctx context.Context, d Descriptor, h Handler) (Teardown, error)
}

// HandlerFuncs adapts two functions to Handler. Nil funcs are skipped.
type HandlerFuncs struct {
	Snapshot func(Snapshot)
	Error    func(error)
}

// OnSnapshot calls h.Snapshot.
func (h HandlerFuncs) OnSnapshot(s Snapshot) {
	if h.Snapshot != nil {
		h.Snapshot(s)
	}
}

// OnError calls h.Error.
func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}
