package llm

import (
	"context"
	"io"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// emitter sends events on a stream channel unless the stream's context is done
type emitter struct {
	ctx context.Context
	ch  chan<- StreamEvent
}

func (e *emitter) send(ev StreamEvent) bool {
	select {
	case e.ch <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// streamBody produces deltas through e and returns the completion, or an
// error to be classified into a Failed event.
type streamBody func(e *emitter) (*Completed, error)

// startStream runs body in a goroutine and guarantees the channel closes
// after exactly one terminal event, or with none when ctx is cancelled.
func startStream(ctx context.Context, provider string, req *Request, body streamBody) <-chan StreamEvent {
	ch := make(chan StreamEvent, 10)

	go func() {
		defer close(ch)
		e := &emitter{ctx: ctx, ch: ch}

		if req == nil {
			e.send(NewFailed(FailureMalformedResponse, "request is nil", nil))
			return
		}
		if !req.Credentials.Valid(time.Now()) {
			e.send(NewFailed(FailureAuthInvalid, provider+" credentials are missing or expired", nil))
			return
		}

		done, err := body(e)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.send(failure(provider, err))
			return
		}
		if done == nil {
			e.send(failure(provider, io.ErrUnexpectedEOF))
			return
		}
		e.send(*done)
	}()

	return ch
}

// callIDs resolves provider-local tool call indices to stable call IDs
type callIDs map[int64]string

func (c callIDs) resolve(index int64, id string) string {
	if id != "" {
		c[index] = id
		return id
	}
	if known, ok := c[index]; ok {
		return known
	}
	id = newCallID()
	c[index] = id
	return id
}

func newCallID() string {
	return "call_" + shortuuid.New()
}
