package mac

import (
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/internal"
)

// Handle identifies one enqueued outbound frame (an MSDU handle in 802.15.4
// terms), stable for the lifetime of the request so callers can Purge it.
type Handle uint16

// TxRequest is one outbound MCPS-DATA request accepted by Enqueue (§4.2).
type TxRequest struct {
	Handle       Handle
	Dst          wisun.EUI64
	DstShort     wisun.ShortAddr
	Priority     wisun.Priority
	AckRequested bool
	Indirect     bool // destination is a sleepy device: held until a data-request arrives.
	TTL          time.Duration
	Frame        []byte // full, already-assembled MAC frame payload (header/IEs filled by the helper).
	KeyIndex     attrIndex
	SecLevel     SecLevel

	enqueuedAt time.Time
	attempts   int
	backoff    internal.Backoff
}

// subQueue is a single priority level's FIFO of pending requests.
type subQueue struct {
	items []*TxRequest
}

func (q *subQueue) push(r *TxRequest) { q.items = append(q.items, r) }

func (q *subQueue) peek() (*TxRequest, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

func (q *subQueue) popFront() {
	q.items[0] = nil
	q.items = q.items[1:]
}

func (q *subQueue) removeByHandle(h Handle) bool {
	for i, r := range q.items {
		if r.Handle == h {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Queue holds the outbound pipeline's unicast and broadcast sub-queues,
// bucketed by priority within each, plus the indirect-transmission hold
// area for sleepy devices (§4.2).
type Queue struct {
	// unicast/broadcast are indexed by wisun.Priority, highest first when
	// draining.
	unicast   [5]subQueue
	broadcast [5]subQueue
	indirect  map[wisun.EUI64][]*TxRequest

	MaxDepth int // bounded MCPS outbound queue size (§5 Backpressure).
	depth    int
}

// NewQueue returns an empty Queue bounded at maxDepth total in-flight+queued
// frames.
func NewQueue(maxDepth int) *Queue {
	return &Queue{MaxDepth: maxDepth, indirect: make(map[wisun.EUI64][]*TxRequest)}
}

// Depth returns the number of queued and in-flight frames.
func (q *Queue) Depth() int { return q.depth }

// Enqueue admits r into the appropriate sub-queue, or returns
// wisun.ErrTransactionOverflow if the queue is at MaxDepth (§5).
func (q *Queue) Enqueue(r *TxRequest, broadcast bool) error {
	if q.MaxDepth > 0 && q.depth >= q.MaxDepth {
		return wisun.ErrTransactionOverflow
	}
	r.enqueuedAt = time.Now()
	if r.Indirect {
		q.indirect[r.Dst] = append(q.indirect[r.Dst], r)
		q.depth++
		return nil
	}
	if broadcast {
		q.broadcast[r.Priority].push(r)
	} else {
		q.unicast[r.Priority].push(r)
	}
	q.depth++
	return nil
}

// PeekUnicast returns the highest-priority head-of-line unicast request
// without dequeuing it, for FHSS admission checks (§4.3).
func (q *Queue) PeekUnicast() (*TxRequest, bool) {
	for p := len(q.unicast) - 1; p >= 0; p-- {
		if r, ok := q.unicast[p].peek(); ok {
			return r, true
		}
	}
	return nil, false
}

// PeekBroadcast returns the highest-priority head-of-line broadcast request.
func (q *Queue) PeekBroadcast() (*TxRequest, bool) {
	for p := len(q.broadcast) - 1; p >= 0; p-- {
		if r, ok := q.broadcast[p].peek(); ok {
			return r, true
		}
	}
	return nil, false
}

// DequeueUnicast removes and returns the head-of-line unicast request FHSS
// just admitted.
func (q *Queue) DequeueUnicast() (*TxRequest, bool) {
	for p := len(q.unicast) - 1; p >= 0; p-- {
		if r, ok := q.unicast[p].peek(); ok {
			q.unicast[p].popFront()
			return r, true
		}
	}
	return nil, false
}

// DequeueBroadcast removes and returns the head-of-line broadcast request.
func (q *Queue) DequeueBroadcast() (*TxRequest, bool) {
	for p := len(q.broadcast) - 1; p >= 0; p-- {
		if r, ok := q.broadcast[p].peek(); ok {
			q.broadcast[p].popFront()
			return r, true
		}
	}
	return nil, false
}

// Requeue returns a frame FHSS refused (RETURN_TO_QUEUE) or a transient TX
// failure to its priority sub-queue, preserving priority order (§4.2/§4.3).
func (q *Queue) Requeue(r *TxRequest, broadcast bool) {
	if broadcast {
		q.broadcast[r.Priority].push(r)
	} else {
		q.unicast[r.Priority].push(r)
	}
}

// ReleaseIndirect pops and returns the oldest frame held for dst after a
// data-request command frame arrives from it (§4.2 Indirect TX).
func (q *Queue) ReleaseIndirect(dst wisun.EUI64) (*TxRequest, bool) {
	held := q.indirect[dst]
	if len(held) == 0 {
		return nil, false
	}
	r := held[0]
	q.indirect[dst] = held[1:]
	if len(q.indirect[dst]) == 0 {
		delete(q.indirect, dst)
	}
	return r, true
}

// ExpireIndirect scans the indirect hold area and returns requests whose
// TTL has elapsed, removing them; callers complete these with
// wisun.ErrTransactionExpired (§4.2).
func (q *Queue) ExpireIndirect(now time.Time) []*TxRequest {
	var expired []*TxRequest
	for dst, held := range q.indirect {
		kept := held[:0]
		for _, r := range held {
			if r.TTL > 0 && now.Sub(r.enqueuedAt) >= r.TTL {
				expired = append(expired, r)
				q.depth--
			} else {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(q.indirect, dst)
		} else {
			q.indirect[dst] = kept
		}
	}
	return expired
}

// Purge removes an enqueued frame by handle from every sub-queue and the
// indirect hold area, returning wisun.ErrInvalidHandle if not found (it may
// already have been transmitted) (§5 Cancellation).
func (q *Queue) Purge(h Handle) error {
	for p := range q.unicast {
		if q.unicast[p].removeByHandle(h) {
			q.depth--
			return nil
		}
	}
	for p := range q.broadcast {
		if q.broadcast[p].removeByHandle(h) {
			q.depth--
			return nil
		}
	}
	for dst, held := range q.indirect {
		for i, r := range held {
			if r.Handle == h {
				q.indirect[dst] = append(held[:i], held[i+1:]...)
				q.depth--
				if len(q.indirect[dst]) == 0 {
					delete(q.indirect, dst)
				}
				return nil
			}
		}
	}
	return wisun.ErrInvalidHandle
}

// DrainDone marks a request as no longer occupying queue depth, called once
// its confirmation has been delivered.
func (q *Queue) DrainDone() {
	if q.depth > 0 {
		q.depth--
	}
}
