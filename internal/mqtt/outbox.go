package mqtt

// pending is a publish deferred until the broker connection is back.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds publishes made while disconnected, oldest first. When full,
// the oldest entry is dropped. A retained publish replaces a queued retained
// publish on the same topic; the broker would only keep the last one.
// Not safe for concurrent use.
type outbox struct {
	ring    []pending
	start   int
	n       int
	dropped int // since the last flush
}

func newOutbox(capacity int) *outbox {
	return &outbox{ring: make([]pending, capacity)}
}

func (o *outbox) at(i int) *pending {
	return &o.ring[(o.start+i)%len(o.ring)]
}

func (o *outbox) add(p pending) {
	if p.retained {
		for i := 0; i < o.n; i++ {
			if q := o.at(i); q.retained && q.topic == p.topic {
				*q = p
				return
			}
		}
	}
	if o.n == len(o.ring) {
		o.start = (o.start + 1) % len(o.ring)
		o.n--
		o.dropped++
	}
	*o.at(o.n) = p
	o.n++
}

// flush empties the outbox. It returns the queued publishes in order and how
// many were dropped since the previous flush.
func (o *outbox) flush() ([]pending, int) {
	dropped := o.dropped
	o.dropped = 0
	if o.n == 0 {
		return nil, dropped
	}
	out := make([]pending, o.n)
	for i := range out {
		out[i] = *o.at(i)
	}
	o.start, o.n = 0, 0
	return out, dropped
}

func (o *outbox) len() int { return o.n }
