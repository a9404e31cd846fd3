package mqtt

import "log"

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a bounded FIFO of messages published while disconnected.
// When full the oldest message is dropped. Not safe for concurrent use.
type ringBuffer struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // messages dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if len(r.msgs) == r.capacity {
		if r.dropped == 0 {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", r.capacity)
		}
		copy(r.msgs, r.msgs[1:])
		r.msgs = r.msgs[:len(r.msgs)-1]
		r.dropped++
	}
	r.msgs = append(r.msgs, msg)
}

// drainAll returns buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if len(r.msgs) == 0 {
		return nil
	}
	if r.dropped > 0 {
		log.Printf("mqtt: %d buffered messages were dropped while disconnected", r.dropped)
	}

	result := make([]bufferedMsg, len(r.msgs))
	copy(result, r.msgs)
	r.msgs = r.msgs[:0]
	r.dropped = 0
	return result
}

func (r *ringBuffer) len() int {
	return len(r.msgs)
}
