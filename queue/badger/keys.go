package badger

import "encoding/binary"

// Each queue keyspace holds envelopes keyed by a big-endian sequence
// number, so iteration order is enqueue order.
const (
	pendingPrefix  = "iq:p:"
	inflightPrefix = "iq:i:"
	deadPrefix     = "iq:d:"

	queueSeq = "iq:seq"
)

func makeQueueKey(prefix string, seq uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func seqFromQueueKey(prefix string, key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(prefix):])
}
