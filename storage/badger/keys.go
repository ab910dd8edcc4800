package badger

import (
	"encoding/binary"

	"github.com/poiesic/ragd/core"
)

// Key prefixes for different data types. Document and embedding keys encode
// the ID in big-endian so lexicographic iteration order is ID order.
const (
	documentPrefix  = "docrec"
	embeddingPrefix = "embrec"
	documentIDSeq   = "docrecseq"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return makeIDKey(documentPrefix, id)
}

// makeEmbeddingKey generates a key for a document's embedding record.
func makeEmbeddingKey(id core.ID) []byte {
	return makeIDKey(embeddingPrefix, id)
}

func makeIDKey(prefix string, id core.ID) []byte {
	p := prefix + ":"
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// keyPrefix returns the iteration prefix for a key family.
func keyPrefix(prefix string) []byte {
	return []byte(prefix + ":")
}

// idFromKey extracts the big-endian ID suffix from a composite key.
func idFromKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
