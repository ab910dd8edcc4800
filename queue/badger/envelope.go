package badger

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragd/core"
)

// envelope is the stored form of a queued task. The same envelope moves
// between the pending, in-flight, and dead keyspaces; Deadline only means
// something in flight, Reason and FailedAt only in the dead-letter queue.
// Field order is part of the wire format: append new fields at the end.
type envelope struct {
	Task     core.IngestionTask
	Attempts int
	Deadline time.Time
	Reason   string
	FailedAt time.Time
}

var envelopeMUS mus.Serializer[envelope] = envelopeSer{}

type envelopeSer struct{}

func (envelopeSer) Marshal(e envelope, bs []byte) (n int) {
	n = core.IngestionTaskMUS.Marshal(e.Task, bs)
	n += varint.Int.Marshal(e.Attempts, bs[n:])
	n += core.TimeMUS.Marshal(e.Deadline, bs[n:])
	n += ord.String.Marshal(e.Reason, bs[n:])
	n += core.TimeMUS.Marshal(e.FailedAt, bs[n:])
	return n
}

func (envelopeSer) Unmarshal(bs []byte) (e envelope, n int, err error) {
	var m int
	e.Task, n, err = core.IngestionTaskMUS.Unmarshal(bs)
	if err != nil {
		return e, n, err
	}
	e.Attempts, m, err = varint.Int.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return e, n, err
	}
	e.Deadline, m, err = core.TimeMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return e, n, err
	}
	e.Reason, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return e, n, err
	}
	e.FailedAt, m, err = core.TimeMUS.Unmarshal(bs[n:])
	n += m
	return e, n, err
}

func (envelopeSer) Size(e envelope) int {
	return core.IngestionTaskMUS.Size(e.Task) +
		varint.Int.Size(e.Attempts) +
		core.TimeMUS.Size(e.Deadline) +
		ord.String.Size(e.Reason) +
		core.TimeMUS.Size(e.FailedAt)
}

func (envelopeSer) Skip(bs []byte) (n int, err error) {
	for _, skip := range []func([]byte) (int, error){
		core.IngestionTaskMUS.Skip, varint.Int.Skip, core.TimeMUS.Skip,
		ord.String.Skip, core.TimeMUS.Skip,
	} {
		var m int
		m, err = skip(bs[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func marshalEnvelope(e envelope) []byte {
	bs := make([]byte, envelopeMUS.Size(e))
	envelopeMUS.Marshal(e, bs)
	return bs
}

func unmarshalEnvelope(bs []byte) (envelope, error) {
	e, _, err := envelopeMUS.Unmarshal(bs)
	return e, err
}
