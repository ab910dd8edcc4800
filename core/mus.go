package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for everything persisted to the store or
// carried on the queue. Field order is part of the wire format: append new
// fields at the end, never reorder.

var (
	// IDMUS serializes an ID as a varint uint64.
	IDMUS mus.Serializer[ID] = idMUS{}
	// MetadataMUS serializes a Metadata mapping with sorted keys, so the
	// same mapping always produces the same bytes.
	MetadataMUS mus.Serializer[Metadata] = metadataMUS{}
	// DocumentMUS serializes a Document.
	DocumentMUS mus.Serializer[Document] = documentMUS{}
	// EmbeddingRecordMUS serializes an EmbeddingRecord.
	EmbeddingRecordMUS mus.Serializer[EmbeddingRecord] = embeddingRecordMUS{}
	// IngestionTaskMUS serializes an IngestionTask.
	IngestionTaskMUS mus.Serializer[IngestionTask] = ingestionTaskMUS{}
	// TimeMUS serializes a time.Time as Unix microseconds.
	TimeMUS mus.Serializer[time.Time] = timeMUS{}

	metaValueMUS mus.Serializer[MetaValue] = metaValueSer{}
	vectorMUS                              = ord.NewSliceSer[float32](raw.Float32)
)

// timeMUS encodes time.Time as Unix microseconds. Round-trips come back in
// UTC; sub-microsecond precision is dropped.
type timeMUS struct{}

func (timeMUS) Marshal(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func (timeMUS) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func (timeMUS) Skip(bs []byte) (int, error) {
	return varint.Int64.Skip(bs)
}

var timeSer timeMUS

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type metaValueSer struct{}

func (metaValueSer) Marshal(v MetaValue, bs []byte) (n int) {
	n = varint.Uint8.Marshal(uint8(v.Kind), bs)
	switch v.Kind {
	case MetaString:
		n += ord.String.Marshal(v.Str, bs[n:])
	case MetaNumber:
		n += raw.Float64.Marshal(v.Num, bs[n:])
	case MetaBool:
		n += ord.Bool.Marshal(v.Bool, bs[n:])
	case MetaMap:
		n += MetadataMUS.Marshal(v.Map, bs[n:])
	}
	return n
}

func (metaValueSer) Unmarshal(bs []byte) (v MetaValue, n int, err error) {
	kind, n, err := varint.Uint8.Unmarshal(bs)
	if err != nil {
		return v, n, err
	}
	v.Kind = MetaKind(kind)
	var m int
	switch v.Kind {
	case MetaString:
		v.Str, m, err = ord.String.Unmarshal(bs[n:])
	case MetaNumber:
		v.Num, m, err = raw.Float64.Unmarshal(bs[n:])
	case MetaBool:
		v.Bool, m, err = ord.Bool.Unmarshal(bs[n:])
	case MetaMap:
		v.Map, m, err = MetadataMUS.Unmarshal(bs[n:])
	default:
		return v, n, ErrInvalidMetadata
	}
	return v, n + m, err
}

func (metaValueSer) Size(v MetaValue) (size int) {
	size = varint.Uint8.Size(uint8(v.Kind))
	switch v.Kind {
	case MetaString:
		size += ord.String.Size(v.Str)
	case MetaNumber:
		size += raw.Float64.Size(v.Num)
	case MetaBool:
		size += ord.Bool.Size(v.Bool)
	case MetaMap:
		size += MetadataMUS.Size(v.Map)
	}
	return size
}

func (metaValueSer) Skip(bs []byte) (n int, err error) {
	kind, n, err := varint.Uint8.Unmarshal(bs)
	if err != nil {
		return n, err
	}
	var m int
	switch MetaKind(kind) {
	case MetaString:
		m, err = ord.String.Skip(bs[n:])
	case MetaNumber:
		m, err = raw.Float64.Skip(bs[n:])
	case MetaBool:
		m, err = ord.Bool.Skip(bs[n:])
	case MetaMap:
		m, err = MetadataMUS.Skip(bs[n:])
	default:
		return n, ErrInvalidMetadata
	}
	return n + m, err
}

type metadataMUS struct{}

func (metadataMUS) Marshal(m Metadata, bs []byte) (n int) {
	keys := m.SortedKeys()
	n = varint.Int.Marshal(len(keys), bs)
	for _, key := range keys {
		n += ord.String.Marshal(key, bs[n:])
		n += metaValueMUS.Marshal(m[key], bs[n:])
	}
	return n
}

func (metadataMUS) Unmarshal(bs []byte) (m Metadata, n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if count == 0 {
		return nil, n, nil
	}
	m = make(Metadata, count)
	for i := 0; i < count; i++ {
		var (
			key   string
			value MetaValue
			sz    int
		)
		key, sz, err = ord.String.Unmarshal(bs[n:])
		n += sz
		if err != nil {
			return nil, n, err
		}
		value, sz, err = metaValueMUS.Unmarshal(bs[n:])
		n += sz
		if err != nil {
			return nil, n, err
		}
		m[key] = value
	}
	return m, n, nil
}

func (metadataMUS) Size(m Metadata) (size int) {
	size = varint.Int.Size(len(m))
	for key, value := range m {
		size += ord.String.Size(key)
		size += metaValueMUS.Size(value)
	}
	return size
}

func (metadataMUS) Skip(bs []byte) (n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return n, err
	}
	for i := 0; i < count; i++ {
		var m int
		m, err = ord.String.Skip(bs[n:])
		n += m
		if err != nil {
			return n, err
		}
		m, err = metaValueMUS.Skip(bs[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Content, bs[n:])
	n += MetadataMUS.Marshal(d.Metadata, bs[n:])
	n += varint.Uint64.Marshal(d.Checksum, bs[n:])
	n += timeSer.Marshal(d.CreatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var m int
	d.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return d, n, err
	}
	d.Content, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return d, n, err
	}
	d.Metadata, m, err = MetadataMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return d, n, err
	}
	d.Checksum, m, err = varint.Uint64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return d, n, err
	}
	d.CreatedAt, m, err = timeSer.Unmarshal(bs[n:])
	n += m
	return d, n, err
}

func (documentMUS) Size(d Document) int {
	return IDMUS.Size(d.Id) +
		ord.String.Size(d.Content) +
		MetadataMUS.Size(d.Metadata) +
		varint.Uint64.Size(d.Checksum) +
		timeSer.Size(d.CreatedAt)
}

func (documentMUS) Skip(bs []byte) (n int, err error) {
	for _, skip := range []func([]byte) (int, error){
		IDMUS.Skip, ord.String.Skip, MetadataMUS.Skip, varint.Uint64.Skip, timeSer.Skip,
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

type embeddingRecordMUS struct{}

func (embeddingRecordMUS) Marshal(r EmbeddingRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(r.DocumentId, bs)
	n += vectorMUS.Marshal(r.Vector, bs[n:])
	n += timeSer.Marshal(r.CreatedAt, bs[n:])
	n += timeSer.Marshal(r.UpdatedAt, bs[n:])
	return n
}

func (embeddingRecordMUS) Unmarshal(bs []byte) (r EmbeddingRecord, n int, err error) {
	var m int
	r.DocumentId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return r, n, err
	}
	r.Vector, m, err = vectorMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return r, n, err
	}
	r.CreatedAt, m, err = timeSer.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return r, n, err
	}
	r.UpdatedAt, m, err = timeSer.Unmarshal(bs[n:])
	n += m
	return r, n, err
}

func (embeddingRecordMUS) Size(r EmbeddingRecord) int {
	return IDMUS.Size(r.DocumentId) +
		vectorMUS.Size(r.Vector) +
		timeSer.Size(r.CreatedAt) +
		timeSer.Size(r.UpdatedAt)
}

func (embeddingRecordMUS) Skip(bs []byte) (n int, err error) {
	for _, skip := range []func([]byte) (int, error){
		IDMUS.Skip, vectorMUS.Skip, timeSer.Skip, timeSer.Skip,
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

type ingestionTaskMUS struct{}

func (ingestionTaskMUS) Marshal(t IngestionTask, bs []byte) (n int) {
	n = IDMUS.Marshal(t.DocumentId, bs)
	n += timeSer.Marshal(t.EnqueuedAt, bs[n:])
	return n
}

func (ingestionTaskMUS) Unmarshal(bs []byte) (t IngestionTask, n int, err error) {
	var m int
	t.DocumentId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return t, n, err
	}
	t.EnqueuedAt, m, err = timeSer.Unmarshal(bs[n:])
	n += m
	return t, n, err
}

func (ingestionTaskMUS) Size(t IngestionTask) int {
	return IDMUS.Size(t.DocumentId) + timeSer.Size(t.EnqueuedAt)
}

func (ingestionTaskMUS) Skip(bs []byte) (n int, err error) {
	m, err := IDMUS.Skip(bs)
	n += m
	if err != nil {
		return n, err
	}
	m, err = timeSer.Skip(bs[n:])
	return n + m, err
}
