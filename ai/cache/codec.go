package cache

import (
	"errors"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

var (
	// errNegativeLength is returned when a decoded vector length is invalid.
	errNegativeLength = errors.New("negative vector length")

	// errTruncatedVector is returned when fewer bytes remain than the
	// decoded length requires.
	errTruncatedVector = errors.New("truncated vector data")
)

// float32Size is the encoded size of one raw float32.
const float32Size = 4

// vectorRecord is the value stored for each cached embedding.
type vectorRecord struct {
	Model  string
	Vector []float32
}

// vectorRecordMUS encodes a vectorRecord as:
// model (ord string), length (varint), components (raw float32 each).
var vectorRecordMUS = vectorRecordSer{}

type vectorRecordSer struct{}

var _ mus.Serializer[vectorRecord] = vectorRecordSer{}

func (vectorRecordSer) Marshal(v vectorRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.Model, bs)
	n += varint.PositiveInt.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorRecordSer) Unmarshal(bs []byte) (v vectorRecord, n int, err error) {
	v.Model, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	length, n1, err := varint.PositiveInt.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length < 0 {
		err = errNegativeLength
		return
	}
	if length > (len(bs)-n)/float32Size {
		err = errTruncatedVector
		return
	}
	v.Vector = make([]float32, length)
	for i := range v.Vector {
		var f float32
		f, n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		v.Vector[i] = f
	}
	return
}

func (vectorRecordSer) Size(v vectorRecord) (size int) {
	size = ord.String.Size(v.Model)
	size += varint.PositiveInt.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	return size
}

func (s vectorRecordSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

func marshalVectorRecord(record vectorRecord) []byte {
	buf := make([]byte, vectorRecordMUS.Size(record))
	vectorRecordMUS.Marshal(record, buf)
	return buf
}

func unmarshalVectorRecord(data []byte) (vectorRecord, error) {
	record, _, err := vectorRecordMUS.Unmarshal(data)
	return record, err
}
