// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package history

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// EntryMUS serializes an Entry in the MUS format. Timestamps are
// stored as microseconds since the Unix epoch.
var EntryMUS = entrySer{}

type entrySer struct{}

func (entrySer) Marshal(e Entry, bs []byte) (n int) {
	n = varint.Uint64.Marshal(e.Id, bs)
	n += ord.String.Marshal(e.Query, bs[n:])
	n += ord.String.Marshal(string(e.Type), bs[n:])
	n += varint.Uint32.Marshal(e.ResultsCount, bs[n:])
	n += varint.Int64.Marshal(e.Timestamp.UnixMicro(), bs[n:])
	return
}

func (entrySer) Unmarshal(bs []byte) (e Entry, n int, err error) {
	var n1 int
	e.Id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	e.Query, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var op string
	op, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Type = OpType(op)
	e.ResultsCount, n1, err = varint.Uint32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Timestamp = time.UnixMicro(micros).UTC()
	return
}

func (entrySer) Size(e Entry) (size int) {
	size = varint.Uint64.Size(e.Id)
	size += ord.String.Size(e.Query)
	size += ord.String.Size(string(e.Type))
	size += varint.Uint32.Size(e.ResultsCount)
	size += varint.Int64.Size(e.Timestamp.UnixMicro())
	return
}

// MarshalEntry serializes an Entry to bytes.
func MarshalEntry(entry Entry) []byte {
	buf := make([]byte, EntryMUS.Size(entry))
	EntryMUS.Marshal(entry, buf)
	return buf
}

// UnmarshalEntry deserializes an Entry from bytes.
func UnmarshalEntry(data []byte) (Entry, error) {
	entry, _, err := EntryMUS.Unmarshal(data)
	return entry, err
}
