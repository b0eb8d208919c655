package writer

import "fmt"

// ShuffleFilter implements byte shuffle (FilterID = 2). It groups the n-th
// byte of every element together so deflate sees longer runs:
//
//	Original: [A1 A2 A3 A4 B1 B2 B3 B4 C1 C2 C3 C4]
//	Shuffled: [A1 B1 C1 A2 B2 C2 A3 B3 C3 A4 B4 C4]
//
// Shuffle must run before compression.
type ShuffleFilter struct {
	elementSize uint32
}

// NewShuffleFilter returns a shuffle filter for elements of elementSize
// bytes.
func NewShuffleFilter(elementSize uint32) *ShuffleFilter {
	return &ShuffleFilter{elementSize: elementSize}
}

// ID returns FilterShuffle.
func (f *ShuffleFilter) ID() FilterID {
	return FilterShuffle
}

// Name returns "shuffle".
func (f *ShuffleFilter) Name() string {
	return "shuffle"
}

// Apply shuffles data.
func (f *ShuffleFilter) Apply(data []byte) ([]byte, error) {
	return f.transpose(data, true)
}

// Remove restores the original byte order.
func (f *ShuffleFilter) Remove(data []byte) ([]byte, error) {
	return f.transpose(data, false)
}

func (f *ShuffleFilter) transpose(data []byte, forward bool) ([]byte, error) {
	size := int(f.elementSize)
	if len(data) == 0 || size <= 1 {
		return data, nil
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("data length %d not multiple of element size %d", len(data), size)
	}

	n := len(data) / size
	out := make([]byte, len(data))
	for b := 0; b < size; b++ {
		for e := 0; e < n; e++ {
			if forward {
				out[b*n+e] = data[e*size+b]
			} else {
				out[e*size+b] = data[b*n+e]
			}
		}
	}
	return out, nil
}

// Encode stores the element size as the only client value.
func (f *ShuffleFilter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{f.elementSize}
}
