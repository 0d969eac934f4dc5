package gpio

import "errors"

// FakeReader replays scripted samples. Once the script is exhausted the last
// sample repeats, as a line that stops changing would.
type FakeReader struct {
	Samples []map[int]bool

	// ReadError, if set, is returned by every Read.
	ReadError error

	// Reads counts calls to Read, including failed ones.
	Reads  int
	Closed bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...map[int]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns a copy of the next scripted sample.
func (f *FakeReader) Read() (map[int]bool, error) {
	i := f.Reads
	f.Reads++
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	if len(f.Samples) == 0 {
		return nil, errors.New("fake gpio: no samples")
	}
	sample := f.Samples[min(i, len(f.Samples)-1)]
	out := make(map[int]bool, len(sample))
	for line, on := range sample {
		out[line] = on
	}
	return out, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
