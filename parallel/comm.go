// Package parallel provides the reductions and neighbour exchanges used when a
// mesh is split into partitions, each driven by its own goroutine.
package parallel

// Comm is the view one partition has of the set of partitions it belongs to.
// Every method is collective: all partitions must call it in the same order.
type Comm interface {
	Rank() int
	Size() int
	SumInt(v int) int
	MaxInt(v int) int
	Or(v bool) bool
	// Exchange sends send[k] to partition k and returns what each of those
	// partitions sent back. The set of keys must be symmetric between pairs.
	Exchange(send map[int]any) (recv map[int]any)
}

// IsParallel reports whether c spans more than one partition
func IsParallel(c Comm) bool {
	return c != nil && c.Size() > 1
}

// ExchangeSlices is the typed form of Comm.Exchange
func ExchangeSlices[T any](c Comm, send map[int][]T) (recv map[int][]T) {
	var (
		sendI = make(map[int]any, len(send))
	)
	for k, v := range send {
		sendI[k] = v
	}
	recv = make(map[int][]T, len(send))
	for k, v := range c.Exchange(sendI) {
		if v == nil {
			recv[k] = nil
			continue
		}
		recv[k] = v.([]T)
	}
	return
}

// Serial is the single partition communicator
type Serial struct{}

func (Serial) Rank() int         { return 0 }
func (Serial) Size() int         { return 1 }
func (Serial) SumInt(v int) int  { return v }
func (Serial) MaxInt(v int) int  { return v }
func (Serial) Or(v bool) bool    { return v }
func (Serial) Exchange(send map[int]any) (recv map[int]any) {
	recv = make(map[int]any)
	if v, ok := send[0]; ok {
		recv[0] = v
	}
	return
}
