package parallel

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

type envelope struct {
	From    int
	Payload any
}

// World runs NP partitions as goroutines within one process. Reductions meet
// at a barrier; exchanges go through a MailBox.
type World struct {
	NP         int
	mu         sync.Mutex
	cond       *sync.Cond
	arrived    int
	generation int
	slots      []any
	mb         *MailBox[envelope]
}

func NewWorld(NP int) (w *World) {
	if NP < 1 {
		panic(fmt.Sprintf("world needs at least one partition, have %d", NP))
	}
	w = &World{
		NP:    NP,
		slots: make([]any, NP),
		mb:    NewMailBox[envelope](NP),
	}
	w.cond = sync.NewCond(&w.mu)
	return
}

// Comm returns the communicator of partition rank
func (w *World) Comm(rank int) Comm {
	if rank < 0 || rank >= w.NP {
		panic(fmt.Sprintf("rank %d out of range [0,%d)", rank, w.NP))
	}
	return &worldComm{w: w, rank: rank}
}

// Run calls fn once per partition, each in its own goroutine, and waits for
// all of them. A panic in one partition would leave the others blocked at the
// next barrier, so fn must report failures through its error.
func (w *World) Run(fn func(c Comm) error) (err error) {
	var (
		wg   = sync.WaitGroup{}
		errs = make([]error, w.NP)
	)
	for np := 0; np < w.NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			if e := fn(w.Comm(np)); e != nil {
				errs[np] = fmt.Errorf("partition %d: %w", np, e)
			}
		}(np)
	}
	wg.Wait()
	return multierr.Combine(errs...)
}

func (w *World) barrier() {
	w.mu.Lock()
	defer w.mu.Unlock()
	gen := w.generation
	w.arrived++
	if w.arrived == w.NP {
		w.arrived = 0
		w.generation++
		w.cond.Broadcast()
		return
	}
	for gen == w.generation {
		w.cond.Wait()
	}
}

func (w *World) reduce(rank int, v any, combine func(vals []any) any) (r any) {
	w.slots[rank] = v
	w.barrier()
	r = combine(w.slots)
	// Nobody may refill the slots until everybody has combined them
	w.barrier()
	return
}

type worldComm struct {
	w    *World
	rank int
}

func (c *worldComm) Rank() int { return c.rank }
func (c *worldComm) Size() int { return c.w.NP }

func (c *worldComm) SumInt(v int) int {
	return c.w.reduce(c.rank, v, func(vals []any) any {
		var sum int
		for _, val := range vals {
			sum += val.(int)
		}
		return sum
	}).(int)
}

func (c *worldComm) MaxInt(v int) int {
	return c.w.reduce(c.rank, v, func(vals []any) any {
		m := vals[0].(int)
		for _, val := range vals[1:] {
			if val.(int) > m {
				m = val.(int)
			}
		}
		return m
	}).(int)
}

func (c *worldComm) Or(v bool) bool {
	return c.w.reduce(c.rank, v, func(vals []any) any {
		for _, val := range vals {
			if val.(bool) {
				return true
			}
		}
		return false
	}).(bool)
}

func (c *worldComm) Exchange(send map[int]any) (recv map[int]any) {
	var (
		mb = c.w.mb
	)
	for target, payload := range send {
		mb.PostMessage(c.rank, target, envelope{From: c.rank, Payload: payload})
	}
	mb.DeliverMyMessages(c.rank)
	c.w.barrier()
	mb.ReceiveMyMessages(c.rank)
	recv = make(map[int]any, len(send))
	for _, msg := range mb.ReceiveMsgQs[c.rank] {
		recv[msg.From] = msg.Payload
	}
	mb.ClearMyMessages(c.rank)
	c.w.barrier()
	return
}
