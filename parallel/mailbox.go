package parallel

import "fmt"

// MailBox queues messages between NP threads. The pattern is:
// for range messages {Post}; Deliver; barrier; Receive; Clear
type MailBox[T any] struct {
	NP           int
	MessageChans []chan []T    // One for each thread
	PostMsgQs    []map[int][]T // One for each thread, key is target thread
	ReceiveMsgQs [][]T         // One for each thread
	MailFlag     []bool        // MyThread has messages in its outbox
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([]chan []T, NP),
		PostMsgQs:    make([]map[int][]T, NP),
		ReceiveMsgQs: make([][]T, NP),
		MailFlag:     make([]bool, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make(chan []T, NP) // Worst case is all-to-all
		mb.PostMsgQs[n] = make(map[int][]T)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myThread, targetThread int, msg T) {
	if targetThread < 0 || targetThread > mb.NP-1 {
		panic(fmt.Sprintf("Target thread %d out of bounds", targetThread))
	}
	mb.PostMsgQs[myThread][targetThread] = append(mb.PostMsgQs[myThread][targetThread], msg)
	mb.MailFlag[myThread] = true
}

func (mb *MailBox[T]) DeliverMyMessages(myThread int) {
	if !mb.MailFlag[myThread] {
		return
	}
	for targetThread, msgs := range mb.PostMsgQs[myThread] {
		mb.MessageChans[targetThread] <- msgs
	}
	mb.PostMsgQs[myThread] = make(map[int][]T)
	mb.MailFlag[myThread] = false
}

func (mb *MailBox[T]) ReceiveMyMessages(myThread int) {
	for {
		select {
		case msgs := <-mb.MessageChans[myThread]:
			mb.ReceiveMsgQs[myThread] = append(mb.ReceiveMsgQs[myThread], msgs...)
		default:
			return
		}
	}
}

func (mb *MailBox[T]) ClearMyMessages(myThread int) {
	mb.ReceiveMsgQs[myThread] = mb.ReceiveMsgQs[myThread][:0]
}
