package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// DEFAULT_STASH_LIMIT bounds the messages kept while an actor waits on I/O.
const DEFAULT_STASH_LIMIT = 1024

// Stash holds messages, with their original sender, until the actor is ready
// to process them. Past Limit the oldest message is dropped.
type Stash struct {
	Limit   int
	queue   []stashed
	dropped int
}

type stashed struct {
	msg    any
	sender *actor.PID
}

func (s *Stash) limit() int {
	if s.Limit <= 0 {
		return DEFAULT_STASH_LIMIT
	}
	return s.Limit
}

func (s *Stash) Stash(ctx actor.Context, msg any) {
	if len(s.queue) >= s.limit() {
		s.queue = s.queue[1:]
		s.dropped++
	}
	s.queue = append(s.queue, stashed{msg: msg, sender: ctx.Sender()})
}

func (s *Stash) UnstashAll(ctx actor.Context) {
	queue := s.queue
	s.queue = nil
	for _, elem := range queue {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
}

func (s *Stash) Len() int {
	return len(s.queue)
}

// Dropped counts the messages lost to the limit since creation.
func (s *Stash) Dropped() int {
	return s.dropped
}
