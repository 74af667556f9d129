package actorutil

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stashReady struct{}

type stashDump struct{}

type stashingActor struct {
	behavior actor.Behavior
	stash    *Stash
	received []string
}

func (state *stashingActor) Receive(ctx actor.Context) {
	state.behavior.Receive(ctx)
}

func (state *stashingActor) waiting(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case stashReady:
		state.behavior.Become(state.ready)
		state.stash.UnstashAll(ctx)
	case string:
		state.stash.Stash(ctx, msg)
	}
}

func (state *stashingActor) ready(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case string:
		state.received = append(state.received, msg)
	case stashDump:
		ctx.Respond(append([]string(nil), state.received...))
	}
}

func TestStashUnstashAll(t *testing.T) {

	as := actor.NewActorSystem()
	defer as.Shutdown()

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		act := &stashingActor{behavior: actor.NewBehavior(), stash: &Stash{}}
		act.behavior.Become(act.waiting)
		return act
	}))

	for _, m := range []string{"a", "b", "c"} {
		as.Root.Send(pid, m)
	}
	as.Root.Send(pid, stashReady{})
	as.Root.Send(pid, "d")

	var received []string
	require.Eventually(t, func() bool {
		res, err := as.Root.RequestFuture(pid, stashDump{}, time.Second).Result()
		require.NoError(t, err)
		received = res.([]string)
		return len(received) == 4
	}, 2*time.Second, 20*time.Millisecond)

	// every stashed message is replayed, nothing is left behind
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, received)
	assert.Equal(t, []string{"a", "b", "c"}, lo.Without(received, "d"), "stash order is kept")
}
