package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ n int }
type pong struct{}

func TestBus_DispatchByType(t *testing.T) {
	Use(New())
	t.Cleanup(func() { Use(nil) })

	var got []string
	unsubA := Subscribe(func(_ context.Context, e ping) { got = append(got, "a") })
	Subscribe(func(_ context.Context, e ping) { got = append(got, "b") })
	Subscribe(func(_ context.Context, _ pong) { got = append(got, "pong") })

	Publish(context.Background(), ping{n: 1})
	require.Equal(t, []string{"a", "b"}, got)

	// unsubscribing removes exactly that handler, even though both closures
	// share the same code
	unsubA()
	got = nil
	Publish(context.Background(), ping{n: 2})
	Publish(context.Background(), pong{})
	require.Equal(t, []string{"b", "pong"}, got)
}

func TestBus_Disabled(t *testing.T) {
	Use(nil)
	called := false
	unsub := Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	unsub()
	require.False(t, called)
}
