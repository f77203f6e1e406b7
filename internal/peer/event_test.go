package peer_test

import (
	"testing"

	"github.com/omochice/simple-socket/internal/peer"
)

func TestEvent_EmitWithoutHandlers(t *testing.T) {
	var ev peer.Event[string]

	if ev.Active() {
		t.Error("Active() = true for an empty event")
	}
	ev.Emit("nobody listens")
}

func TestEvent_OrderAndUnsubscribe(t *testing.T) {
	var ev peer.Event[int]
	var calls []string

	unsubA := ev.Subscribe(func(v int) { calls = append(calls, "a") })
	ev.Subscribe(func(v int) { calls = append(calls, "b") })

	ev.Emit(1)
	unsubA()
	unsubA()
	ev.Emit(2)

	want := []string{"a", "b", "b"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestEvent_UnsubscribeInsideHandler(t *testing.T) {
	var ev peer.Event[int]
	count := 0

	var unsub func()
	unsub = ev.Subscribe(func(int) {
		count++
		unsub()
	})

	ev.Emit(1)
	ev.Emit(2)

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
	if ev.Active() {
		t.Error("Active() = true after self-unsubscribe")
	}
}
