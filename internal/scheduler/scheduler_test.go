package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func waitTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func recvTask(t *testing.T, ch <-chan Task) Task {
	t.Helper()
	select {
	case task := <-ch:
		return task
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	return Task{}
}

func TestArmFiresAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan Task, 1)
	s := New(clock, func(_ context.Context, task Task) (Task, bool) {
		fired <- task
		return Task{}, false
	})
	defer s.Stop()

	s.Arm(Task{RoomID: "ABC123", RoundID: "r1", At: clock.Now().Add(5 * time.Second)})
	waitTimers(t, clock, 1)

	clock.Advance(4 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired before deadline")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Second)
	task := recvTask(t, fired)
	require.Equal(t, "r1", task.RoundID)
	require.Equal(t, 0, s.Len())
}

func TestArmReplacesPendingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan Task, 4)
	s := New(clock, func(_ context.Context, task Task) (Task, bool) {
		fired <- task
		return Task{}, false
	})
	defer s.Stop()

	s.Arm(Task{RoomID: "ABC123", RoundID: "old", At: clock.Now().Add(5 * time.Second)})
	s.Arm(Task{RoomID: "ABC123", RoundID: "new", At: clock.Now().Add(10 * time.Second)})
	require.Equal(t, 1, s.Len())
	waitTimers(t, clock, 1)

	clock.Advance(5 * time.Second)
	select {
	case task := <-fired:
		t.Fatalf("replaced timer fired: %+v", task)
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(5 * time.Second)
	require.Equal(t, "new", recvTask(t, fired).RoundID)
	select {
	case task := <-fired:
		t.Fatalf("unexpected second fire: %+v", task)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRearmChainStopsWhenCallbackDeclines(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan Task, 4)
	s := New(clock, func(_ context.Context, task Task) (Task, bool) {
		fired <- task
		if task.RoundID == "r3" {
			return Task{}, false
		}
		next := "r2"
		if task.RoundID == "r2" {
			next = "r3"
		}
		return Task{RoomID: task.RoomID, RoundID: next, At: task.At.Add(5 * time.Second)}, true
	})
	defer s.Stop()

	s.Arm(Task{RoomID: "ROOM01", RoundID: "r1", At: clock.Now().Add(5 * time.Second)})
	for _, want := range []string{"r1", "r2", "r3"} {
		waitTimers(t, clock, 1)
		clock.Advance(5 * time.Second)
		require.Equal(t, want, recvTask(t, fired).RoundID)
	}
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPastDeadlineFiresImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan Task, 1)
	s := New(clock, func(_ context.Context, task Task) (Task, bool) {
		fired <- task
		return Task{}, false
	})
	defer s.Stop()

	s.Arm(Task{RoomID: "ROOM01", RoundID: "late", At: clock.Now().Add(-time.Second)})
	require.Equal(t, "late", recvTask(t, fired).RoundID)
}

func TestCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, func(_ context.Context, task Task) (Task, bool) {
		t.Errorf("cancelled timer fired: %+v", task)
		return Task{}, false
	})
	defer s.Stop()

	s.Arm(Task{RoomID: "ROOM01", RoundID: "r1", At: clock.Now().Add(5 * time.Second)})
	_, ok := s.Pending("ROOM01")
	require.True(t, ok)

	s.Cancel("ROOM01")
	_, ok = s.Pending("ROOM01")
	require.False(t, ok)
	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
}

func TestArmAfterStopIsIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, func(_ context.Context, task Task) (Task, bool) { return Task{}, false })
	s.Stop()
	s.Arm(Task{RoomID: "ROOM01", RoundID: "r1", At: clock.Now().Add(time.Second)})
	require.Equal(t, 0, s.Len())
}
