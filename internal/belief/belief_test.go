package belief

import (
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRoot(t *testing.T) *View {
	t.Helper()
	return NewArena(nil, zap.NewNop()).NewView("agent")
}

func TestView_AddEmitsTriggerOnce(t *testing.T) {
	v := newRoot(t)
	l := term.From("foo", 1)

	require.True(t, v.Add(l))
	assert.False(t, v.Add(term.From("foo", 1)), "duplicate must be rejected")

	got := v.Trigger()
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(trigger.New(trigger.AddBelief, l)))

	assert.Empty(t, v.Trigger(), "drain is at most once")
}

func TestView_RemoveEmitsDelete(t *testing.T) {
	v := newRoot(t)
	l := term.From("foo", 1)
	v.Add(l)
	v.Trigger()

	require.True(t, v.Remove(l))
	assert.False(t, v.Remove(l))

	got := v.Trigger()
	require.Len(t, got, 1)
	assert.Equal(t, trigger.DeleteBelief, got[0].Type())
}

func TestView_SizeCountsNestedViews(t *testing.T) {
	arena := NewArena(nil, zap.NewNop())
	root := arena.NewView("agent")
	root.Add(term.From("l1"))
	root.Add(term.From("l2"))

	child := arena.NewView("v")
	require.NoError(t, root.AddView(child))
	child.Add(term.From("l3"))

	assert.Equal(t, 3, root.Size())
	assert.Equal(t, 1, child.Size())
	assert.Equal(t, term.Path("agent/v"), child.Path())

	triggers := root.Trigger()
	assert.Len(t, triggers, 3, "nested view triggers are part of the stream")
}

func TestView_AddRoutesIntoNestedViews(t *testing.T) {
	root := newRoot(t)
	l := term.NewLiteral(term.PathOf("env/room/light"), false, []term.Term{term.NewConstant("on")}, nil)
	require.True(t, root.Add(l))

	room, ok := root.Walk("env/room", false)
	require.True(t, ok)
	assert.Equal(t, term.Path("agent/env/room"), room.Path())
	assert.Len(t, room.Literals("light"), 1)
	assert.Len(t, root.Beliefs("env/room/light"), 1)
	assert.Empty(t, root.Literals("light"))
	assert.True(t, root.Contains(l))

	require.True(t, root.Remove(l))
	assert.Equal(t, 0, root.Size())
}

func TestView_ClearEmitsDeletesBeforeDroppingData(t *testing.T) {
	arena := NewArena(nil, zap.NewNop())
	root := arena.NewView("agent")
	root.Add(term.From("a", 1))
	root.Add(term.From("a", 2))
	root.Add(term.From("nested/b", 3))
	root.Trigger()

	root.Clear()

	assert.Equal(t, 0, root.Size())
	got := root.Trigger()
	require.Len(t, got, 3)
	for _, tr := range got {
		assert.Equal(t, trigger.DeleteBelief, tr.Type())
	}
}

func TestView_BroadcastToEveryRegisteredView(t *testing.T) {
	arena := NewArena(nil, zap.NewNop())
	a := arena.NewView("a")
	b := arena.Attach("b", a.Beliefbase())

	a.Add(term.From("shared"))

	assert.Len(t, a.Trigger(), 1)
	assert.Len(t, b.Trigger(), 1)
	assert.Len(t, b.Literals("shared"), 1)
}

func TestView_DetachReclaimsQueue(t *testing.T) {
	arena := NewArena(nil, zap.NewNop())
	a := arena.NewView("a")
	b := arena.Attach("b", a.Beliefbase())

	b.Detach()
	b.Detach()
	assert.Equal(t, 1, arena.Len())

	assert.Equal(t, 1, a.Update())
	assert.Equal(t, 0, a.Update())

	a.Add(term.From("x"))
	assert.Len(t, a.Trigger(), 1)
	assert.ErrorIs(t, a.AddView(b), ErrDetached)
}

func TestView_AddViewRejectsCyclesAndDuplicates(t *testing.T) {
	arena := NewArena(nil, zap.NewNop())
	root := arena.NewView("root")
	child := arena.NewView("child")
	require.NoError(t, root.AddView(child))

	assert.ErrorIs(t, child.AddView(root), ErrViewCycle)
	assert.ErrorIs(t, root.AddView(root), ErrViewCycle)
	assert.ErrorIs(t, root.AddView(arena.NewView("child")), ErrViewExists)

	assert.True(t, root.RemoveView("child"))
	assert.False(t, root.RemoveView("child"))
	_, ok := child.Parent()
	assert.False(t, ok)
}

func TestMemoryStorage_ConcurrentPut(t *testing.T) {
	s := NewMemoryStorage()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(term.From("n", i%10))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.Size())
	assert.Len(t, s.Get("n"), 10)
	assert.True(t, s.Contains("n"))
	assert.False(t, s.Contains("m"))

	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Stream())
}

func TestMemoryStorage_ClearRacingWriters(t *testing.T) {
	tests := []struct {
		name  string
		write func(s *MemoryStorage, l *term.Literal)
	}{
		{"remove", func(s *MemoryStorage, l *term.Literal) { s.Remove(l) }},
		{"put", func(s *MemoryStorage, l *term.Literal) { s.Put(l) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemoryStorage()
			l := term.From("n", 1)
			s.Put(l)

			// Hold the bucket so the writer fetches it before Clear unlinks it.
			b := s.bucket(l.Key(), false)
			require.NotNil(t, b)
			b.mu.Lock()

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				tc.write(s, l)
			}()
			time.Sleep(10 * time.Millisecond)
			go func() {
				defer wg.Done()
				s.Clear()
			}()
			require.Eventually(t, func() bool { return s.bucket(l.Key(), false) != b }, time.Second, time.Millisecond)
			b.mu.Unlock()
			wg.Wait()

			assert.Equal(t, len(s.Stream()), s.Size())
			assert.GreaterOrEqual(t, s.Size(), 0)
		})
	}
}

func TestMemoryStorage_ConcurrentClearKeepsSizeConsistent(t *testing.T) {
	s := NewMemoryStorage()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Put(term.From("n", (i+j)%5))
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Remove(term.From("n", (i+j)%5))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.Clear()
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, s.Size(), 0)
	assert.Equal(t, len(s.Stream()), s.Size())
}

func TestMemoryStorage_KeepsInsertionOrder(t *testing.T) {
	s := NewMemoryStorage()
	for _, v := range []int{3, 1, 2} {
		s.Put(term.From("k", v))
	}
	require.True(t, s.Remove(term.From("k", 1)))

	var got []string
	for _, l := range s.Get("k") {
		got = append(got, l.String())
	}
	assert.Equal(t, []string{"k(3)", "k(2)"}, got)
}
