package store

import (
	"os"
	"sync"
	"testing"

	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCodec_PreservesLiteral(t *testing.T) {
	l := term.NewLiteral(term.PathOf("env/room/light"), true,
		[]term.Term{
			term.NewConstant(3.5),
			term.NewConstant("on"),
			term.NewConstant(false),
			term.List(term.NewConstant(1), term.List(term.NewConstant("x"))),
			term.From("nested", 0),
			term.NewVariable("X"),
			term.BoundVariable("Y", term.NewConstant(2)),
		},
		[]*term.Literal{term.From("source", "self")},
	)

	b, err := EncodeLiteral(l)
	require.NoError(t, err)
	got, err := DecodeLiteral(b)
	require.NoError(t, err)

	assert.True(t, l.Equal(got), "decoded %s, want %s", got, l)
	assert.Equal(t, l.Hash(), got.Hash())
	assert.Equal(t, l.String(), got.String())

	again, err := EncodeLiteral(got)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestCodec_Errors(t *testing.T) {
	type opaque struct{ A int }
	_, err := EncodeLiteral(term.NewLiteral("f", false, []term.Term{term.NewConstant(opaque{1})}, nil))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = DecodeLiteral([]byte{0xc1})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func openBadger(t *testing.T, dir string) *Badger {
	t.Helper()
	opts := BadgerOptions{Dir: dir, InMemory: dir == "", Logger: zap.NewNop()}
	b, err := OpenBadger(opts)
	require.NoError(t, err)
	return b
}

func TestBadgerStorage(t *testing.T) {
	db := openBadger(t, "")
	defer db.Close()
	s := db.Storage("agent")

	a1, a2 := term.From("a", 1), term.From("a", 2)
	b1 := term.From("b", 1)

	assert.True(t, s.Put(a2))
	assert.True(t, s.Put(b1))
	assert.True(t, s.Put(a1))
	assert.False(t, s.Put(term.From("a", 2)), "duplicate")
	assert.Equal(t, 3, s.Size())

	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))
	assert.Equal(t, []string{"a(2)", "a(1)"}, render(s.Get("a")))
	if diff := cmp.Diff([]string{"a(2)", "a(1)", "b(1)"}, render(s.Stream())); diff != "" {
		t.Errorf("stream mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, s.Remove(a2))
	assert.False(t, s.Remove(a2))
	assert.Equal(t, []string{"a(1)"}, render(s.Get("a")))
	assert.Equal(t, 2, s.Size())

	other := db.Storage("agent/env")
	assert.True(t, other.Put(a1))
	assert.Equal(t, 1, other.Size())

	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Stream())
	assert.Equal(t, 1, other.Size(), "nested path keeps its literals")
	assert.True(t, s.Put(a2), "cleared literals can be added again")
}

func TestBadgerStorage_ConcurrentPut(t *testing.T) {
	db := openBadger(t, "")
	defer db.Close()
	s := db.Storage("agent")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.Put(term.From("n", j))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 25, s.Size())
	assert.Len(t, s.Get("n"), 25)
}

func TestBadger_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	db := openBadger(t, dir)
	arena := belief.NewArena(db.Factory(), zap.NewNop())
	view := arena.NewView("agent")
	view.Add(term.From("env/room/light", "on"))
	view.Add(term.From("battery", 80))
	view.Detach()
	require.NoError(t, db.Close())

	db = openBadger(t, dir)
	defer db.Close()
	arena = belief.NewArena(db.Factory(), zap.NewNop())
	view = arena.NewView("agent")

	assert.Equal(t, []string{"battery(80)"}, render(view.Literals("battery")))
	room, _ := view.Walk("env/room", true)
	assert.Equal(t, []string{`env/room/light("on")`}, render(room.Literals("light")))
	assert.False(t, view.Add(term.From("battery", 80)))
}

func TestPostgresStorage(t *testing.T) {
	url := os.Getenv("BDI_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BDI_TEST_DATABASE_URL not set")
	}
	pool := connect(t, url)
	p := NewPostgres(pool, zap.NewNop())
	require.NoError(t, p.Migrate(t.Context()))

	s := p.Storage(term.PathOf("test", t.Name()))
	s.Clear()
	defer s.Clear()

	assert.True(t, s.Put(term.From("a", 2)))
	assert.True(t, s.Put(term.From("a", 1)))
	assert.False(t, s.Put(term.From("a", 1)))
	assert.Equal(t, []string{"a(2)", "a(1)"}, render(s.Get("a")))
	assert.Equal(t, 2, s.Size())
	assert.True(t, s.Remove(term.From("a", 2)))
	assert.False(t, s.Contains("b"))
	assert.Equal(t, 1, s.Size())
}

func connect(t *testing.T, url string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(t.Context()))
	return pool
}

func render(ls []*term.Literal) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.String()
	}
	return out
}
