package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/bigcommerce-client/pkg/client"
	"github.com/Sternrassler/bigcommerce-client/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// fakeRunner runs serially and records sleeps instead of waiting.
type fakeRunner struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *fakeRunner) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeRunner) Run(ctx context.Context, n, width int, fn func(ctx context.Context, i int) error) []error {
	return Sequential{}.Run(ctx, n, width, fn)
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestEngine(runner Runner, pageSize int) *Engine {
	policy := client.NewRetryPolicy("read", client.ReadRetryConfig(), zerolog.Nop()).WithSleep(noSleep)
	return NewEngine(runner, policy, pageSize, zerolog.Nop())
}

// pagedSource serves fixed pages and counts calls.
type pagedSource struct {
	pages   [][]int
	noneAt  int // 1-based page answered with no content, 0 = never
	state   ratelimit.State
	calls   int
	indexes []int
}

func (p *pagedSource) fetch(ctx context.Context, req PageRequest) (PageResult[int], error) {
	p.calls++
	p.indexes = append(p.indexes, req.Index)

	if p.noneAt > 0 && req.Index == p.noneAt {
		return PageResult[int]{NoContent: true, RateLimit: p.state}, nil
	}
	if req.Index > len(p.pages) {
		return PageResult[int]{NoContent: true, RateLimit: p.state}, nil
	}
	return PageResult[int]{Items: p.pages[req.Index-1], RateLimit: p.state}, nil
}

func seq(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func TestFetchAll_StopsOnShortPage(t *testing.T) {
	tests := []struct {
		name      string
		pageSizes []int
		pageSize  int
	}{
		{name: "single short page", pageSizes: []int{3}, pageSize: 5},
		{name: "three pages", pageSizes: []int{5, 5, 2}, pageSize: 5},
		{name: "empty first page", pageSizes: []int{0}, pageSize: 5},
		{name: "page size one", pageSizes: []int{1, 1, 1, 0}, pageSize: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &pagedSource{state: ratelimit.UnlimitedState(time.Now())}
			var expected []int
			next := 0
			for _, n := range tt.pageSizes {
				page := seq(next, n)
				next += n
				src.pages = append(src.pages, page)
				expected = append(expected, page...)
			}

			got, err := FetchAll(context.Background(), newTestEngine(&fakeRunner{}, tt.pageSize), "numbers", src.fetch)
			if err != nil {
				t.Fatalf("FetchAll() error = %v", err)
			}

			if src.calls != len(tt.pageSizes) {
				t.Errorf("Expected %d calls, got %d", len(tt.pageSizes), src.calls)
			}
			if len(got) != len(expected) {
				t.Fatalf("FetchAll() returned %d items, want %d", len(got), len(expected))
			}
			for i := range expected {
				if got[i] != expected[i] {
					t.Fatalf("item %d = %d, want %d (order must be preserved)", i, got[i], expected[i])
				}
			}
			for i, idx := range src.indexes {
				if idx != i+1 {
					t.Errorf("call %d requested page %d, want %d", i, idx, i+1)
				}
			}
		})
	}
}

func TestFetchAll_StopsOnNoContent(t *testing.T) {
	src := &pagedSource{
		pages:  [][]int{seq(0, 4), seq(4, 4), seq(8, 4), seq(12, 4)},
		noneAt: 3,
		state:  ratelimit.UnlimitedState(time.Now()),
	}

	got, err := FetchAll(context.Background(), newTestEngine(&fakeRunner{}, 4), "numbers", src.fetch)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if src.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", src.calls)
	}
	if len(got) != 8 {
		t.Errorf("FetchAll() returned %d items, want the 8 from pages 1-2", len(got))
	}
}

func TestFetchAll_NoContentOnFirstPage(t *testing.T) {
	src := &pagedSource{noneAt: 1, state: ratelimit.UnlimitedState(time.Now())}

	got, err := FetchAll(context.Background(), newTestEngine(&fakeRunner{}, 10), "numbers", src.fetch)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(got) != 0 || src.calls != 1 {
		t.Errorf("FetchAll() = %v after %d calls, want nothing after 1 call", got, src.calls)
	}
}

func TestWalk_PausesAfterEveryPage(t *testing.T) {
	now := time.Now()
	src := &pagedSource{
		pages: [][]int{seq(0, 2), seq(2, 2), seq(4, 1)},
		state: ratelimit.State{RemainingCalls: 10, ObservedAt: now, ResetAt: now.Add(10 * time.Second)},
	}

	runner := &fakeRunner{}
	if _, err := FetchAll(context.Background(), newTestEngine(runner, 2), "numbers", src.fetch); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(runner.sleeps) != 3 {
		t.Fatalf("Expected 3 pauses, got %v", runner.sleeps)
	}
	for i, d := range runner.sleeps {
		if d != time.Second {
			t.Errorf("pause %d = %v, want 1s", i, d)
		}
	}
}

func TestWalk_UnlimitedDoesNotPause(t *testing.T) {
	src := &pagedSource{pages: [][]int{seq(0, 2), seq(2, 1)}, state: ratelimit.UnlimitedState(time.Now())}

	runner := &fakeRunner{}
	if _, err := FetchAll(context.Background(), newTestEngine(runner, 2), "numbers", src.fetch); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(runner.sleeps) != 0 {
		t.Errorf("Expected no pauses for an unlimited budget, got %v", runner.sleeps)
	}
}

func TestWalk_VisitsPagesInOrderBeforeNextFetch(t *testing.T) {
	src := &pagedSource{pages: [][]int{seq(0, 3), seq(3, 3), seq(6, 0)}, state: ratelimit.UnlimitedState(time.Now())}

	var visited []int
	err := Walk(context.Background(), newTestEngine(&fakeRunner{}, 3), "numbers", src.fetch,
		func(ctx context.Context, items []int, state ratelimit.State) error {
			if src.calls != len(visited)+1 {
				t.Errorf("page %d visited after %d calls", len(visited)+1, src.calls)
			}
			visited = append(visited, len(items))
			return nil
		})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []int{3, 3, 0}
	if len(visited) != len(want) {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
}

func TestWalk_VisitErrorStops(t *testing.T) {
	src := &pagedSource{pages: [][]int{seq(0, 2), seq(2, 2), seq(4, 2)}, state: ratelimit.UnlimitedState(time.Now())}
	boom := errors.New("hydrate failed")

	err := Walk(context.Background(), newTestEngine(&fakeRunner{}, 2), "numbers", src.fetch,
		func(ctx context.Context, items []int, state ratelimit.State) error {
			return boom
		})

	if !errors.Is(err, boom) {
		t.Errorf("Walk() error = %v, want %v", err, boom)
	}
	if src.calls != 1 {
		t.Errorf("Expected 1 call, got %d", src.calls)
	}
}

func TestWalk_RetriesTransientPage(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, req PageRequest) (PageResult[int], error) {
		calls++
		if calls == 1 {
			return PageResult[int]{}, &client.APIError{StatusCode: 502, ErrorClass: client.ErrorClassServer}
		}
		return PageResult[int]{Items: []int{1}, RateLimit: ratelimit.UnlimitedState(time.Now())}, nil
	}

	got, err := FetchAll(context.Background(), newTestEngine(&fakeRunner{}, 5), "numbers", fetch)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if calls != 2 || len(got) != 1 {
		t.Errorf("FetchAll() = %v after %d calls, want [1] after 2", got, calls)
	}
}

func TestWalk_PermanentErrorPropagates(t *testing.T) {
	permanent := &client.APIError{StatusCode: 403, ErrorClass: client.ErrorClassClient}
	calls := 0
	fetch := func(ctx context.Context, req PageRequest) (PageResult[int], error) {
		calls++
		if req.Index == 2 {
			return PageResult[int]{}, permanent
		}
		return PageResult[int]{Items: []int{1, 2}, RateLimit: ratelimit.UnlimitedState(time.Now())}, nil
	}

	got, err := FetchAll(context.Background(), newTestEngine(&fakeRunner{}, 2), "numbers", fetch)
	if got != nil {
		t.Errorf("FetchAll() = %v, want nil on error", got)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("FetchAll() error = %v, want the permanent error", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestWalk_CancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context, req PageRequest) (PageResult[int], error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return PageResult[int]{Items: []int{1, 2}, RateLimit: ratelimit.UnlimitedState(time.Now())}, nil
	}

	got, err := FetchAll(ctx, newTestEngine(&fakeRunner{}, 2), "numbers", fetch)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("FetchAll() error = %v, want ErrCancelled wrapping context.Canceled", err)
	}
	if !IsCancelled(err) {
		t.Error("IsCancelled() = false")
	}
	if got != nil {
		t.Errorf("FetchAll() = %v, want nil on cancellation", got)
	}
	if calls != 2 {
		t.Errorf("Expected no page after cancellation, got %d calls", calls)
	}
}

func TestWalk_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	fetch := func(ctx context.Context, req PageRequest) (PageResult[int], error) {
		return PageResult[int]{
			Items:     []int{1, 2},
			RateLimit: ratelimit.State{RemainingCalls: 1, ObservedAt: now, ResetAt: now.Add(time.Hour)},
		}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := FetchAll(ctx, newTestEngine(Concurrent{}, 2), "numbers", fetch)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("FetchAll() error = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FetchAll() did not return after cancellation")
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := newTestEngine(Sequential{}, 0)
	if e.PageSize() != 1 {
		t.Errorf("PageSize() = %d, want 1", e.PageSize())
	}
	if _, ok := e.Runner().(Sequential); !ok {
		t.Errorf("Runner() = %T, want Sequential", e.Runner())
	}
}
