package query

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoization(t *testing.T) {
	rt := NewRuntime()
	input := Key{Kind: "text", Arg: "a.py"}
	rt.SetInput(input, "hello")

	var runs atomic.Int64
	rt.Register("upper", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		runs.Add(1)
		v, err := rt.Get(ctx, Key{Kind: "text", Arg: arg})
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(v.(string)), nil
	})

	ctx := context.Background()
	key := Key{Kind: "upper", Arg: "a.py"}
	first, err := rt.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if first != "HELLO" {
		t.Fatalf("value = %v", first)
	}
	second, err := rt.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if second != "HELLO" {
		t.Fatalf("value = %v", second)
	}
	if runs.Load() != 1 {
		t.Errorf("compute ran %d times, want 1", runs.Load())
	}
}

func TestInputChangePropagates(t *testing.T) {
	rt := NewRuntime()
	input := Key{Kind: "text", Arg: "a.py"}
	rt.SetInput(input, "old")
	rt.Register("upper", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		v, err := rt.Get(ctx, Key{Kind: "text", Arg: arg})
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(v.(string)), nil
	})

	ctx := context.Background()
	key := Key{Kind: "upper", Arg: "a.py"}
	if v, _ := rt.Get(ctx, key); v != "OLD" {
		t.Fatalf("value = %v", v)
	}

	rt.SetInput(input, "new")
	v, err := rt.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	// после записи читатель обязан видеть новое содержимое, не смесь
	if v != "NEW" {
		t.Errorf("stale value %v after input change", v)
	}
}

func TestEarlyCutoff(t *testing.T) {
	rt := NewRuntime()
	input := Key{Kind: "text", Arg: "a.py"}
	rt.SetInput(input, "abc")

	var midRuns, topRuns atomic.Int64
	// mid зависит от содержимого, но выдаёт только длину
	rt.Register("len", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		midRuns.Add(1)
		v, err := rt.Get(ctx, Key{Kind: "text", Arg: arg})
		if err != nil {
			return nil, err
		}
		return len(v.(string)), nil
	})
	rt.Register("doubled", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		topRuns.Add(1)
		v, err := rt.Get(ctx, Key{Kind: "len", Arg: arg})
		if err != nil {
			return nil, err
		}
		return v.(int) * 2, nil
	})

	ctx := context.Background()
	top := Key{Kind: "doubled", Arg: "a.py"}
	if v, _ := rt.Get(ctx, top); v != 6 {
		t.Fatalf("value = %v", v)
	}

	// новое содержимое той же длины: len пересчитается, doubled - нет
	rt.SetInput(input, "xyz")
	if v, _ := rt.Get(ctx, top); v != 6 {
		t.Fatalf("value = %v", v)
	}
	if midRuns.Load() != 2 {
		t.Errorf("len ran %d times, want 2", midRuns.Load())
	}
	if topRuns.Load() != 1 {
		t.Errorf("doubled ran %d times, want 1 (early cutoff)", topRuns.Load())
	}
}

func TestEqualInputWriteKeepsDependentsValid(t *testing.T) {
	rt := NewRuntime()
	input := Key{Kind: "text", Arg: "a.py"}
	rt.SetInput(input, "same")

	var runs atomic.Int64
	rt.Register("upper", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		runs.Add(1)
		v, err := rt.Get(ctx, Key{Kind: "text", Arg: arg})
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(v.(string)), nil
	})

	ctx := context.Background()
	key := Key{Kind: "upper", Arg: "a.py"}
	rt.Get(ctx, key)
	rt.SetInput(input, "same")
	rt.Get(ctx, key)
	if runs.Load() != 1 {
		t.Errorf("compute ran %d times after no-op write, want 1", runs.Load())
	}
}

func TestCycleFixedPoint(t *testing.T) {
	rt := NewRuntime()
	// a = min(b+1, 3); b = a. Неподвижная точка: a = b = 3.
	rt.RegisterCyclic("a", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		v, err := rt.Get(ctx, Key{Kind: "b", Arg: arg})
		if err != nil {
			return nil, err
		}
		n := v.(int) + 1
		if n > 3 {
			n = 3
		}
		return n, nil
	}, 0)
	rt.RegisterCyclic("b", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		return rt.Get(ctx, Key{Kind: "a", Arg: arg})
	}, 0)

	ctx := context.Background()
	v, err := rt.Get(ctx, Key{Kind: "a", Arg: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Errorf("fixed point = %v, want 3", v)
	}
	if rt.Stats().UnstableCycles() != 0 {
		t.Error("converging cycle must not be reported unstable")
	}
	// повторный запрос детерминированно выдаёт то же значение
	again, err := rt.Get(ctx, Key{Kind: "a", Arg: "x"})
	if err != nil || again != 3 {
		t.Errorf("re-query = %v, %v", again, err)
	}
}

func TestCycleUnstableDegradesToBottom(t *testing.T) {
	rt := NewRuntime()
	// a = b + 1; b = a: растёт без предела
	rt.RegisterCyclic("a", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		v, err := rt.Get(ctx, Key{Kind: "b", Arg: arg})
		if err != nil {
			return nil, err
		}
		return v.(int) + 1, nil
	}, -1)
	rt.RegisterCyclic("b", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		return rt.Get(ctx, Key{Kind: "a", Arg: arg})
	}, 0)

	var reported []Key
	rt.OnUnstableCycle = func(key Key) { reported = append(reported, key) }

	v, err := rt.Get(context.Background(), Key{Kind: "a", Arg: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Errorf("unstable cycle must degrade to bottom, got %v", v)
	}
	if rt.Stats().UnstableCycles() != 1 {
		t.Errorf("unstable cycles = %d, want 1", rt.Stats().UnstableCycles())
	}
	if len(reported) != 1 || reported[0].Kind != "a" {
		t.Errorf("reported = %v", reported)
	}
}

func TestCycleFromTwoGoroutinesCompletes(t *testing.T) {
	rt := NewRuntime()
	// тот же цикл, что в TestCycleFixedPoint, но головы разные: одна
	// горутина начинает с a, другая с b, одновременно
	rt.RegisterCyclic("a", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		v, err := rt.Get(ctx, Key{Kind: "b", Arg: arg})
		if err != nil {
			return nil, err
		}
		n := v.(int) + 1
		if n > 3 {
			n = 3
		}
		return n, nil
	}, 0)
	rt.RegisterCyclic("b", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		return rt.Get(ctx, Key{Kind: "a", Arg: arg})
	}, 0)

	start := make(chan struct{})
	type answer struct {
		kind string
		v    any
		err  error
	}
	results := make(chan answer, 2)
	for _, kind := range []string{"a", "b"} {
		go func(kind string) {
			<-start
			v, err := rt.Get(context.Background(), Key{Kind: kind, Arg: "x"})
			results <- answer{kind: kind, v: v, err: err}
		}(kind)
	}
	close(start)

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				t.Fatalf("%s: %v", r.kind, r.err)
			}
			if r.v != 3 {
				t.Errorf("%s = %v, want fixed point 3", r.kind, r.v)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("concurrent cycle heads deadlocked")
		}
	}
}

func TestCycleThroughNonCyclicQueryErrors(t *testing.T) {
	rt := NewRuntime()
	rt.Register("loop", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		return rt.Get(ctx, Key{Kind: "loop", Arg: arg})
	})
	if _, err := rt.Get(context.Background(), Key{Kind: "loop", Arg: "x"}); err == nil {
		t.Error("cycle through a non-cyclic query must error")
	}
}

func TestCancellation(t *testing.T) {
	rt := NewRuntime()
	rt.Register("slow", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		return "done", nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rt.Get(ctx, Key{Kind: "slow", Arg: "x"}); err == nil {
		t.Error("cancelled context must abort the query")
	}
	// завершённые результаты остаются валидными после отмены другого прохода
	if v, err := rt.Get(context.Background(), Key{Kind: "slow", Arg: "x"}); err != nil || v != "done" {
		t.Errorf("fresh context must succeed: %v, %v", v, err)
	}
}

func TestConcurrentSameKeyComputesOnce(t *testing.T) {
	rt := NewRuntime()
	var runs atomic.Int64
	rt.Register("slow", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		runs.Add(1)
		time.Sleep(20 * time.Millisecond)
		return arg, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := rt.Get(context.Background(), Key{Kind: "slow", Arg: "x"})
			if err != nil || v != "x" {
				t.Errorf("got %v, %v", v, err)
			}
		}()
	}
	wg.Wait()
	if runs.Load() != 1 {
		t.Errorf("compute ran %d times, want 1", runs.Load())
	}
}

func TestConcurrentDistinctKeys(t *testing.T) {
	rt := NewRuntime()
	rt.Register("echo", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		return arg, nil
	})
	var wg sync.WaitGroup
	for _, arg := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(arg string) {
			defer wg.Done()
			v, err := rt.Get(context.Background(), Key{Kind: "echo", Arg: arg})
			if err != nil || v != arg {
				t.Errorf("echo(%s) = %v, %v", arg, v, err)
			}
		}(arg)
	}
	wg.Wait()
}

func TestUnregisteredKind(t *testing.T) {
	rt := NewRuntime()
	if _, err := rt.Get(context.Background(), Key{Kind: "nope", Arg: ""}); err == nil {
		t.Error("unregistered kind must error")
	}
}

func TestForgetForcesRecompute(t *testing.T) {
	rt := NewRuntime()
	var runs atomic.Int64
	rt.Register("c", func(ctx context.Context, rt *Runtime, arg string) (any, error) {
		runs.Add(1)
		return 1, nil
	})
	key := Key{Kind: "c", Arg: "x"}
	rt.Get(context.Background(), key)
	rt.Forget(key)
	rt.Get(context.Background(), key)
	if runs.Load() != 2 {
		t.Errorf("compute ran %d times after Forget, want 2", runs.Load())
	}
}
