package inject

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"
)

// screenInjector simulates a text field. DeleteWord behaves like
// option+backspace: it removes the last word but keeps the space before it.
type screenInjector struct {
	mu      sync.Mutex
	screen  string
	ops     []string
	err     error
	gate    chan struct{} // if set, the first operation blocks until closed
	started chan struct{} // closed when the first operation begins
	once    sync.Once
}

func newScreenInjector() *screenInjector {
	return &screenInjector{started: make(chan struct{})}
}

func (s *screenInjector) enter() {
	s.once.Do(func() {
		close(s.started)
		if s.gate != nil {
			<-s.gate
		}
	})
}

func (s *screenInjector) DeleteWord(ctx context.Context) error {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ops = append(s.ops, "delete")
	s.screen = strings.TrimRightFunc(s.screen, unicode.IsSpace)
	s.screen = strings.TrimRightFunc(s.screen, func(r rune) bool { return !unicode.IsSpace(r) })
	return nil
}

func (s *screenInjector) PasteText(ctx context.Context, text string) error {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ops = append(s.ops, "paste:"+text)
	s.screen += text
	return nil
}

func (s *screenInjector) snapshot() (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen, append([]string(nil), s.ops...)
}

func flush(t *testing.T, e *Engine) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := e.Flush(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Flush timed out")
	}
	return err
}

func waitStarted(t *testing.T, s *screenInjector) {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(2 * time.Second):
		t.Fatal("injector never started")
	}
}

func TestEngineDiffsConvergeOnScreen(t *testing.T) {
	inj := newScreenInjector()
	e := NewEngine(inj)
	defer e.Close()

	transcripts := []string{
		"hello",
		"hello world",
		"hello word today",
		"hello world today",
		"hello world today.",
		"goodbye",
	}

	prev := ""
	for _, next := range transcripts {
		e.InjectDiff(prev, next)
		if err := flush(t, e); err != nil {
			t.Fatalf("Flush after %q: %v", next, err)
		}
		if screen, _ := inj.snapshot(); screen != next {
			t.Fatalf("screen = %q after diff %q -> %q, want %q", screen, prev, next, next)
		}
		prev = next
	}
}

func TestDeleteOnlyDiffThenAppend(t *testing.T) {
	inj := newScreenInjector()
	e := NewEngine(inj)
	defer e.Close()

	steps := []struct{ next, screen string }{
		{"a b c", "a b c"},
		{"a b", "a b "},
		{"a b x", "a b x"},
		{"a", "a "},
		{"a", "a "},
		{"a y z", "a y z"},
	}
	prev := ""
	for _, st := range steps {
		e.InjectDiff(prev, st.next)
		if err := flush(t, e); err != nil {
			t.Fatalf("Flush after %q: %v", st.next, err)
		}
		if screen, _ := inj.snapshot(); screen != st.screen {
			t.Fatalf("screen = %q after %q -> %q, want %q", screen, prev, st.next, st.screen)
		}
		prev = st.next
	}
}

func TestPermissionDeniedRobotReportedByFlush(t *testing.T) {
	r, calls := fakeRobot("", nil, nil, WithPermissionCheck(func() bool { return false }))
	e := NewEngine(r)
	defer e.Close()

	e.InjectDiff("", "hello")
	err := flush(t, e)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Flush error = %v, want ErrPermissionDenied", err)
	}
	if n := len(calls.taps) + len(calls.writes) + len(calls.typed); n != 0 {
		t.Errorf("robot posted %d events without permission: %+v", n, calls)
	}
}

func TestEngineAppliesInOrder(t *testing.T) {
	inj := newScreenInjector()
	e := NewEngine(inj)
	defer e.Close()

	e.InjectDiff("", "one")
	e.InjectFull("ignored because it resets")
	e.Reset()
	e.InjectDiff("", "one")
	if err := flush(t, e); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	_, ops := inj.snapshot()
	if len(ops) == 0 || ops[len(ops)-1] != "paste:one" {
		t.Errorf("ops = %q, want to end with paste:one", ops)
	}
}

func TestResetKeepsInflightInjection(t *testing.T) {
	inj := newScreenInjector()
	inj.gate = make(chan struct{})
	e := NewEngine(inj)
	defer e.Close()

	e.InjectFull("first")
	waitStarted(t, inj)

	e.InjectDiff("first", "first second")
	e.Reset()
	close(inj.gate)

	if err := flush(t, e); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	screen, ops := inj.snapshot()
	if screen != "first" {
		t.Errorf("screen = %q, want %q", screen, "first")
	}
	if len(ops) != 1 {
		t.Errorf("ops = %q, want only the in-flight paste", ops)
	}
}

func TestInjectDiffCoalescesQueuedEdits(t *testing.T) {
	inj := newScreenInjector()
	inj.gate = make(chan struct{})
	e := NewEngine(inj)
	defer e.Close()

	e.InjectFull("a")
	waitStarted(t, inj)

	e.InjectDiff("a", "a b")
	e.InjectDiff("a b", "a c")
	e.InjectDiff("a c", "a c d")
	close(inj.gate)

	if err := flush(t, e); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	screen, ops := inj.snapshot()
	if screen != "a c d" {
		t.Errorf("screen = %q, want %q", screen, "a c d")
	}
	want := []string{"paste:a", "paste: c d"}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("ops = %q, want %q", ops, want)
	}
}

func TestInjectFullDropsQueuedEdits(t *testing.T) {
	inj := newScreenInjector()
	inj.gate = make(chan struct{})
	e := NewEngine(inj)
	defer e.Close()

	e.InjectFull("x")
	waitStarted(t, inj)

	e.InjectDiff("x", "x y")
	e.InjectFull("z")
	close(inj.gate)

	if err := flush(t, e); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	_, ops := inj.snapshot()
	want := []string{"paste:x", "paste:z"}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("ops = %q, want %q", ops, want)
	}
}

func TestInjectFullSkipsBlankText(t *testing.T) {
	inj := newScreenInjector()
	e := NewEngine(inj)
	defer e.Close()

	e.InjectFull(" \n\t ")
	if err := flush(t, e); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ops := inj.snapshot(); len(ops) != 0 {
		t.Errorf("ops = %q, want none", ops)
	}
}

func TestInjectFullTrimsText(t *testing.T) {
	inj := newScreenInjector()
	e := NewEngine(inj)
	defer e.Close()

	e.InjectFull("  hello world \n")
	if err := flush(t, e); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if screen, _ := inj.snapshot(); screen != "hello world" {
		t.Errorf("screen = %q, want %q", screen, "hello world")
	}
}

func TestFlushReportsErrorsOnce(t *testing.T) {
	inj := newScreenInjector()
	inj.err = fmt.Errorf("post event: %w", ErrPermissionDenied)
	e := NewEngine(inj)
	defer e.Close()

	e.InjectFull("hi")
	e.InjectDiff("hi", "hi there")
	err := flush(t, e)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Flush error = %v, want ErrPermissionDenied", err)
	}

	if err := flush(t, e); err != nil {
		t.Errorf("second Flush error = %v, want nil", err)
	}
}

func TestFlushAfterClose(t *testing.T) {
	e := NewEngine(newScreenInjector())
	e.Close()
	e.Close()

	if err := e.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
	e.InjectFull("ignored")
	e.InjectDiff("", "ignored")
}

func TestCloseUnblocksWaitingFlush(t *testing.T) {
	inj := newScreenInjector()
	inj.gate = make(chan struct{})
	e := NewEngine(inj)

	e.InjectFull("stuck")
	waitStarted(t, inj)

	errc := make(chan error, 1)
	go func() { errc <- e.Flush(context.Background()) }()

	closed := make(chan struct{})
	go func() {
		e.Close()
		close(closed)
	}()
	close(inj.gate)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, ErrClosed) {
			t.Errorf("Flush = %v, want nil or ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Flush still blocked after Close")
	}
	<-closed
}
