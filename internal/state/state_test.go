package state

import (
	"sync"
	"testing"
)

func TestGetSetUpdate(t *testing.T) {
	s := New(1)
	if s.Get() != 1 {
		t.Errorf("expected 1, got %d", s.Get())
	}
	s.Set(5)
	if got := s.Update(func(v int) int { return v * 2 }); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if s.Get() != 10 || s.Version() != 2 {
		t.Errorf("expected value 10 version 2, got %d %d", s.Get(), s.Version())
	}
}

func TestSubscribeOrderAndUnsubscribe(t *testing.T) {
	s := New("")
	var got []string
	unsubA := s.Subscribe(func(v string) { got = append(got, "a:"+v) })
	s.Subscribe(func(v string) { got = append(got, "b:"+v) })

	s.Set("x")
	unsubA()
	unsubA()
	s.Set("y")

	want := []string{"a:x", "b:x", "b:y"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSubscriberMayReadStore(t *testing.T) {
	s := New(0)
	var seen int
	s.Subscribe(func(int) { seen = s.Get() })
	s.Set(7)
	if seen != 7 {
		t.Errorf("subscriber should read the committed value, got %d", seen)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()
	if s.Get() != 50 {
		t.Errorf("expected 50, got %d", s.Get())
	}
}
