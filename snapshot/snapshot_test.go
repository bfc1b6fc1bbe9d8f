package snapshot

import (
	"testing"

	"github.com/IvanBrykalov/pgcache/container"
)

func TestStoreEmptyUntilFirstSet(t *testing.T) {
	var s Store[string, int]
	if got := s.Get(); got != nil {
		t.Errorf("Get() on zero-value Store = %v, want nil", got)
	}
}

func TestStoreSetAndGet(t *testing.T) {
	var s Store[string, int]
	c := container.New[string, int]()
	c.Set("a", 1)
	s.Set(c)

	got := s.Get()
	if got == nil {
		t.Fatal("Get() returned nil after Set")
	}
	if v, ok := got.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v, want 1, true", v, ok)
	}
}

func TestStorePriorHandleSurvivesReplacement(t *testing.T) {
	var s Store[string, int]
	first := container.New[string, int]()
	first.Set("a", 1)
	s.Set(first)

	handle := s.Get()

	second := container.New[string, int]()
	second.Set("a", 2)
	s.Set(second)

	if v, _ := handle.Get("a"); v != 1 {
		t.Errorf("prior handle observed mutation: Get(a) = %v, want 1", v)
	}
	if v, _ := s.Get().Get("a"); v != 2 {
		t.Errorf("new Get() = %v, want 2", v)
	}
}

func TestStoreClear(t *testing.T) {
	var s Store[string, int]
	c := container.New[string, int]()
	c.Set("a", 1)
	s.Set(c)
	s.Clear()
	if got := s.Get(); got != nil {
		t.Errorf("Get() after Clear = %v, want nil", got)
	}
}
