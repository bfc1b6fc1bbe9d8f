package container

import "testing"

func TestMapContainerBasics(t *testing.T) {
	c := New[string, int]()
	if c.Len() != 0 {
		t.Fatalf("new container Len() = %d, want 0", c.Len())
	}
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v, want 1, true", v, ok)
	}
	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("last-write-wins: Get(a) = %v, want 10", v)
	}
	c.Delete("b")
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) should report absent after Delete")
	}
	if c.Len() != 1 {
		t.Errorf("Len() after delete = %d, want 1", c.Len())
	}
}

func TestMapContainerCloneIsIndependent(t *testing.T) {
	c := New[string, int]()
	c.Set("a", 1)

	clone := c.Clone()
	clone.Set("a", 2)
	clone.Set("b", 3)

	if v, _ := c.Get("a"); v != 1 {
		t.Errorf("mutating clone affected original: Get(a) = %v, want 1", v)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("mutating clone affected original: Get(b) should be absent")
	}
}

func TestMapContainerRange(t *testing.T) {
	c := New[int, int]()
	for i := 0; i < 5; i++ {
		c.Set(i, i*i)
	}

	seen := map[int]int{}
	c.Range(func(k, v int) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 5 {
		t.Fatalf("Range visited %d entries, want 5", len(seen))
	}

	count := 0
	c.Range(func(k, v int) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Range should stop after first false return, visited %d", count)
	}
}
