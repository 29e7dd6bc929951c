package registry

import (
	"fmt"
	"sync"
	"testing"
)

type item struct {
	ID string
}

func TestRegister(t *testing.T) {
	r := NewBaseRegistry[item]()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid item", "a", false},
		{"empty name", "", true},
		{"duplicate name", "a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.key, item{ID: tt.key})
			if (err != nil) != tt.wantErr {
				t.Errorf("Register(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestRegisterIfAbsent(t *testing.T) {
	r := NewBaseRegistry[item]()

	added, err := r.RegisterIfAbsent("a", item{ID: "first"})
	if err != nil || !added {
		t.Fatalf("first RegisterIfAbsent: added=%v err=%v", added, err)
	}
	added, err = r.RegisterIfAbsent("a", item{ID: "second"})
	if err != nil || added {
		t.Fatalf("second RegisterIfAbsent: added=%v err=%v", added, err)
	}
	got, _ := r.Get("a")
	if got.ID != "first" {
		t.Errorf("item = %q, want the original", got.ID)
	}
	if _, err := r.RegisterIfAbsent("", item{}); err == nil {
		t.Error("empty name must be rejected")
	}
}

func TestGetAndRemove(t *testing.T) {
	r := NewBaseRegistry[item]()
	if err := r.Register("a", item{ID: "a"}); err != nil {
		t.Fatal(err)
	}

	if got, ok := r.Get("a"); !ok || got.ID != "a" {
		t.Errorf("Get(a) = %+v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) succeeded")
	}
	if err := r.Remove("missing"); err == nil {
		t.Error("Remove(missing) succeeded")
	}
	if err := r.Remove("a"); err != nil {
		t.Errorf("Remove(a) = %v", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d after removal", r.Count())
	}
}

func TestNamesAndListAreSorted(t *testing.T) {
	r := NewBaseRegistry[item]()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(name, item{ID: name}); err != nil {
			t.Fatal(err)
		}
	}

	names := r.Names()
	want := []string{"a", "b", "c"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
	list := r.List()
	for i, n := range want {
		if list[i].ID != n {
			t.Fatalf("List() order = %v", list)
		}
	}
}

func TestClear(t *testing.T) {
	r := NewBaseRegistry[item]()
	for i := 0; i < 3; i++ {
		if err := r.Register(fmt.Sprintf("item-%d", i), item{}); err != nil {
			t.Fatal(err)
		}
	}
	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Count = %d after Clear", r.Count())
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewBaseRegistry[item]()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("item-%d", i)
			if err := r.Register(name, item{ID: name}); err != nil {
				t.Errorf("Register(%s) = %v", name, err)
			}
			r.Get(name)
			r.Names()
		}(i)
	}
	wg.Wait()
	if r.Count() != 20 {
		t.Errorf("Count = %d, want 20", r.Count())
	}
}
