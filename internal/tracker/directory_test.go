package tracker

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestSnapshot_LookupAndSelect(t *testing.T) {
	snap := NewSnapshot([]RouteInfo{
		{RouteID: "1", ShortName: "A", LongName: "Route A"},
		{RouteID: "2", ShortName: "B", LongName: "Route B"},
		{RouteID: "3", ShortName: "C", LongName: "Route C"},
	}, time.Now())

	if snap.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", snap.Len())
	}
	if r, ok := snap.Lookup("B"); !ok || r.RouteID != "2" {
		t.Errorf("Lookup(B) = %+v, %v", r, ok)
	}
	if _, ok := snap.Lookup("Z"); ok {
		t.Error("Lookup(Z) should miss")
	}

	sel := snap.Select([]string{"A", "C", "missing"})
	if len(sel) != 2 {
		t.Fatalf("Select() len = %d, want 2", len(sel))
	}
	if sel["1"].ShortName != "A" || sel["3"].ShortName != "C" {
		t.Errorf("Select() = %+v", sel)
	}
}

func TestSnapshot_DuplicateShortNameLastWins(t *testing.T) {
	snap := NewSnapshot([]RouteInfo{
		{RouteID: "old", ShortName: "A"},
		{RouteID: "new", ShortName: "A"},
	}, time.Now())

	r, _ := snap.Lookup("A")
	if r.RouteID != "new" {
		t.Errorf("Lookup(A).RouteID = %q, want new", r.RouteID)
	}
}

func TestSnapshot_RoutesSorted(t *testing.T) {
	snap := NewSnapshot([]RouteInfo{
		{RouteID: "3", ShortName: "C"},
		{RouteID: "1", ShortName: "A"},
		{RouteID: "2", ShortName: "B"},
	}, time.Now())

	routes := snap.Routes()
	for i, want := range []string{"A", "B", "C"} {
		if routes[i].ShortName != want {
			t.Errorf("Routes()[%d] = %s, want %s", i, routes[i].ShortName, want)
		}
	}
}

func TestDirectory_EmptyBeforeFirstReplace(t *testing.T) {
	d := NewDirectory()
	snap := d.Snapshot()
	if snap == nil {
		t.Fatal("Snapshot() = nil")
	}
	if snap.Len() != 0 || !snap.LoadedAt().IsZero() {
		t.Errorf("initial snapshot = %d routes, loaded %v", snap.Len(), snap.LoadedAt())
	}
}

func TestDirectory_ReplaceDoesNotAffectHeldSnapshot(t *testing.T) {
	d := NewDirectory()
	d.Replace(NewSnapshot([]RouteInfo{{RouteID: "1", ShortName: "A"}}, time.Now()))

	held := d.Snapshot()
	d.Replace(NewSnapshot([]RouteInfo{{RouteID: "2", ShortName: "B"}}, time.Now()))

	if _, ok := held.Lookup("A"); !ok {
		t.Error("held snapshot lost route A after Replace")
	}
	if _, ok := held.Lookup("B"); ok {
		t.Error("held snapshot gained route B after Replace")
	}
	if _, ok := d.Snapshot().Lookup("B"); !ok {
		t.Error("current snapshot missing route B")
	}
}

// generation builds a snapshot whose every route id carries the generation number.
func generation(gen, size int) *Snapshot {
	routes := make([]RouteInfo, size)
	for i := range routes {
		routes[i] = RouteInfo{
			RouteID:   fmt.Sprintf("%d-%d", gen, i),
			ShortName: strconv.Itoa(i),
		}
	}
	return NewSnapshot(routes, time.Now())
}

func TestDirectory_ConcurrentReplaceIsAtomic(t *testing.T) {
	const size = 50
	d := NewDirectory()
	d.Replace(generation(0, size))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for gen := 1; gen <= 200; gen++ {
			d.Replace(generation(gen, size))
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := d.Snapshot()
				if snap.Len() != size {
					t.Errorf("snapshot has %d routes, want %d", snap.Len(), size)
					return
				}
				first, _ := snap.Lookup("0")
				var gen int
				fmt.Sscanf(first.RouteID, "%d-", &gen)
				for _, route := range snap.Routes() {
					var g int
					fmt.Sscanf(route.RouteID, "%d-", &g)
					if g != gen {
						t.Errorf("snapshot mixes generation %d and %d", gen, g)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
