package retention

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/blackwell-systems/dirwarden/internal/files"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func rec(path string, offsetSec int) files.Record {
	return files.Record{Path: path, CreatedAt: base.Add(time.Duration(offsetSec) * time.Second), SizeBytes: 1}
}

func excessPaths(d Decision) []string {
	var out []string
	for _, r := range d.Excess {
		out = append(out, r.Path)
	}
	return out
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		inv        files.Inventory
		maxFiles   uint32
		wantExcess []string
	}{
		{
			name:     "empty inventory",
			inv:      nil,
			maxFiles: 3,
		},
		{
			name:     "at capacity",
			inv:      files.Inventory{rec("/d/a", 1), rec("/d/b", 2)},
			maxFiles: 2,
		},
		{
			name:       "one over capacity",
			inv:        files.Inventory{rec("/d/a", 1), rec("/d/b", 2), rec("/d/c", 3)},
			maxFiles:   2,
			wantExcess: []string{"/d/a"},
		},
		{
			name:       "unsorted input ordered oldest first",
			inv:        files.Inventory{rec("/d/new", 30), rec("/d/old", 10), rec("/d/mid", 20), rec("/d/newest", 40)},
			maxFiles:   2,
			wantExcess: []string{"/d/old", "/d/mid"},
		},
		{
			name:       "ties broken by path",
			inv:        files.Inventory{rec("/d/z", 5), rec("/d/a", 5), rec("/d/m", 5)},
			maxFiles:   1,
			wantExcess: []string{"/d/a", "/d/m"},
		},
		{
			name:       "max files one keeps newest",
			inv:        files.Inventory{rec("/d/a", 1), rec("/d/b", 2), rec("/d/c", 3)},
			maxFiles:   1,
			wantExcess: []string{"/d/a", "/d/b"},
		},
		{
			name:       "zero treated as one",
			inv:        files.Inventory{rec("/d/a", 1), rec("/d/b", 2)},
			maxFiles:   0,
			wantExcess: []string{"/d/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.inv, tt.maxFiles)

			if got := excessPaths(d); !reflect.DeepEqual(got, tt.wantExcess) {
				t.Errorf("Decide() excess = %v, want %v", got, tt.wantExcess)
			}
			if len(d.Keep)+len(d.Excess) != len(tt.inv) {
				t.Errorf("keep(%d) + excess(%d) != inventory(%d)", len(d.Keep), len(d.Excess), len(tt.inv))
			}
			for _, r := range d.Excess {
				if d.Keep[r.Path] {
					t.Errorf("%s is both kept and excess", r.Path)
				}
			}
		})
	}
}

func TestDecideDoesNotMutateInput(t *testing.T) {
	inv := files.Inventory{rec("/d/c", 3), rec("/d/a", 1), rec("/d/b", 2)}
	before := append(files.Inventory(nil), inv...)

	Decide(inv, 1)

	if !reflect.DeepEqual(inv, before) {
		t.Errorf("Decide() reordered its input: %v", inv)
	}
}

func TestDecideDeterministic(t *testing.T) {
	var inv files.Inventory
	for i := 0; i < 50; i++ {
		inv = append(inv, rec(fmt.Sprintf("/d/f%02d", 49-i), i%7))
	}

	first := Decide(inv, 10)
	for i := 0; i < 5; i++ {
		again := Decide(inv, 10)
		if !reflect.DeepEqual(excessPaths(first), excessPaths(again)) {
			t.Fatalf("Decide() not deterministic: %v vs %v", excessPaths(first), excessPaths(again))
		}
	}
	if len(first.Excess) != 40 {
		t.Errorf("Decide() excess = %d, want 40", len(first.Excess))
	}
}

func TestDecideKeepsNewest(t *testing.T) {
	inv := files.Inventory{rec("/d/a", 1), rec("/d/b", 2), rec("/d/c", 3), rec("/d/d", 4)}
	d := Decide(inv, 2)

	for _, kept := range []string{"/d/c", "/d/d"} {
		if !d.Keep[kept] {
			t.Errorf("expected %s to be kept", kept)
		}
	}
	for _, ex := range d.Excess {
		for path := range d.Keep {
			var keptRec files.Record
			for _, r := range inv {
				if r.Path == path {
					keptRec = r
				}
			}
			if !Older(ex, keptRec) {
				t.Errorf("excess %s is not older than kept %s", ex.Path, path)
			}
		}
	}
}
