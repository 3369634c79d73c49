package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/funvibe/rulesolver/internal/solver"
	"github.com/funvibe/rulesolver/internal/store"
)

const testWorld = `
entities:
  - name: Jedi
  - name: Dagobah
  - name: HomePlanet
  - name: Yoda
    ids: [Jedi, [HomePlanet, Dagobah]]
  - name: Luke
    ids: [Jedi]
`

func testStore(t *testing.T) *store.World {
	t.Helper()
	w, err := store.LoadWorld(strings.NewReader(testWorld))
	if err != nil {
		t.Fatalf("load world: %v", err)
	}
	return w
}

func TestCompileAndIterate(t *testing.T) {
	w := testStore(t)
	r, err := Compile(w, "Jedi(.)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var names []string
	it := r.Iterate()
	for it.Next() {
		for _, e := range it.Entities() {
			names = append(names, w.Name(e))
		}
	}

	want := []string{"Yoda", "Luke"}
	if len(names) != len(want) {
		t.Fatalf("entities: got=%v, want=%v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entity %d: got=%s, want=%s", i, names[i], want[i])
		}
	}
}

func TestCompileParseError(t *testing.T) {
	w := testStore(t)
	if _, err := Compile(w, "Jedi("); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCompileArityError(t *testing.T) {
	w := testStore(t)
	_, err := Compile(w, "HomePlanet(Yoda, Dagobah, Luke)")
	if !errors.Is(err, solver.ErrArity) {
		t.Fatalf("error: got=%v, want ErrArity", err)
	}
}

func TestCompileWithLogger(t *testing.T) {
	w := testStore(t)
	logger := hclog.New(&hclog.LoggerOptions{
		Output: &strings.Builder{},
		Level:  hclog.Trace,
	})
	r, err := Compile(w, "Jedi(.)", WithLogger(logger))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	it := r.Iterate()
	for it.Next() {
	}
}

func TestExplainExposed(t *testing.T) {
	w := testStore(t)
	r, err := Compile(w, "Jedi(.)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(r.Explain(), "yield") {
		t.Errorf("listing should contain yield:\n%s", r.Explain())
	}
}
