package solver_test

import (
	"testing"

	"github.com/funvibe/rulesolver/internal/entity"
	"github.com/funvibe/rulesolver/internal/solver"
	"github.com/funvibe/rulesolver/internal/store"
	"github.com/funvibe/rulesolver/internal/term"
)

func loadWorld(t *testing.T) *store.World {
	t.Helper()
	w, err := store.LoadWorldFile("testdata/starwars.yaml")
	if err != nil {
		t.Fatalf("load world: %v", err)
	}
	return w
}

func compile(t *testing.T, w *store.World, expr string) *solver.Rule {
	t.Helper()
	terms, err := term.Parse(expr, w)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	r, err := solver.New(w, expr, terms)
	if err != nil {
		t.Fatalf("compilation error: %s", err)
	}
	return r
}

// result is one iterator step translated to names for readable assertions.
type result struct {
	count    int
	entities []string
	vars     map[string]string
	comps    []string
}

func collect(w *store.World, r *solver.Rule) []result {
	var results []result
	it := r.Iterate()
	for it.Next() {
		res := result{
			count: it.Count(),
			vars:  map[string]string{},
		}
		for _, e := range it.Entities() {
			res.entities = append(res.entities, w.Name(e))
		}
		for _, c := range it.Components() {
			res.comps = append(res.comps, w.Name(c))
		}
		for v := 0; v < r.VariableCount(); v++ {
			if !r.VariableIsEntity(v) {
				continue
			}
			res.vars[r.VariableName(v)] = w.Name(it.Variable(v))
		}
		results = append(results, res)
	}
	return results
}

func checkEntities(t *testing.T, results []result, want [][]string) {
	t.Helper()
	if len(results) != len(want) {
		t.Fatalf("result count: got=%d, want=%d", len(results), len(want))
	}
	for i, res := range results {
		if len(res.entities) != len(want[i]) {
			t.Fatalf("result %d entity count: got=%v, want=%v", i, res.entities, want[i])
		}
		for j, name := range want[i] {
			if res.entities[j] != name {
				t.Errorf("result %d entity %d: got=%s, want=%s", i, j, res.entities[j], name)
			}
		}
	}
}

func TestFactTrue(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "Jedi(Yoda)")

	results := collect(w, r)
	if len(results) != 1 {
		t.Fatalf("result count: got=%d, want=1", len(results))
	}
	if results[0].count != 0 {
		t.Errorf("count: got=%d, want=0", results[0].count)
	}
}

func TestFactFalse(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "Sith(Yoda)")

	if results := collect(w, r); len(results) != 0 {
		t.Fatalf("result count: got=%d, want=0", len(results))
	}
}

func TestTwoFactsTrue(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "Jedi(Yoda), Sith(DarthVader)")

	results := collect(w, r)
	if len(results) != 1 || results[0].count != 0 {
		t.Fatalf("got=%+v, want one empty result", results)
	}
}

func TestTwoFactsOneFalse(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "Sith(Yoda), Sith(DarthVader)")

	if results := collect(w, r); len(results) != 0 {
		t.Fatalf("result count: got=%d, want=0", len(results))
	}
}

func TestFactPairTrue(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "HomePlanet(Yoda, Dagobah)")

	results := collect(w, r)
	if len(results) != 1 || results[0].count != 0 {
		t.Fatalf("got=%+v, want one empty result", results)
	}
}

func TestFactPairFalse(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "HomePlanet(Yoda, Tatooine)")

	if results := collect(w, r); len(results) != 0 {
		t.Fatalf("result count: got=%d, want=0", len(results))
	}
}

func TestFindPair(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "HomePlanet(., Tatooine)")

	results := collect(w, r)
	checkEntities(t, results, [][]string{{"BB8"}, {"Luke"}, {"Rey"}})
}

func TestFindPairWithPredVariable(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "X(., Tatooine)")

	if r.FindVariable("X") == -1 {
		t.Fatalf("variable X not found")
	}

	results := collect(w, r)
	checkEntities(t, results, [][]string{{"BB8"}, {"Luke"}, {"Rey"}})
	for i, res := range results {
		if res.vars["X"] != "HomePlanet" {
			t.Errorf("result %d: X=%s, want=HomePlanet", i, res.vars["X"])
		}
		if res.comps[0] != "(HomePlanet,Tatooine)" {
			t.Errorf("result %d: component=%s, want=(HomePlanet,Tatooine)", i, res.comps[0])
		}
	}
}

func TestFindPairWithObjectVariable(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "HomePlanet(., X)")

	results := collect(w, r)
	checkEntities(t, results, [][]string{
		{"DarthVader"}, {"Yoda"}, {"BB8"}, {"Luke"}, {"Rey"},
	})

	wantX := []string{"Mustafar", "Dagobah", "Tatooine", "Tatooine", "Tatooine"}
	for i, res := range results {
		if res.vars["X"] != wantX[i] {
			t.Errorf("result %d: X=%s, want=%s", i, res.vars["X"], wantX[i])
		}
	}
}

func TestTransitiveSubSets(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "IsA(., Character)")

	results := collect(w, r)
	checkEntities(t, results, [][]string{
		{"Character"}, {"Creature"}, {"Wookie"}, {"Droid"}, {"Human"}, {"Cyborg"},
	})

	wantComps := []string{
		"(IsA,Character)", "(IsA,Character)", "(IsA,Creature)",
		"(IsA,Character)", "(IsA,Character)", "(IsA,Human)",
	}
	for i, res := range results {
		if res.count != 1 {
			t.Errorf("result %d: count=%d, want=1", i, res.count)
		}
		if res.comps[0] != wantComps[i] {
			t.Errorf("result %d: component=%s, want=%s", i, res.comps[0], wantComps[i])
		}
	}
}

func TestTransitiveSuperSets(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "IsA(SpaceShip, .)")

	results := collect(w, r)
	checkEntities(t, results, [][]string{
		{"SpaceShip"}, {"Transport"}, {"Vehicle"}, {"Machine"}, {"Thing"}, {"Container"},
	})

	wantComps := []string{
		"(IsA,SpaceShip)", "(IsA,Transport)", "(IsA,Vehicle)",
		"(IsA,Machine)", "(IsA,Thing)", "(IsA,Container)",
	}
	for i, res := range results {
		if res.comps[0] != wantComps[i] {
			t.Errorf("result %d: component=%s, want=%s", i, res.comps[0], wantComps[i])
		}
	}
}

func TestTransitiveFact(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "IsA(XWing, Transport)")

	results := collect(w, r)
	if len(results) != 2 {
		t.Fatalf("result count: got=%d, want=2", len(results))
	}
	if results[0].comps[0] != "(IsA,SpaceShip)" {
		t.Errorf("result 0: component=%s, want=(IsA,SpaceShip)", results[0].comps[0])
	}
	if results[1].comps[0] != "(IsA,XWing)" {
		t.Errorf("result 1: component=%s, want=(IsA,XWing)", results[1].comps[0])
	}
}

func TestTransitiveFactFalse(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "IsA(XWing, Creature)")

	if results := collect(w, r); len(results) != 0 {
		t.Fatalf("result count: got=%d, want=0", len(results))
	}
}

func TestTransitiveFactSameSubjObj(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "IsA(SpaceShip, SpaceShip)")

	results := collect(w, r)
	if len(results) != 1 {
		t.Fatalf("result count: got=%d, want=1", len(results))
	}
	if results[0].comps[0] != "(IsA,SpaceShip)" {
		t.Errorf("component=%s, want=(IsA,SpaceShip)", results[0].comps[0])
	}
}

func TestCyclicPairs(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "Likes(., X), Likes(X, .)")

	results := collect(w, r)
	checkEntities(t, results, [][]string{{"HanSolo"}, {"Leia"}})

	if results[0].vars["X"] != "Leia" {
		t.Errorf("result 0: X=%s, want=Leia", results[0].vars["X"])
	}
	if results[1].vars["X"] != "HanSolo" {
		t.Errorf("result 1: X=%s, want=HanSolo", results[1].vars["X"])
	}
}

func TestSamePredObj(t *testing.T) {
	w := store.NewWorld()
	foo := w.Tag("Foo")
	bar := w.Tag("Bar")
	w.Entity("e1", entity.Pair(bar, foo))
	w.Entity("e2", entity.Pair(foo, foo))

	r := compile(t, w, "X(., X)")

	results := collect(w, r)
	checkEntities(t, results, [][]string{{"e2"}})
	if results[0].vars["X"] != "Foo" {
		t.Errorf("X=%s, want=Foo", results[0].vars["X"])
	}
}

func TestSamePredObjNoMatch(t *testing.T) {
	w := store.NewWorld()
	foo := w.Tag("Foo")
	bar := w.Tag("Bar")
	w.Entity("e1", entity.Pair(bar, foo))

	r := compile(t, w, "X(., X)")

	if results := collect(w, r); len(results) != 0 {
		t.Fatalf("result count: got=%d, want=0", len(results))
	}
}

func TestEachSkipsBuiltins(t *testing.T) {
	// Wildcard and This never appear in tables, and an Each over any table
	// must never produce them even indirectly through variable output.
	w := loadWorld(t)
	r := compile(t, w, "Likes(., X), Likes(X, .)")

	results := collect(w, r)
	for i, res := range results {
		for _, name := range []string{"*", "."} {
			if res.vars["X"] == name {
				t.Errorf("result %d: X bound to builtin %q", i, name)
			}
		}
	}
}

func TestDeterminism(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "HomePlanet(., X)")

	first := collect(w, r)
	second := collect(w, r)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].entities[0] != second[i].entities[0] ||
			first[i].vars["X"] != second[i].vars["X"] {
			t.Errorf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestIteratorFree(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "HomePlanet(., Tatooine)")

	it := r.Iterate()
	if !it.Next() {
		t.Fatalf("expected a result")
	}
	it.Free()
	it.Free()
	if it.Next() {
		t.Errorf("freed iterator yielded a result")
	}
}

func TestColumnsAreOneBased(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "HomePlanet(., Tatooine)")

	it := r.Iterate()
	defer it.Free()
	if !it.Next() {
		t.Fatalf("expected a result")
	}
	cols := it.Columns()
	if len(cols) != 1 {
		t.Fatalf("column count: got=%d, want=1", len(cols))
	}
	if cols[0] < 1 {
		t.Errorf("column: got=%d, want >= 1", cols[0])
	}
}

func TestVariableAPI(t *testing.T) {
	w := loadWorld(t)
	r := compile(t, w, "X(., Tatooine)")

	if got := r.TermCount(); got != 1 {
		t.Errorf("TermCount: got=%d, want=1", got)
	}
	x := r.FindVariable("X")
	if x == -1 {
		t.Fatalf("FindVariable(X) = -1")
	}
	if !r.VariableIsEntity(x) {
		t.Errorf("X should be an entity variable")
	}
	if name := r.VariableName(x); name != "X" {
		t.Errorf("VariableName: got=%s, want=X", name)
	}
	if r.FindVariable("Nope") != -1 {
		t.Errorf("FindVariable(Nope) should be -1")
	}
}
