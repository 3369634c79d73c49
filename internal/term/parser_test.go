package term

import (
	"strings"
	"testing"

	"github.com/funvibe/rulesolver/internal/entity"
)

type mapResolver map[string]entity.ID

func (m mapResolver) Lookup(name string) (entity.ID, bool) {
	id, ok := m[name]
	return id, ok
}

var testResolver = mapResolver{
	"Jedi":       entity.FirstUser,
	"Yoda":       entity.FirstUser + 1,
	"HomePlanet": entity.FirstUser + 2,
	"Tatooine":   entity.FirstUser + 3,
	"lowercase":  entity.FirstUser + 4,
}

func parse(t *testing.T, expr string) []Term {
	t.Helper()
	terms, err := Parse(expr, testResolver)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	return terms
}

func TestParseFact(t *testing.T) {
	terms := parse(t, "Jedi(Yoda)")
	if len(terms) != 1 {
		t.Fatalf("term count: got=%d, want=1", len(terms))
	}
	tm := terms[0]
	if tm.Pred.Value != entity.FirstUser || tm.Pred.Name != "Jedi" {
		t.Errorf("pred: got=%+v", tm.Pred)
	}
	if len(tm.Args) != 1 || tm.Args[0].Value != entity.FirstUser+1 {
		t.Errorf("args: got=%+v", tm.Args)
	}
	if !tm.Fact() {
		t.Errorf("term should be a fact")
	}
}

func TestParsePair(t *testing.T) {
	terms := parse(t, "HomePlanet(., Tatooine)")
	tm := terms[0]
	if !tm.Subject().IsThis() {
		t.Errorf("subject should be this: %+v", tm.Subject())
	}
	obj, ok := tm.Object()
	if !ok || obj.Value != entity.FirstUser+3 {
		t.Errorf("object: got=%+v ok=%v", obj, ok)
	}
	if tm.Fact() {
		t.Errorf("term with this is not a fact")
	}
}

func TestParseBarePredicate(t *testing.T) {
	terms := parse(t, "Jedi")
	tm := terms[0]
	if len(tm.Args) != 1 || !tm.Args[0].IsThis() {
		t.Errorf("bare predicate should apply to this: %+v", tm.Args)
	}
}

func TestParseVariables(t *testing.T) {
	terms := parse(t, "X(., Tatooine), Jedi(X)")
	if len(terms) != 2 {
		t.Fatalf("term count: got=%d, want=2", len(terms))
	}
	if !terms[0].Pred.IsVariable() || terms[0].Pred.Name != "X" {
		t.Errorf("pred should be variable X: %+v", terms[0].Pred)
	}
	if !terms[1].Args[0].IsVariable() {
		t.Errorf("subject should be variable: %+v", terms[1].Args[0])
	}
}

func TestParseUnderscoreVariable(t *testing.T) {
	terms := parse(t, "Jedi(_Anon)")
	if !terms[0].Args[0].IsVariable() {
		t.Errorf("underscore identifier should parse as a variable")
	}
}

func TestParseWhitespace(t *testing.T) {
	terms := parse(t, "  Jedi( Yoda ) ,\n HomePlanet(. , Tatooine)  ")
	if len(terms) != 2 {
		t.Fatalf("term count: got=%d, want=2", len(terms))
	}
}

func TestParseThreeArgs(t *testing.T) {
	// Arity is enforced by the compiler, not the parser.
	terms := parse(t, "Jedi(Yoda, Tatooine, X)")
	if len(terms[0].Args) != 3 {
		t.Fatalf("args: got=%d, want=3", len(terms[0].Args))
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"", "empty expression"},
		{"Jedi(", "expected identifier"},
		{"Jedi(Yoda", "expected ','"},
		{"Jedi(Yoda))", "expected ',' or end"},
		{"lowercaseunknown", "unresolved identifier"},
		{"Jedi Yoda", "expected ',' or end"},
	}
	for _, c := range cases {
		_, err := Parse(c.expr, testResolver)
		if err == nil {
			t.Errorf("%q: expected error", c.expr)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%q: error %q does not mention %q", c.expr, err, c.want)
		}
	}
}

func TestParseErrorMentionsExpression(t *testing.T) {
	_, err := Parse("Jedi(", testResolver)
	if err == nil || !strings.Contains(err.Error(), "Jedi(") {
		t.Errorf("error should carry the expression text: %v", err)
	}
}
