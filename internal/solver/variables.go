package solver

import (
	"fmt"
	"sort"

	"github.com/funvibe/rulesolver/internal/config"
	"github.com/funvibe/rulesolver/internal/term"
)

// varKind classifies the value a variable's register holds. Table must sort
// before Entity.
type varKind int

const (
	varKindTable varKind = iota
	varKindEntity
	varKindUnknown
)

func (k varKind) String() string {
	switch k {
	case varKindTable:
		return "table"
	case varKindEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// depthUnset marks a variable whose distance from the root has not been
// established. Subject variables still at this depth after analysis are
// unconstrained.
const depthUnset = 255

// variable is one rule variable. The same name can occur twice, once as a
// table variable and once as an entity variable, when a rule both matches a
// table and iterates the entities inside it.
type variable struct {
	kind   varKind
	name   string
	id     int
	occurs int
	depth  int
	marked bool
}

func (r *Rule) createVariable(kind varKind, name string) *variable {
	id := len(r.vars)
	if name == "" {
		name = fmt.Sprintf("%s%d", config.AnonVarPrefix, id)
	}
	r.vars = append(r.vars, variable{
		kind:  kind,
		name:  name,
		id:    id,
		depth: depthUnset,
	})
	return &r.vars[id]
}

func (r *Rule) createAnonymousVariable(kind varKind) *variable {
	return r.createVariable(kind, "")
}

// findVariable returns the variable with the given name and kind. With
// varKindUnknown any kind matches; the first registered wins, so subject
// (table) variables take precedence over their entity twins.
func (r *Rule) findVariable(kind varKind, name string) *variable {
	for i := range r.vars {
		v := &r.vars[i]
		if v.name != name {
			continue
		}
		if kind == varKindUnknown || kind == v.kind {
			return v
		}
	}
	return nil
}

// ensureVariable registers a variable if it does not exist yet. An existing
// variable of unknown kind adopts the requested kind.
func (r *Rule) ensureVariable(kind varKind, name string) *variable {
	v := r.findVariable(kind, name)
	if v == nil {
		return r.createVariable(kind, name)
	}
	if v.kind == varKindUnknown {
		v.kind = kind
	}
	return v
}

// identVar resolves a term position to its variable, or nil for a literal.
func (r *Rule) identVar(id term.Ident) *variable {
	if id.IsVariable() || id.IsThis() {
		return r.findVariable(varKindUnknown, id.Name)
	}
	return nil
}

func (r *Rule) termPredVar(t term.Term) *variable {
	return r.identVar(t.Pred)
}

func (r *Rule) termSubjVar(t term.Term) *variable {
	return r.identVar(t.Subject())
}

func (r *Rule) termObjVar(t term.Term) *variable {
	obj, ok := t.Object()
	if !ok {
		return nil
	}
	return r.identVar(obj)
}

// isSubject reports whether a variable was registered during the subject
// scan. Subject variables occupy the low ids until the sort renumbers them,
// and the table-kind block afterwards.
func (r *Rule) isSubject(v *variable) bool {
	return v != nil && v.id < r.subjectVarCount
}

// crawlVariable follows predicate and object edges out of every term the
// variable occurs in, so that variables that are only related through
// non-subject positions still receive a depth.
func (r *Rule) crawlVariable(v, root *variable, recur int) {
	for i := range r.terms {
		t := r.terms[i]
		pred := r.termPredVar(t)
		subj := r.termSubjVar(t)
		obj := r.termObjVar(t)

		if v != pred && v != subj && v != obj {
			continue
		}

		if pred != nil && pred != v && !pred.marked {
			r.getVariableDepth(pred, root, recur+1)
		}
		if subj != nil && subj != v && !subj.marked {
			r.getVariableDepth(subj, root, recur+1)
		}
		if obj != nil && obj != v && !obj.marked {
			r.getVariableDepth(obj, root, recur+1)
		}
	}
}

// getDepthFromVar returns the depth derivable from one neighbouring
// variable. A marked variable indicates a cycle, which contributes zero.
func (r *Rule) getDepthFromVar(v, root *variable, recur int) int {
	if v == root || v.depth != depthUnset {
		return v.depth + 1
	}
	if v.marked {
		return 0
	}
	depth := r.getVariableDepth(v, root, recur+1)
	if depth == depthUnset {
		return depth
	}
	return depth + 1
}

// getDepthFromTerm derives a depth for cur from the other variables of one
// term in which cur is the subject.
func (r *Rule) getDepthFromTerm(cur, pred, obj, root *variable, recur int) int {
	result := depthUnset

	if pred == nil && obj == nil {
		return 0
	}

	if pred != nil && cur != pred {
		depth := r.getDepthFromVar(pred, root, recur)
		if depth == depthUnset {
			return depthUnset
		}
		if depth < result {
			result = depth
		}
	}

	if obj != nil && cur != obj {
		depth := r.getDepthFromVar(obj, root, recur)
		if depth == depthUnset {
			return depthUnset
		}
		if depth < result {
			result = depth
		}
	}

	return result
}

// getVariableDepth computes the distance of a variable from the root over
// the dependency graph whose edges run from a term's subject to its
// predicate and object.
func (r *Rule) getVariableDepth(v, root *variable, recur int) int {
	v.marked = true

	result := depthUnset
	for i := range r.terms {
		t := r.terms[i]
		subj := r.termSubjVar(t)
		if subj != v {
			continue
		}

		pred := r.termPredVar(t)
		obj := r.termObjVar(t)
		if !r.isSubject(pred) {
			pred = nil
		}
		if !r.isSubject(obj) {
			obj = nil
		}

		depth := r.getDepthFromTerm(v, pred, obj, root, recur)
		if depth < result {
			result = depth
		}
	}

	if result == depthUnset {
		result = 0
	}
	v.depth = result

	// Depths flow from subjects to predicates and objects. Subjects that are
	// only related through a shared predicate or object are found by crawling
	// those edges as well.
	for i := range r.terms {
		t := r.terms[i]
		subj := r.termSubjVar(t)
		if subj != v {
			continue
		}

		r.crawlVariable(subj, root, recur)

		if pred := r.termPredVar(t); pred != nil && pred != v {
			r.crawlVariable(pred, root, recur)
		}
		if obj := r.termObjVar(t); obj != nil && obj != v {
			r.crawlVariable(obj, root, recur)
		}
	}

	return v.depth
}

// ensureAllVariables registers the entity form of every variable used as a
// predicate, object or non-this subject, so the variable table is complete
// before operations are emitted.
func (r *Rule) ensureAllVariables() {
	for _, t := range r.terms {
		if t.Pred.IsVariable() || t.Pred.IsThis() {
			r.ensureVariable(varKindEntity, t.Pred.Name)
		}
		if subj := t.Subject(); subj.IsVariable() {
			r.ensureVariable(varKindEntity, subj.Name)
		}
		if obj, ok := t.Object(); ok && (obj.IsVariable() || obj.IsThis()) {
			r.ensureVariable(varKindEntity, obj.Name)
		}
	}
}

// scanVariables finds all variables, elects a root, computes dependency
// depths and sorts the variable table into evaluation order.
func (r *Rule) scanVariables() error {
	thisVar := -1
	maxOccur := 0
	maxOccurVar := -1

	for i, t := range r.terms {
		if len(t.Args) > 2 {
			return fmt.Errorf("%w for term %d: %s", ErrArity, i, r.expr)
		}

		subj := t.Subject()
		if !subj.IsVariable() && !subj.IsThis() {
			continue
		}

		v := r.findVariable(varKindTable, subj.Name)
		if v == nil {
			if len(r.vars) >= config.MaxRuleVariables {
				return fmt.Errorf("%w: %s", ErrCapacity, r.expr)
			}
			v = r.createVariable(varKindTable, subj.Name)
		}
		if subj.IsThis() {
			thisVar = v.id
		}
		v.occurs++
		if v.occurs > maxOccur {
			maxOccur = v.occurs
			maxOccurVar = v.id
		}
	}

	r.subjectVarCount = len(r.vars)

	r.ensureAllVariables()

	// Elect a root: this (.) wins, otherwise the most-occurring subject.
	rootVar := thisVar
	if rootVar == -1 {
		rootVar = maxOccurVar
		if rootVar == -1 {
			// No subject variables; the rule is a closed formula.
			return nil
		}
	}

	root := &r.vars[rootVar]
	root.depth = r.getVariableDepth(root, root, 0)

	for i := 0; i < r.subjectVarCount; i++ {
		if r.vars[i].depth == depthUnset {
			return fmt.Errorf("%w '%s': %s", ErrUnconstrained, r.vars[i].name, r.expr)
		}
	}

	// Order variables by kind, depth and occurrence; the order drives which
	// operations are emitted first.
	sort.SliceStable(r.vars, func(i, j int) bool {
		a, b := &r.vars[i], &r.vars[j]
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		if a.depth != b.depth {
			return a.depth < b.depth
		}
		return a.occurs > b.occurs
	})

	for i := range r.vars {
		r.vars[i].id = i
	}

	return nil
}
