package solver

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/rulesolver/internal/entity"
)

const (
	ansiOpColor = "\x1b[36m"
	ansiReset   = "\x1b[0m"
)

// Explain returns a printable listing of the compiled program, one line per
// operation with its pass and fail labels, registers and filter.
func (r *Rule) Explain() string {
	return r.listing(false)
}

// WriteListing writes the program listing, colorizing operation names when
// the destination is a terminal.
func (r *Rule) WriteListing(w io.Writer) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	io.WriteString(w, r.listing(color))
}

func (r *Rule) listing(color bool) string {
	var sb strings.Builder

	for i := 1; i < len(r.ops); i++ {
		o := &r.ops[i]
		p := o.param

		var typeName string
		if p.regMask&pairPred != 0 {
			typeName = r.vars[p.pred].name
		} else {
			typeName = r.store.EntityName(p.pred)
		}

		hasObj := p.obj != 0 || p.regMask&pairObj != 0
		var objectName string
		if hasObj {
			if p.regMask&pairObj != 0 {
				objectName = r.vars[p.obj].name
			} else {
				objectName = r.store.EntityName(p.obj)
			}
		}

		fmt.Fprintf(&sb, "%2d: [P:%2d, F:%2d] ", i, o.onPass, o.onFail)

		hasFilter := false
		switch o.kind {
		case opSelect, opWith, opSubSet, opSuperSet:
			hasFilter = true
		}

		name := o.kind.String()
		if color {
			fmt.Fprintf(&sb, "%s%-9s%s", ansiOpColor, name, ansiReset)
		} else {
			fmt.Fprintf(&sb, "%-9s", name)
		}

		if o.hasIn {
			if v := r.variableByID(o.rIn); v != nil {
				fmt.Fprintf(&sb, "I:%s%s ", regPrefix(v), v.name)
			} else if o.subject != 0 {
				fmt.Fprintf(&sb, "I:%s ", r.store.EntityName(o.subject))
			}
		}
		if o.hasOut {
			if v := r.variableByID(o.rOut); v != nil {
				fmt.Fprintf(&sb, "O:%s%s ", regPrefix(v), v.name)
			} else if o.subject != 0 {
				fmt.Fprintf(&sb, "O:%s ", r.store.EntityName(o.subject))
			}
		}

		if hasFilter {
			if !hasObj {
				fmt.Fprintf(&sb, "F:(%s)", typeName)
			} else {
				fmt.Fprintf(&sb, "F:(%s, %s)", typeName, objectName)
			}
		}

		sb.WriteByte('\n')
	}

	return sb.String()
}

func regPrefix(v *variable) string {
	if v.kind == varKindTable {
		return "t"
	}
	return ""
}

// explainID is a helper for diagnostics on ids outside a rule context.
func explainID(store Store, id entity.ID) string {
	if id.IsPair() {
		return fmt.Sprintf("(%s, %s)", store.EntityName(id.Hi()), store.EntityName(id.Lo()))
	}
	return store.EntityName(id)
}
