package store

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/rulesolver/internal/entity"
)

// World documents describe entities declaratively:
//
//	entities:
//	  - name: Jedi
//	  - name: Luke
//	    ids: [Human, Jedi, [HomePlanet, Tatooine]]
//
// An id entry is either a component name or a [predicate, object] pair.
// Entities are placed in document order, which fixes table creation order
// and with it the iteration order of every rule result.
type worldDoc struct {
	Entities []entityDef `yaml:"entities"`
}

type entityDef struct {
	Name string  `yaml:"name"`
	IDs  []idRef `yaml:"ids"`
}

type idRef struct {
	comp string
	pred string
	obj  string
}

func (r *idRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.comp)
	case yaml.SequenceNode:
		var pair []string
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("pair id needs exactly two elements, got %d", len(pair))
		}
		r.pred, r.obj = pair[0], pair[1]
		return nil
	default:
		return fmt.Errorf("id must be a name or a [predicate, object] pair")
	}
}

// LoadWorld reads a world document.
func LoadWorld(r io.Reader) (*World, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc worldDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: invalid world document: %w", err)
	}

	w := NewWorld()
	for _, def := range doc.Entities {
		if def.Name == "" {
			return nil, fmt.Errorf("store: entity without name")
		}
		ids := make([]entity.ID, 0, len(def.IDs))
		for _, ref := range def.IDs {
			if ref.comp != "" {
				ids = append(ids, w.ID(ref.comp))
			} else {
				ids = append(ids, entity.Pair(w.ID(ref.pred), w.ID(ref.obj)))
			}
		}
		w.Entity(def.Name, ids...)
	}
	return w, nil
}

// LoadWorldFile reads a world document from disk.
func LoadWorldFile(path string) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadWorld(f)
}
