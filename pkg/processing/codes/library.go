// Package codes holds the score code library of a scoring system.
//
// The library is built once per computation from the codes of a scoring system
// and its optional parent. Child codes override parent codes with the same name.
package codes

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
)

type Library struct {
	byName map[string]model.ScoreCode
}

// NewLibrary merges parent and child codes. parent may be nil.
func NewLibrary(parent, child []model.ScoreCode) *Library {
	ret := &Library{byName: make(map[string]model.ScoreCode, len(parent)+len(child))}
	for i := range parent {
		ret.byName[normalize(parent[i].Name)] = parent[i]
	}
	for i := range child {
		ret.byName[normalize(child[i].Name)] = child[i]
	}
	return ret
}

// ForSystem builds the library for system using parent as the inherited level.
func ForSystem(system, parent *model.ScoringSystem) *Library {
	var parentCodes []model.ScoreCode
	if parent != nil {
		parentCodes = parent.Codes
	}
	if system == nil {
		return NewLibrary(parentCodes, nil)
	}
	return NewLibrary(parentCodes, system.Codes)
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Resolve returns the definition for name.
func (l *Library) Resolve(name string) (model.ScoreCode, error) {
	if c, ok := l.byName[normalize(name)]; ok {
		return c, nil
	}
	return model.ScoreCode{}, fmt.Errorf("%w: %s", util.ErrUnknownCode, name)
}

// Has reports whether name is defined in the library
func (l *Library) Has(name string) bool {
	_, ok := l.byName[normalize(name)]
	return ok
}

// Target follows alias references starting at name and returns the first
// non-alias definition.
func (l *Library) Target(name string) (model.ScoreCode, error) {
	visited := make([]string, 0, 2)
	current := name
	for {
		c, err := l.Resolve(current)
		if err != nil {
			return model.ScoreCode{}, err
		}
		key := normalize(c.Name)
		for _, v := range visited {
			if v == key {
				return model.ScoreCode{}, fmt.Errorf("%w: %s",
					util.ErrCyclicAlias, strings.Join(append(visited, key), " -> "))
			}
		}
		visited = append(visited, key)
		if c.Formula != model.FormulaCodeAlias {
			return c, nil
		}
		current = c.ReferencedCode
	}
}

// Names returns all code names in alphabetical order
func (l *Library) Names() []string {
	ret := make([]string, 0, len(l.byName))
	for k := range l.byName {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Validate checks each definition for consistency.
// All problems are reported, not just the first one.
func (l *Library) Validate() error {
	problems := make([]error, 0)
	for _, name := range l.Names() {
		c := l.byName[name]
		if !c.Formula.Valid() {
			problems = append(problems, fmt.Errorf("code %s: unknown formula %q", c.Name, c.Formula))
			continue
		}
		if c.Formula == model.FormulaCodeAlias {
			if c.ReferencedCode == "" {
				problems = append(problems,
					fmt.Errorf("code %s: %w: alias without reference", c.Name, util.ErrUnknownCode))
				continue
			}
			if _, err := l.Target(c.Name); err != nil {
				problems = append(problems, fmt.Errorf("code %s: %w", c.Name, err))
			}
		}
		if c.Offset.IsNegative() && c.Formula == model.FormulaPlacePlusPercentOfWorst {
			problems = append(problems, fmt.Errorf("code %s: negative percentage", c.Name))
		}
	}
	return errors.Join(problems...)
}
