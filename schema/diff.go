package schema

import (
	"fmt"
	"strings"

	"github.com/xrash/smetrics"
)

// ChangeType enumerates the ways a single field can change between two
// versions of the same entity.
type ChangeType string

const (
	ChangeTypeType     ChangeType = "type"
	ChangeTypeOptional ChangeType = "optional"
	ChangeTypeArray    ChangeType = "array"
	ChangeTypeOperator ChangeType = "operator"
	ChangeTypeTarget   ChangeType = "target"
)

// FieldChange describes one changed field within a modified entity.
type FieldChange struct {
	Field      string
	ChangeType ChangeType
	Before     *FieldSpec
	After      *FieldSpec
}

// Rename is a candidate rename inferred from name similarity between
// an added and a removed field in the same entity.
type Rename struct {
	From       string
	To         string
	Similarity float64
}

// EntityDiff holds the field-level differences for one entity present
// (in some form) in both schemas.
type EntityDiff struct {
	Entity         string
	AddedFields    []string
	RemovedFields  []string
	ChangedFields  []FieldChange
	PossibleRenames []Rename
}

// Diff is the structural result of comparing two schemas.
type Diff struct {
	AddedEntities    []string
	RemovedEntities  []string
	ModifiedEntities []EntityDiff
}

// renameSimilarityThreshold is the minimum Jaro-Winkler score for a
// removed/added field-name pair to be reported as a possible rename.
const renameSimilarityThreshold = 0.5

// CompareSchemas produces a structural diff of before -> after,
// classifying each entity as added, removed, or modified, and within
// modified entities computing field-level changes and rename
// candidates by Jaro-Winkler similarity.
func CompareSchemas(before, after *Schema) *Diff {
	d := &Diff{}

	seen := make(map[string]bool)
	for _, name := range before.EntityOrder {
		seen[name] = true
		if before.Entities[name] == nil {
			continue
		}
		if _, ok := after.Entities[name]; !ok {
			d.RemovedEntities = append(d.RemovedEntities, name)
			continue
		}
		ed := diffEntity(before.Entities[name], after.Entities[name])
		if ed != nil {
			d.ModifiedEntities = append(d.ModifiedEntities, *ed)
		}
	}
	for _, name := range after.EntityOrder {
		if !seen[name] {
			d.AddedEntities = append(d.AddedEntities, name)
		}
	}
	return d
}

func diffEntity(before, after *Entity) *EntityDiff {
	ed := &EntityDiff{Entity: before.Name}

	beforeSeen := make(map[string]bool)
	for _, fname := range before.FieldOrder {
		beforeSeen[fname] = true
		bf := before.Fields[fname]
		af, ok := after.Fields[fname]
		if !ok {
			ed.RemovedFields = append(ed.RemovedFields, fname)
			continue
		}
		ed.ChangedFields = append(ed.ChangedFields, fieldChanges(fname, bf, af)...)
	}
	for _, fname := range after.FieldOrder {
		if !beforeSeen[fname] {
			ed.AddedFields = append(ed.AddedFields, fname)
		}
	}

	ed.PossibleRenames = inferRenames(ed.RemovedFields, ed.AddedFields)

	if len(ed.AddedFields) == 0 && len(ed.RemovedFields) == 0 && len(ed.ChangedFields) == 0 {
		return nil
	}
	return ed
}

func fieldChanges(name string, b, a *FieldSpec) []FieldChange {
	var changes []FieldChange
	add := func(ct ChangeType) {
		changes = append(changes, FieldChange{Field: name, ChangeType: ct, Before: b, After: a})
	}
	if b.Primitive != a.Primitive || b.Kind != a.Kind {
		add(ChangeTypeType)
	}
	if b.IsOptional != a.IsOptional {
		add(ChangeTypeOptional)
	}
	if b.IsArray != a.IsArray {
		add(ChangeTypeArray)
	}
	if b.Operator != a.Operator {
		add(ChangeTypeOperator)
	}
	if b.TargetType != a.TargetType {
		add(ChangeTypeTarget)
	}
	return changes
}

type renameCandidate struct {
	from, to string
	score    float64
}

// inferRenames pairs each removed field with its most similar added
// field by Jaro-Winkler score, keeping pairs at or above the
// threshold. Each name is used in at most one pair, greedily by
// descending similarity.
func inferRenames(removed, added []string) []Rename {
	var candidates []renameCandidate
	for _, from := range removed {
		for _, to := range added {
			score := smetrics.JaroWinkler(strings.ToLower(from), strings.ToLower(to), 0.7, 4)
			if score >= renameSimilarityThreshold {
				candidates = append(candidates, renameCandidate{from, to, score})
			}
		}
	}
	sortCandidatesDesc(candidates)

	usedFrom := make(map[string]bool)
	usedTo := make(map[string]bool)
	var renames []Rename
	for _, c := range candidates {
		if usedFrom[c.from] || usedTo[c.to] {
			continue
		}
		usedFrom[c.from] = true
		usedTo[c.to] = true
		renames = append(renames, Rename{From: c.from, To: c.to, Similarity: c.score})
	}
	return renames
}

func sortCandidatesDesc(c []renameCandidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].score > c[j-1].score; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

// Summary renders a human-readable description of the diff.
func (d *Diff) Summary() string {
	var b strings.Builder
	for _, e := range d.AddedEntities {
		fmt.Fprintf(&b, "+ entity %s\n", e)
	}
	for _, e := range d.RemovedEntities {
		fmt.Fprintf(&b, "- entity %s\n", e)
	}
	for _, m := range d.ModifiedEntities {
		fmt.Fprintf(&b, "~ entity %s\n", m.Entity)
		for _, f := range m.AddedFields {
			fmt.Fprintf(&b, "  + field %s\n", f)
		}
		for _, f := range m.RemovedFields {
			fmt.Fprintf(&b, "  - field %s\n", f)
		}
		for _, c := range m.ChangedFields {
			fmt.Fprintf(&b, "  ~ field %s (%s)\n", c.Field, c.ChangeType)
		}
		for _, r := range m.PossibleRenames {
			fmt.Fprintf(&b, "  ? possible rename %s -> %s (%.2f)\n", r.From, r.To, r.Similarity)
		}
	}
	return b.String()
}
