package schema

import (
	"strings"
	"testing"
)

func buildSchema(t *testing.T, entities map[string]map[string]string, order map[string][]string) *Schema {
	t.Helper()
	s := NewSchema()
	for name, fields := range entities {
		e, err := ParseEntity(name, order[name], fields)
		if err != nil {
			t.Fatalf("ParseEntity(%s): %v", name, err)
		}
		s.Entities[name] = e
		s.EntityOrder = append(s.EntityOrder, name)
	}
	return s
}

func TestCompareSchemasAddedAndRemovedEntities(t *testing.T) {
	before := buildSchema(t,
		map[string]map[string]string{"Task": {"title": "string"}},
		map[string][]string{"Task": {"title"}})
	after := buildSchema(t,
		map[string]map[string]string{"Project": {"name": "string"}},
		map[string][]string{"Project": {"name"}})

	d := CompareSchemas(before, after)
	if len(d.RemovedEntities) != 1 || d.RemovedEntities[0] != "Task" {
		t.Fatalf("got removed=%v", d.RemovedEntities)
	}
	if len(d.AddedEntities) != 1 || d.AddedEntities[0] != "Project" {
		t.Fatalf("got added=%v", d.AddedEntities)
	}
}

func TestCompareSchemasFieldChanges(t *testing.T) {
	before := buildSchema(t,
		map[string]map[string]string{"Task": {"title": "string", "done": "boolean"}},
		map[string][]string{"Task": {"title", "done"}})
	after := buildSchema(t,
		map[string]map[string]string{"Task": {"title": "markdown", "archived": "boolean"}},
		map[string][]string{"Task": {"title", "archived"}})

	d := CompareSchemas(before, after)
	if len(d.ModifiedEntities) != 1 {
		t.Fatalf("expected one modified entity, got %d", len(d.ModifiedEntities))
	}
	ed := d.ModifiedEntities[0]
	if len(ed.RemovedFields) != 1 || ed.RemovedFields[0] != "done" {
		t.Fatalf("got removed fields %v", ed.RemovedFields)
	}
	if len(ed.AddedFields) != 1 || ed.AddedFields[0] != "archived" {
		t.Fatalf("got added fields %v", ed.AddedFields)
	}
	found := false
	for _, c := range ed.ChangedFields {
		if c.Field == "title" && c.ChangeType == ChangeTypeType {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a type change on title, got %+v", ed.ChangedFields)
	}
}

func TestCompareSchemasInfersRename(t *testing.T) {
	before := buildSchema(t,
		map[string]map[string]string{"Task": {"descriptionText": "string"}},
		map[string][]string{"Task": {"descriptionText"}})
	after := buildSchema(t,
		map[string]map[string]string{"Task": {"descriptionTxt": "string"}},
		map[string][]string{"Task": {"descriptionTxt"}})

	d := CompareSchemas(before, after)
	if len(d.ModifiedEntities) != 1 {
		t.Fatalf("expected one modified entity, got %d", len(d.ModifiedEntities))
	}
	renames := d.ModifiedEntities[0].PossibleRenames
	if len(renames) != 1 || renames[0].From != "descriptionText" || renames[0].To != "descriptionTxt" {
		t.Fatalf("got %+v", renames)
	}
}

func TestCompareSchemasUnmodifiedEntityOmitted(t *testing.T) {
	before := buildSchema(t,
		map[string]map[string]string{"Task": {"title": "string"}},
		map[string][]string{"Task": {"title"}})
	after := buildSchema(t,
		map[string]map[string]string{"Task": {"title": "string"}},
		map[string][]string{"Task": {"title"}})

	d := CompareSchemas(before, after)
	if len(d.ModifiedEntities) != 0 {
		t.Fatalf("expected no modified entities for an identical schema, got %+v", d.ModifiedEntities)
	}
}

func TestDiffSummaryRendersEachSection(t *testing.T) {
	before := buildSchema(t,
		map[string]map[string]string{"Task": {"title": "string"}},
		map[string][]string{"Task": {"title"}})
	after := buildSchema(t,
		map[string]map[string]string{
			"Task":    {"title": "markdown"},
			"Project": {"name": "string"},
		},
		map[string][]string{"Task": {"title"}, "Project": {"name"}})

	summary := CompareSchemas(before, after).Summary()
	if !strings.Contains(summary, "+ entity Project") {
		t.Fatalf("missing added entity line: %s", summary)
	}
	if !strings.Contains(summary, "~ entity Task") {
		t.Fatalf("missing modified entity line: %s", summary)
	}
}
