package graph

import (
	"testing"

	"eve.evalgo.org/schema"
)

func buildSchema(t *testing.T, order []string, fields map[string]map[string]string) *schema.Schema {
	t.Helper()
	s := schema.NewSchema()
	for _, name := range order {
		e, err := schema.ParseEntity(name, fieldOrder(fields[name]), fields[name])
		if err != nil {
			t.Fatalf("ParseEntity(%s): %v", name, err)
		}
		s.Entities[name] = e
		s.EntityOrder = append(s.EntityOrder, name)
	}
	return s
}

// fieldOrder returns a deterministic-enough order for test fixtures;
// tests that care about tie-break order pass single-field maps.
func fieldOrder(fields map[string]string) []string {
	order := make([]string, 0, len(fields))
	for k := range fields {
		order = append(order, k)
	}
	return order
}

func TestBuildClassifiesHardAndSoftDependencies(t *testing.T) {
	s := buildSchema(t, []string{"Project", "Task"}, map[string]map[string]string{
		"Project": {"name": "string"},
		"Task":    {"project": "->Project", "blocker": "->Task?"},
	})
	g := Build(s)

	task := g.Nodes["Task"]
	if !task.DependsOn["Project"] {
		t.Fatalf("expected Task to hard-depend on Project")
	}
	if !task.SoftDependsOn["Task"] {
		t.Fatalf("expected Task's optional self-ref to be a soft dependency")
	}
	project := g.Nodes["Project"]
	if !project.DependedOnBy["Task"] {
		t.Fatalf("expected Project.DependedOnBy to include Task")
	}
}

func TestBuildBackwardRefContributesNoForwardDependency(t *testing.T) {
	s := buildSchema(t, []string{"Project", "Task"}, map[string]map[string]string{
		"Project": {"tasks": "<-Task.project"},
		"Task":    {"project": "->Project"},
	})
	g := Build(s)

	project := g.Nodes["Project"]
	if len(project.DependsOn) != 0 {
		t.Fatalf("backward ref must not create a forward dependency, got %+v", project.DependsOn)
	}
}

func TestTopologicalSortOrdersHardDependenciesFirst(t *testing.T) {
	s := buildSchema(t, []string{"Project", "Task"}, map[string]map[string]string{
		"Project": {"name": "string"},
		"Task":    {"project": "->Project"},
	})
	g := Build(s)

	order, err := g.TopologicalSort("Task", false)
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	pos := map[string]int{}
	for i, t := range order {
		pos[t] = i
	}
	if pos["Project"] >= pos["Task"] {
		t.Fatalf("expected Project before Task, got %v", order)
	}
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	s := buildSchema(t, []string{"A", "B"}, map[string]map[string]string{
		"A": {"b": "->B"},
		"B": {"a": "->A"},
	})
	g := Build(s)

	_, err := g.TopologicalSort("A", false)
	if err == nil {
		t.Fatalf("expected a circular dependency error")
	}
	if schema.KindOf(err) != schema.KindCircularDependency {
		t.Fatalf("expected CIRCULAR_DEPENDENCY, got %v", schema.KindOf(err))
	}
}

func TestTopologicalSortIgnoreOptionalSkipsSoftCycles(t *testing.T) {
	s := buildSchema(t, []string{"Task"}, map[string]map[string]string{
		"Task": {"related": "->Task?"},
	})
	g := Build(s)

	if _, err := g.TopologicalSort("Task", true); err != nil {
		t.Fatalf("soft self-cycle must not raise an error when ignored: %v", err)
	}
}

func TestDetectCyclesFindsHardCycle(t *testing.T) {
	s := buildSchema(t, []string{"A", "B", "C"}, map[string]map[string]string{
		"A": {"b": "->B"},
		"B": {"c": "->C"},
		"C": {"a": "->A"},
	})
	g := Build(s)

	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		t.Fatalf("expected at least one cycle")
	}
}

func TestDetectCyclesEmptyForDAG(t *testing.T) {
	s := buildSchema(t, []string{"Project", "Task"}, map[string]map[string]string{
		"Project": {"name": "string"},
		"Task":    {"project": "->Project"},
	})
	g := Build(s)

	if cycles := g.DetectCycles(); len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
}

func TestGetParallelGroupsLayersByHardDependencyDepth(t *testing.T) {
	s := buildSchema(t, []string{"Org", "Project", "Task"}, map[string]map[string]string{
		"Org":     {"name": "string"},
		"Project": {"org": "->Org"},
		"Task":    {"project": "->Project"},
	})
	g := Build(s)

	groups, err := g.GetParallelGroups("Task")
	if err != nil {
		t.Fatalf("GetParallelGroups: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 layers, got %d: %v", len(groups), groups)
	}
	if groups[0][0] != "Org" || groups[1][0] != "Project" || groups[2][0] != "Task" {
		t.Fatalf("unexpected layering: %v", groups)
	}
}
