package schema

import "strings"

const (
	opForwardExact  = "->"
	opBackwardExact = "<-"
	opForwardFuzzy  = "~>"
	opBackwardFuzzy = "<~"
)

// ParseEntity parses a per-entity mapping of field name -> type
// expression into an Entity with insertion-ordered FieldOrder.
// fieldOrder must list the keys of fields in declaration order
// since Go maps do not preserve it.
func ParseEntity(name string, fieldOrder []string, fields map[string]string) (*Entity, error) {
	e := &Entity{Name: name, FieldOrder: append([]string{}, fieldOrder...), Fields: make(map[string]*FieldSpec)}
	for _, fname := range fieldOrder {
		expr, ok := fields[fname]
		if !ok {
			continue
		}
		spec, err := ParseField(expr)
		if err != nil {
			if se, ok := err.(*Error); ok && se.Path == "" {
				se.Path = name + "." + fname
			}
			return nil, err
		}
		spec.Name = fname
		e.Fields[fname] = spec
	}
	return e, nil
}

// ParseField parses a single field type expression using the grammar
// prompt? core optional? index?
func ParseField(expr string) (*FieldSpec, error) {
	raw := expr
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, WithPath(KindInvalidSchema, "empty field expression", raw)
	}

	spec := &FieldSpec{}

	// Prompt: free text followed by '?' that is not the trailing
	// optional marker. We detect it by requiring a '?' somewhere
	// before the last character, with non-trivial text preceding it
	// that isn't itself a recognizable core token.
	if idx := strings.Index(s, "?"); idx >= 0 && idx < len(s)-1 {
		prompt := strings.TrimSpace(s[:idx])
		rest := strings.TrimSpace(s[idx+1:])
		if prompt != "" && !looksLikeCore(prompt) {
			spec.Prompt = prompt
			s = rest
		}
	}

	// Index suffix.
	switch {
	case strings.HasSuffix(s, "##"):
		spec.Unique = true
		spec.Indexed = true
		s = strings.TrimSuffix(s, "##")
	case strings.HasSuffix(s, "#"):
		spec.Indexed = true
		s = strings.TrimSuffix(s, "#")
	}

	// Optional suffix.
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "?") {
		spec.IsOptional = true
		s = strings.TrimSuffix(s, "?")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, WithPath(KindInvalidSchema, "missing core type", raw)
	}

	// Array wrapper.
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		spec.IsArray = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	if err := parseCore(s, spec, raw); err != nil {
		return nil, err
	}
	return spec, nil
}

// looksLikeCore is a conservative guard against treating an actual
// type token as a prompt: if the candidate prompt text contains an
// operator or a primitive keyword outright, it's core, not a prompt.
func looksLikeCore(s string) bool {
	if primitiveTypes[s] {
		return true
	}
	for _, op := range []string{opForwardExact, opBackwardExact, opForwardFuzzy, opBackwardFuzzy} {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return strings.HasPrefix(s, "[") || strings.Contains(s, "|")
}

func parseCore(s string, spec *FieldSpec, raw string) error {
	switch {
	case hasOperatorPrefix(s):
		return parseRef(s, spec, raw)
	case primitiveTypes[s]:
		spec.Kind = KindPrimitive
		spec.Primitive = s
		return nil
	case strings.Contains(s, "|"):
		spec.Kind = KindPrimitive
		spec.Primitive = PrimString
		spec.EnumValues = splitPipe(s)
		return nil
	default:
		return WithPath(KindInvalidSchema, "unrecognized type expression: "+s, raw)
	}
}

func hasOperatorPrefix(s string) bool {
	for _, op := range []string{opForwardExact, opBackwardExact, opForwardFuzzy, opBackwardFuzzy} {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return false
}

func parseRef(s string, spec *FieldSpec, raw string) error {
	spec.Kind = KindRef
	var op string
	switch {
	case strings.HasPrefix(s, opForwardExact):
		op, spec.Operator, spec.Direction, spec.MatchMode = opForwardExact, OpForwardExact, DirForward, MatchExact
	case strings.HasPrefix(s, opBackwardExact):
		op, spec.Operator, spec.Direction, spec.MatchMode = opBackwardExact, OpBackwardExact, DirBackward, MatchExact
	case strings.HasPrefix(s, opForwardFuzzy):
		op, spec.Operator, spec.Direction, spec.MatchMode = opForwardFuzzy, OpForwardFuzzy, DirForward, MatchFuzzy
	case strings.HasPrefix(s, opBackwardFuzzy):
		op, spec.Operator, spec.Direction, spec.MatchMode = opBackwardFuzzy, OpBackwardFuzzy, DirBackward, MatchFuzzy
	}
	rest := strings.TrimSpace(strings.TrimPrefix(s, op))
	if rest == "" {
		return WithPath(KindInvalidSchema, "reference operator missing target type", raw)
	}

	// Union: TypeName ('|' TypeName)+
	if strings.Contains(rest, "|") {
		spec.UnionTypes = splitPipe(rest)
		if len(spec.UnionTypes) > 0 {
			spec.TargetType = spec.UnionTypes[0]
		}
		return nil
	}

	// Backref: TypeName '.' Backref
	if i := strings.Index(rest, "."); i >= 0 {
		spec.TargetType = rest[:i]
		spec.Backref = rest[i+1:]
		if spec.TargetType == "" || spec.Backref == "" {
			return WithPath(KindInvalidSchema, "malformed backref target", raw)
		}
		return nil
	}

	spec.TargetType = rest
	return nil
}

func splitPipe(s string) []string {
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
