package schema

import (
	"regexp"
)

var (
	typeNameRE      = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	fieldNameRE     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	namespaceIDRE   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	pathSeparatorRE = regexp.MustCompile(`[/\\]`)
)

var dangerousFieldNames = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

var reservedTypeWords = map[string]bool{
	"type": true, "id": true, "score": true,
}

const (
	maxTypeNameLen = 64
	maxEntityIDLen = 256
	maxBatchSize   = 1000
)

// ValidateTypeName enforces non-empty, letters/digits/underscore,
// max length 64, not a reserved word.
func ValidateTypeName(name string) error {
	if name == "" {
		return New(KindValidation, "type name must not be empty")
	}
	if len(name) > maxTypeNameLen {
		return New(KindValidation, "type name exceeds maximum length")
	}
	if !typeNameRE.MatchString(name) {
		return New(KindValidation, "type name contains invalid characters: "+name)
	}
	if reservedTypeWords[name] {
		return New(KindValidation, "type name is reserved: "+name)
	}
	return nil
}

// ValidateEntityID enforces non-empty, no path separators, max
// length 256.
func ValidateEntityID(id string) error {
	if id == "" {
		return New(KindValidation, "entity id must not be empty")
	}
	if len(id) > maxEntityIDLen {
		return New(KindValidation, "entity id exceeds maximum length")
	}
	if pathSeparatorRE.MatchString(id) {
		return New(KindValidation, "entity id must not contain path separators")
	}
	return nil
}

// ValidateFieldName enforces the shape required for where/orderBy/
// search field lists: must match ^[A-Za-z_][A-Za-z0-9_]*$ and must not be in the dangerous
// set. Dotted, bracketed, $, @, whitespace, and non-ASCII names are
// rejected by construction since they fail the regex.
func ValidateFieldName(name string) error {
	if dangerousFieldNames[name] {
		return New(KindValidation, "field name is not permitted: "+name)
	}
	if !fieldNameRE.MatchString(name) {
		return New(KindValidation, "field name contains invalid characters: "+name)
	}
	return nil
}

// ValidateNamespaceID enforces the external-boundary namespace rule.
func ValidateNamespaceID(id string) error {
	if !namespaceIDRE.MatchString(id) {
		return New(KindValidation, "invalid namespace id: "+id)
	}
	return nil
}

// ValidateBatchSize enforces that createMany/updateMany/deleteMany/
// performMany reject inputs of length > 1000 before any work begins.
func ValidateBatchSize(n int) error {
	if n > maxBatchSize {
		return New(KindValidation, "batch size exceeds maximum of 1000")
	}
	return nil
}

// EscapeLike escapes %, _ and \ for LIKE-style substring queries so
// adapters can pass the result with ESCAPE '\'.
func EscapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			out = append(out, '\\', r)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
