package plan

import "strings"

// SchemaField is a single column in a read schema: a name and the raw type
// string, which may itself encode nested container types.
type SchemaField struct {
	Name       string
	TypeString string
}

var containerPrefixes = []string{"array<", "map<", "struct<"}

// ParseReadSchema splits a schema string into fields. A schema is a
// comma-separated list of name:type pairs where commas inside container
// types are not top-level separators; container type strings are balanced
// by angle brackets, so the split tracks bracket depth.
func ParseReadSchema(schema string) []SchemaField {
	var fields []SchemaField
	for _, part := range splitTopLevel(schema, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typeStr := part, ""
		if idx := strings.Index(part, ":"); idx >= 0 {
			name, typeStr = part[:idx], part[idx+1:]
		}
		fields = append(fields, SchemaField{Name: name, TypeString: typeStr})
	}
	return fields
}

// splitTopLevel splits on sep only where the angle-bracket depth is zero.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// IsComplexType reports whether a type string is a container type.
func IsComplexType(typeStr string) bool {
	lowered := strings.ToLower(strings.TrimSpace(typeStr))
	for _, prefix := range containerPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

// IsNestedComplexType reports whether a complex type contains another
// complex type as a sub-component, e.g. array<struct<a:int>>.
func IsNestedComplexType(typeStr string) bool {
	if !IsComplexType(typeStr) {
		return false
	}
	lowered := strings.ToLower(strings.TrimSpace(typeStr))
	open := strings.Index(lowered, "<")
	end := strings.LastIndex(lowered, ">")
	if open < 0 || end <= open {
		return false
	}
	inner := lowered[open+1 : end]
	for _, prefix := range containerPrefixes {
		if strings.Contains(inner, prefix) {
			return true
		}
	}
	return false
}

// ComplexTypes returns all complex types found in the fields, and the
// subset that are nested complex. Both preserve first-seen order and drop
// duplicates.
func ComplexTypes(fields []SchemaField) (complexTypes, nestedComplex []string) {
	seen := make(map[string]struct{})
	seenNested := make(map[string]struct{})
	for _, field := range fields {
		typeStr := strings.TrimSpace(field.TypeString)
		if !IsComplexType(typeStr) {
			continue
		}
		if _, ok := seen[typeStr]; !ok {
			seen[typeStr] = struct{}{}
			complexTypes = append(complexTypes, typeStr)
		}
		if IsNestedComplexType(typeStr) {
			if _, ok := seenNested[typeStr]; !ok {
				seenNested[typeStr] = struct{}{}
				nestedComplex = append(nestedComplex, typeStr)
			}
		}
	}
	return complexTypes, nestedComplex
}

// FormatTypeList renders a type list for report columns, joined by
// semicolons with duplicates dropped in first-seen order.
func FormatTypeList(types []string) string {
	seen := make(map[string]struct{}, len(types))
	var out []string
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return strings.Join(out, ";")
}

// BaseTypes expands a type string into the set of primitive type names it
// mentions, used to score schemas against the type-support table. For a
// simple type this is the type itself; for containers it is every
// identifier between brackets, commas and colons.
func BaseTypes(typeStr string) []string {
	lowered := strings.ToLower(strings.TrimSpace(typeStr))
	if !IsComplexType(lowered) {
		if lowered == "" {
			return nil
		}
		return []string{lowered}
	}
	splitter := func(r rune) bool {
		return r == '<' || r == '>' || r == ',' || r == ':'
	}
	var types []string
	for _, token := range strings.FieldsFunc(lowered, splitter) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		types = append(types, token)
	}
	return types
}
