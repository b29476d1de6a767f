package semantic

import (
	"strings"

	"basic/value"
)

// typeForSuffix returns the type witness for one of the dialect's type-
// suffix characters; '!' (no explicit suffix recorded) is SINGLE, the
// default per spec §3.
func typeForSuffix(suffix byte) value.Value {
	switch suffix {
	case '%':
		return value.Integer(0)
	case '&':
		return value.Long(0)
	case '!':
		return value.Single(0)
	case '#':
		return value.Double(0)
	case '$':
		return value.Str("")
	default:
		return value.Single(0)
	}
}

// typeFromSpec resolves an "AS typespec" clause or a TYPE-field's type
// name to a type witness; a name matching a registered record type
// resolves to that record's witness, per spec §4.4 rule 2.
func (a *Analyzer) typeFromSpec(typeName string) value.Value {
	switch strings.ToUpper(typeName) {
	case "":
		return value.Value{}
	case "INTEGER":
		return value.Integer(0)
	case "LONG":
		return value.Long(0)
	case "_INTEGER64":
		return value.Wide(0)
	case "_UNSIGNED INTEGER":
		return value.UInteger(0)
	case "_UNSIGNED LONG":
		return value.ULong(0)
	case "_UNSIGNED _INTEGER64":
		return value.UWide(0)
	case "SINGLE":
		return value.Single(0)
	case "DOUBLE":
		return value.Double(0)
	case "STRING":
		return value.Str("")
	default:
		if rt, ok := a.symbols.records[strings.ToUpper(typeName)]; ok {
			return value.Record(rt.name, nil)
		}
		// An AS clause naming an undeclared type is a forward reference
		// the collection pass hasn't seen yet (or a genuine typo); treat
		// it as SINGLE rather than failing outright, matching
		// original_source's "_ => QType::Single(0.0)" fallback.
		return value.Single(0)
	}
}

// typeFromNameSuffix infers a bare identifier's type from its trailing
// suffix character (if any), falling back to the DEFtype default table
// indexed by its first letter — spec §4.4 rules 1 and 3/4.
func (a *Analyzer) typeFromNameSuffix(fullName string) value.Value {
	if fullName == "" {
		return value.Single(0)
	}
	if strings.HasSuffix(fullName, "&&") {
		return value.Wide(0)
	}
	if strings.HasSuffix(fullName, "##") {
		return value.Double(0)
	}
	switch fullName[len(fullName)-1] {
	case '%', '&', '!', '#', '$':
		return typeForSuffix(fullName[len(fullName)-1])
	}
	first := fullName[0]
	if first >= 'A' && first <= 'Z' {
		return typeForSuffix(a.symbols.defaultTypes[first-'A'])
	}
	return value.Single(0)
}

// isNumeric reports whether t's kind is one of the numeric members of the
// tagged union, matching value.Value.IsNumeric but usable against a bare
// type witness with a zero payload.
func isNumeric(t value.Value) bool { return t.IsNumeric() }

func isString(t value.Value) bool { return t.IsString() }

// compatible implements spec §4.4's assignment-compatibility rule:
// string<->string (including fixed-length) and numeric<->numeric (with
// promotion) are compatible; numeric<->string is not; record<->record
// requires name equality; EMPTY is compatible with anything (an
// undeclared/unevaluated witness).
func compatible(target, source value.Value) bool {
	if target.Kind == value.KindEmpty || source.Kind == value.KindEmpty {
		return true
	}
	if isString(target) && isString(source) {
		return true
	}
	if isNumeric(target) && isNumeric(source) {
		return true
	}
	if target.Kind == value.KindRecord && source.Kind == value.KindRecord {
		return target.RecName == source.RecName
	}
	return false
}

// promote returns the wider of two numeric type witnesses per the
// promotion ladder (spec §4.1); a is returned unchanged for non-numeric
// kinds since no promotion ladder applies to strings/records.
func promote(a, b value.Value) value.Value {
	rank := func(t value.Value) int {
		switch t.Kind {
		case value.KindInteger, value.KindUInteger:
			return 0
		case value.KindLong, value.KindULong:
			return 1
		case value.KindWide, value.KindUWide:
			return 2
		case value.KindSingle:
			return 3
		case value.KindDouble:
			return 4
		}
		return -1
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// builtinReturnType infers a built-in function's result type by name,
// grounded on original_source's infer_builtin_function_type. Unknown
// names (nothing else in the pack's corpus claims this dialect's whole
// library) fall back to SINGLE, same as the original's default arm; the
// compiler/VM builtin dispatch in vm/builtins.go is authoritative at
// runtime, this is only advisory for static type checking.
func builtinReturnType(name string) value.Value {
	switch strings.ToUpper(name) {
	case "CHR$", "DATE$", "LEFT$", "LTRIM$", "MID$", "RIGHT$", "RTRIM$",
		"SPACE$", "STR$", "STRING$", "TIME$", "TRIM$", "UCASE$", "LCASE$",
		"INKEY$":
		return value.Str("")
	case "ASC", "CINT", "LEN", "INSTR", "LBOUND", "UBOUND":
		return value.Integer(0)
	case "CLNG", "FREEFILE", "EOF", "LOF", "LOC":
		return value.Long(0)
	case "_INTEGER64", "CVI", "CVL":
		return value.Wide(0)
	case "CDBL", "VAL", "TIMER":
		return value.Double(0)
	case "CSNG", "ABS", "ATN", "COS", "EXP", "FIX", "INT", "LOG", "RND",
		"SGN", "SIN", "SQR", "TAN":
		return value.Single(0)
	case "CSTR":
		return value.Str("")
	default:
		return value.Single(0)
	}
}
