// Package semantic implements the two-pass type checker described in
// spec §4.4: pass one collects declarations (DIM/CONST/DEFtype/TYPE/
// SUB/FUNCTION signatures, line numbers), pass two walks every statement
// and expression checking type compatibility.
//
// The teacher (informatter-nilan) has no semantic pass of its own — it
// compiles straight from the AST and lets the VM coerce or fail at
// runtime. This package is grounded instead on
// _examples/original_source/crates/semantic/src/type_checker.rs and
// scope.rs, the Rust implementation this dialect was distilled from,
// re-expressed in the teacher's Go idiom: plain structs, double-dispatch
// ast.StmtVisitor/ast.ExpressionVisitor implementations (the same shape
// compiler.Compiler uses), and error returns instead of panics across
// the package boundary.
package semantic

import (
	"strings"

	"basic/value"
)

// scope is one nesting level's variable-name -> type bindings. A variable's
// "type" here is a value.Value carrying only a Kind (and, for records, a
// RecName) — a type witness with no meaningful payload, mirroring
// original_source's use of e.g. QType::Single(0.0) purely as a type tag.
type scope struct {
	vars   map[string]value.Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]value.Value), parent: parent}
}

func (s *scope) define(name string, t value.Value) {
	s.vars[strings.ToUpper(name)] = t
}

func (s *scope) lookup(name string) (value.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[strings.ToUpper(name)]; ok {
			return t, true
		}
	}
	return value.Value{}, false
}

// procSignature records a collected SUB/FUNCTION's arity and, for a
// FUNCTION, its return type, enough for the arity check spec §4.4
// requires ("Procedure call arity is checked against the collected
// signature when the callee is known").
type procSignature struct {
	paramCount int
	isFunction bool
	returnType value.Value
}

// recordType is a registered TYPE/END TYPE's ordered (field name -> type)
// list, used to resolve FieldAccess and to decide record-to-record
// assignment compatibility (name equality, per spec §4.4).
type recordType struct {
	name   string
	fields map[string]value.Value
	order  []string
}

// symbolTable is the whole-program declaration table built in pass one and
// consulted throughout pass two: a global scope plus a stack of nested
// scopes (SUB/FUNCTION bodies and FOR loop variables each open one, per
// spec §4.4), the procedure signature table, the registered record types,
// and the per-first-letter default-type table DEFINT/DEFLNG/etc. populate.
//
// Grounded on original_source/crates/semantic/src/scope.rs's SymbolTable,
// re-expressed as an explicit stack of scopes plus a separate global scope.
// Each scope also keeps a pointer to the scope that was current when it was
// opened, and lookup walks that parent chain from the innermost scope out
// to the global one.
type symbolTable struct {
	global      *scope
	scopes      []*scope
	procs       map[string]procSignature
	records     map[string]recordType
	lineNumbers map[int32]int

	// defaultTypes[c-'A'] is the suffix character DEFINT/DEFLNG/DEFSNG/
	// DEFDBL/DEFSTR pinned for identifiers starting with letter c; '!'
	// (SINGLE) is the dialect's default per spec §4.4 rule 4.
	defaultTypes [26]byte
}

func newSymbolTable() *symbolTable {
	st := &symbolTable{
		global:      newScope(nil),
		procs:       make(map[string]procSignature),
		records:     make(map[string]recordType),
		lineNumbers: make(map[int32]int),
	}
	for i := range st.defaultTypes {
		st.defaultTypes[i] = '!'
	}
	return st
}

func (st *symbolTable) enterScope() {
	parent := st.current()
	st.scopes = append(st.scopes, newScope(parent))
}

func (st *symbolTable) exitScope() {
	if len(st.scopes) > 0 {
		st.scopes = st.scopes[:len(st.scopes)-1]
	}
}

func (st *symbolTable) current() *scope {
	if len(st.scopes) > 0 {
		return st.scopes[len(st.scopes)-1]
	}
	return st.global
}

func (st *symbolTable) define(name string, t value.Value) {
	st.current().define(name, t)
}

func (st *symbolTable) lookup(name string) (value.Value, bool) {
	return st.current().lookup(name)
}

func (st *symbolTable) setDefaultType(suffix byte, from, to byte) {
	from, to = upperLetter(from), upperLetter(to)
	if to < from {
		from, to = to, from
	}
	for c := from; c <= to && c >= 'A' && c <= 'Z'; c++ {
		st.defaultTypes[c-'A'] = suffix
	}
}

func upperLetter(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
