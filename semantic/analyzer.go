package semantic

import (
	"strings"

	"basic/ast"
	"basic/goerr"
	"basic/token"
	"basic/value"
)

// builtinFuncs mirrors compiler.builtinFuncs: the closed set of names the
// parser's ambiguous IndexOrCall node resolves as a function call rather
// than an array element access, deferred from the parser to here exactly
// as spec §4.3/§9 describes.
var builtinFuncs = map[string]bool{
	"ABS": true, "SGN": true, "INT": true, "FIX": true, "SQR": true,
	"SIN": true, "COS": true, "TAN": true, "ATN": true, "EXP": true, "LOG": true, "RND": true,
	"CINT": true, "CLNG": true, "CSNG": true, "CDBL": true, "CSTR": true,
	"LEN": true, "LEFT$": true, "RIGHT$": true, "MID$": true, "CHR$": true, "ASC": true,
	"STR$": true, "VAL": true, "UCASE$": true, "LCASE$": true, "SPACE$": true, "STRING$": true,
	"INSTR": true, "TIMER": true, "TIME$": true, "DATE$": true, "LBOUND": true, "UBOUND": true,
	"EOF": true, "LOF": true, "LOC": true, "FREEFILE": true, "INKEY$": true,
}

// Analyzer runs the two-pass type check described in spec §4.4 over a
// parsed ast.Program. It implements ast.StmtVisitor and
// ast.ExpressionVisitor the same way compiler.Compiler does: Accept
// dispatches to a Visit method, which here returns the node's inferred
// type witness (a value.Value with only its Kind/RecName meaningful)
// instead of emitting bytecode.
type Analyzer struct {
	symbols *symbolTable
	arrays  map[string]bool
}

// New returns an Analyzer ready to check one Program.
func New() *Analyzer {
	return &Analyzer{symbols: newSymbolTable(), arrays: make(map[string]bool)}
}

// Analyze runs both passes over program, returning the first error found
// (spec §7: "the semantic analyzer aborts on the first error"), or nil if
// the program type-checks cleanly.
func Analyze(program *ast.Program) (errs []error) {
	a := New()
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(semanticError); ok {
				errs = []error{se.err}
				return
			}
			panic(r)
		}
	}()
	a.collectStmts(program.Statements)
	for _, s := range program.Statements {
		s.Accept(a)
	}
	return nil
}

func (a *Analyzer) fail(kind goerr.Kind, line int32, col int, format string, args ...any) any {
	panic(semanticError{newError(kind, line, col, format, args...)})
}

// fullName folds a token's lexeme (already suffix-folded by the parser,
// see parser.Parser.withSuffix) into the uppercased full-name key spec §3
// defines.
func fullName(t token.Token) string { return strings.ToUpper(t.Lexeme) }

// ---- pass 1: declaration collection ----
//
// collectStmts is plain recursive inspection, not visitor dispatch,
// mirroring compiler.Compiler.prescan: it only needs to recognize the
// handful of declaration-shaped statements, not every node, and it must
// see nested bodies (SUB/FUNCTION/IF/loops) before pass two visits them.
func (a *Analyzer) collectStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		a.collectOne(s)
	}
}

func (a *Analyzer) collectOne(s ast.Stmt) {
	switch n := s.(type) {
	case ast.LabelStmt:
		if n.IsLineNumber {
			a.symbols.lineNumbers[n.LineNumber] = 0
		}
	case ast.DimStmt:
		a.collectDimItems(n.Items)
	case ast.ReDimStmt:
		a.collectDimItems(n.Items)
	case ast.ConstStmt:
		// The value isn't known until pass two walks expressions (it may
		// reference another CONST); record the name now with an EMPTY
		// witness so a forward reference inside the same pass still
		// resolves to *some* binding instead of falling through to
		// DEFtype inference, and let pass two's VisitConst refine it.
		a.symbols.define(fullName(n.Name), value.Value{Kind: value.KindEmpty})
	case ast.DefTypeStmt:
		a.symbols.setDefaultType(n.Suffix, n.From, n.To)
	case ast.TypeDeclStmt:
		a.collectTypeDecl(n)
	case ast.SubDeclStmt:
		a.symbols.procs[fullName(n.Name)] = procSignature{paramCount: len(n.Params), isFunction: false}
		a.collectStmts(n.Body)
	case ast.FunctionDeclStmt:
		a.symbols.procs[fullName(n.Name)] = procSignature{
			paramCount: len(n.Params),
			isFunction: true,
			returnType: a.typeFromSpec(n.ReturnType),
		}
		a.collectStmts(n.Body)
	case ast.DeclareStmt:
		a.symbols.procs[fullName(n.Name)] = procSignature{paramCount: len(n.Params), isFunction: !n.IsSub}
	case ast.IfStmt:
		a.collectStmts(n.Then)
		for _, ei := range n.ElseIfs {
			a.collectStmts(ei.Body)
		}
		a.collectStmts(n.Else)
	case ast.SelectCaseStmt:
		for _, cc := range n.Cases {
			a.collectStmts(cc.Body)
		}
		a.collectStmts(n.CaseElse)
	case ast.ForStmt:
		a.collectStmts(n.Body)
	case ast.WhileStmt:
		a.collectStmts(n.Body)
	case ast.DoLoopStmt:
		a.collectStmts(n.Body)
	}
}

func (a *Analyzer) collectDimItems(items []ast.DimItem) {
	for _, item := range items {
		name := fullName(item.Name)
		t := a.dimItemType(item)
		if len(item.Dims) > 0 {
			a.arrays[name] = true
		}
		a.symbols.define(name, t)
	}
}

func (a *Analyzer) dimItemType(item ast.DimItem) value.Value {
	if item.TypeName != "" {
		return a.typeFromSpec(item.TypeName)
	}
	return a.typeFromNameSuffix(fullName(item.Name))
}

func (a *Analyzer) collectTypeDecl(t ast.TypeDeclStmt) {
	rt := recordType{name: fullName(t.Name), fields: make(map[string]value.Value)}
	for _, f := range t.Fields {
		var ft value.Value
		if f.Length != nil {
			ft = value.FixedString(0, "")
		} else {
			ft = a.typeFromSpec(f.TypeName)
		}
		fname := strings.ToUpper(f.Name.Lexeme)
		rt.fields[fname] = ft
		rt.order = append(rt.order, fname)
	}
	a.symbols.records[rt.name] = rt
}

// ---- pass 2: statements ----

func (a *Analyzer) VisitDim(d ast.DimStmt) any {
	a.collectDimItems(d.Items)
	for _, item := range d.Items {
		for _, dim := range item.Dims {
			a.requireNumeric(dim.Lower)
			a.requireNumeric(dim.Upper)
		}
	}
	return nil
}

func (a *Analyzer) VisitReDim(r ast.ReDimStmt) any {
	a.collectDimItems(r.Items)
	for _, item := range r.Items {
		for _, dim := range item.Dims {
			a.requireNumeric(dim.Lower)
			a.requireNumeric(dim.Upper)
		}
	}
	return nil
}

func (a *Analyzer) VisitConst(c ast.ConstStmt) any {
	t := c.Value.Accept(a).(value.Value)
	a.symbols.define(fullName(c.Name), t)
	return nil
}

func (a *Analyzer) VisitDefType(d ast.DefTypeStmt) any {
	a.symbols.setDefaultType(d.Suffix, d.From, d.To)
	return nil
}

func (a *Analyzer) VisitTypeDecl(t ast.TypeDeclStmt) any {
	a.collectTypeDecl(t)
	return nil
}

func (a *Analyzer) VisitLabel(l ast.LabelStmt) any { return nil }

func (a *Analyzer) VisitLet(l ast.LetStmt) any {
	target := a.lvalueType(l.Target)
	source := l.Value.Accept(a).(value.Value)
	if !compatible(target, source) {
		a.typeMismatch(l.Value, "cannot assign %s to %s", source.TypeName(), target.TypeName())
	}
	return nil
}

func (a *Analyzer) VisitSwap(s ast.SwapStmt) any {
	lt := a.lvalueType(s.Left)
	rt := a.lvalueType(s.Right)
	if !compatible(lt, rt) {
		a.typeMismatch(s.Left, "SWAP operands must have compatible types, got %s and %s", lt.TypeName(), rt.TypeName())
	}
	return nil
}

func (a *Analyzer) VisitMidAssign(m ast.MidAssignStmt) any {
	a.requireString(m.Target)
	a.requireNumeric(m.Start)
	if m.Length != nil {
		a.requireNumeric(m.Length)
	}
	a.requireString(m.Value)
	return nil
}

func (a *Analyzer) VisitPrint(p ast.PrintStmt) any {
	if p.Channel != nil {
		a.requireNumeric(p.Channel)
	}
	for _, item := range p.Items {
		if item.Expr != nil {
			item.Expr.Accept(a)
		}
	}
	return nil
}

func (a *Analyzer) VisitWrite(w ast.WriteStmt) any {
	if w.Channel != nil {
		a.requireNumeric(w.Channel)
	}
	for _, item := range w.Items {
		item.Accept(a)
	}
	return nil
}

func (a *Analyzer) VisitInput(i ast.InputStmt) any {
	if i.Channel != nil {
		a.requireNumeric(i.Channel)
	}
	for _, v := range i.Vars {
		// INPUT auto-declares an undeclared target with its default type
		// (spec §4.4's Input-statement rule, carried over from
		// original_source's check_statement Statement::Input arm).
		if va, ok := v.(ast.Variable); ok {
			name := fullName(va.Name)
			if _, ok := a.symbols.lookup(name); !ok {
				a.symbols.define(name, a.typeFromNameSuffix(name))
			}
		}
	}
	return nil
}

func (a *Analyzer) VisitLineInput(l ast.LineInputStmt) any {
	if l.Channel != nil {
		a.requireNumeric(l.Channel)
	}
	a.requireString(l.Var)
	return nil
}

func (a *Analyzer) VisitExpressionStmt(e ast.ExpressionStmt) any {
	e.Expression.Accept(a)
	return nil
}

func (a *Analyzer) VisitGoto(g ast.GotoStmt) any { return nil }

func (a *Analyzer) VisitGosub(g ast.GosubStmt) any { return nil }

func (a *Analyzer) VisitReturn(r ast.ReturnStmt) any { return nil }

func (a *Analyzer) VisitOnGoto(o ast.OnGotoStmt) any {
	a.requireNumeric(o.Selector)
	return nil
}

func (a *Analyzer) VisitIf(i ast.IfStmt) any {
	a.requireNumeric(i.Condition)
	a.symbols.enterScope()
	a.collectStmts(i.Then)
	for _, s := range i.Then {
		s.Accept(a)
	}
	a.symbols.exitScope()
	for _, ei := range i.ElseIfs {
		a.requireNumeric(ei.Condition)
		a.symbols.enterScope()
		a.collectStmts(ei.Body)
		for _, s := range ei.Body {
			s.Accept(a)
		}
		a.symbols.exitScope()
	}
	a.symbols.enterScope()
	a.collectStmts(i.Else)
	for _, s := range i.Else {
		s.Accept(a)
	}
	a.symbols.exitScope()
	return nil
}

func (a *Analyzer) VisitSelectCase(s ast.SelectCaseStmt) any {
	selType := s.Selector.Accept(a).(value.Value)
	for _, cc := range s.Cases {
		for _, arm := range cc.Arms {
			switch arm.Kind {
			case ast.CaseArmValue:
				a.checkComparable(selType, arm.Value)
			case ast.CaseArmRange:
				a.checkComparable(selType, arm.Low)
				a.checkComparable(selType, arm.Hi)
			case ast.CaseArmIs:
				a.checkComparable(selType, arm.IsValue)
			}
		}
		a.symbols.enterScope()
		a.collectStmts(cc.Body)
		for _, body := range cc.Body {
			body.Accept(a)
		}
		a.symbols.exitScope()
	}
	a.symbols.enterScope()
	a.collectStmts(s.CaseElse)
	for _, body := range s.CaseElse {
		body.Accept(a)
	}
	a.symbols.exitScope()
	return nil
}

func (a *Analyzer) checkComparable(selType value.Value, expr ast.Expression) {
	t := expr.Accept(a).(value.Value)
	if !compatible(selType, t) {
		a.typeMismatch(expr, "CASE arm type %s is incompatible with selector type %s", t.TypeName(), selType.TypeName())
	}
}

func (a *Analyzer) VisitFor(f ast.ForStmt) any {
	varType := a.typeFromNameSuffix(fullName(f.Var))
	a.checkNumericCompat(varType, f.Start)
	a.checkNumericCompat(varType, f.End)
	if f.Step != nil {
		a.checkNumericCompat(varType, f.Step)
	}
	a.symbols.enterScope()
	a.symbols.define(fullName(f.Var), varType)
	a.collectStmts(f.Body)
	for _, s := range f.Body {
		s.Accept(a)
	}
	a.symbols.exitScope()
	return nil
}

func (a *Analyzer) checkNumericCompat(varType value.Value, expr ast.Expression) {
	t := expr.Accept(a).(value.Value)
	if !isNumeric(t) {
		a.typeMismatch(expr, "FOR bound must be numeric, got %s", t.TypeName())
		return
	}
	if !compatible(varType, t) {
		a.typeMismatch(expr, "FOR bound type %s is incompatible with loop variable type %s", t.TypeName(), varType.TypeName())
	}
}

func (a *Analyzer) VisitWhile(w ast.WhileStmt) any {
	a.requireNumeric(w.Condition)
	a.symbols.enterScope()
	a.collectStmts(w.Body)
	for _, s := range w.Body {
		s.Accept(a)
	}
	a.symbols.exitScope()
	return nil
}

func (a *Analyzer) VisitDoLoop(d ast.DoLoopStmt) any {
	if d.Condition != nil {
		a.requireNumeric(d.Condition)
	}
	a.symbols.enterScope()
	a.collectStmts(d.Body)
	for _, s := range d.Body {
		s.Accept(a)
	}
	a.symbols.exitScope()
	return nil
}

func (a *Analyzer) VisitExit(e ast.ExitStmt) any { return nil }

func (a *Analyzer) VisitSubDecl(s ast.SubDeclStmt) any {
	a.symbols.enterScope()
	for _, p := range s.Params {
		a.symbols.define(fullName(p.Name), a.typeFromNameSuffix(fullName(p.Name)))
	}
	a.collectStmts(s.Body)
	for _, stmt := range s.Body {
		stmt.Accept(a)
	}
	a.symbols.exitScope()
	return nil
}

func (a *Analyzer) VisitFunctionDecl(f ast.FunctionDeclStmt) any {
	a.symbols.enterScope()
	for _, p := range f.Params {
		a.symbols.define(fullName(p.Name), a.typeFromNameSuffix(fullName(p.Name)))
	}
	// The function name is itself assignable within the body (the
	// legacy "assign to the function name to set the return value"
	// convention); its type comes from the AS clause or its own suffix.
	retType := a.typeFromSpec(f.ReturnType)
	if f.ReturnType == "" {
		retType = a.typeFromNameSuffix(fullName(f.Name))
	}
	a.symbols.define(fullName(f.Name), retType)
	a.collectStmts(f.Body)
	for _, stmt := range f.Body {
		stmt.Accept(a)
	}
	a.symbols.exitScope()
	return nil
}

func (a *Analyzer) VisitDeclare(d ast.DeclareStmt) any { return nil }

func (a *Analyzer) VisitCall(c ast.CallStmt) any {
	name := fullName(c.Name)
	if sig, ok := a.symbols.procs[name]; ok && len(c.Args) != sig.paramCount {
		a.fail(goerr.SyntaxErrorKind, c.Name.Line, c.Name.Column,
			"%s expects %d argument(s), got %d", name, sig.paramCount, len(c.Args))
	}
	for _, arg := range c.Args {
		arg.Accept(a)
	}
	return nil
}

func (a *Analyzer) VisitData(d ast.DataStmt) any { return nil }

func (a *Analyzer) VisitRead(r ast.ReadStmt) any {
	for _, t := range r.Targets {
		a.lvalueType(t)
	}
	return nil
}

func (a *Analyzer) VisitRestore(r ast.RestoreStmt) any { return nil }

func (a *Analyzer) VisitEnd(e ast.EndStmt) any { return nil }

func (a *Analyzer) VisitStop(s ast.StopStmt) any { return nil }

func (a *Analyzer) VisitOnError(o ast.OnErrorStmt) any { return nil }

func (a *Analyzer) VisitResume(r ast.ResumeStmt) any { return nil }

func (a *Analyzer) VisitHAL(h ast.HALStmt) any {
	for _, arg := range h.Args {
		arg.Accept(a)
	}
	return nil
}

// ---- pass 2: expressions ----

func (a *Analyzer) VisitLiteral(l ast.Literal) any {
	switch x := l.Value.(type) {
	case int16:
		return value.Integer(x)
	case int32:
		return value.Long(x)
	case int64:
		return value.Wide(x)
	case float32:
		return value.Single(x)
	case float64:
		return value.Double(x)
	case string:
		return value.Str(x)
	case bool:
		return value.Bool(x)
	default:
		return value.Empty
	}
}

func (a *Analyzer) VisitVariable(va ast.Variable) any {
	name := fullName(va.Name)
	if t, ok := a.symbols.lookup(name); ok {
		return t
	}
	return a.typeFromNameSuffix(name)
}

func (a *Analyzer) VisitIndexOrCall(i ast.IndexOrCall) any {
	name := fullName(i.Name)

	if name == "LBOUND" || name == "UBOUND" {
		for _, arg := range i.Args[min(1, len(i.Args)):] {
			a.requireNumericExpr(arg)
		}
		return value.Integer(0)
	}
	if builtinFuncs[name] {
		for _, arg := range i.Args {
			arg.Accept(a)
		}
		return builtinReturnType(name)
	}
	if sig, ok := a.symbols.procs[name]; ok {
		for _, arg := range i.Args {
			arg.Accept(a)
		}
		if len(i.Args) != sig.paramCount {
			a.fail(goerr.SyntaxErrorKind, i.Name.Line, i.Name.Column,
				"%s expects %d argument(s), got %d", name, sig.paramCount, len(i.Args))
		}
		if sig.isFunction {
			return sig.returnType
		}
		return value.Empty
	}
	// Not a builtin and not a known procedure: per spec §4.3/§9, this is
	// an array element access whose resolution was deferred from the
	// parser; an unknown callee is permitted (spec §4.4: "unknown
	// callees are permitted, deferred to the runtime").
	for _, arg := range i.Args {
		arg.Accept(a)
	}
	if t, ok := a.symbols.lookup(name); ok {
		return t
	}
	return a.typeFromNameSuffix(name)
}

func (a *Analyzer) requireNumericExpr(e ast.Expression) {
	t := e.Accept(a).(value.Value)
	if !isNumeric(t) {
		a.typeMismatch(e, "expected a numeric expression, got %s", t.TypeName())
	}
}

func (a *Analyzer) VisitFieldAccess(f ast.FieldAccess) any {
	baseType := f.Target.Accept(a).(value.Value)
	if baseType.Kind != value.KindRecord {
		a.typeMismatch(f.Target, "field access on non-record type %s", baseType.TypeName())
		return value.Empty
	}
	rt, ok := a.symbols.records[baseType.RecName]
	if !ok {
		return value.Empty
	}
	field := strings.ToUpper(f.Field.Lexeme)
	if t, ok := rt.fields[field]; ok {
		return t
	}
	a.fail(goerr.SyntaxErrorKind, f.Field.Line, f.Field.Column, "record %s has no field %s", rt.name, field)
	return value.Empty
}

func (a *Analyzer) VisitUnary(u ast.Unary) any {
	t := u.Right.Accept(a).(value.Value)
	switch u.Operator.Type {
	case token.NOT:
		if !isNumeric(t) {
			a.typeMismatch(u.Right, "NOT requires a numeric operand, got %s", t.TypeName())
		}
		return t
	default: // unary +/-
		if !isNumeric(t) {
			a.typeMismatch(u.Right, "unary %s requires a numeric operand, got %s", u.Operator.Lexeme, t.TypeName())
		}
		return t
	}
}

func (a *Analyzer) VisitBinary(b ast.Binary) any {
	lt := b.Left.Accept(a).(value.Value)
	rt := b.Right.Accept(a).(value.Value)
	switch b.Operator.Type {
	case token.PLUS:
		if isString(lt) || isString(rt) {
			return value.Str("")
		}
		return a.checkNumericPair(lt, rt, b)
	case token.MINUS, token.STAR, token.SLASH, token.CARET:
		return a.checkNumericPair(lt, rt, b)
	case token.BACKSLASH, token.MODKW:
		a.checkNumericPair(lt, rt, b)
		return value.Long(0)
	case token.ASSIGN, token.NE, token.LT, token.LE, token.GT, token.GE:
		if !(isString(lt) && isString(rt)) && !(isNumeric(lt) && isNumeric(rt)) {
			a.typeMismatch(b.Left, "cannot compare %s to %s", lt.TypeName(), rt.TypeName())
		}
		return value.Integer(0) // legacy boolean result
	case token.AND, token.OR, token.XOR, token.EQV, token.IMP:
		return a.checkNumericPair(lt, rt, b)
	default:
		return value.Empty
	}
}

func (a *Analyzer) checkNumericPair(lt, rt value.Value, b ast.Binary) value.Value {
	if !isNumeric(lt) || !isNumeric(rt) {
		a.typeMismatch(b.Left, "operator %s requires numeric operands, got %s and %s",
			b.Operator.Lexeme, lt.TypeName(), rt.TypeName())
		return value.Empty
	}
	return promote(lt, rt)
}

func (a *Analyzer) VisitGrouping(g ast.Grouping) any {
	return g.Expression.Accept(a)
}

func (a *Analyzer) VisitAssign(as ast.Assign) any {
	target := a.lvalueType(as.Target)
	source := as.Value.Accept(a).(value.Value)
	if !compatible(target, source) {
		a.typeMismatch(as.Value, "cannot assign %s to %s", source.TypeName(), target.TypeName())
	}
	return target
}

// lvalueType infers an assignment target's type without double-checking
// its sub-expressions for errors a read wouldn't raise (spec §4.4's
// infer_lvalue_type in original_source never re-validates the base of a
// FieldAccess, for instance).
func (a *Analyzer) lvalueType(target ast.Expression) value.Value {
	switch t := target.(type) {
	case ast.Variable:
		name := fullName(t.Name)
		if existing, ok := a.symbols.lookup(name); ok {
			return existing
		}
		inferred := a.typeFromNameSuffix(name)
		a.symbols.define(name, inferred)
		return inferred
	case ast.IndexOrCall:
		name := fullName(t.Name)
		a.arrays[name] = true
		for _, arg := range t.Args {
			arg.Accept(a)
		}
		if existing, ok := a.symbols.lookup(name); ok {
			return existing
		}
		return a.typeFromNameSuffix(name)
	case ast.FieldAccess:
		return t.Accept(a).(value.Value)
	default:
		return target.Accept(a).(value.Value)
	}
}

func (a *Analyzer) requireNumeric(e ast.Expression) {
	t := e.Accept(a).(value.Value)
	if !isNumeric(t) {
		a.typeMismatch(e, "expected a numeric expression, got %s", t.TypeName())
	}
}

func (a *Analyzer) requireString(e ast.Expression) {
	t := a.lvalueType(e)
	if !isString(t) {
		a.typeMismatch(e, "expected a string expression, got %s", t.TypeName())
	}
}

// typeMismatch panics with a positioned TypeMismatch error, using the
// given expression's token position when one can be recovered and line 0
// otherwise (Grouping/Literal carry no position of their own — the
// teacher's AST doesn't attach one to every node, see ast/expressions.go).
func (a *Analyzer) typeMismatch(e ast.Expression, format string, args ...any) {
	line, col := exprPos(e)
	a.fail(goerr.TypeMismatch, line, col, format, args...)
}

func exprPos(e ast.Expression) (int32, int) {
	switch n := e.(type) {
	case ast.Variable:
		return n.Name.Line, n.Name.Column
	case ast.IndexOrCall:
		return n.Name.Line, n.Name.Column
	case ast.FieldAccess:
		return n.Field.Line, n.Field.Column
	case ast.Unary:
		return n.Operator.Line, n.Operator.Column
	case ast.Binary:
		return n.Operator.Line, n.Operator.Column
	case ast.Grouping:
		return exprPos(n.Expression)
	}
	return 0, 0
}
