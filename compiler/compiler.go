// Package compiler walks a parsed program and emits a bytecode.Image.
//
// Compilation is two-pass, grounded on the teacher's ASTCompiler
// (compiler/ast_compiler.go in the original tree): a collection pass walks
// every statement to flatten DATA literals into the image's DATA pool and
// to pre-declare every SUB/FUNCTION's slot in the procedure table (so a
// forward call compiles before its target is reached), then an emission
// pass walks the same statements again, implementing ast.StmtVisitor and
// ast.ExpressionVisitor the same way the teacher's compiler does, emitting
// instructions as it goes. Jump targets are backpatched: a placeholder
// 4-byte operand is emitted at the jump site and the real byte offset is
// written in once the target is known.
package compiler

import (
	"encoding/binary"
	"strconv"
	"strings"

	"basic/ast"
	"basic/bytecode"
	"basic/goerr"
	"basic/token"
	"basic/value"
)

// builtinFuncs is the closed set of math/string/conversion functions that
// funnel through the single OpCallBuiltin opcode rather than getting one
// opcode apiece.
var builtinFuncs = map[string]bool{
	"ABS": true, "SGN": true, "INT": true, "FIX": true, "SQR": true,
	"SIN": true, "COS": true, "TAN": true, "ATN": true, "EXP": true, "LOG": true, "RND": true,
	"CINT": true, "CLNG": true, "CSNG": true, "CDBL": true, "CSTR": true,
	"LEN": true, "LEFT$": true, "RIGHT$": true, "MID$": true, "CHR$": true, "ASC": true,
	"STR$": true, "VAL": true, "UCASE$": true, "LCASE$": true, "SPACE$": true, "STRING$": true,
	"INSTR": true, "TIMER": true, "TIME$": true, "DATE$": true, "LBOUND": true, "UBOUND": true,
	"EOF": true, "LOF": true, "LOC": true, "FREEFILE": true, "INKEY$": true,
}

// pendingJump is an emitted jump/call/error-handler instruction whose 4-byte
// operand is still a placeholder, waiting for its target label to resolve.
type pendingJump struct {
	operandPos int
	label      string
}

// loopFrame tracks the backpatch list for EXIT FOR/EXIT DO inside the loop
// currently being compiled.
type loopFrame struct {
	isFor        bool
	exitPatchPos []int
}

// compileError is the internal panic payload recovered at each top-level
// statement boundary, letting compilation continue past one bad statement
// the way the teacher's per-statement recover does.
type compileError struct{ err error }

// Compiler walks a Program and emits a bytecode.Image.
type Compiler struct {
	image *bytecode.Image

	labelAddr     map[string]int
	dataLabelAddr map[string]int
	pending       []pendingJump

	arrays    map[string]bool
	procs     map[string]bool
	procIndex map[string]int

	loops        []loopFrame
	procExitJump []int // backpatch list for EXIT SUB/EXIT FUNCTION in the body being compiled

	errs []error
}

// New returns a Compiler ready to compile a single Program.
func New() *Compiler {
	return &Compiler{
		image:         bytecode.NewImage(),
		labelAddr:     make(map[string]int),
		dataLabelAddr: make(map[string]int),
		arrays:        make(map[string]bool),
		procs:         make(map[string]bool),
		procIndex:     make(map[string]int),
	}
}

// Compile compiles program to a bytecode.Image, returning any errors
// encountered. Compilation does not abort on the first error; it resyncs at
// the next top-level statement so a single typo doesn't hide the rest.
func Compile(program *ast.Program) (*bytecode.Image, []error) {
	c := New()
	c.prescan(program.Statements)
	c.collectData(program.Statements)
	c.compileStmts(program.Statements)
	c.emit(bytecode.OpEnd)
	c.resolvePending()
	return c.image, c.errs
}

// prescan walks every statement, including nested bodies, registering array
// names and SUB/FUNCTION signatures before any code is emitted. This is
// plain recursive inspection rather than the visitor dispatch the rest of
// the compiler uses, since it only needs to recognize a handful of
// declaration shapes, not every node.
func (c *Compiler) prescan(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch n := s.(type) {
		case ast.DimStmt:
			for _, item := range n.Items {
				if len(item.Dims) > 0 {
					c.arrays[strings.ToUpper(item.Name.Lexeme)] = true
				}
			}
		case ast.ReDimStmt:
			for _, item := range n.Items {
				c.arrays[strings.ToUpper(item.Name.Lexeme)] = true
			}
		case ast.SubDeclStmt:
			c.declareProc(n.Name.Lexeme, paramNames(n.Params), paramByVal(n.Params), false)
			c.prescan(n.Body)
		case ast.FunctionDeclStmt:
			c.declareProc(n.Name.Lexeme, paramNames(n.Params), paramByVal(n.Params), true)
			c.prescan(n.Body)
		case ast.DeclareStmt:
			c.declareProc(n.Name.Lexeme, paramNames(n.Params), paramByVal(n.Params), !n.IsSub)
		case ast.IfStmt:
			c.prescan(n.Then)
			for _, ei := range n.ElseIfs {
				c.prescan(ei.Body)
			}
			c.prescan(n.Else)
		case ast.SelectCaseStmt:
			for _, cc := range n.Cases {
				c.prescan(cc.Body)
			}
			c.prescan(n.CaseElse)
		case ast.ForStmt:
			c.prescan(n.Body)
		case ast.WhileStmt:
			c.prescan(n.Body)
		case ast.DoLoopStmt:
			c.prescan(n.Body)
		}
	}
}

func paramNames(params []ast.Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = strings.ToUpper(p.Name.Lexeme)
	}
	return names
}

func paramByVal(params []ast.Param) []bool {
	byVal := make([]bool, len(params))
	for i, p := range params {
		byVal[i] = p.ByVal
	}
	return byVal
}

// declareProc registers a procedure's slot in the image's procedure table
// if this is the first declaration seen (a DECLARE forward signature and
// the later SUB/FUNCTION body both name the same procedure).
func (c *Compiler) declareProc(name string, params []string, byVal []bool, isFunction bool) {
	upper := strings.ToUpper(name)
	c.procs[upper] = true
	if _, ok := c.procIndex[upper]; ok {
		return
	}
	idx := c.image.AddProcedure(bytecode.Procedure{
		Name: upper, Params: params, ByVal: byVal, Entry: -1, IsFunction: isFunction,
	})
	c.procIndex[upper] = idx
}

// collectData flattens every DATA statement's values into the image's DATA
// pool in source order, recording the pool index any label/line number maps
// to for RESTORE label.
func (c *Compiler) collectData(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch n := s.(type) {
		case ast.LabelStmt:
			c.dataLabelAddr[labelKey(n)] = len(c.image.DataPool)
		case ast.DataStmt:
			for _, v := range n.Values {
				c.image.AddData(dataLiteral(v))
			}
		case ast.IfStmt:
			c.collectData(n.Then)
			for _, ei := range n.ElseIfs {
				c.collectData(ei.Body)
			}
			c.collectData(n.Else)
		case ast.SelectCaseStmt:
			for _, cc := range n.Cases {
				c.collectData(cc.Body)
			}
			c.collectData(n.CaseElse)
		case ast.ForStmt:
			c.collectData(n.Body)
		case ast.WhileStmt:
			c.collectData(n.Body)
		case ast.DoLoopStmt:
			c.collectData(n.Body)
		case ast.SubDeclStmt:
			c.collectData(n.Body)
		case ast.FunctionDeclStmt:
			c.collectData(n.Body)
		}
	}
}

// dataLiteral converts one already-typed DATA value (int64, float64, or
// string, as produced by the parser's field-splitting) to a value.Value.
func dataLiteral(v any) value.Value {
	switch x := v.(type) {
	case int64:
		if x >= -32768 && x <= 32767 {
			return value.Integer(int16(x))
		}
		if x >= -2147483648 && x <= 2147483647 {
			return value.Long(int32(x))
		}
		return value.Wide(x)
	case float64:
		return value.Double(x)
	case string:
		return value.Str(x)
	default:
		return value.Empty
	}
}

func labelKey(l ast.LabelStmt) string {
	if l.IsLineNumber {
		return strconv.FormatInt(int64(l.LineNumber), 10)
	}
	return strings.ToUpper(l.Name)
}

// compileStmts compiles a statement list in order, recording each label's
// byte address as it is reached and recovering from a single statement's
// compile error so the rest of the block still compiles.
func (c *Compiler) compileStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.compileOne(s)
	}
}

func (c *Compiler) compileOne(s ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(compileError); ok {
				c.errs = append(c.errs, ce.err)
				return
			}
			panic(r)
		}
	}()
	if lbl, ok := s.(ast.LabelStmt); ok {
		c.labelAddr[labelKey(lbl)] = len(c.image.Instructions)
		if lbl.IsLineNumber {
			c.image.AddLineMark(lbl.LineNumber)
		}
	}
	s.Accept(c)
}

func (c *Compiler) fail(kind goerr.Kind, format string, args ...any) {
	panic(compileError{newError(kind, 0, format, args...)})
}

// emit appends one instruction and returns the byte offset it was written
// at (needed by callers that must backpatch a placeholder operand).
func (c *Compiler) emit(op bytecode.Opcode, operands ...int) int {
	pos := len(c.image.Instructions)
	c.image.Instructions = append(c.image.Instructions, bytecode.Make(op, operands...)...)
	return pos
}

// emitJump emits a jump-family instruction with a placeholder target and
// records it for backpatching once label is known.
func (c *Compiler) emitJump(op bytecode.Opcode, label string) {
	pos := c.emit(op, 0)
	def, _ := bytecode.Lookup(op)
	operandPos := pos + 1
	_ = def
	c.pending = append(c.pending, pendingJump{operandPos: operandPos, label: label})
}

// resolvePending patches every jump/call/error-handler operand recorded by
// emitJump against the now-complete label table.
func (c *Compiler) resolvePending() {
	for _, pj := range c.pending {
		addr, ok := c.labelAddr[strings.ToUpper(pj.label)]
		if !ok {
			c.errs = append(c.errs, newError(goerr.LabelNotDefined, 0, "label %q is not defined", pj.label))
			continue
		}
		binary.LittleEndian.PutUint32(c.image.Instructions[pj.operandPos:], uint32(addr))
	}
}

// ---- expressions ----

func (c *Compiler) VisitLiteral(l ast.Literal) any {
	var v value.Value
	switch x := l.Value.(type) {
	case int16:
		v = value.Integer(x)
	case int32:
		v = value.Long(x)
	case int64:
		v = value.Wide(x)
	case float32:
		v = value.Single(x)
	case float64:
		v = value.Double(x)
	case string:
		v = value.Str(x)
	case bool:
		v = value.Bool(x)
	default:
		v = value.Empty
	}
	idx := c.image.AddConstant(v)
	c.emit(bytecode.OpConstant, idx)
	return nil
}

func (c *Compiler) VisitVariable(va ast.Variable) any {
	idx := c.image.InternName(strings.ToUpper(va.Name.Lexeme))
	c.emit(bytecode.OpLoadVar, idx)
	return nil
}

func (c *Compiler) VisitIndexOrCall(i ast.IndexOrCall) any {
	name := strings.ToUpper(i.Name.Lexeme)

	if name == "LBOUND" || name == "UBOUND" {
		return c.compileBoundsBuiltin(name, i.Args)
	}

	if builtinFuncs[name] {
		for _, a := range i.Args {
			a.Accept(c)
		}
		idx := c.image.InternName(name)
		c.emit(bytecode.OpCallBuiltin, idx, len(i.Args))
		return nil
	}

	if c.procs[name] {
		for _, a := range i.Args {
			a.Accept(c)
		}
		procIdx, ok := c.procIndex[name]
		if !ok {
			c.fail(goerr.FunctionNotDefined, "function %q is not defined", name)
		}
		c.emit(bytecode.OpCallUser, procIdx, len(i.Args))
		return nil
	}

	// Neither a builtin nor a declared procedure: an array element access.
	c.arrays[name] = true
	for _, a := range i.Args {
		a.Accept(c)
	}
	idx := c.image.InternName(name)
	c.emit(bytecode.OpLoadArray, idx, len(i.Args))
	return nil
}

// compileBoundsBuiltin compiles LBOUND/UBOUND. Arrays aren't first-class
// values, so the array's name can't flow through the normal expression
// path the way a builtin's other arguments do; instead the bare array
// name is pushed as a string constant and the VM's builtin dispatcher
// resolves it against the array table directly.
func (c *Compiler) compileBoundsBuiltin(name string, args []ast.Expression) any {
	if len(args) == 0 {
		c.fail(goerr.SyntaxErrorKind, "%s requires an array argument", name)
		return nil
	}
	va, ok := args[0].(ast.Variable)
	if !ok {
		c.fail(goerr.SyntaxErrorKind, "%s argument must be an array name", name)
		return nil
	}
	arrName := strings.ToUpper(va.Name.Lexeme)
	c.arrays[arrName] = true
	c.emit(bytecode.OpConstant, c.image.AddConstant(value.Str(arrName)))
	for _, a := range args[1:] {
		a.Accept(c)
	}
	idx := c.image.InternName(name)
	c.emit(bytecode.OpCallBuiltin, idx, len(args))
	return nil
}

func (c *Compiler) VisitFieldAccess(f ast.FieldAccess) any {
	va, ok := f.Target.(ast.Variable)
	if !ok {
		c.fail(goerr.TypeMismatch, "field access target must be a simple record variable")
	}
	recIdx := c.image.InternName(strings.ToUpper(va.Name.Lexeme))
	fieldIdx := c.image.InternName(strings.ToUpper(f.Field.Lexeme))
	c.emit(bytecode.OpLoadField, recIdx, fieldIdx)
	return nil
}

func (c *Compiler) VisitUnary(u ast.Unary) any {
	u.Right.Accept(c)
	switch u.Operator.Type {
	case token.MINUS:
		c.emit(bytecode.OpNeg)
	case token.PLUS:
		// unary plus is a no-op
	case token.NOT:
		c.emit(bytecode.OpBitNot)
	}
	return nil
}

func (c *Compiler) VisitBinary(b ast.Binary) any {
	b.Left.Accept(c)
	b.Right.Accept(c)
	switch b.Operator.Type {
	case token.PLUS:
		c.emit(bytecode.OpAdd)
	case token.MINUS:
		c.emit(bytecode.OpSub)
	case token.STAR:
		c.emit(bytecode.OpMul)
	case token.SLASH:
		c.emit(bytecode.OpDiv)
	case token.BACKSLASH:
		c.emit(bytecode.OpIntDiv)
	case token.MODKW:
		c.emit(bytecode.OpMod)
	case token.CARET:
		c.emit(bytecode.OpPow)
	case token.AND:
		c.emit(bytecode.OpBitAnd)
	case token.OR:
		c.emit(bytecode.OpBitOr)
	case token.XOR:
		c.emit(bytecode.OpBitXor)
	case token.EQV:
		c.emit(bytecode.OpBitEqv)
	case token.IMP:
		c.emit(bytecode.OpBitImp)
	case token.ASSIGN:
		c.emit(bytecode.OpEq)
	case token.NE:
		c.emit(bytecode.OpNe)
	case token.LT:
		c.emit(bytecode.OpLt)
	case token.LE:
		c.emit(bytecode.OpLe)
	case token.GT:
		c.emit(bytecode.OpGt)
	case token.GE:
		c.emit(bytecode.OpGe)
	}
	return nil
}

func (c *Compiler) VisitGrouping(g ast.Grouping) any {
	g.Expression.Accept(c)
	return nil
}

func (c *Compiler) VisitAssign(a ast.Assign) any {
	a.Value.Accept(c)
	c.compileStoreTarget(a.Target)
	return nil
}

// compileStoreTarget emits the store half of an assignment. The value being
// stored must already be on top of the stack. For an array element target,
// the indices are pushed after (OpStoreArray pops its index operands off
// the top and the value underneath them), so this works uniformly whether
// the value came from a plain expression (VisitLet) or from OpRead.
func (c *Compiler) compileStoreTarget(target ast.Expression) {
	switch t := target.(type) {
	case ast.Variable:
		idx := c.image.InternName(strings.ToUpper(t.Name.Lexeme))
		c.emit(bytecode.OpStoreVar, idx)
	case ast.IndexOrCall:
		name := strings.ToUpper(t.Name.Lexeme)
		c.arrays[name] = true
		for _, a := range t.Args {
			a.Accept(c)
		}
		idx := c.image.InternName(name)
		c.emit(bytecode.OpStoreArray, idx, len(t.Args))
	case ast.FieldAccess:
		va, ok := t.Target.(ast.Variable)
		if !ok {
			c.fail(goerr.TypeMismatch, "field assignment target must be a simple record variable")
		}
		recIdx := c.image.InternName(strings.ToUpper(va.Name.Lexeme))
		fieldIdx := c.image.InternName(strings.ToUpper(t.Field.Lexeme))
		c.emit(bytecode.OpStoreField, recIdx, fieldIdx)
	default:
		c.fail(goerr.SyntaxErrorKind, "invalid assignment target")
	}
}

// ---- statements ----

func (c *Compiler) VisitDim(d ast.DimStmt) any {
	for _, item := range d.Items {
		if len(item.Dims) == 0 {
			idx := c.image.InternName(strings.ToUpper(item.Name.Lexeme))
			zeroIdx := c.image.AddConstant(defaultValueFor(item.TypeName))
			c.emit(bytecode.OpConstant, zeroIdx)
			c.emit(bytecode.OpStoreVar, idx)
			continue
		}
		c.arrays[strings.ToUpper(item.Name.Lexeme)] = true
		for _, dim := range item.Dims {
			dim.Lower.Accept(c)
			dim.Upper.Accept(c)
		}
		idx := c.image.InternName(strings.ToUpper(item.Name.Lexeme))
		c.emit(bytecode.OpDimArray, idx, len(item.Dims), int(defaultValueFor(item.TypeName).Kind))
	}
	return nil
}

func defaultValueFor(typeName string) value.Value {
	switch strings.ToUpper(typeName) {
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
	case "DOUBLE":
		return value.Double(0)
	case "STRING":
		return value.Str("")
	default:
		return value.Single(0)
	}
}

func (c *Compiler) VisitReDim(r ast.ReDimStmt) any {
	for _, item := range r.Items {
		c.arrays[strings.ToUpper(item.Name.Lexeme)] = true
		for _, dim := range item.Dims {
			dim.Lower.Accept(c)
			dim.Upper.Accept(c)
		}
		idx := c.image.InternName(strings.ToUpper(item.Name.Lexeme))
		c.emit(bytecode.OpDimArray, idx, len(item.Dims), int(defaultValueFor(item.TypeName).Kind))
	}
	return nil
}

func (c *Compiler) VisitConst(cs ast.ConstStmt) any {
	cs.Value.Accept(c)
	idx := c.image.InternName(strings.ToUpper(cs.Name.Lexeme))
	c.emit(bytecode.OpStoreVar, idx)
	return nil
}

func (c *Compiler) VisitDefType(d ast.DefTypeStmt) any {
	// The semantic pass consults this statement for static type inference
	// (see semantic.symbolTable.defaultTypes); the compiler and VM still
	// derive a bare identifier's storage default from its suffix character
	// alone, not from this table, so there is nothing to emit here. See
	// DESIGN.md's "DEFINT/.../DEFSTR at runtime" entry.
	return nil
}

func (c *Compiler) VisitTypeDecl(t ast.TypeDeclStmt) any {
	// Record layouts are tracked by the VM's record store on first
	// assignment; a TYPE block itself emits no code.
	return nil
}

func (c *Compiler) VisitLabel(l ast.LabelStmt) any { return nil }

func (c *Compiler) VisitLet(l ast.LetStmt) any {
	l.Value.Accept(c)
	c.compileStoreTarget(l.Target)
	return nil
}

// VisitSwap exchanges Left and Right without an intermediate temporary: both
// values are pushed, then the store targets are compiled in the same order,
// so each store pops the *other* side's value off the top of the stack.
func (c *Compiler) VisitSwap(s ast.SwapStmt) any {
	s.Left.Accept(c)
	s.Right.Accept(c)
	c.compileStoreTarget(s.Left)
	c.compileStoreTarget(s.Right)
	return nil
}

func (c *Compiler) VisitMidAssign(m ast.MidAssignStmt) any {
	m.Start.Accept(c)
	if m.Length != nil {
		m.Length.Accept(c)
	} else {
		c.emit(bytecode.OpConstant, c.image.AddConstant(value.Integer(-1)))
	}
	m.Value.Accept(c)
	va, ok := m.Target.(ast.Variable)
	if !ok {
		c.fail(goerr.TypeMismatch, "MID$ assignment target must be a string variable")
	}
	idx := c.image.InternName(strings.ToUpper(va.Name.Lexeme))
	c.emit(bytecode.OpStoreMid, idx)
	return nil
}

func (c *Compiler) VisitPrint(p ast.PrintStmt) any {
	if p.Channel != nil {
		p.Channel.Accept(c)
		c.emit(bytecode.OpSetChannel)
	}
	for _, item := range p.Items {
		if item.Expr != nil {
			item.Expr.Accept(c)
			c.emit(bytecode.OpPrint)
		}
		switch item.Sep {
		case token.COMMA:
			c.emit(bytecode.OpPrintComma)
		case token.SEMI:
			c.emit(bytecode.OpPrintSemicolon)
		}
	}
	if !p.TrailingSemi {
		c.emit(bytecode.OpPrintNewline)
	}
	if p.Channel != nil {
		c.emit(bytecode.OpClearChannel)
	}
	return nil
}

func (c *Compiler) VisitWrite(w ast.WriteStmt) any {
	if w.Channel != nil {
		w.Channel.Accept(c)
		c.emit(bytecode.OpSetChannel)
	}
	for i, item := range w.Items {
		item.Accept(c)
		c.emit(bytecode.OpPrint)
		if i != len(w.Items)-1 {
			c.emit(bytecode.OpPrintComma)
		}
	}
	c.emit(bytecode.OpPrintNewline)
	if w.Channel != nil {
		c.emit(bytecode.OpClearChannel)
	}
	return nil
}

func (c *Compiler) VisitInput(i ast.InputStmt) any {
	if i.Channel != nil {
		i.Channel.Accept(c)
		c.emit(bytecode.OpSetChannel)
	}
	if i.HasPrompt {
		c.emit(bytecode.OpConstant, c.image.AddConstant(value.Str(i.Prompt+"? ")))
		c.emit(bytecode.OpPrint)
	}
	for _, v := range i.Vars {
		va, ok := v.(ast.Variable)
		if !ok {
			c.fail(goerr.SyntaxErrorKind, "INPUT target must be a simple variable")
			continue
		}
		idx := c.image.InternName(strings.ToUpper(va.Name.Lexeme))
		c.emit(bytecode.OpInputVar, idx)
	}
	if i.Channel != nil {
		c.emit(bytecode.OpClearChannel)
	}
	return nil
}

func (c *Compiler) VisitLineInput(l ast.LineInputStmt) any {
	if l.Channel != nil {
		l.Channel.Accept(c)
		c.emit(bytecode.OpSetChannel)
	}
	if l.HasPrompt {
		c.emit(bytecode.OpConstant, c.image.AddConstant(value.Str(l.Prompt+"? ")))
		c.emit(bytecode.OpPrint)
	}
	va, ok := l.Var.(ast.Variable)
	if !ok {
		c.fail(goerr.SyntaxErrorKind, "LINE INPUT target must be a simple variable")
		return nil
	}
	idx := c.image.InternName(strings.ToUpper(va.Name.Lexeme))
	c.emit(bytecode.OpLineInputVar, idx)
	if l.Channel != nil {
		c.emit(bytecode.OpClearChannel)
	}
	return nil
}

func (c *Compiler) VisitExpressionStmt(e ast.ExpressionStmt) any {
	e.Expression.Accept(c)
	c.emit(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitGoto(g ast.GotoStmt) any {
	c.emitJump(bytecode.OpJump, g.Target)
	return nil
}

func (c *Compiler) VisitGosub(g ast.GosubStmt) any {
	c.emitJump(bytecode.OpCall, g.Target)
	return nil
}

func (c *Compiler) VisitReturn(r ast.ReturnStmt) any {
	c.emit(bytecode.OpReturn)
	return nil
}

func (c *Compiler) VisitOnGoto(o ast.OnGotoStmt) any {
	o.Selector.Accept(c)
	// ON expr GOTO/GOSUB target1, target2, ...: dispatch via a chain of
	// equality tests against 1, 2, 3, ... since the target count is small
	// and known at compile time.
	endJumps := []int{}
	for i, target := range o.Targets {
		c.emit(bytecode.OpDup)
		idx := c.image.AddConstant(value.Long(int32(i + 1)))
		c.emit(bytecode.OpConstant, idx)
		c.emit(bytecode.OpEq)
		notMatchPos := c.emit(bytecode.OpJumpIfFalse, 0)
		c.emit(bytecode.OpPop)
		op := bytecode.OpJump
		if o.IsGosub {
			op = bytecode.OpCall
		}
		c.emitJump(op, target)
		endJumps = append(endJumps, c.emit(bytecode.OpJump, 0))
		patchHere(c, notMatchPos)
	}
	c.emit(bytecode.OpPop)
	for _, pos := range endJumps {
		patchHere(c, pos)
	}
	return nil
}

// patchHere overwrites the 4-byte operand of the jump instruction at pos
// with the current end-of-stream byte offset.
func patchHere(c *Compiler, pos int) {
	operandPos := pos + 1
	binary.LittleEndian.PutUint32(c.image.Instructions[operandPos:], uint32(len(c.image.Instructions)))
}

func (c *Compiler) VisitIf(i ast.IfStmt) any {
	i.Condition.Accept(c)
	falsePos := c.emit(bytecode.OpJumpIfFalse, 0)
	c.compileStmts(i.Then)
	endJumps := []int{c.emit(bytecode.OpJump, 0)}
	patchHere(c, falsePos)

	for _, ei := range i.ElseIfs {
		ei.Condition.Accept(c)
		nextFalse := c.emit(bytecode.OpJumpIfFalse, 0)
		c.compileStmts(ei.Body)
		endJumps = append(endJumps, c.emit(bytecode.OpJump, 0))
		patchHere(c, nextFalse)
	}

	c.compileStmts(i.Else)
	for _, pos := range endJumps {
		patchHere(c, pos)
	}
	return nil
}

func (c *Compiler) VisitSelectCase(s ast.SelectCaseStmt) any {
	s.Selector.Accept(c)
	endJumps := []int{}
	for _, clause := range s.Cases {
		matchJumps := []int{}
		for _, arm := range clause.Arms {
			c.emit(bytecode.OpDup)
			switch arm.Kind {
			case ast.CaseArmValue:
				arm.Value.Accept(c)
				c.emit(bytecode.OpEq)
			case ast.CaseArmRange:
				// a second copy of the selector is needed since both bounds
				// are tested against it; combine with AND (legacy booleans
				// are -1/0, so bitwise AND doubles as logical AND here).
				c.emit(bytecode.OpDup)
				arm.Low.Accept(c)
				c.emit(bytecode.OpGe)
				c.emit(bytecode.OpSwapTop)
				arm.Hi.Accept(c)
				c.emit(bytecode.OpLe)
				c.emit(bytecode.OpBitAnd)
			case ast.CaseArmIs:
				arm.IsValue.Accept(c)
				switch arm.Operator.Type {
				case token.LT:
					c.emit(bytecode.OpLt)
				case token.LE:
					c.emit(bytecode.OpLe)
				case token.GT:
					c.emit(bytecode.OpGt)
				case token.GE:
					c.emit(bytecode.OpGe)
				case token.ASSIGN:
					c.emit(bytecode.OpEq)
				case token.NE:
					c.emit(bytecode.OpNe)
				}
			}
			matchJumps = append(matchJumps, c.emit(bytecode.OpJumpIfTrue, 0))
		}
		skipPos := c.emit(bytecode.OpJump, 0)
		for _, mp := range matchJumps {
			patchHere(c, mp)
		}
		c.emit(bytecode.OpPop)
		c.compileStmts(clause.Body)
		endJumps = append(endJumps, c.emit(bytecode.OpJump, 0))
		patchHere(c, skipPos)
	}
	c.emit(bytecode.OpPop)
	c.compileStmts(s.CaseElse)
	for _, pos := range endJumps {
		patchHere(c, pos)
	}
	return nil
}

// VisitFor compiles FOR/NEXT with the loop's termination comparator chosen
// at runtime from the observed sign of the step value, per spec §9's
// preference for the runtime decision over the literal-sign compile-time
// shortcut: the step expression is evaluated once into a hidden per-loop
// slot, and every guard test branches on that slot's sign to pick ≤ (step
// ≥ 0) or ≥ (step < 0) before comparing the loop variable against the
// (freshly re-evaluated) end expression.
func (c *Compiler) VisitFor(f ast.ForStmt) any {
	idx := c.image.InternName(strings.ToUpper(f.Var.Lexeme))
	stepIdx := c.image.InternName("$FORSTEP" + strconv.Itoa(len(c.image.Instructions)))

	f.Start.Accept(c)
	c.emit(bytecode.OpStoreVar, idx)

	if f.Step != nil {
		f.Step.Accept(c)
	} else {
		c.emit(bytecode.OpConstant, c.image.AddConstant(value.Integer(1)))
	}
	c.emit(bytecode.OpStoreVar, stepIdx)

	loopStart := len(c.image.Instructions)

	c.emit(bytecode.OpLoadVar, stepIdx)
	c.emit(bytecode.OpConstant, c.image.AddConstant(value.Integer(0)))
	c.emit(bytecode.OpLt)
	descendingPos := c.emit(bytecode.OpJumpIfTrue, 0)

	c.emit(bytecode.OpLoadVar, idx)
	f.End.Accept(c)
	c.emit(bytecode.OpLe)
	guardDone := c.emit(bytecode.OpJump, 0)

	patchHere(c, descendingPos)
	c.emit(bytecode.OpLoadVar, idx)
	f.End.Accept(c)
	c.emit(bytecode.OpGe)

	patchHere(c, guardDone)
	exitPos := c.emit(bytecode.OpJumpIfFalse, 0)

	c.loops = append(c.loops, loopFrame{isFor: true})
	c.compileStmts(f.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emit(bytecode.OpLoadVar, idx)
	c.emit(bytecode.OpLoadVar, stepIdx)
	c.emit(bytecode.OpAdd)
	c.emit(bytecode.OpStoreVar, idx)
	c.emit(bytecode.OpJump, loopStart)

	patchHere(c, exitPos)
	for _, pos := range frame.exitPatchPos {
		patchHere(c, pos)
	}
	return nil
}

func (c *Compiler) VisitWhile(w ast.WhileStmt) any {
	loopStart := len(c.image.Instructions)
	w.Condition.Accept(c)
	exitPos := c.emit(bytecode.OpJumpIfFalse, 0)

	c.loops = append(c.loops, loopFrame{isFor: false})
	c.compileStmts(w.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emit(bytecode.OpJump, loopStart)
	patchHere(c, exitPos)
	for _, pos := range frame.exitPatchPos {
		patchHere(c, pos)
	}
	return nil
}

func (c *Compiler) VisitDoLoop(d ast.DoLoopStmt) any {
	loopStart := len(c.image.Instructions)
	var topExit int
	hasTopExit := false

	if d.Test == ast.DoTestTop {
		d.Condition.Accept(c)
		if d.Negate {
			c.emit(bytecode.OpBitNot)
		}
		topExit = c.emit(bytecode.OpJumpIfFalse, 0)
		hasTopExit = true
	}

	c.loops = append(c.loops, loopFrame{isFor: false})
	c.compileStmts(d.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	if d.Test == ast.DoTestBottom {
		d.Condition.Accept(c)
		if d.Negate {
			c.emit(bytecode.OpBitNot)
		}
		c.emit(bytecode.OpJumpIfTrue, loopStart)
	} else {
		c.emit(bytecode.OpJump, loopStart)
	}

	if hasTopExit {
		patchHere(c, topExit)
	}
	for _, pos := range frame.exitPatchPos {
		patchHere(c, pos)
	}
	return nil
}

func (c *Compiler) VisitExit(e ast.ExitStmt) any {
	switch e.Kind {
	case ast.ExitFor, ast.ExitDo:
		if len(c.loops) == 0 {
			c.fail(goerr.SyntaxErrorKind, "EXIT FOR/DO outside a loop")
			return nil
		}
		pos := c.emit(bytecode.OpJump, 0)
		top := len(c.loops) - 1
		c.loops[top].exitPatchPos = append(c.loops[top].exitPatchPos, pos)
	case ast.ExitSub, ast.ExitFunction:
		pos := c.emit(bytecode.OpJump, 0)
		c.procExitJump = append(c.procExitJump, pos)
	}
	return nil
}

func (c *Compiler) VisitSubDecl(s ast.SubDeclStmt) any {
	c.compileProcedure(s.Name.Lexeme, s.Params, s.Body, false)
	return nil
}

func (c *Compiler) VisitFunctionDecl(f ast.FunctionDeclStmt) any {
	c.compileProcedure(f.Name.Lexeme, f.Params, f.Body, true)
	return nil
}

// compileProcedure emits a jump over the procedure body (so control doesn't
// fall into it from the top level), fills in the already-prescanned
// Procedures slot with the body's real entry point, then compiles the body.
// A FUNCTION whose body assigns its own name returns that value; otherwise
// the default numeric zero value is returned.
func (c *Compiler) compileProcedure(name string, params []ast.Param, body []ast.Stmt, isFunction bool) {
	skipPos := c.emit(bytecode.OpJump, 0)
	entry := len(c.image.Instructions)

	upper := strings.ToUpper(name)
	idx, ok := c.procIndex[upper]
	if !ok {
		idx = c.image.AddProcedure(bytecode.Procedure{
			Name: upper, Params: paramNames(params), ByVal: paramByVal(params), IsFunction: isFunction,
		})
		c.procIndex[upper] = idx
	}
	c.image.Procedures[idx].Entry = entry

	c.emit(bytecode.OpEnterScope)
	savedExits := c.procExitJump
	c.procExitJump = nil

	c.compileStmts(body)

	// EXIT SUB/EXIT FUNCTION jump here: the epilogue that a normal
	// fall-off-the-end also reaches, so an early exit still loads the
	// function's return value and unwinds the scope/call frame exactly
	// like a natural return does.
	epiloguePos := len(c.image.Instructions)
	for _, pos := range c.procExitJump {
		patchHere(c, pos)
	}
	c.procExitJump = savedExits
	_ = epiloguePos

	if isFunction {
		retIdx := c.image.InternName(upper)
		c.emit(bytecode.OpLoadVar, retIdx)
	}
	c.emit(bytecode.OpExitScope)
	c.emit(bytecode.OpReturnValue)

	patchHere(c, skipPos)
}

func (c *Compiler) VisitDeclare(d ast.DeclareStmt) any { return nil }

func (c *Compiler) VisitCall(call ast.CallStmt) any {
	name := strings.ToUpper(call.Name.Lexeme)
	for _, a := range call.Args {
		a.Accept(c)
	}
	procIdx, ok := c.procIndex[name]
	if !ok {
		c.fail(goerr.FunctionNotDefined, "sub %q is not defined", name)
		return nil
	}
	c.emit(bytecode.OpCallUser, procIdx, len(call.Args))
	if c.image.Procedures[procIdx].IsFunction {
		c.emit(bytecode.OpPop)
	}
	return nil
}

func (c *Compiler) VisitData(d ast.DataStmt) any { return nil }

func (c *Compiler) VisitRead(r ast.ReadStmt) any {
	for _, target := range r.Targets {
		c.emit(bytecode.OpRead)
		c.compileStoreReadTarget(target)
	}
	return nil
}

// compileStoreReadTarget stores the value OpRead just pushed into target.
func (c *Compiler) compileStoreReadTarget(target ast.Expression) {
	c.compileStoreTarget(target)
}

func (c *Compiler) VisitRestore(r ast.RestoreStmt) any {
	if !r.HasLabel {
		c.emit(bytecode.OpRestoreZero)
		return nil
	}
	key := strings.ToUpper(r.Label)
	addr, ok := c.dataLabelAddr[key]
	if !ok {
		c.fail(goerr.LabelNotDefined, "label %q is not defined", r.Label)
		return nil
	}
	c.emit(bytecode.OpRestore, addr)
	return nil
}

func (c *Compiler) VisitEnd(e ast.EndStmt) any {
	c.emit(bytecode.OpEnd)
	return nil
}

func (c *Compiler) VisitStop(s ast.StopStmt) any {
	c.emit(bytecode.OpStop)
	return nil
}

func (c *Compiler) VisitOnError(o ast.OnErrorStmt) any {
	if o.IsGotoZero {
		c.emit(bytecode.OpOnErrorDisable)
		return nil
	}
	c.emitJump(bytecode.OpOnErrorGoto, o.Label)
	return nil
}

func (c *Compiler) VisitResume(r ast.ResumeStmt) any {
	switch r.Mode {
	case ast.ResumeSame:
		c.emit(bytecode.OpResumeSame)
	case ast.ResumeNext:
		c.emit(bytecode.OpResumeNext)
	case ast.ResumeLabel:
		c.emitJump(bytecode.OpResumeLabel, r.Label)
	}
	return nil
}

func (c *Compiler) VisitHAL(h ast.HALStmt) any {
	for _, a := range h.Args {
		a.Accept(c)
	}
	idx := c.image.InternName(string(h.Keyword))
	c.emit(bytecode.OpHAL, idx, len(h.Args))
	return nil
}
