package parser

import (
	"testing"

	"basic/ast"
	"basic/lexer"
)

func parseSource(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.New(src).Scan()
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	program, errs := New(toks).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors for %q: %v", src, errs)
	}
	return program
}

func TestParseLetAssignment(t *testing.T) {
	program := parseSource(t, "X = 1 + 2\n")
	if len(program.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program.Statements))
	}
	let, ok := program.Statements[0].(ast.LetStmt)
	if !ok {
		t.Fatalf("expected LetStmt, got %T", program.Statements[0])
	}
	if _, ok := let.Target.(ast.Variable); !ok {
		t.Fatalf("expected Variable target, got %T", let.Target)
	}
}

func TestParsePrintWithSeparators(t *testing.T) {
	program := parseSource(t, `PRINT A; B, C`)
	print, ok := program.Statements[0].(ast.PrintStmt)
	if !ok {
		t.Fatalf("expected PrintStmt, got %T", program.Statements[0])
	}
	if len(print.Items) != 3 {
		t.Fatalf("expected 3 print items, got %d", len(print.Items))
	}
}

func TestParseSingleLineIf(t *testing.T) {
	program := parseSource(t, `IF X > 3 THEN PRINT "big" ELSE PRINT "small"`)
	ifStmt, ok := program.Statements[0].(ast.IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", program.Statements[0])
	}
	if !ifStmt.SingleLine {
		t.Fatal("expected single-line IF")
	}
	if len(ifStmt.Then) != 1 || len(ifStmt.Else) != 1 {
		t.Fatalf("expected one then/else statement, got then=%d else=%d", len(ifStmt.Then), len(ifStmt.Else))
	}
}

func TestParseMultiLineIfWithElseIf(t *testing.T) {
	src := "IF X = 1 THEN\nPRINT 1\nELSEIF X = 2 THEN\nPRINT 2\nELSE\nPRINT 3\nEND IF\n"
	program := parseSource(t, src)
	ifStmt, ok := program.Statements[0].(ast.IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", program.Statements[0])
	}
	if ifStmt.SingleLine {
		t.Fatal("expected multi-line IF")
	}
	if len(ifStmt.ElseIfs) != 1 {
		t.Fatalf("expected 1 ELSEIF clause, got %d", len(ifStmt.ElseIfs))
	}
	if len(ifStmt.Else) != 1 {
		t.Fatalf("expected ELSE body of 1 statement, got %d", len(ifStmt.Else))
	}
}

func TestParseForNext(t *testing.T) {
	src := "FOR I = 1 TO 3\nPRINT I\nNEXT I\n"
	program := parseSource(t, src)
	forStmt, ok := program.Statements[0].(ast.ForStmt)
	if !ok {
		t.Fatalf("expected ForStmt, got %T", program.Statements[0])
	}
	if forStmt.Var.Lexeme != "I" {
		t.Fatalf("expected loop var I, got %s", forStmt.Var.Lexeme)
	}
	if len(forStmt.Body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(forStmt.Body))
	}
}

func TestParseDoLoopVariants(t *testing.T) {
	tests := []string{
		"DO WHILE X < 5\nX = X + 1\nLOOP\n",
		"DO UNTIL X = 5\nX = X + 1\nLOOP\n",
		"DO\nX = X + 1\nLOOP WHILE X < 5\n",
	}
	for _, src := range tests {
		program := parseSource(t, src)
		if _, ok := program.Statements[0].(ast.DoLoopStmt); !ok {
			t.Fatalf("expected DoLoopStmt for %q, got %T", src, program.Statements[0])
		}
	}
}

func TestParseSelectCase(t *testing.T) {
	src := "SELECT CASE X\nCASE 1\nPRINT 1\nCASE 2 TO 5\nPRINT 2\nCASE IS > 10\nPRINT 3\nCASE ELSE\nPRINT 4\nEND SELECT\n"
	program := parseSource(t, src)
	sel, ok := program.Statements[0].(ast.SelectCaseStmt)
	if !ok {
		t.Fatalf("expected SelectCaseStmt, got %T", program.Statements[0])
	}
	if len(sel.Cases) != 3 {
		t.Fatalf("expected 3 CASE clauses, got %d", len(sel.Cases))
	}
	if !sel.HasElse {
		t.Fatal("expected CASE ELSE to be recorded")
	}
	if sel.Cases[1].Arms[0].Kind != ast.CaseArmRange {
		t.Fatalf("expected range arm, got kind %d", sel.Cases[1].Arms[0].Kind)
	}
	if sel.Cases[2].Arms[0].Kind != ast.CaseArmIs {
		t.Fatalf("expected IS arm, got kind %d", sel.Cases[2].Arms[0].Kind)
	}
}

func TestParseGotoAndLineNumberLabel(t *testing.T) {
	src := "10 PRINT 1\nGOTO 10\n"
	program := parseSource(t, src)
	label, ok := program.Statements[0].(ast.LabelStmt)
	if !ok || !label.IsLineNumber || label.LineNumber != 10 {
		t.Fatalf("expected line-number label 10, got %#v", program.Statements[0])
	}
	if idx, ok := program.LineNumbers[10]; !ok || idx != 0 {
		t.Fatalf("expected line number 10 to map to statement index 0, got %d,%v", idx, ok)
	}
}

func TestParseTextualLabel(t *testing.T) {
	program := parseSource(t, "START:\nPRINT 1\nGOTO START\n")
	label, ok := program.Statements[0].(ast.LabelStmt)
	if !ok || label.Name != "START" {
		t.Fatalf("expected textual label START, got %#v", program.Statements[0])
	}
}

func TestParseExponentIsRightAssociative(t *testing.T) {
	program := parseSource(t, "X = 2 ^ 3 ^ 2\n")
	let := program.Statements[0].(ast.LetStmt)
	bin, ok := let.Value.(ast.Binary)
	if !ok {
		t.Fatalf("expected Binary, got %T", let.Value)
	}
	// right-associative means the RHS of the outer ^ is itself a Binary (3^2),
	// not the LHS.
	if _, ok := bin.Right.(ast.Binary); !ok {
		t.Fatalf("expected right-associative exponent tree, got right=%T", bin.Right)
	}
	if _, ok := bin.Left.(ast.Literal); !ok {
		t.Fatalf("expected literal left operand, got %T", bin.Left)
	}
}

func TestParseArrayIndexAndDim(t *testing.T) {
	program := parseSource(t, "DIM A(1 TO 3, 1 TO 2)\nA(2, 1) = 7\n")
	dim, ok := program.Statements[0].(ast.DimStmt)
	if !ok {
		t.Fatalf("expected DimStmt, got %T", program.Statements[0])
	}
	if len(dim.Items[0].Dims) != 2 {
		t.Fatalf("expected 2 dimensions, got %d", len(dim.Items[0].Dims))
	}
	let, ok := program.Statements[1].(ast.LetStmt)
	if !ok {
		t.Fatalf("expected LetStmt, got %T", program.Statements[1])
	}
	idx, ok := let.Target.(ast.IndexOrCall)
	if !ok {
		t.Fatalf("expected IndexOrCall target, got %T", let.Target)
	}
	if len(idx.Args) != 2 {
		t.Fatalf("expected 2 index args, got %d", len(idx.Args))
	}
}

func TestParseDataLine(t *testing.T) {
	program := parseSource(t, `DATA 10, 20, "hi"`)
	data, ok := program.Statements[0].(ast.DataStmt)
	if !ok {
		t.Fatalf("expected DataStmt, got %T", program.Statements[0])
	}
	if len(data.Values) != 3 {
		t.Fatalf("expected 3 data values, got %v", data.Values)
	}
	if data.Values[2] != "hi" {
		t.Fatalf("expected third value 'hi', got %v", data.Values[2])
	}
}

func TestParseSwapAndMidAssign(t *testing.T) {
	program := parseSource(t, "SWAP A, B\nMID$(C$, 2, 3) = \"xyz\"\n")
	if _, ok := program.Statements[0].(ast.SwapStmt); !ok {
		t.Fatalf("expected SwapStmt, got %T", program.Statements[0])
	}
	if _, ok := program.Statements[1].(ast.MidAssignStmt); !ok {
		t.Fatalf("expected MidAssignStmt, got %T", program.Statements[1])
	}
}

func TestPrintASTJSONProducesOutput(t *testing.T) {
	program := parseSource(t, `PRINT "Hello, World!"`)
	jsonStr, err := PrintASTJSON(program.Statements)
	if err != nil {
		t.Fatalf("PrintASTJSON error: %v", err)
	}
	if jsonStr == "" {
		t.Fatal("expected non-empty JSON output")
	}
}
