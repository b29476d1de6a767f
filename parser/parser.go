// Recursive descent parser over the token stream produced by the lexer.
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// A recursive descent parser is top-down: it starts from the grammar's
// outermost rule (a sequence of statements) and works its way down into
// nested sub-expressions until it reaches the grammar's terminals.
package parser

import (
	"strconv"
	"strings"

	"basic/ast"
	"basic/token"
)

// binary operator precedence, low to high, per the dialect's table:
// OR < XOR < AND < EQV < IMP < equality < comparison < additive < MOD <
// integer-divide < multiplicative < exponent. Exponent is right-associative,
// parsed separately; everything else below is left-associative.
var (
	equalityTypes    = []token.Type{token.ASSIGN, token.NE}
	comparisonTypes  = []token.Type{token.LT, token.LE, token.GT, token.GE}
	additiveTypes    = []token.Type{token.PLUS, token.MINUS}
	multiplyTypes    = []token.Type{token.STAR, token.SLASH}
	suffixTypes      = map[token.Type]bool{
		token.SUFFIX_INT: true, token.SUFFIX_LONG: true, token.SUFFIX_SINGLE: true,
		token.SUFFIX_DOUBLE: true, token.SUFFIX_STRING: true, token.SUFFIX_WIDE: true,
		token.SUFFIX_FLOAT: true,
	}
)

// Parser turns a flat token slice (as produced by lexer.Scan) into a Program.
// Its position is always at the next unconsumed token.
type Parser struct {
	tokens   []token.Token
	position int
}

// New creates a Parser over tokens.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() token.Token { return p.tokens[p.position] }

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.position + offset
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) previous() token.Token { return p.tokens[p.position-1] }

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.position++
	}
	return p.previous()
}

func (p *Parser) isFinished() bool { return p.peek().Type == token.EOF }

func (p *Parser) check(typ token.Type) bool {
	return !p.isFinished() && p.peek().Type == typ
}

func (p *Parser) match(types ...token.Type) bool {
	for _, typ := range types {
		if p.check(typ) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(typ token.Type, format string, args ...any) (token.Token, error) {
	if p.check(typ) {
		return p.advance(), nil
	}
	cur := p.peek()
	return cur, newSyntaxError(cur.Line, cur.Column, format, args...)
}

// skipSeparators consumes any run of NEWLINE/COLON separators.
func (p *Parser) skipSeparators() {
	for p.check(token.NEWLINE) || p.check(token.COLON) {
		p.advance()
	}
}

// Parse parses the entire token stream into a Program, collecting every
// syntax error found rather than stopping at the first one; callers that
// need abort-on-first-error semantics should stop at the first returned
// error themselves.
func (p *Parser) Parse() (*ast.Program, []error) {
	program := ast.NewProgram()
	var errs []error

	for {
		p.skipSeparators()
		if p.isFinished() {
			break
		}
		stmt, err := p.statement()
		if err != nil {
			errs = append(errs, err)
			// resynchronize at the next separator so one bad statement
			// doesn't cascade into spurious follow-on errors.
			for !p.isFinished() && !p.check(token.NEWLINE) && !p.check(token.COLON) {
				p.advance()
			}
			continue
		}
		program.AddStatement(stmt)
	}

	return program, errs
}

// statement dispatches on the current token: a numeric literal at
// statement-start is a legacy line number, an identifier followed directly
// by a colon is a textual label, and every reserved statement keyword has
// its own parse method. Anything else is parsed as an assignment or a bare
// expression statement (CALL without the CALL keyword).
func (p *Parser) statement() (ast.Stmt, error) {
	if p.check(token.INT) || p.check(token.LONG) {
		if n, ok := p.previewLineNumber(); ok {
			p.advance()
			return ast.LabelStmt{IsLineNumber: true, LineNumber: n}, nil
		}
	}
	if p.check(token.IDENTIFIER) && p.peekAt(1).Type == token.COLON {
		name := p.advance()
		p.advance() // colon
		return ast.LabelStmt{Name: strings.ToUpper(name.Lexeme)}, nil
	}

	tok := p.peek()
	switch tok.Type {
	case token.PRINT, token.PRINT_HASH:
		return p.printStatement()
	case token.WRITE:
		return p.writeStatement()
	case token.INPUT, token.INPUT_HASH:
		return p.inputStatement()
	case token.LINEINPUT:
		return p.lineInputStatement()
	case token.LET:
		p.advance()
		return p.letStatement()
	case token.DIM:
		return p.dimStatement(false)
	case token.REDIM:
		return p.dimStatement(true)
	case token.CONST:
		return p.constStatement()
	case token.DEFINT:
		return p.defTypeStatement('%')
	case token.DEFLNG:
		return p.defTypeStatement('&')
	case token.DEFSNG:
		return p.defTypeStatement('!')
	case token.DEFDBL:
		return p.defTypeStatement('#')
	case token.DEFSTR:
		return p.defTypeStatement('$')
	case token.TYPEKW:
		return p.typeDeclStatement()
	case token.IF:
		return p.ifStatement()
	case token.SELECT:
		return p.selectCaseStatement()
	case token.FOR:
		return p.forStatement()
	case token.WHILE:
		return p.whileStatement()
	case token.DO:
		return p.doLoopStatement()
	case token.GOTO:
		return p.gotoStatement()
	case token.GOSUB:
		return p.gosubStatement()
	case token.RETURN:
		p.advance()
		return ast.ReturnStmt{}, nil
	case token.ON:
		return p.onStatement()
	case token.EXIT:
		return p.exitStatement()
	case token.SUB:
		return p.subDeclStatement()
	case token.FUNCTION:
		return p.functionDeclStatement()
	case token.DECLARE:
		return p.declareStatement()
	case token.CALL:
		return p.callStatement()
	case token.DATA:
		return p.dataStatement()
	case token.READ:
		return p.readStatement()
	case token.RESTORE:
		return p.restoreStatement()
	case token.ENDKW:
		return p.endStatement()
	case token.STOP:
		p.advance()
		return ast.StopStmt{}, nil
	case token.SWAP:
		return p.swapStatement()
	case token.MID:
		return p.midAssignStatement()
	case token.RESUME:
		return p.resumeStatement()
	case token.OPEN, token.CLOSE, token.GET, token.PUT, token.SEEK, token.LOCK, token.UNLOCK,
		token.SCREEN, token.PSET, token.PRESET, token.LINE, token.CIRCLE, token.COLOR,
		token.LOCATE, token.CLS, token.BEEP, token.SOUND, token.PLAY, token.POKE, token.PEEK:
		return p.halStatement()
	}

	return p.expressionOrLetStatement()
}

// previewLineNumber reports whether the current INT/LONG literal is a
// legacy line number (i.e. stands alone at the start of a statement).
func (p *Parser) previewLineNumber() (int32, bool) {
	tok := p.peek()
	switch n := tok.Literal.(type) {
	case int16:
		return int32(n), true
	case int32:
		return n, true
	}
	return 0, false
}

func (p *Parser) block(terminators ...token.Type) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		p.skipSeparators()
		if p.isFinished() {
			return stmts, newSyntaxError(p.peek().Line, p.peek().Column, "unterminated block")
		}
		for _, t := range terminators {
			if p.check(t) {
				return stmts, nil
			}
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// --- statement parse methods ---------------------------------------------

func (p *Parser) printStatement() (ast.Stmt, error) {
	isHash := p.peek().Type == token.PRINT_HASH
	p.advance()
	var channel ast.Expression
	if isHash {
		ch, err := p.expression()
		if err != nil {
			return nil, err
		}
		channel = ch
		if _, err := p.consume(token.COMMA, "expected ',' after file number"); err != nil {
			return nil, err
		}
	}

	var items []ast.PrintItem
	for !p.check(token.NEWLINE) && !p.check(token.COLON) && !p.isFinished() {
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		sep := token.Type("")
		if p.match(token.COMMA) {
			sep = token.COMMA
		} else if p.match(token.SEMI) {
			sep = token.SEMI
		}
		items = append(items, ast.PrintItem{Expr: expr, Sep: sep})
		if sep == "" {
			break
		}
	}

	trailingSemi := len(items) > 0 && items[len(items)-1].Sep == token.SEMI
	return ast.PrintStmt{Channel: channel, Items: items, TrailingSemi: trailingSemi}, nil
}

func (p *Parser) writeStatement() (ast.Stmt, error) {
	p.advance()
	var items []ast.Expression
	for {
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		items = append(items, expr)
		if !p.match(token.COMMA) {
			break
		}
	}
	return ast.WriteStmt{Items: items}, nil
}

func (p *Parser) inputStatement() (ast.Stmt, error) {
	isHash := p.peek().Type == token.INPUT_HASH
	p.advance()
	var channel ast.Expression
	if isHash {
		ch, err := p.expression()
		if err != nil {
			return nil, err
		}
		channel = ch
		if _, err := p.consume(token.COMMA, "expected ',' after file number"); err != nil {
			return nil, err
		}
	}

	stmt := ast.InputStmt{Channel: channel}
	if p.check(token.STRING) {
		stmt.Prompt = p.peek().Literal.(string)
		stmt.HasPrompt = true
		p.advance()
		if !p.match(token.SEMI) {
			p.match(token.COMMA)
		}
	}
	for {
		target, err := p.unary()
		if err != nil {
			return nil, err
		}
		stmt.Vars = append(stmt.Vars, target)
		if !p.match(token.COMMA) {
			break
		}
	}
	return stmt, nil
}

func (p *Parser) lineInputStatement() (ast.Stmt, error) {
	p.advance()
	stmt := ast.LineInputStmt{}
	if p.check(token.STRING) {
		stmt.Prompt = p.peek().Literal.(string)
		stmt.HasPrompt = true
		p.advance()
		p.match(token.SEMI)
	}
	target, err := p.unary()
	if err != nil {
		return nil, err
	}
	stmt.Var = target
	return stmt, nil
}

func (p *Parser) letStatement() (ast.Stmt, error) {
	return p.expressionOrLetStatement()
}

// expressionOrLetStatement handles an identifier-led statement: it is an
// assignment if '=' follows the target (directly, or after an index/field
// chain), otherwise a bare call expression used for its side effect.
func (p *Parser) expressionOrLetStatement() (ast.Stmt, error) {
	target, err := p.unary()
	if err != nil {
		return nil, err
	}
	if p.match(token.ASSIGN) {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		return ast.LetStmt{Target: target, Value: value}, nil
	}
	return ast.ExpressionStmt{Expression: target}, nil
}

func (p *Parser) parseArrayDims() ([]ast.ArrayDim, error) {
	var dims []ast.ArrayDim
	for {
		first, err := p.expression()
		if err != nil {
			return nil, err
		}
		dim := ast.ArrayDim{Lower: ast.Literal{Value: int16(0)}, Upper: first}
		if p.match(token.TOKW) {
			upper, err := p.expression()
			if err != nil {
				return nil, err
			}
			dim = ast.ArrayDim{Lower: first, Upper: upper}
		}
		dims = append(dims, dim)
		if !p.match(token.COMMA) {
			break
		}
	}
	return dims, nil
}

func (p *Parser) dimItem() (ast.DimItem, error) {
	item := ast.DimItem{}
	if p.match(token.SHARED) {
		item.Shared = true
	}
	name, err := p.consume(token.IDENTIFIER, "expected variable name")
	if err != nil {
		return item, err
	}
	item.Name = p.withSuffix(name)

	if p.match(token.LPAREN) {
		dims, err := p.parseArrayDims()
		if err != nil {
			return item, err
		}
		item.Dims = dims
		if _, err := p.consume(token.RPAREN, "expected ')' after array bounds"); err != nil {
			return item, err
		}
	}
	if p.match(token.ASKW) {
		typeName, err := p.consume(token.IDENTIFIER, "expected type name after AS")
		if err != nil {
			return item, err
		}
		item.TypeName = strings.ToUpper(typeName.Lexeme)
	}
	return item, nil
}

func (p *Parser) dimStatement(isReDim bool) (ast.Stmt, error) {
	p.advance()
	preserve := isReDim && p.match(token.IDENTIFIER) && strings.EqualFold(p.previous().Lexeme, "PRESERVE")
	var items []ast.DimItem
	for {
		item, err := p.dimItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	if isReDim {
		return ast.ReDimStmt{Items: items, Preserve: preserve}, nil
	}
	return ast.DimStmt{Items: items}, nil
}

func (p *Parser) constStatement() (ast.Stmt, error) {
	p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected constant name")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.ASSIGN, "expected '=' after constant name"); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return ast.ConstStmt{Name: p.withSuffix(name), Value: value}, nil
}

func (p *Parser) defTypeStatement(suffix byte) (ast.Stmt, error) {
	p.advance()
	from, err := p.consume(token.IDENTIFIER, "expected a letter range after DEFtype")
	if err != nil {
		return nil, err
	}
	fromCh := strings.ToUpper(from.Lexeme)[0]
	toCh := fromCh
	if p.match(token.MINUS) {
		to, err := p.consume(token.IDENTIFIER, "expected ending letter after '-'")
		if err != nil {
			return nil, err
		}
		toCh = strings.ToUpper(to.Lexeme)[0]
	}
	return ast.DefTypeStmt{Suffix: suffix, From: fromCh, To: toCh}, nil
}

func (p *Parser) typeSpecName() (string, error) {
	tok, err := p.consume(token.IDENTIFIER, "expected type name")
	if err != nil {
		return "", err
	}
	return strings.ToUpper(tok.Lexeme), nil
}

func (p *Parser) typeDeclStatement() (ast.Stmt, error) {
	p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected TYPE name")
	if err != nil {
		return nil, err
	}
	p.skipSeparators()
	var fields []ast.TypeField
	for !p.check(token.ENDKW) && !p.isFinished() {
		fieldName, err := p.consume(token.IDENTIFIER, "expected field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.ASKW, "expected AS after field name"); err != nil {
			return nil, err
		}
		typeName, err := p.typeSpecName()
		if err != nil {
			return nil, err
		}
		field := ast.TypeField{Name: fieldName, TypeName: typeName}
		if p.match(token.STAR) {
			length, err := p.expression()
			if err != nil {
				return nil, err
			}
			field.Length = length
		}
		fields = append(fields, field)
		p.skipSeparators()
	}
	if _, err := p.consume(token.ENDKW, "expected END TYPE"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.TYPEKW, "expected END TYPE"); err != nil {
		return nil, err
	}
	return ast.TypeDeclStmt{Name: name, Fields: fields}, nil
}

// ifStatement disambiguates single-line vs multi-line IF by whether a
// NEWLINE immediately follows THEN.
func (p *Parser) ifStatement() (ast.Stmt, error) {
	p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.THEN, "expected THEN"); err != nil {
		return nil, err
	}

	if p.check(token.NEWLINE) {
		return p.multiLineIf(cond)
	}
	return p.singleLineIf(cond)
}

func (p *Parser) singleLineIf(cond ast.Expression) (ast.Stmt, error) {
	var thenStmts []ast.Stmt
	for !p.check(token.NEWLINE) && !p.check(token.ELSE) && !p.isFinished() {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		thenStmts = append(thenStmts, stmt)
		if !p.match(token.COLON) {
			break
		}
	}
	var elseStmts []ast.Stmt
	if p.match(token.ELSE) {
		for !p.check(token.NEWLINE) && !p.isFinished() {
			stmt, err := p.statement()
			if err != nil {
				return nil, err
			}
			elseStmts = append(elseStmts, stmt)
			if !p.match(token.COLON) {
				break
			}
		}
	}
	return ast.IfStmt{Condition: cond, Then: thenStmts, Else: elseStmts, SingleLine: true}, nil
}

func (p *Parser) multiLineIf(cond ast.Expression) (ast.Stmt, error) {
	thenStmts, err := p.block(token.ELSEIF, token.ELSE, token.ENDKW)
	if err != nil {
		return nil, err
	}
	stmt := ast.IfStmt{Condition: cond, Then: thenStmts}
	for p.check(token.ELSEIF) {
		p.advance()
		elseCond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.THEN, "expected THEN"); err != nil {
			return nil, err
		}
		body, err := p.block(token.ELSEIF, token.ELSE, token.ENDKW)
		if err != nil {
			return nil, err
		}
		stmt.ElseIfs = append(stmt.ElseIfs, ast.ElseIfClause{Condition: elseCond, Body: body})
	}
	if p.match(token.ELSE) {
		elseBody, err := p.block(token.ENDKW)
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	if _, err := p.consume(token.ENDKW, "expected END IF"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.IF, "expected END IF"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) caseArm() (ast.CaseArm, error) {
	if p.match(token.ISKW) {
		op := p.advance()
		val, err := p.expression()
		if err != nil {
			return ast.CaseArm{}, err
		}
		return ast.CaseArm{Kind: ast.CaseArmIs, Operator: op, IsValue: val}, nil
	}
	low, err := p.expression()
	if err != nil {
		return ast.CaseArm{}, err
	}
	if p.match(token.TOKW) {
		hi, err := p.expression()
		if err != nil {
			return ast.CaseArm{}, err
		}
		return ast.CaseArm{Kind: ast.CaseArmRange, Low: low, Hi: hi}, nil
	}
	return ast.CaseArm{Kind: ast.CaseArmValue, Value: low}, nil
}

func (p *Parser) selectCaseStatement() (ast.Stmt, error) {
	p.advance()
	if _, err := p.consume(token.CASE, "expected CASE after SELECT"); err != nil {
		return nil, err
	}
	selector, err := p.expression()
	if err != nil {
		return nil, err
	}
	p.skipSeparators()

	stmt := ast.SelectCaseStmt{Selector: selector}
	for p.check(token.CASE) {
		p.advance()
		if p.match(token.ELSE) {
			body, err := p.block(token.CASE, token.ENDKW)
			if err != nil {
				return nil, err
			}
			stmt.CaseElse = body
			stmt.HasElse = true
			p.skipSeparators()
			continue
		}
		var arms []ast.CaseArm
		for {
			arm, err := p.caseArm()
			if err != nil {
				return nil, err
			}
			arms = append(arms, arm)
			if !p.match(token.COMMA) {
				break
			}
		}
		body, err := p.block(token.CASE, token.ENDKW)
		if err != nil {
			return nil, err
		}
		stmt.Cases = append(stmt.Cases, ast.CaseClause{Arms: arms, Body: body})
		p.skipSeparators()
	}
	if _, err := p.consume(token.ENDKW, "expected END SELECT"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.SELECT, "expected END SELECT"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) forStatement() (ast.Stmt, error) {
	p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected loop variable after FOR")
	if err != nil {
		return nil, err
	}
	varTok := p.withSuffix(name)
	if _, err := p.consume(token.ASSIGN, "expected '=' in FOR"); err != nil {
		return nil, err
	}
	start, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.TOKW, "expected TO in FOR"); err != nil {
		return nil, err
	}
	end, err := p.expression()
	if err != nil {
		return nil, err
	}
	var step ast.Expression
	if p.match(token.STEP) {
		step, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.block(token.NEXT)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.NEXT, "expected NEXT"); err != nil {
		return nil, err
	}
	// an optional (ignored) loop variable name may follow NEXT.
	if p.check(token.IDENTIFIER) {
		p.advance()
		if suffixTypes[p.peek().Type] {
			p.advance()
		}
	}
	return ast.ForStmt{Var: varTok, Start: start, End: end, Step: step, Body: body}, nil
}

func (p *Parser) whileStatement() (ast.Stmt, error) {
	p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block(token.WEND)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.WEND, "expected WEND"); err != nil {
		return nil, err
	}
	return ast.WhileStmt{Condition: cond, Body: body}, nil
}

func (p *Parser) doLoopStatement() (ast.Stmt, error) {
	p.advance()
	stmt := ast.DoLoopStmt{Test: ast.DoTestNone}
	if p.match(token.WHILE) {
		stmt.Test = ast.DoTestTop
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Condition = cond
	} else if p.match(token.UNTIL) {
		stmt.Test = ast.DoTestTop
		stmt.Negate = true
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Condition = cond
	}
	body, err := p.block(token.LOOP)
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	if _, err := p.consume(token.LOOP, "expected LOOP"); err != nil {
		return nil, err
	}
	if stmt.Test == ast.DoTestNone {
		if p.match(token.WHILE) {
			stmt.Test = ast.DoTestBottom
			cond, err := p.expression()
			if err != nil {
				return nil, err
			}
			stmt.Condition = cond
		} else if p.match(token.UNTIL) {
			stmt.Test = ast.DoTestBottom
			stmt.Negate = true
			cond, err := p.expression()
			if err != nil {
				return nil, err
			}
			stmt.Condition = cond
		}
	}
	return stmt, nil
}

func (p *Parser) targetLabel() (string, error) {
	if p.check(token.INT) || p.check(token.LONG) {
		if n, ok := p.previewLineNumber(); ok {
			p.advance()
			return strconv.FormatInt(int64(n), 10), nil
		}
	}
	tok, err := p.consume(token.IDENTIFIER, "expected label or line number")
	if err != nil {
		return "", err
	}
	return strings.ToUpper(tok.Lexeme), nil
}

func (p *Parser) gotoStatement() (ast.Stmt, error) {
	p.advance()
	label, err := p.targetLabel()
	if err != nil {
		return nil, err
	}
	return ast.GotoStmt{Target: label}, nil
}

func (p *Parser) gosubStatement() (ast.Stmt, error) {
	p.advance()
	label, err := p.targetLabel()
	if err != nil {
		return nil, err
	}
	return ast.GosubStmt{Target: label}, nil
}

// onStatement parses ON expr GOTO/GOSUB l1, l2, ... and ON ERROR GOTO ....
func (p *Parser) onStatement() (ast.Stmt, error) {
	p.advance()
	if p.match(token.ERRORKW) {
		return p.onErrorTail()
	}
	selector, err := p.expression()
	if err != nil {
		return nil, err
	}
	isGosub := false
	if p.match(token.GOSUB) {
		isGosub = true
	} else if _, err := p.consume(token.GOTO, "expected GOTO or GOSUB after ON expr"); err != nil {
		return nil, err
	}
	var targets []string
	for {
		label, err := p.targetLabel()
		if err != nil {
			return nil, err
		}
		targets = append(targets, label)
		if !p.match(token.COMMA) {
			break
		}
	}
	return ast.OnGotoStmt{Selector: selector, Targets: targets, IsGosub: isGosub}, nil
}

func (p *Parser) onErrorTail() (ast.Stmt, error) {
	if _, err := p.consume(token.GOTO, "expected GOTO after ON ERROR"); err != nil {
		return nil, err
	}
	if p.check(token.INT) {
		if n, ok := p.previewLineNumber(); ok && n == 0 {
			p.advance()
			return ast.OnErrorStmt{IsGotoZero: true}, nil
		}
	}
	label, err := p.targetLabel()
	if err != nil {
		return nil, err
	}
	return ast.OnErrorStmt{Label: label, HasLabel: true}, nil
}

func (p *Parser) resumeStatement() (ast.Stmt, error) {
	p.advance()
	if p.check(token.NEWLINE) || p.check(token.COLON) || p.isFinished() {
		return ast.ResumeStmt{Mode: ast.ResumeSame}, nil
	}
	if p.check(token.NEXT) {
		p.advance()
		return ast.ResumeStmt{Mode: ast.ResumeNext}, nil
	}
	label, err := p.targetLabel()
	if err != nil {
		return nil, err
	}
	return ast.ResumeStmt{Mode: ast.ResumeLabel, Label: label}, nil
}

func (p *Parser) exitStatement() (ast.Stmt, error) {
	p.advance()
	switch p.peek().Type {
	case token.FOR:
		p.advance()
		return ast.ExitStmt{Kind: ast.ExitFor}, nil
	case token.DO:
		p.advance()
		return ast.ExitStmt{Kind: ast.ExitDo}, nil
	case token.SUB:
		p.advance()
		return ast.ExitStmt{Kind: ast.ExitSub}, nil
	case token.FUNCTION:
		p.advance()
		return ast.ExitStmt{Kind: ast.ExitFunction}, nil
	}
	cur := p.peek()
	return nil, newSyntaxError(cur.Line, cur.Column, "expected FOR, DO, SUB, or FUNCTION after EXIT")
}

func (p *Parser) paramList() ([]ast.Param, error) {
	var params []ast.Param
	if !p.match(token.LPAREN) {
		return params, nil
	}
	if p.match(token.RPAREN) {
		return params, nil
	}
	for {
		param := ast.Param{}
		if p.match(token.BYVAL) {
			param.ByVal = true
		} else {
			p.match(token.BYREF)
		}
		name, err := p.consume(token.IDENTIFIER, "expected parameter name")
		if err != nil {
			return nil, err
		}
		param.Name = p.withSuffix(name)
		if p.match(token.ASKW) {
			typeName, err := p.typeSpecName()
			if err != nil {
				return nil, err
			}
			param.TypeName = typeName
		}
		params = append(params, param)
		if !p.match(token.COMMA) {
			break
		}
	}
	if _, err := p.consume(token.RPAREN, "expected ')' after parameter list"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) subDeclStatement() (ast.Stmt, error) {
	p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected SUB name")
	if err != nil {
		return nil, err
	}
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	isStatic := false
	if p.check(token.METACOMMAND) && strings.EqualFold(p.peek().Lexeme, "$STATIC") {
		isStatic = true
		p.advance()
	}
	body, err := p.block(token.ENDKW)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.ENDKW, "expected END SUB"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.SUB, "expected END SUB"); err != nil {
		return nil, err
	}
	return ast.SubDeclStmt{Name: name, Params: params, Body: body, Static: isStatic}, nil
}

func (p *Parser) functionDeclStatement() (ast.Stmt, error) {
	p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected FUNCTION name")
	if err != nil {
		return nil, err
	}
	name = p.withSuffix(name)
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	returnType := ""
	if p.match(token.ASKW) {
		returnType, err = p.typeSpecName()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.block(token.ENDKW)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.ENDKW, "expected END FUNCTION"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.FUNCTION, "expected END FUNCTION"); err != nil {
		return nil, err
	}
	return ast.FunctionDeclStmt{Name: name, Params: params, ReturnType: returnType, Body: body}, nil
}

func (p *Parser) declareStatement() (ast.Stmt, error) {
	p.advance()
	isSub := p.check(token.SUB)
	if !isSub && !p.check(token.FUNCTION) {
		cur := p.peek()
		return nil, newSyntaxError(cur.Line, cur.Column, "expected SUB or FUNCTION after DECLARE")
	}
	p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected procedure name")
	if err != nil {
		return nil, err
	}
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	return ast.DeclareStmt{IsSub: isSub, Name: name, Params: params}, nil
}

func (p *Parser) callArgs() ([]ast.Expression, error) {
	var args []ast.Expression
	if !p.match(token.LPAREN) {
		return args, nil
	}
	if p.match(token.RPAREN) {
		return args, nil
	}
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(token.COMMA) {
			break
		}
	}
	if _, err := p.consume(token.RPAREN, "expected ')' after call arguments"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) callStatement() (ast.Stmt, error) {
	p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected procedure name after CALL")
	if err != nil {
		return nil, err
	}
	args, err := p.callArgs()
	if err != nil {
		return nil, err
	}
	return ast.CallStmt{Name: name, Args: args}, nil
}

// dataStatement splits the scanner's already-extracted raw DATA line on
// commas, honoring quoted strings, and numeric-parses each field.
func (p *Parser) dataStatement() (ast.Stmt, error) {
	p.advance()
	raw, _ := p.consume(token.STRING, "expected DATA payload")
	return ast.DataStmt{Values: parseDataLine(raw.Literal.(string))}, nil
}

func parseDataLine(raw string) []any {
	var values []any
	var field strings.Builder
	inQuotes := false
	flush := func() {
		text := strings.TrimSpace(field.String())
		field.Reset()
		if text == "" && len(values) > 0 {
			return
		}
		values = append(values, parseDataField(text))
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			field.WriteByte(c)
		case c == ',' && !inQuotes:
			flush()
		default:
			field.WriteByte(c)
		}
	}
	flush()
	return values
}

func parseDataField(text string) any {
	if strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) >= 2 {
		return strings.ReplaceAll(text[1:len(text)-1], `""`, `"`)
	}
	if n, err := strconv.ParseInt(text, 10, 32); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

func (p *Parser) readStatement() (ast.Stmt, error) {
	p.advance()
	var targets []ast.Expression
	for {
		target, err := p.unary()
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
		if !p.match(token.COMMA) {
			break
		}
	}
	return ast.ReadStmt{Targets: targets}, nil
}

func (p *Parser) restoreStatement() (ast.Stmt, error) {
	p.advance()
	if p.check(token.NEWLINE) || p.check(token.COLON) || p.isFinished() {
		return ast.RestoreStmt{}, nil
	}
	label, err := p.targetLabel()
	if err != nil {
		return nil, err
	}
	return ast.RestoreStmt{Label: label, HasLabel: true}, nil
}

func (p *Parser) endStatement() (ast.Stmt, error) {
	p.advance()
	// a bare END statement; "END IF"/"END SELECT"/"END SUB"/"END FUNCTION"/
	// "END TYPE" are consumed directly by their owning block parser and
	// never reach here.
	return ast.EndStmt{}, nil
}

func (p *Parser) swapStatement() (ast.Stmt, error) {
	p.advance()
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COMMA, "expected ',' in SWAP"); err != nil {
		return nil, err
	}
	right, err := p.unary()
	if err != nil {
		return nil, err
	}
	return ast.SwapStmt{Left: left, Right: right}, nil
}

func (p *Parser) midAssignStatement() (ast.Stmt, error) {
	p.advance()
	if _, err := p.consume(token.LPAREN, "expected '(' after MID$"); err != nil {
		return nil, err
	}
	target, err := p.unary()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COMMA, "expected ',' in MID$ assignment"); err != nil {
		return nil, err
	}
	start, err := p.expression()
	if err != nil {
		return nil, err
	}
	var length ast.Expression
	if p.match(token.COMMA) {
		length, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.RPAREN, "expected ')' after MID$ arguments"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.ASSIGN, "expected '=' after MID$(...)"); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return ast.MidAssignStmt{Target: target, Start: start, Length: length, Value: value}, nil
}

// halStatement parses any hardware-delegated statement generically: the
// keyword plus a comma-separated argument list, stopping at the first
// argument that can't be parsed as an expression (so that dialect-specific
// positional keywords like "STEP" inside CIRCLE are simply left unparsed
// rather than rejected).
func (p *Parser) halStatement() (ast.Stmt, error) {
	kw := p.advance()
	var args []ast.Expression
	for !p.check(token.NEWLINE) && !p.check(token.COLON) && !p.isFinished() {
		expr, err := p.expression()
		if err != nil {
			for !p.check(token.NEWLINE) && !p.check(token.COLON) && !p.isFinished() {
				p.advance()
			}
			break
		}
		args = append(args, expr)
		if !p.match(token.COMMA) {
			break
		}
	}
	return ast.HALStmt{Keyword: kw.Type, Args: args}, nil
}

// --- expressions -----------------------------------------------------------

func (p *Parser) expression() (ast.Expression, error) { return p.orExpr() }

func (p *Parser) orExpr() (ast.Expression, error) {
	return p.leftAssoc(p.xorExpr, token.OR)
}

func (p *Parser) xorExpr() (ast.Expression, error) {
	return p.leftAssoc(p.andExpr, token.XOR)
}

func (p *Parser) andExpr() (ast.Expression, error) {
	return p.leftAssoc(p.eqvExpr, token.AND)
}

func (p *Parser) eqvExpr() (ast.Expression, error) {
	return p.leftAssoc(p.impExpr, token.EQV)
}

func (p *Parser) impExpr() (ast.Expression, error) {
	return p.leftAssoc(p.equality, token.IMP)
}

func (p *Parser) equality() (ast.Expression, error) {
	return p.leftAssoc(p.comparison, equalityTypes...)
}

func (p *Parser) comparison() (ast.Expression, error) {
	return p.leftAssoc(p.additive, comparisonTypes...)
}

func (p *Parser) additive() (ast.Expression, error) {
	return p.leftAssoc(p.modulo, additiveTypes...)
}

func (p *Parser) modulo() (ast.Expression, error) {
	return p.leftAssoc(p.intDivide, token.MODKW)
}

func (p *Parser) intDivide() (ast.Expression, error) {
	return p.leftAssoc(p.multiplicative, token.BACKSLASH)
}

func (p *Parser) multiplicative() (ast.Expression, error) {
	return p.leftAssoc(p.unary, multiplyTypes...)
}

// leftAssoc folds a left-associative binary production: next() parses one
// operand, then a run of (operator next()) is folded into nested Binary
// nodes.
func (p *Parser) leftAssoc(next func() (ast.Expression, error), types ...token.Type) (ast.Expression, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.match(types...) {
		op := p.previous()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

// unary binds tighter than any binary operator and looser than exponent
// (so that -2^2 parses as -(2^2), matching the dialect).
func (p *Parser) unary() (ast.Expression, error) {
	if p.match(token.NOT, token.MINUS, token.PLUS) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Operator: op, Right: right}, nil
	}
	return p.exponent()
}

// exponent is right-associative: 2^3^2 = 2^(3^2) = 512.
func (p *Parser) exponent() (ast.Expression, error) {
	left, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.match(token.CARET) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Binary{Left: left, Operator: op, Right: right}, nil
	}
	return left, nil
}

// postfix handles record field access chained after a primary expression.
func (p *Parser) postfix() (ast.Expression, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.match(token.DOT) {
		field, err := p.consume(token.IDENTIFIER, "expected field name after '.'")
		if err != nil {
			return nil, err
		}
		expr = ast.FieldAccess{Target: expr, Field: field}
	}
	return expr, nil
}

func (p *Parser) primary() (ast.Expression, error) {
	switch {
	case p.match(token.TRUEKW):
		return ast.Literal{Value: true}, nil
	case p.match(token.FALSEKW):
		return ast.Literal{Value: false}, nil
	case p.match(token.INT, token.LONG, token.WIDE, token.SINGLE, token.DOUBLE, token.STRING):
		return ast.Literal{Value: p.previous().Literal}, nil
	case p.match(token.LPAREN):
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		return ast.Grouping{Expression: expr}, nil
	case p.match(token.IDENTIFIER):
		name := p.withSuffix(p.previous())
		if p.match(token.LPAREN) {
			var args []ast.Expression
			if !p.check(token.RPAREN) {
				for {
					arg, err := p.expression()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.match(token.COMMA) {
						break
					}
				}
			}
			if _, err := p.consume(token.RPAREN, "expected ')' after arguments"); err != nil {
				return nil, err
			}
			return ast.IndexOrCall{Name: name, Args: args}, nil
		}
		return ast.Variable{Name: name}, nil
	}
	cur := p.peek()
	return nil, newSyntaxError(cur.Line, cur.Column, "unexpected token %q", cur.Lexeme)
}

// withSuffix folds a trailing type-suffix token (already emitted separately
// by the lexer) into name's Lexeme, producing the full-name form used as
// the variable/array/record store key.
func (p *Parser) withSuffix(name token.Token) token.Token {
	if suffixTypes[p.peek().Type] {
		suffix := p.advance()
		name.Lexeme = name.Lexeme + suffix.Lexeme
	}
	return name
}
