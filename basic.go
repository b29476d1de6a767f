// Package basic composes the lexer, parser, semantic analyzer, and compiler
// into the single "source buffer in, bytecode image or positioned errors
// out" entry point spec §6 describes. It is the in-process equivalent of
// the teacher's cmd_run_compiled.go pipeline, with the CLI/subcommand
// machinery (google/subcommands, os.Args, stdout/stderr framing) left out:
// that outer driver is out of scope, but the pipeline it wires together is
// not.
package basic

import (
	"basic/bytecode"
	"basic/compiler"
	"basic/lexer"
	"basic/parser"
	"basic/semantic"
)

// Compile lexes, parses, type-checks, and compiles source into a bytecode
// image ready for vm.New. Lexer and parser errors are returned as soon as
// either stage reports any; semantic errors stop at the first one found
// (spec §7); only once all three stages are clean does the two-pass
// compiler run.
func Compile(source string) (*bytecode.Image, []error) {
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		return nil, []error{err}
	}

	p := parser.New(tokens)
	program, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		return nil, parseErrs
	}

	if semErrs := semantic.Analyze(program); len(semErrs) > 0 {
		return nil, semErrs
	}

	return compiler.Compile(program)
}
