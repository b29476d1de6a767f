// Package goerr defines the closed error taxonomy shared by every compiler
// and VM stage: a legacy-compatible numeric code, a short textual form, and
// a source line/column.
package goerr

import "fmt"

// Kind is one member of the closed set of legacy error codes.
type Kind int

const (
	NextWithoutFor      Kind = 1
	SyntaxErrorKind     Kind = 2
	ReturnWithoutGosub  Kind = 3
	OutOfData           Kind = 4
	IllegalFunctionCall Kind = 5
	Overflow            Kind = 6
	OutOfMemory         Kind = 7
	LabelNotDefined     Kind = 8
	SubscriptOutOfRange Kind = 9
	DuplicateDefinition Kind = 10
	DivisionByZero      Kind = 11
	TypeMismatch        Kind = 13
	OutOfStringSpace    Kind = 14
	FunctionNotDefined  Kind = 18
	ResumeWithoutError  Kind = 20
	BadFileNumber       Kind = 52
	FileNotFound        Kind = 53
	InputPastEndOfFile  Kind = 62
	UndefinedLineNumber Kind = 90
)

var names = map[Kind]string{
	NextWithoutFor:      "NEXT without FOR",
	SyntaxErrorKind:     "Syntax error",
	ReturnWithoutGosub:  "RETURN without GOSUB",
	OutOfData:           "Out of DATA",
	IllegalFunctionCall: "Illegal function call",
	Overflow:            "Overflow",
	OutOfMemory:         "Out of memory",
	LabelNotDefined:     "Label not defined",
	SubscriptOutOfRange: "Subscript out of range",
	DuplicateDefinition: "Duplicate definition",
	DivisionByZero:      "Division by zero",
	TypeMismatch:        "Type mismatch",
	OutOfStringSpace:    "Out of string space",
	FunctionNotDefined:  "Function not defined",
	ResumeWithoutError:  "RESUME without error",
	BadFileNumber:       "Bad file number",
	FileNotFound:        "File not found",
	InputPastEndOfFile:  "Input past end of file",
	UndefinedLineNumber: "Undefined line number",
}

// String returns the legacy short textual form for the error kind.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "Unknown error"
}

// Error is a positioned error carrying a legacy numeric code.
type Error struct {
	Kind    Kind
	Message string
	Line    int32
	Column  int
}

// New builds an Error using the kind's canonical message text.
func New(kind Kind, line int32, column int) Error {
	return Error{Kind: kind, Message: kind.String(), Line: line, Column: column}
}

// Newf builds an Error with a custom message, keeping the kind's numeric code.
func Newf(kind Kind, line int32, column int, format string, args ...any) Error {
	return Error{Kind: kind, Message: fmt.Sprintf(format, args...), Line: line, Column: column}
}

func (e Error) Error() string {
	return fmt.Sprintf("Error %d: %s at line %d, column %d", int(e.Kind), e.Message, e.Line, e.Column)
}

// Code returns the legacy numeric code.
func (e Error) Code() int { return int(e.Kind) }
