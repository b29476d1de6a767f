package vm

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"basic/goerr"
	"basic/value"
)

// callBuiltin dispatches the single OpCallBuiltin opcode to one of the
// dialect's math/string/conversion functions, named by the interned Names
// entry rather than carrying one opcode per function.
func (vm *VM) callBuiltin(name string, args []value.Value) (value.Value, error) {
	switch name {
	case "ABS":
		a := args[0]
		if a.AsDouble() < 0 {
			return value.Neg(a)
		}
		return a, nil
	case "SGN":
		d := args[0].AsDouble()
		switch {
		case d > 0:
			return value.Integer(1), nil
		case d < 0:
			return value.Integer(-1), nil
		default:
			return value.Integer(0), nil
		}
	case "INT":
		return value.Long(int32(math.Floor(args[0].AsDouble()))), nil
	case "FIX":
		return value.Long(int32(math.Trunc(args[0].AsDouble()))), nil
	case "SQR":
		d := args[0].AsDouble()
		if d < 0 {
			return value.Value{}, newRuntimeError(goerr.IllegalFunctionCall, 0, "SQR of a negative number")
		}
		return value.Double(math.Sqrt(d)), nil
	case "SIN":
		return value.Double(math.Sin(args[0].AsDouble())), nil
	case "COS":
		return value.Double(math.Cos(args[0].AsDouble())), nil
	case "TAN":
		return value.Double(math.Tan(args[0].AsDouble())), nil
	case "ATN":
		return value.Double(math.Atan(args[0].AsDouble())), nil
	case "EXP":
		return value.Double(math.Exp(args[0].AsDouble())), nil
	case "LOG":
		d := args[0].AsDouble()
		if d <= 0 {
			return value.Value{}, newRuntimeError(goerr.IllegalFunctionCall, 0, "LOG of a non-positive number")
		}
		return value.Double(math.Log(d)), nil
	case "RND":
		return value.Single(float32(rand.Float64())), nil
	case "CINT":
		return value.Integer(int16(args[0].AsLong())), nil
	case "CLNG":
		return value.Long(args[0].AsLong()), nil
	case "CSNG":
		return value.Single(float32(args[0].AsDouble())), nil
	case "CDBL":
		return value.Double(args[0].AsDouble()), nil
	case "CSTR":
		return value.Str(args[0].Display()), nil
	case "LEN":
		return value.Integer(int16(len(args[0].Str))), nil
	case "LEFT$":
		s := args[0].Str
		n := int(args[1].AsLong())
		if n < 0 {
			n = 0
		}
		if n > len(s) {
			n = len(s)
		}
		return value.Str(s[:n]), nil
	case "RIGHT$":
		s := args[0].Str
		n := int(args[1].AsLong())
		if n < 0 {
			n = 0
		}
		if n > len(s) {
			n = len(s)
		}
		return value.Str(s[len(s)-n:]), nil
	case "MID$":
		s := args[0].Str
		start := int(args[1].AsLong())
		if start < 1 {
			start = 1
		}
		i := start - 1
		if i > len(s) {
			i = len(s)
		}
		n := len(s) - i
		if len(args) > 2 {
			if l := int(args[2].AsLong()); l < n {
				n = l
			}
		}
		if n < 0 {
			n = 0
		}
		return value.Str(s[i : i+n]), nil
	case "CHR$":
		return value.Str(string(rune(args[0].AsLong()))), nil
	case "ASC":
		if args[0].Str == "" {
			return value.Value{}, newRuntimeError(goerr.IllegalFunctionCall, 0, "ASC of an empty string")
		}
		return value.Integer(int16(args[0].Str[0])), nil
	case "STR$":
		return value.Str(args[0].Display()), nil
	case "VAL":
		return value.Double(parseLeadingFloat(args[0].Str)), nil
	case "UCASE$":
		return value.Str(strings.ToUpper(args[0].Str)), nil
	case "LCASE$":
		return value.Str(strings.ToLower(args[0].Str)), nil
	case "SPACE$":
		return value.Str(strings.Repeat(" ", int(args[0].AsLong()))), nil
	case "STRING$":
		n := int(args[0].AsLong())
		var ch string
		if args[1].IsString() {
			if args[1].Str == "" {
				ch = " "
			} else {
				ch = args[1].Str[:1]
			}
		} else {
			ch = string(rune(args[1].AsLong()))
		}
		return value.Str(strings.Repeat(ch, n)), nil
	case "INSTR":
		var start int
		var hay, needle string
		if len(args) == 3 {
			start = int(args[0].AsLong())
			hay, needle = args[1].Str, args[2].Str
		} else {
			start = 1
			hay, needle = args[0].Str, args[1].Str
		}
		if start < 1 {
			start = 1
		}
		if start > len(hay)+1 {
			return value.Integer(0), nil
		}
		idx := strings.Index(hay[start-1:], needle)
		if idx < 0 {
			return value.Integer(0), nil
		}
		return value.Long(int32(start + idx)), nil
	case "TIMER":
		now := time.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return value.Double(now.Sub(midnight).Seconds()), nil
	case "TIME$":
		return value.Str(time.Now().Format("15:04:05")), nil
	case "DATE$":
		return value.Str(time.Now().Format("01-02-2006")), nil
	case "LBOUND":
		return vm.boundsOf(args, func(b bound) int32 { return b.lower })
	case "UBOUND":
		return vm.boundsOf(args, func(b bound) int32 { return b.upper })
	case "EOF", "LOF", "LOC":
		// File I/O is delegated to a hardware-abstraction collaborator;
		// with no real file channel behind it, report "nothing more to
		// read" / "no length" rather than fail the call outright.
		if name == "EOF" {
			return value.Bool(true), nil
		}
		return value.Long(0), nil
	case "FREEFILE":
		return value.Integer(1), nil
	case "INKEY$":
		return value.Str(""), nil
	case "ERR":
		return value.Integer(int16(vm.lastErr.Code())), nil
	case "ERL":
		return value.Long(vm.lastErr.Line), nil
	}
	return value.Value{}, newRuntimeError(goerr.FunctionNotDefined, 0, "built-in function %q is not defined", name)
}

// boundsOf resolves the array name the compiler pushed as a string
// constant in place of evaluating it as an expression (see
// Compiler.compileBoundsBuiltin) and returns the requested bound of the
// (optionally selected) dimension.
func (vm *VM) boundsOf(args []value.Value, pick func(bound) int32) (value.Value, error) {
	name := strings.ToUpper(args[0].Str)
	arr, ok := vm.arrays[name]
	if !ok {
		return value.Value{}, newRuntimeError(goerr.SubscriptOutOfRange, 0, "array %s is not declared", name)
	}
	dim := 1
	if len(args) > 1 {
		dim = int(args[1].AsLong())
	}
	if dim < 1 || dim > len(arr.dims) {
		return value.Value{}, newRuntimeError(goerr.SubscriptOutOfRange, 0, "dimension %d out of range for array %s", dim, name)
	}
	return value.Long(pick(arr.dims[dim-1])), nil
}

// parseLeadingFloat parses VAL's leading numeric prefix, ignoring leading
// whitespace and any trailing non-numeric text, returning 0 if s has no
// numeric prefix at all.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t")
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == '+' || c == '-') && (end == 0 || s[end-1] == 'e' || s[end-1] == 'E'):
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			goto done
		}
		end++
	}
done:
	if !seenDigit {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}
