package vm

import (
	"strings"

	"basic/goerr"
	"basic/value"
)

// bound is one dimension's inclusive [lower, upper] range, as declared by
// DIM/REDIM.
type bound struct{ lower, upper int32 }

// array is one declared array's shape and flat, row-major backing store.
type array struct {
	dims  []bound
	kind  value.Kind
	elems []value.Value
}

// zeroFor returns the default-typed zero value for an undeclared name,
// inferred from its trailing type-suffix character (legacy implicit
// typing); a name with no suffix defaults to single-precision, the
// dialect's default numeric type.
func zeroFor(name string) value.Value {
	if name == "" {
		return value.Single(0)
	}
	switch name[len(name)-1] {
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

// lookupVar implements the load fallback chain: innermost local scope,
// then global scope, then a default-typed zero for a name nothing has
// ever assigned.
func (vm *VM) lookupVar(name string) value.Value {
	if len(vm.locals) > 0 {
		if v, ok := vm.locals[len(vm.locals)-1][name]; ok {
			return v
		}
	}
	if v, ok := vm.global[name]; ok {
		return v
	}
	return zeroFor(name)
}

// storeVar assigns into whichever scope already declares name, falling
// back to the current scope (local if one is active, else global) if the
// name is new.
func (vm *VM) storeVar(name string, v value.Value) {
	if len(vm.locals) > 0 {
		top := vm.locals[len(vm.locals)-1]
		if _, ok := top[name]; ok {
			top[name] = v
			return
		}
	}
	if _, ok := vm.global[name]; ok {
		vm.global[name] = v
		return
	}
	if len(vm.locals) > 0 {
		vm.locals[len(vm.locals)-1][name] = v
		return
	}
	vm.global[name] = v
}

// dimArray declares name's shape from bound pairs and allocates its flat
// backing store, filled with the element kind's zero value.
func (vm *VM) dimArray(name string, pairs []bound, kind value.Kind) error {
	total := 1
	for _, p := range pairs {
		n := int(p.upper) - int(p.lower) + 1
		if n <= 0 {
			return newRuntimeError(goerr.SubscriptOutOfRange, 0, "array %s has an empty dimension", name)
		}
		total *= n
	}
	elems := make([]value.Value, total)
	zero := elementZero(kind)
	for i := range elems {
		elems[i] = zero
	}
	vm.arrays[name] = &array{dims: pairs, kind: kind, elems: elems}
	return nil
}

func elementZero(kind value.Kind) value.Value {
	switch kind {
	case value.KindInteger:
		return value.Integer(0)
	case value.KindLong:
		return value.Long(0)
	case value.KindWide:
		return value.Wide(0)
	case value.KindDouble:
		return value.Double(0)
	case value.KindString:
		return value.Str("")
	default:
		return value.Single(0)
	}
}

// flatIndex computes the row-major flat offset for indices into arr's
// shape, per the stride formula stride_i = product of (upper_j-lower_j+1)
// for every dimension j after i.
func (arr *array) flatIndex(name string, indices []value.Value) (int, error) {
	if len(indices) != len(arr.dims) {
		return 0, newRuntimeError(goerr.SubscriptOutOfRange, 0,
			"array %s expects %d subscript(s), got %d", name, len(arr.dims), len(indices))
	}
	flat := 0
	for i, d := range arr.dims {
		k := indices[i].AsLong()
		if k < d.lower || k > d.upper {
			return 0, newRuntimeError(goerr.SubscriptOutOfRange, 0,
				"subscript %d out of range for array %s", k, name)
		}
		stride := 1
		for j := i + 1; j < len(arr.dims); j++ {
			stride *= int(arr.dims[j].upper) - int(arr.dims[j].lower) + 1
		}
		flat += int(k-d.lower) * stride
	}
	return flat, nil
}

func (vm *VM) loadArrayElement(name string, indices []value.Value) (value.Value, error) {
	arr, ok := vm.arrays[name]
	if !ok {
		return value.Value{}, newRuntimeError(goerr.SubscriptOutOfRange, 0, "array %s is not declared", name)
	}
	flat, err := arr.flatIndex(name, indices)
	if err != nil {
		return value.Value{}, err
	}
	return arr.elems[flat], nil
}

func (vm *VM) storeArrayElement(name string, indices []value.Value, v value.Value) error {
	arr, ok := vm.arrays[name]
	if !ok {
		return newRuntimeError(goerr.SubscriptOutOfRange, 0, "array %s is not declared", name)
	}
	flat, err := arr.flatIndex(name, indices)
	if err != nil {
		return err
	}
	arr.elems[flat] = v
	return nil
}

// loadField and storeField implement the record-field store, keyed by the
// record variable's full name and then the field name; a record that has
// never been assigned reads back a default-typed zero, matching an
// undeclared scalar's fallback.
func (vm *VM) loadField(recName, field string) value.Value {
	rec, ok := vm.records[recName]
	if !ok {
		return zeroFor(field)
	}
	if v, ok := rec[field]; ok {
		return v
	}
	return zeroFor(field)
}

func (vm *VM) storeField(recName, field string, v value.Value) {
	rec, ok := vm.records[recName]
	if !ok {
		rec = make(map[string]value.Value)
		vm.records[recName] = rec
	}
	rec[field] = v
}

// storeMid splices replacement into target at a 1-based start for up to
// length characters (or the whole of replacement if length < 0), without
// growing target past its original length, matching MID$'s in-place
// assignment semantics.
func (vm *VM) storeMid(name string, start, length int32, replacement string) {
	cur := vm.lookupVar(name)
	s := cur.Str
	if !cur.IsString() {
		s = ""
	}
	if start < 1 {
		start = 1
	}
	i := int(start) - 1
	if i >= len(s) {
		return
	}
	n := len(replacement)
	if length >= 0 && int(length) < n {
		n = int(length)
	}
	if i+n > len(s) {
		n = len(s) - i
	}
	var b strings.Builder
	b.WriteString(s[:i])
	b.WriteString(replacement[:n])
	b.WriteString(s[i+n:])
	vm.storeVar(name, value.Str(b.String()))
}
