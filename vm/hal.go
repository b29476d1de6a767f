package vm

import (
	"fmt"

	"basic/value"
)

// halDispatch handles every statement delegated wholesale to a hardware-
// abstraction collaborator: file I/O (OPEN/CLOSE/GET/PUT/SEEK/LOCK/UNLOCK),
// graphics (SCREEN/PSET/PRESET/LINE/CIRCLE/COLOR/LOCATE/CLS), and sound/misc
// (BEEP/SOUND/PLAY/POKE/PEEK). With no real device behind this VM, each
// keyword is either a no-op or, in Trace mode, a textual record of the call
// on the diagnostic channel; a host embedding this VM for a real terminal
// or file system replaces this wholesale.
func (vm *VM) halDispatch(keyword string, args []value.Value) error {
	switch keyword {
	case "SCREEN":
		if len(args) > 0 {
			vm.screenMode = byte(args[0].AsLong())
		}
	case "CLS":
		vm.column = 0
	}
	if vm.Trace {
		fmt.Fprintf(vm.errOut, "HAL %s %v\n", keyword, displayAll(args))
	}
	return nil
}

func displayAll(args []value.Value) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.Display()
	}
	return out
}
