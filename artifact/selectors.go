package artifact

import (
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	opPush1  = 0x60
	opPush4  = 0x63
	opPush32 = 0x7f
)

// Selector is a 4 byte function selector.
type Selector [4]byte

// DispatchSelectors returns every value pushed by a PUSH1..PUSH4 instruction in code. Solidity and
// Vyper dispatchers compare the calldata selector against such immediates, so the result is a
// superset of the selectors a contract answers to. Push data is skipped, never decoded as opcodes.
func DispatchSelectors(code []byte) map[Selector]struct{} {
	found := make(map[Selector]struct{})

	for pc := 0; pc < len(code); pc++ {
		op := code[pc]
		if op < opPush1 || op > opPush32 {
			continue
		}

		size := int(op-opPush1) + 1
		end := pc + 1 + size
		if end > len(code) {
			break
		}

		if op <= opPush4 {
			var sel Selector
			copy(sel[4-size:], code[pc+1:end])
			found[sel] = struct{}{}
		}

		pc = end - 1
	}

	return found
}

// MissingSelectors returns the sorted signatures of the methods in iface that code does not
// dispatch.
func MissingSelectors(iface abi.ABI, code []byte) []string {
	dispatched := DispatchSelectors(code)

	var missing []string
	for _, m := range iface.Methods {
		var sel Selector
		copy(sel[:], m.ID)

		if _, ok := dispatched[sel]; !ok {
			missing = append(missing, m.Sig)
		}
	}

	slices.Sort(missing)

	return missing
}
