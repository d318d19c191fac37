// Package types holds the small value types shared across the packet,
// tracer, and generator packages: privilege levels, the synchronization
// "Context" payload contents, and trap information.
package types

import "fmt"

// Privilege is the RISC-V privilege level carried by Context and Trap
// sync payloads. The wire field is 2 bits wide; 0b10 is reserved.
type Privilege int

const (
	PrivilegeUser Privilege = iota
	PrivilegeSupervisor
	privilegeReserved
	PrivilegeMachine
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeUser:
		return "U"
	case PrivilegeSupervisor:
		return "S"
	case PrivilegeMachine:
		return "M"
	default:
		return fmt.Sprintf("reserved(%d)", int(p))
	}
}

// Valid reports whether p is a defined (non-reserved) privilege value.
func (p Privilege) Valid() bool { return p != privilegeReserved }

// Context carries the privilege level and, when configured with nonzero
// widths, a time stamp and an opaque context identifier (e.g. an ASID or
// hart/VM context tag). Time and Context are nil when their configured
// field width is 0.
type Context struct {
	Privilege Privilege
	Time      *uint64
	ContextID *uint64
}

// TrapInfo carries the exception cause and, for synchronous exceptions
// (not interrupts), the trap value (e.g. the faulting address).
type TrapInfo struct {
	Ecause    uint64
	Interrupt bool
	Tval      *uint64 // present iff !Interrupt
}
