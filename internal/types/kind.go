// Package types describes the runtime value universe: a closed set of
// value kinds, the promotion rule between them, and Hint, a cheap
// structural type classification that no compiler pass assigns or reads.
//
// Unlike compile/internal/types (an open type graph for an arbitrary source
// language with structs, interfaces, generics), pywasmc's value universe is
// fixed and small, so Kind is a closed enum rather than a *Type graph.
// The Fatalf indirection below is carried from that package's import-cycle
// workaround even though pywasmc has no cycle to break, because it keeps
// internal/types free of a dependency on internal/diag's logging choice.
package types

import "fmt"

// Kind enumerates every runtime value kind, in construction order from
// immediate scalars through composite and class-machinery values.
type Kind uint8

const (
	KindSmallInt Kind = iota
	KindBigInt
	KindBool
	KindFloat
	KindString
	KindBytes
	KindEmptyList
	KindEllipsis
	KindPair
	KindList
	KindTuple
	KindDict
	KindSet
	KindClosure
	KindClass
	KindObject
	KindSlotted
	KindSuper
	KindStaticMethod
	KindClassMethod
	KindProperty
	KindGenerator
	KindException
	KindNull // the untagged null reference, distinct from any of the above
)

var names = [...]string{
	"SmallInt", "BigInt", "Bool", "Float", "String", "Bytes", "EmptyList",
	"Ellipsis", "Pair", "List", "Tuple", "Dict", "Set", "Closure", "Class",
	"Object", "Slotted", "Super", "StaticMethod", "ClassMethod", "Property",
	"Generator", "Exception", "Null",
}

func (k Kind) String() string {
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsNumeric reports whether values of kind k participate in the numeric
// promotion rule (SmallInt/BigInt/Bool/Float).
func (k Kind) IsNumeric() bool {
	switch k {
	case KindSmallInt, KindBigInt, KindBool, KindFloat:
		return true
	default:
		return false
	}
}

// IsSequence reports whether k is one of the ordered sequence kinds that
// support subscripting/slicing by integer index.
func (k Kind) IsSequence() bool {
	switch k {
	case KindList, KindTuple, KindString, KindBytes, KindPair:
		return true
	default:
		return false
	}
}

// SmallIntMin and SmallIntMax bound the immediate 31-bit tagged integer
// range: a signed integer in the closed range [-2^30, 2^30-1] packs into
// a SmallInt without boxing.
const (
	SmallIntMin int64 = -(1 << 30)
	SmallIntMax int64 = (1 << 30) - 1
)

// FitsSmallInt reports whether n packs into an immediate SmallInt without
// boxing.
func FitsSmallInt(n int64) bool {
	return n >= SmallIntMin && n <= SmallIntMax
}

// Hint is a cheap structural type classification. analysis.Scope.Hints has
// room for one per node, but the analyzer records none and codegen picks
// its emission paths without reading them.
type Hint uint8

const (
	HintUnknown Hint = iota
	HintString
	HintFloat
	HintBool
	HintInt
	HintList
	HintTuple
	HintDict
)

func (h Hint) String() string {
	switch h {
	case HintString:
		return "string"
	case HintFloat:
		return "float"
	case HintBool:
		return "bool"
	case HintInt:
		return "int"
	case HintList:
		return "list"
	case HintTuple:
		return "tuple"
	case HintDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Fatalf is wired by internal/diag at init time, mirroring the
// compile/internal/types.Fatalf function-variable indirection. Packages
// below internal/diag in the dependency order call this instead of
// importing internal/diag directly.
var Fatalf func(format string, args ...interface{})

func fatalf(format string, args ...interface{}) {
	if Fatalf != nil {
		Fatalf(format, args...)
		return
	}
	panic(fmt.Sprintf(format, args...))
}
