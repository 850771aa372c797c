package vm

import "bytes"

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

// ExactlyEqual requires identical tags. Objects compare by identity, except
// strings, which compare by content.
func ExactlyEqual(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case NullType:
		return true
	case IntegerType, DecimalType:
		return a.bits == b.bits
	case LinkedIntegerType:
		return a.icell == b.icell
	case LinkedDecimalType:
		return a.dcell == b.dcell
	case ObjectType:
		return objectsEqual(a.obj, b.obj)
	default:
		return false
	}
}

// Equal compares linked values through their cells and promotes mixed
// Integer/Decimal operands to Decimal.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		if a.IsIntegral() && b.IsIntegral() {
			return a.AsInteger() == b.AsInteger()
		}
		return CastAsDecimal(a).AsDecimal() == CastAsDecimal(b).AsDecimal()
	}
	return ExactlyEqual(a, b)
}

func objectsEqual(a, b Object) bool {
	if a == b {
		return true
	}
	sa, ok := a.(*StringObject)
	if !ok {
		return false
	}
	sb, ok := b.(*StringObject)
	if !ok {
		return false
	}
	return sa.hash == sb.hash && bytes.Equal(sa.chars, sb.chars)
}

// CompareNumbers orders two values of the Number supertype. The second
// result is false when either operand is not a number; such operands do
// not participate in ordering.
func CompareNumbers(a, b Value) (int, bool) {
	if !a.IsNumber() || !b.IsNumber() {
		return 0, false
	}
	if a.IsIntegral() && b.IsIntegral() {
		x, y := a.AsInteger(), b.AsInteger()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	x, y := CastAsDecimal(a).AsDecimal(), CastAsDecimal(b).AsDecimal()
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	default:
		return 0, true
	}
}
