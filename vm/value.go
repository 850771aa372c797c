package vm

import (
	"errors"
	"math"
)

// ---------------------------------------------------------------------------
// Value: tagged scalar/reference
// ---------------------------------------------------------------------------

// ValueType is the tag of a Value.
type ValueType uint8

const (
	NullType ValueType = iota
	IntegerType
	DecimalType
	ObjectType
	LinkedIntegerType
	LinkedDecimalType
)

func (t ValueType) String() string {
	switch t {
	case NullType:
		return "Null"
	case IntegerType:
		return "Integer"
	case DecimalType:
		return "Decimal"
	case ObjectType:
		return "Object"
	case LinkedIntegerType:
		return "Linked Integer"
	case LinkedDecimalType:
		return "Linked Decimal"
	default:
		return "Unknown"
	}
}

// Value is the unit of data exchanged between script code and native code.
// Values are copied freely; only ObjectType values refer into the heap.
//
// Linked values alias a native-owned cell. Reads dereference the cell at
// access time and Store writes through to it. A linked value must not be
// kept anywhere that outlives its cell.
type Value struct {
	typ   ValueType
	bits  uint64
	obj   Object
	icell *int32
	dcell *float32
}

// Null is the zero Value.
var Null = Value{}

// ErrNotLinked is returned by Store on a value that does not alias a cell.
var ErrNotLinked = errors.New("vm: value is not linked to a native cell")

// FromInteger creates an Integer value.
func FromInteger(i int32) Value {
	return Value{typ: IntegerType, bits: uint64(uint32(i))}
}

// FromDecimal creates a Decimal value.
func FromDecimal(f float32) Value {
	return Value{typ: DecimalType, bits: uint64(math.Float32bits(f))}
}

// FromBool creates the Integer 1 or 0.
func FromBool(b bool) Value {
	if b {
		return FromInteger(1)
	}
	return FromInteger(0)
}

// FromObject wraps a heap object. A nil object yields Null.
func FromObject(o Object) Value {
	if o == nil {
		return Null
	}
	return Value{typ: ObjectType, obj: o}
}

// LinkInteger creates a value that aliases the given native cell.
func LinkInteger(cell *int32) Value {
	if cell == nil {
		return Null
	}
	return Value{typ: LinkedIntegerType, icell: cell}
}

// LinkDecimal creates a value that aliases the given native cell.
func LinkDecimal(cell *float32) Value {
	if cell == nil {
		return Null
	}
	return Value{typ: LinkedDecimalType, dcell: cell}
}

// Type returns the tag.
func (v Value) Type() ValueType { return v.typ }

func (v Value) IsNull() bool          { return v.typ == NullType }
func (v Value) IsInteger() bool       { return v.typ == IntegerType }
func (v Value) IsDecimal() bool       { return v.typ == DecimalType }
func (v Value) IsObject() bool        { return v.typ == ObjectType }
func (v Value) IsLinkedInteger() bool { return v.typ == LinkedIntegerType }
func (v Value) IsLinkedDecimal() bool { return v.typ == LinkedDecimalType }

// IsLinked reports whether v aliases a native cell.
func (v Value) IsLinked() bool {
	return v.typ == LinkedIntegerType || v.typ == LinkedDecimalType
}

// IsIntegral reports whether v reads as an integer (plain or linked).
func (v Value) IsIntegral() bool {
	return v.typ == IntegerType || v.typ == LinkedIntegerType
}

// IsFractional reports whether v reads as a decimal (plain or linked).
func (v Value) IsFractional() bool {
	return v.typ == DecimalType || v.typ == LinkedDecimalType
}

// IsNumber reports whether v belongs to the Number supertype.
func (v Value) IsNumber() bool {
	return v.IsIntegral() || v.IsFractional()
}

// IsObjectKind reports whether v is an object of the given kind.
func (v Value) IsObjectKind(k ObjectKind) bool {
	return v.typ == ObjectType && v.obj.Kind() == k
}

// AsInteger returns the integer payload, reading through a linked cell.
// Non-integral values read as 0.
func (v Value) AsInteger() int32 {
	switch v.typ {
	case IntegerType:
		return int32(uint32(v.bits))
	case LinkedIntegerType:
		return *v.icell
	default:
		return 0
	}
}

// AsDecimal returns the decimal payload, reading through a linked cell.
// Non-fractional values read as 0.
func (v Value) AsDecimal() float32 {
	switch v.typ {
	case DecimalType:
		return math.Float32frombits(uint32(v.bits))
	case LinkedDecimalType:
		return *v.dcell
	default:
		return 0
	}
}

// AsObject returns the heap object, or nil for non-object values.
func (v Value) AsObject() Object {
	if v.typ != ObjectType {
		return nil
	}
	return v.obj
}

// Store writes x through to the native cell v aliases, converting between
// Integer and Decimal as needed.
func (v Value) Store(x Value) error {
	switch v.typ {
	case LinkedIntegerType:
		c := CastAsInteger(x)
		if c.IsNull() {
			return newTypeError(0, IntegerType.String(), TypeName(x))
		}
		*v.icell = c.AsInteger()
		return nil
	case LinkedDecimalType:
		c := CastAsDecimal(x)
		if c.IsNull() {
			return newTypeError(0, DecimalType.String(), TypeName(x))
		}
		*v.dcell = c.AsDecimal()
		return nil
	default:
		return ErrNotLinked
	}
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// CastAsInteger converts a numeric value to an Integer. Decimals are
// truncated. Any other tag yields Null.
func CastAsInteger(v Value) Value {
	switch v.typ {
	case IntegerType:
		return v
	case LinkedIntegerType:
		return FromInteger(*v.icell)
	case DecimalType, LinkedDecimalType:
		return FromInteger(int32(v.AsDecimal()))
	case NullType, ObjectType:
		return Null
	default:
		return Null
	}
}

// CastAsDecimal converts a numeric value to a Decimal. Any other tag
// yields Null.
func CastAsDecimal(v Value) Value {
	switch v.typ {
	case DecimalType:
		return v
	case LinkedDecimalType:
		return FromDecimal(*v.dcell)
	case IntegerType, LinkedIntegerType:
		return FromDecimal(float32(v.AsInteger()))
	case NullType, ObjectType:
		return Null
	default:
		return Null
	}
}

// Delink returns a plain snapshot of a linked value. Other values are
// returned unchanged.
func Delink(v Value) Value {
	switch v.typ {
	case LinkedIntegerType:
		return FromInteger(*v.icell)
	case LinkedDecimalType:
		return FromDecimal(*v.dcell)
	default:
		return v
	}
}

// Falsey reports whether v is Null or a numeric zero.
func Falsey(v Value) bool {
	switch v.typ {
	case NullType:
		return true
	case IntegerType, LinkedIntegerType:
		return v.AsInteger() == 0
	case DecimalType, LinkedDecimalType:
		return v.AsDecimal() == 0
	case ObjectType:
		return false
	default:
		return false
	}
}

// TypeName names the dynamic type of v for error messages.
func TypeName(v Value) string {
	if v.typ == ObjectType {
		return v.obj.Kind().String()
	}
	return v.typ.String()
}
