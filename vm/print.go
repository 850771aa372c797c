package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// String formats v the way scripts print it. Heap contents are read
// without the lock; use it from code that holds the lock or owns v.
func (v Value) String() string {
	var b strings.Builder
	writeValue(&b, v, false, 0)
	return b.String()
}

// maxPrintDepth stops runaway output on self-referencing containers.
const maxPrintDepth = 16

func writeValue(b *strings.Builder, v Value, nested bool, depth int) {
	switch v.typ {
	case NullType:
		b.WriteString("null")
	case IntegerType, LinkedIntegerType:
		fmt.Fprintf(b, "%d", v.AsInteger())
	case DecimalType, LinkedDecimalType:
		fmt.Fprintf(b, "%f", v.AsDecimal())
	case ObjectType:
		writeObject(b, v.obj, nested, depth)
	default:
		b.WriteString("<unknown>")
	}
}

func writeObject(b *strings.Builder, o Object, nested bool, depth int) {
	if depth > maxPrintDepth {
		b.WriteString("...")
		return
	}
	switch o := o.(type) {
	case *StringObject:
		if nested {
			b.WriteString(strconv.Quote(o.String()))
		} else {
			b.WriteString(o.String())
		}
	case *ArrayObject:
		b.WriteByte('[')
		for i, e := range o.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, e, true, depth+1)
		}
		b.WriteByte(']')
	case *MapObject:
		b.WriteByte('{')
		for i, k := range o.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			writeValue(b, o.values[k], true, depth+1)
		}
		b.WriteByte('}')
	case *FunctionObject:
		fmt.Fprintf(b, "<fn %s>", o.Name)
	case *BoundMethodObject:
		if o.Method != nil {
			fmt.Fprintf(b, "<fn %s>", o.Method.Name)
		} else {
			b.WriteString("<fn>")
		}
	case *NativeObject:
		b.WriteString("<native fn>")
	case *ClassObject:
		fmt.Fprintf(b, "<class %s>", o.Name)
	case *InstanceObject:
		writeInstance(b, o)
	case *EntityObject:
		writeInstance(b, &o.InstanceObject)
	case *NamespaceObject:
		fmt.Fprintf(b, "<namespace %s>", o.Name)
	case *StreamObject:
		b.WriteString("<stream>")
	default:
		fmt.Fprintf(b, "<%s>", o.Kind())
	}
}

func writeInstance(b *strings.Builder, i *InstanceObject) {
	name := "?"
	if i.Class != nil {
		name = i.Class.Name
	}
	fmt.Fprintf(b, "<class %s> instance", name)
}
