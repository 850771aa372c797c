package vm

import "hash/fnv"

// StringObject is an immutable byte string with a precomputed hash.
type StringObject struct {
	objectHeader
	chars []byte
	hash  uint32
}

func (s *StringObject) Kind() ObjectKind { return KindString }

// String returns the contents.
func (s *StringObject) String() string { return string(s.chars) }

// Len returns the length in bytes.
func (s *StringObject) Len() int { return len(s.chars) }

// Hash returns the FNV-1a hash of the contents.
func (s *StringObject) Hash() uint32 { return s.hash }

// ByteAt returns the byte at index i. Negative indexes count from the end.
func (s *StringObject) ByteAt(i int) (byte, error) {
	if i < 0 {
		i += len(s.chars)
	}
	if i < 0 || i >= len(s.chars) {
		return 0, RangeErrorf(i, 0, len(s.chars)-1,
			"Index %d is out of bounds of string of length %d.", i, len(s.chars))
	}
	return s.chars[i], nil
}

// Equal compares contents.
func (s *StringObject) Equal(o *StringObject) bool {
	return objectsEqual(s, o)
}

// HashString returns the FNV-1a hash used for strings and names.
func HashString(b []byte) uint32 {
	h := fnv.New32a()
	h.Write(b)
	return h.Sum32()
}

// HashName hashes a class, namespace or member name.
func HashName(name string) uint32 {
	return HashString([]byte(name))
}
