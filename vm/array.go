package vm

// ArrayObject is an ordered, mutable sequence of values. Callers must hold
// the global lock while reading or mutating Values.
type ArrayObject struct {
	objectHeader
	Values []Value
}

func (a *ArrayObject) Kind() ObjectKind { return KindArray }

// Len returns the number of elements.
func (a *ArrayObject) Len() int { return len(a.Values) }

// Get returns the element at index.
func (a *ArrayObject) Get(index int) (Value, error) {
	if index < 0 || index >= len(a.Values) {
		return Null, NewIndexError("array", index, len(a.Values))
	}
	return a.Values[index], nil
}

// Set replaces the element at index.
func (a *ArrayObject) Set(index int, v Value) error {
	if index < 0 || index >= len(a.Values) {
		return NewIndexError("array", index, len(a.Values))
	}
	a.Values[index] = v
	return nil
}

// Push appends v.
func (a *ArrayObject) Push(v Value) {
	a.grow(sizeValue)
	a.Values = append(a.Values, v)
}

// Pop removes and returns the last element. Popping an empty array is an
// error and leaves the array unchanged.
func (a *ArrayObject) Pop() (Value, error) {
	n := len(a.Values)
	if n == 0 {
		return Null, RangeErrorf(0, 0, -1, "Cannot pop from an empty array.")
	}
	v := a.Values[n-1]
	a.Values[n-1] = Null
	a.Values = a.Values[:n-1]
	a.grow(-sizeValue)
	return v, nil
}

// Insert places v before index. An index equal to the length appends.
func (a *ArrayObject) Insert(index int, v Value) error {
	if index < 0 || index > len(a.Values) {
		return RangeErrorf(index, 0, len(a.Values),
			"Index %d is out of bounds of array of size %d.", index, len(a.Values))
	}
	a.grow(sizeValue)
	a.Values = append(a.Values, Null)
	copy(a.Values[index+1:], a.Values[index:])
	a.Values[index] = v
	return nil
}

// Erase removes the element at index, shifting later elements down.
func (a *ArrayObject) Erase(index int) error {
	if index < 0 || index >= len(a.Values) {
		return NewIndexError("array", index, len(a.Values))
	}
	copy(a.Values[index:], a.Values[index+1:])
	a.Values[len(a.Values)-1] = Null
	a.Values = a.Values[:len(a.Values)-1]
	a.grow(-sizeValue)
	return nil
}

// Clear removes every element.
func (a *ArrayObject) Clear() {
	a.grow(-len(a.Values) * sizeValue)
	clear(a.Values)
	a.Values = a.Values[:0]
}

// IndexOf returns the index of the first element equal to v, or -1.
func (a *ArrayObject) IndexOf(v Value) int {
	for i, e := range a.Values {
		if Equal(e, v) {
			return i
		}
	}
	return -1
}
