package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// IsZero reports whether the reference was never allocated.
func (r ObjectRef) IsZero() bool { return r.Num == 0 }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key string) (Object, bool)
	Set(key string, value Object)
	Keys() []string
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a PDF stream whose data is already encoded with the
// filters named in its dictionary.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Table collects the indirect objects of a document under construction and
// hands out object numbers in allocation order.
type Table struct {
	next    int
	objects map[int]Object
}

// NewTable returns an empty object table; the first allocated number is 1.
func NewTable() *Table {
	return &Table{next: 1, objects: make(map[int]Object)}
}

// Alloc reserves the next object number without assigning a value, so that
// objects can reference each other before both are built.
func (t *Table) Alloc() ObjectRef {
	ref := ObjectRef{Num: t.next}
	t.next++
	return ref
}

// Put stores obj under a previously allocated reference.
func (t *Table) Put(ref ObjectRef, obj Object) {
	t.objects[ref.Num] = obj
}

// Add allocates a reference and stores obj under it.
func (t *Table) Add(obj Object) ObjectRef {
	ref := t.Alloc()
	t.Put(ref, obj)
	return ref
}

// Get returns the object stored under num.
func (t *Table) Get(num int) (Object, bool) {
	o, ok := t.objects[num]
	return o, ok
}

// Size is one more than the highest allocated object number, matching the
// trailer /Size entry.
func (t *Table) Size() int { return t.next }
