package specification

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// Field is a sortable exported field of an entity type, resolved once by
// name and reused for every query against that type.
type Field struct {
	// Name is the Go field name as declared.
	Name string
	// Tag is the struct tag, used by stores to find column or key names.
	Tag reflect.StructTag

	index   []int
	compare func(a, b reflect.Value) int
}

// Get returns the field's value on entity, which may be a struct or a
// pointer to one.
func (f *Field) Get(entity any) reflect.Value {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return v.FieldByIndex(f.index)
}

// Compare orders two entities by this field: negative, zero or positive.
func (f *Field) Compare(a, b any) int {
	return f.compare(f.Get(a), f.Get(b))
}

type fieldKey struct {
	typ  reflect.Type
	name string
}

// fieldCache maps (entity type, lowercased name) to *Field. Entries are
// never evicted; the key space is bounded by the program's types. Misses
// are not cached because names come from requests.
var fieldCache sync.Map

// ResolveField finds the exported field of T named name, ignoring case.
// It returns false when T has no such field or the field is not sortable.
func ResolveField[T any](name string) (*Field, bool) {
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, false
	}

	key := fieldKey{typ: typ, name: strings.ToLower(name)}
	if f, ok := fieldCache.Load(key); ok {
		return f.(*Field), true
	}

	f, ok := lookupField(typ, name)
	if !ok {
		return nil, false
	}
	// A racing resolver may have stored an identical field first; keep theirs.
	actual, _ := fieldCache.LoadOrStore(key, f)
	return actual.(*Field), true
}

func lookupField(typ reflect.Type, name string) (*Field, bool) {
	for _, sf := range reflect.VisibleFields(typ) {
		if !sf.IsExported() || sf.Anonymous || !strings.EqualFold(sf.Name, name) {
			continue
		}
		cmp, ok := comparerFor(sf.Type)
		if !ok {
			return nil, false
		}
		return &Field{Name: sf.Name, Tag: sf.Tag, index: sf.Index, compare: cmp}, true
	}
	return nil, false
}

var timeType = reflect.TypeFor[time.Time]()

func comparerFor(t reflect.Type) (func(a, b reflect.Value) int, bool) {
	if t == timeType {
		return func(a, b reflect.Value) int {
			return a.Interface().(time.Time).Compare(b.Interface().(time.Time))
		}, true
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(a, b reflect.Value) int { return cmpOrdered(a.Int(), b.Int()) }, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(a, b reflect.Value) int { return cmpOrdered(a.Uint(), b.Uint()) }, true
	case reflect.Float32, reflect.Float64:
		return func(a, b reflect.Value) int { return cmpOrdered(a.Float(), b.Float()) }, true
	case reflect.String:
		return func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) }, true
	case reflect.Bool:
		return func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case !a.Bool():
				return -1
			default:
				return 1
			}
		}, true
	case reflect.Pointer:
		inner, ok := comparerFor(t.Elem())
		if !ok {
			return nil, false
		}
		// nil sorts first
		return func(a, b reflect.Value) int {
			switch {
			case a.IsNil() && b.IsNil():
				return 0
			case a.IsNil():
				return -1
			case b.IsNil():
				return 1
			default:
				return inner(a.Elem(), b.Elem())
			}
		}, true
	default:
		return nil, false
	}
}

func cmpOrdered[N int64 | uint64 | float64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
