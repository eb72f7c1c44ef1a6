package controller

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// SlotKind says how a slot is stored on the controller.
type SlotKind uint8

const (
	// SlotField is an exported struct field.
	SlotField SlotKind = iota
	// SlotMethod is a setter method with an optional getter.
	SlotMethod
)

// Slot is a writable reference on a controller that receives the data
// context or an element.
type Slot struct {
	// Name is the element name for element slots, empty for the data
	// context slot.
	Name string

	// Member is the field or setter method name.
	Member string

	// Type is the static type of the slot.
	Type reflect.Type

	Kind SlotKind

	index  []int
	getter string
}

func fieldSlot(name string, f reflect.StructField) *Slot {
	return &Slot{Name: name, Member: f.Name, Type: f.Type, Kind: SlotField, index: f.Index}
}

func methodSlot(name, setter, getter string, t reflect.Type) *Slot {
	return &Slot{Name: name, Member: setter, Type: t, Kind: SlotMethod, getter: getter}
}

// Set stores v into the slot of ctrl. A nil v stores the zero value.
func (s *Slot) Set(ctrl any, v any) error {
	rv, err := s.value(v)
	if err != nil {
		return err
	}
	c := reflect.ValueOf(ctrl)
	switch s.Kind {
	case SlotField:
		f, ok := field(c, s.index)
		if !ok {
			return fmt.Errorf("controller: slot %s: unreachable field", s.Member)
		}
		f.Set(rv)
	case SlotMethod:
		m := c.MethodByName(s.Member)
		if !m.IsValid() {
			return fmt.Errorf("controller: slot %s: no such method", s.Member)
		}
		m.Call([]reflect.Value{rv})
	}
	return nil
}

// Get returns the current slot value, or nil when the slot has no getter
// or holds a nil value.
func (s *Slot) Get(ctrl any) any {
	c := reflect.ValueOf(ctrl)
	var rv reflect.Value
	switch s.Kind {
	case SlotField:
		f, ok := field(c, s.index)
		if !ok {
			return nil
		}
		rv = f
	case SlotMethod:
		if s.getter == "" {
			return nil
		}
		m := c.MethodByName(s.getter)
		if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
			return nil
		}
		rv = m.Call(nil)[0]
	}
	if isNil(rv) {
		return nil
	}
	return rv.Interface()
}

// Accepts reports whether v can be stored in the slot.
func (s *Slot) Accepts(v any) bool {
	_, err := s.value(v)
	return err == nil
}

func (s *Slot) value(v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(s.Type), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(s.Type) {
		return reflect.Value{}, fmt.Errorf("controller: slot %s: %s is not assignable to %s", s.Member, rv.Type(), s.Type)
	}
	return rv, nil
}

// field walks index from the controller pointer c, refusing to pass
// through nil embedded pointers.
func field(c reflect.Value, index []int) (reflect.Value, bool) {
	if c.Kind() != reflect.Pointer || c.IsNil() {
		return reflect.Value{}, false
	}
	v := c.Elem()
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, v.CanSet()
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// lowerFirst returns s with its first rune lowercased.
func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}

// upperFirst returns s with its first rune uppercased.
func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
