package controller

import (
	"reflect"
	"regexp"
	"strings"
)

// pkgPrefix matches the import path part of a package-qualified type name
// inside generic type arguments.
var pkgPrefix = regexp.MustCompile(`[A-Za-z0-9_.\-~]+/`)

// TypeNames returns the names a model type answers to when matched against
// binding keys, most specific first: the type itself, its embedded structs
// breadth first, then every interface in interfaces it implements. Each
// type contributes its short and package-qualified name, and generic types
// also their erased name. Pointer types are dereferenced.
func TypeNames(t reflect.Type, interfaces []reflect.Type) []string {
	if t == nil {
		return nil
	}
	base := deref(t)

	var names []string
	seen := make(map[string]bool)
	add := func(t reflect.Type) {
		for _, n := range namesOf(t) {
			if n != "" && !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	add(base)
	for _, anc := range embedded(base) {
		add(anc)
	}
	ptr := reflect.PointerTo(base)
	for _, it := range interfaces {
		if it == nil || it.Kind() != reflect.Interface {
			continue
		}
		if base.Implements(it) || ptr.Implements(it) {
			add(it)
		}
	}
	return names
}

// MatchesKey reports whether a model of type t answers to key.
func MatchesKey(key string, t reflect.Type, interfaces []reflect.Type) bool {
	if key == "" {
		return false
	}
	for _, n := range TypeNames(t, interfaces) {
		if n == key {
			return true
		}
	}
	return false
}

// namesOf returns the short, qualified and, for generic types, erased
// names of t.
func namesOf(t reflect.Type) []string {
	name := t.Name()
	if name == "" {
		return nil
	}
	pkg := t.PkgPath()
	qualify := func(n string) string {
		if pkg == "" {
			return ""
		}
		return pkg + "." + n
	}

	i := strings.IndexByte(name, '[')
	if i < 0 {
		return []string{name, qualify(name)}
	}
	erased := name[:i]
	short := erased + pkgPrefix.ReplaceAllString(name[i:], "")
	return []string{short, qualify(name), erased, qualify(erased)}
}

// embedded returns the embedded struct types of t, breadth first in
// declaration order.
func embedded(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	visited := map[reflect.Type]bool{t: true}
	queue := []reflect.Type{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Kind() != reflect.Struct {
			continue
		}
		for i := 0; i < cur.NumField(); i++ {
			f := cur.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := deref(f.Type)
			if visited[ft] {
				continue
			}
			visited[ft] = true
			out = append(out, ft)
			queue = append(queue, ft)
		}
	}
	return out
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// typeName is the short display name of a controller type.
func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return deref(t).String()
}

// DisplayName is the name used for ctrl in logs and metrics.
func DisplayName(ctrl any) string {
	if ctrl == nil {
		return "<nil>"
	}
	return typeName(reflect.TypeOf(ctrl))
}
