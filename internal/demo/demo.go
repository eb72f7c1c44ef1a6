// Package demo holds the sample controllers served by the ctrlbind CLI.
package demo

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/vango-dev/ctrlbind/pkg/controller"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

// Sample is one demo: its controller type and a tree factory.
type Sample struct {
	Name       string
	Key        string
	Controller reflect.Type
	Tree       func() *view.Node
}

var samples = map[string]Sample{
	"todo": {
		Name:       "todo",
		Key:        "TodoList",
		Controller: reflect.TypeOf((*TodoController)(nil)),
		Tree:       TodoTree,
	},
	"login": {
		Name:       "login",
		Key:        "Credentials",
		Controller: reflect.TypeOf((*LoginController)(nil)),
		Tree:       LoginTree,
	},
}

// Names lists the samples in order.
func Names() []string {
	names := make([]string, 0, len(samples))
	for n := range samples {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named sample.
func Lookup(name string) (Sample, error) {
	s, ok := samples[name]
	if !ok {
		return Sample{}, fmt.Errorf("demo: unknown sample %q", name)
	}
	return s, nil
}

// Register adds every sample controller to reg unless disabled reports
// its type name.
func Register(reg *controller.Registry, disabled func(name string) bool) {
	for _, name := range Names() {
		s := samples[name]
		if disabled != nil && disabled(s.Controller.Elem().Name()) {
			continue
		}
		reg.Add(s.Controller, controller.Key(s.Key))
	}
}
