package view

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Node is a headless Element.
type Node struct {
	name     string
	parent   *Node
	children []*Node

	events map[string]*Event

	mu             sync.RWMutex
	slots          map[any]any
	props          map[string]string
	dataContext    any
	hasDataContext bool
	loaded         bool
}

var _ Element = (*Node)(nil)

// NewNode creates a node with the standard events and the given children.
func NewNode(name string, children ...*Node) *Node {
	n := &Node{
		name:   name,
		events: make(map[string]*Event),
		slots:  make(map[any]any),
		props:  make(map[string]string),
	}
	for _, ev := range []string{EventLoading, EventLoaded, EventUnloaded, EventDataContextChanged, EventGotFocus, EventLostFocus} {
		n.events[ev] = NewEvent(ev)
	}
	for _, ev := range []string{EventClick, EventKeyDown, EventKeyUp, EventTextChanged} {
		n.events[ev] = NewRoutedEvent(ev)
	}
	for _, c := range children {
		n.attachChild(c)
	}
	return n
}

// DefineEvent adds a custom event to the node and returns it. An existing
// event with the same name is returned unchanged.
func (n *Node) DefineEvent(name string, routed bool) *Event {
	if ev, ok := n.events[name]; ok {
		return ev
	}
	ev := NewEvent(name)
	ev.routed = routed
	n.events[name] = ev
	return ev
}

// Name implements Element.
func (n *Node) Name() string {
	return n.name
}

// Parent implements Element.
func (n *Node) Parent() Element {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Children returns the direct children.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Add appends children. Children added to a loaded node are loaded.
func (n *Node) Add(children ...*Node) error {
	var errs []error
	for _, c := range children {
		n.attachChild(c)
		if n.IsLoaded() {
			errs = append(errs, c.Load())
		}
	}
	return errors.Join(errs...)
}

// Remove detaches a child, unloading it first when loaded.
func (n *Node) Remove(child *Node) error {
	for i, c := range n.children {
		if c != child {
			continue
		}
		var err error
		if c.IsLoaded() {
			err = c.Unload()
		}
		n.children = append(n.children[:i:i], n.children[i+1:]...)
		old := c.DataContext()
		c.parent = nil
		return errors.Join(err, c.notifyInherited(old))
	}
	return fmt.Errorf("view: %q is not a child of %q", child.name, n.name)
}

func (n *Node) attachChild(c *Node) {
	if c.parent != nil {
		_ = c.parent.Remove(c)
	}
	c.parent = n
	n.children = append(n.children, c)
}

// Slot implements Element.
func (n *Node) Slot(key any) any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.slots[key]
}

// SetSlot implements Element.
func (n *Node) SetSlot(key, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if value == nil {
		delete(n.slots, key)
		return
	}
	n.slots[key] = value
}

// FindName implements Element.
func (n *Node) FindName(name string) Element {
	if found := n.FindNode(name); found != nil {
		return found
	}
	return nil
}

// FindNode is FindName returning the concrete node.
func (n *Node) FindNode(name string) *Node {
	if name == "" {
		return nil
	}
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.FindNode(name); found != nil {
			return found
		}
	}
	return nil
}

// DataContext implements Element.
func (n *Node) DataContext() any {
	n.mu.RLock()
	if n.hasDataContext {
		dc := n.dataContext
		n.mu.RUnlock()
		return dc
	}
	n.mu.RUnlock()
	if n.parent != nil {
		return n.parent.DataContext()
	}
	return nil
}

// SetDataContext binds a model to the node. DataContextChanged is raised on
// the node and on every descendant that inherits it.
func (n *Node) SetDataContext(v any) error {
	old := n.DataContext()
	n.mu.Lock()
	n.dataContext = v
	n.hasDataContext = true
	n.mu.Unlock()
	return n.notifyInherited(old)
}

// ClearDataContext removes the node's own data context so that it inherits
// again.
func (n *Node) ClearDataContext() error {
	old := n.DataContext()
	n.mu.Lock()
	n.dataContext = nil
	n.hasDataContext = false
	n.mu.Unlock()
	return n.notifyInherited(old)
}

func (n *Node) notifyInherited(old any) error {
	current := n.DataContext()
	if sameValue(old, current) {
		return nil
	}
	errs := []error{n.events[EventDataContextChanged].invoke(n, &DataContextChangedArgs{
		Args: Args{Name: EventDataContextChanged},
		Old:  old,
		New:  current,
	})}
	for _, c := range n.children {
		c.mu.RLock()
		own := c.hasDataContext
		c.mu.RUnlock()
		if !own {
			errs = append(errs, c.notifyInherited(old))
		}
	}
	return errors.Join(errs...)
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// IsLoaded implements Element.
func (n *Node) IsLoaded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.loaded
}

// Event implements Element.
func (n *Node) Event(name string) EventSource {
	if ev, ok := n.events[name]; ok {
		return ev
	}
	return nil
}

// Load raises Loading for the whole subtree, then marks each node loaded
// and raises Loaded, parents before children.
func (n *Node) Load() error {
	var errs []error
	n.walk(func(c *Node) {
		errs = append(errs, c.events[EventLoading].invoke(c, NewArgs(EventLoading)))
	})
	n.walk(func(c *Node) {
		c.mu.Lock()
		c.loaded = true
		c.mu.Unlock()
		errs = append(errs, c.events[EventLoaded].invoke(c, NewArgs(EventLoaded)))
	})
	return errors.Join(errs...)
}

// Unload marks the subtree unloaded and raises Unloaded, parents first.
func (n *Node) Unload() error {
	var errs []error
	n.walk(func(c *Node) {
		c.mu.Lock()
		c.loaded = false
		c.mu.Unlock()
		errs = append(errs, c.events[EventUnloaded].invoke(c, NewArgs(EventUnloaded)))
	})
	return errors.Join(errs...)
}

// emptyArgs returns the event data raised when a caller passes none. Key
// and text events get their typed payload so handlers declaring it still
// bind.
func emptyArgs(name string, routed bool) EventArgs {
	switch {
	case name == EventKeyDown || name == EventKeyUp:
		return NewKeyArgs(name, KeyNone)
	case name == EventTextChanged:
		return NewTextArgs("")
	case routed:
		return NewRoutedArgs(name)
	}
	return NewArgs(name)
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children() {
		c.walk(fn)
	}
}

// Raise raises the named event on the node. Routed events then bubble to
// every ancestor exposing an event with the same name. Errors returned by
// subscribers are joined and returned.
func (n *Node) Raise(name string, args EventArgs) error {
	ev, ok := n.events[name]
	if !ok {
		return fmt.Errorf("view: %q has no event %q", n.name, name)
	}
	if args == nil {
		args = emptyArgs(name, ev.routed)
	}
	if !ev.routed {
		return ev.invoke(n, args)
	}

	if r, ok := args.(Routed); ok && r.Routing().Source == nil {
		r.Routing().Source = n
	}
	var errs []error
	for cur := n; cur != nil; cur = cur.parent {
		if cev, ok := cur.events[name]; ok {
			errs = append(errs, cev.invoke(cur, args))
		}
	}
	return errors.Join(errs...)
}

// Prop returns a string property.
func (n *Node) Prop(key string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props[key]
}

// SetProp sets a string property.
func (n *Node) SetProp(key, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[key] = value
}

// Text returns the "text" property.
func (n *Node) Text() string { return n.Prop("text") }

// SetText sets the "text" property.
func (n *Node) SetText(s string) { n.SetProp("text", s) }

// Snapshot is a serializable view of a node subtree.
type Snapshot struct {
	Name     string            `json:"name"`
	Loaded   bool              `json:"loaded"`
	Props    map[string]string `json:"props,omitempty"`
	Children []Snapshot        `json:"children,omitempty"`
}

// Snapshot captures the subtree rooted at n.
func (n *Node) Snapshot() Snapshot {
	n.mu.RLock()
	s := Snapshot{Name: n.name, Loaded: n.loaded}
	if len(n.props) > 0 {
		s.Props = make(map[string]string, len(n.props))
		for k, v := range n.props {
			s.Props[k] = v
		}
	}
	n.mu.RUnlock()
	for _, c := range n.children {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}
