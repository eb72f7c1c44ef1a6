package demo

import (
	"strconv"
	"strings"
	"sync"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// TodoList is the data context of the to-do sample.
type TodoList struct {
	mu    sync.Mutex
	items []string
}

// Add appends a trimmed item. Blank items are ignored.
func (l *TodoList) Add(item string) bool {
	item = strings.TrimSpace(item)
	if item == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
	return true
}

// Clear removes every item.
func (l *TodoList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// Items returns a copy of the items.
func (l *TodoList) Items() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.items...)
}

// TodoTree builds the to-do view: an input, an add button, a clear
// button and a count label.
func TodoTree() *view.Node {
	root := view.NewNode("todo",
		view.NewNode("newItem"),
		view.NewNode("addButton"),
		view.NewNode("clearButton"),
		view.NewNode("count"),
	)
	_ = root.SetDataContext(&TodoList{})
	return root
}

// TodoController adds items typed into newItem.
type TodoController struct {
	List  *TodoList  `ctrl:"datacontext"`
	Input *view.Node `ctrl:"element:newItem"`
	Count *view.Node `ctrl:"element:count"`
}

// Count_Loaded shows the initial count.
func (c *TodoController) Count_Loaded() {
	c.render()
}

// NewItem_KeyDown adds the typed item on Enter.
func (c *TodoController) NewItem_KeyDown(e *view.KeyArgs) {
	if view.KeyOf.Get(e) == view.KeyEnter {
		c.submit()
	}
}

// AddButton_Click adds the typed item.
func (c *TodoController) AddButton_Click() {
	c.submit()
}

// ClearButton_Click empties the list.
func (c *TodoController) ClearButton_Click() {
	c.List.Clear()
	c.render()
}

func (c *TodoController) submit() {
	if c.List.Add(c.Input.Text()) {
		c.Input.SetText("")
	}
	c.render()
}

func (c *TodoController) render() {
	if c.Count != nil {
		c.Count.SetText(strconv.Itoa(len(c.List.Items())))
	}
}
