package view

import "github.com/vango-dev/ctrlbind/pkg/eventargs"

// EventArgs is implemented by every value raised through an EventSource.
type EventArgs interface {
	EventName() string
}

// Args is the base event data.
type Args struct {
	Name string
}

// NewArgs returns base event data for the named event.
func NewArgs(name string) *Args {
	return &Args{Name: name}
}

// EventName implements EventArgs.
func (a *Args) EventName() string {
	return a.Name
}

// Routed is implemented by event data that can bubble.
type Routed interface {
	EventArgs
	Routing() *RoutedArgs
}

// RoutedArgs is the event data of a routed event.
type RoutedArgs struct {
	Args

	// Source is the element the event was originally raised on.
	Source Element

	// Handled stops delivery to subscribers that did not ask for handled
	// events.
	Handled bool
}

// NewRoutedArgs returns routed event data for the named event.
func NewRoutedArgs(name string) *RoutedArgs {
	return &RoutedArgs{Args: Args{Name: name}}
}

// Routing implements Routed.
func (a *RoutedArgs) Routing() *RoutedArgs {
	return a
}

// Key identifies a keyboard key.
type Key string

// Common keys.
const (
	KeyNone   Key = ""
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
	KeyTab    Key = "Tab"
	KeySpace  Key = "Space"
)

// KeyArgs is the event data of KeyDown and KeyUp.
type KeyArgs struct {
	RoutedArgs
	key Key
}

// NewKeyArgs returns key event data.
func NewKeyArgs(name string, key Key) *KeyArgs {
	return &KeyArgs{RoutedArgs: RoutedArgs{Args: Args{Name: name}}, key: key}
}

// KeyOf is the key pressed. Read it through KeyOf.Get so that an
// eventargs scope can substitute it.
var KeyOf = eventargs.NewProperty("Key", func(a *KeyArgs) Key {
	if a == nil {
		return KeyNone
	}
	return a.key
})

// TextArgs is the event data of TextChanged.
type TextArgs struct {
	RoutedArgs
	text string
}

// NewTextArgs returns text-changed event data.
func NewTextArgs(text string) *TextArgs {
	return &TextArgs{RoutedArgs: RoutedArgs{Args: Args{Name: EventTextChanged}}, text: text}
}

// TextOf is the new text of a TextChanged event.
var TextOf = eventargs.NewProperty("Text", func(a *TextArgs) string {
	if a == nil {
		return ""
	}
	return a.text
})

// DataContextChangedArgs is the event data of DataContextChanged.
type DataContextChangedArgs struct {
	Args
	Old any
	New any
}
