// Package fixture holds controllers declared outside the controller
// package, for tests that depend on where a type lives.
package fixture

// LeafController is bound by key from tests of the controller package.
type LeafController struct {
	Clicks int
}

// Button_Click counts clicks.
func (c *LeafController) Button_Click() {
	c.Clicks++
}
