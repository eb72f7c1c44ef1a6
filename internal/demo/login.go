package demo

import (
	"context"
	"errors"
	"sync"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// ErrInvalidCredentials is returned for a wrong user or password.
var ErrInvalidCredentials = errors.New("demo: invalid credentials")

// Credentials is the data context of the login sample.
type Credentials struct {
	mu       sync.Mutex
	User     string
	Password string
}

func (c *Credentials) set(user, password *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user != nil {
		c.User = *user
	}
	if password != nil {
		c.Password = *password
	}
}

func (c *Credentials) get() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.User, c.Password
}

// Authenticator checks credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, user, password string) error
}

// StaticAuthenticator accepts the user/password pairs it holds.
type StaticAuthenticator map[string]string

// Authenticate implements Authenticator.
func (a StaticAuthenticator) Authenticate(ctx context.Context, user, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p, ok := a[user]; ok && p == password && password != "" {
		return nil
	}
	return ErrInvalidCredentials
}

// LoginTree builds the login view.
func LoginTree() *view.Node {
	root := view.NewNode("login",
		view.NewNode("user"),
		view.NewNode("password"),
		view.NewNode("submit"),
		view.NewNode("status"),
	)
	_ = root.SetDataContext(&Credentials{})
	return root
}

// LoginController copies the inputs into the credentials and checks them
// on submit. The Authenticator comes from the engine's dependencies.
type LoginController struct {
	Form   *Credentials `ctrl:"datacontext"`
	Status *view.Node   `ctrl:"element:status"`
}

// User_TextChanged tracks the user input.
func (c *LoginController) User_TextChanged(e *view.TextArgs) {
	s := view.TextOf.Get(e)
	c.Form.set(&s, nil)
}

// Password_TextChanged tracks the password input.
func (c *LoginController) Password_TextChanged(e *view.TextArgs) {
	s := view.TextOf.Get(e)
	c.Form.set(nil, &s)
}

// Submit_ClickAsync authenticates in the background. The controller is
// only read before the handler returns; the goroutine works on copies, so
// an unload while the check is running is harmless.
func (c *LoginController) Submit_ClickAsync(ctx context.Context, auth Authenticator) <-chan error {
	status := c.Status
	setStatus := func(s string) {
		if status != nil {
			status.SetText(s)
		}
	}
	user, password := c.Form.get()
	setStatus("checking")

	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := auth.Authenticate(ctx, user, password); err != nil {
			setStatus("denied")
			done <- err
			return
		}
		setStatus("welcome " + user)
	}()
	return done
}
