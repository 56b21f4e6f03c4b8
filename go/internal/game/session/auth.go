package session

import (
	"errors"
	"fmt"
	"strings"
)

// AuthPolicy decides whether a validation request may bind an identity. The
// decision is synchronous: a nil error accepts, anything else refuses with
// the error's text carried back to the client.
type AuthPolicy interface {
	Authenticate(email string) error
}

// AuthPolicyFunc adapts a plain function to an AuthPolicy.
type AuthPolicyFunc func(email string) error

func (f AuthPolicyFunc) Authenticate(email string) error { return f(email) }

// AllowAll accepts every well-formed identity. It is the default policy.
type AllowAll struct{}

func (AllowAll) Authenticate(email string) error {
	if email == "" {
		return errors.New("identity must not be empty")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%q is not a valid identity", email)
	}
	return nil
}
