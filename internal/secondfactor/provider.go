// Package secondfactor supplies one-time codes for the platform's guard
// challenge: deterministically from a stored shared secret, or interactively
// through an external Provider.
package secondfactor

import "context"

// Provider supplies a guard code interactively, typically by prompting an
// operator. RequestCode may block on a human for an arbitrary time; an empty
// code or an error means the operator declined and the session must fail.
type Provider interface {
	RequestCode(ctx context.Context, login string) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, login string) (string, error)

func (f ProviderFunc) RequestCode(ctx context.Context, login string) (string, error) {
	return f(ctx, login)
}
