// Package lifecycle starts and stops the client's long-running parts,
// such as the transport, the policy watcher and the interpreter loop, in
// dependency order.
package lifecycle

import "context"

// Component is a long-running part of the client.
type Component interface {
	// Start brings the component up. It returns once the component is
	// usable; background work continues until Stop.
	Start(ctx context.Context) error

	// Stop shuts the component down, giving up when ctx expires.
	Stop(ctx context.Context) error

	// Name is used in logs and errors. Must not be empty.
	Name() string
}
