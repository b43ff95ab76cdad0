package replication

import (
	"fmt"
)

// DeliveryError marks a failed upload to one peer. It is logged per peer
// and never affects the local canonical state or the other peers.
type DeliveryError struct {
	Peer string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf(`delivery to peer "%s" failed: %s`, e.Peer, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
