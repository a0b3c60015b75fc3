package resilience

import "errors"

// ErrCircuitOpen is returned without running the operation while the circuit
// breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")
