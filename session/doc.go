// Package session owns the session token lifecycle.
//
// A Session holds one token and its absolute expiry in memory and mirrors it
// to a persisted Mirror, so a process that lost its memory state (a fresh
// module load, a restarted worker) picks the token up again on the next
// access. The lifecycle is
//
//	Absent -> Valid -> Expiring -> Absent
//
// where Valid becomes Expiring once the token is within the expiry buffer and
// any state returns to Absent on Clear, Close or hard expiry. The only way out
// of Absent is Set.
//
// Exactly one Session is created per engine and injected into the transport
// wrapper (fetch.Authorized) and the mutation coordinator.
package session
