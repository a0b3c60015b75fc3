// Package mutation applies create, update and delete operations to the
// remote API and reconciles the entity cache with their outcome.
//
// Creates invalidate the entity's list keys and the relation keys derived
// from the payload's foreign keys. Updates write the returned entity into
// its detail key directly. Deletes remove the detail entry optimistically
// and restore it unchanged when the transport fails.
//
// The foreign keys needed to cascade a delete come from one of three
// sources, recorded as the SnapshotKind of the delete:
//
//	HasSnapshot         the cached detail entry
//	RecoveredSnapshot   a fetch of the entity made just before deleting it
//	NoSnapshotFallback  none; every key mentioning the relation is invalidated
//
// The coordinator also routes login, registration and logout so the session
// token and the auth-scoped cache keys change together.
package mutation
