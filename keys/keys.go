package keys

import "github.com/jonwraymond/entitycache/cache"

// EntityType is the tag in the first segment of every key.
type EntityType string

// Entity types known to the registry.
const (
	Users       EntityType = "users"
	Computers   EntityType = "computers"
	Projects    EntityType = "projects"
	Attachments EntityType = "attachments"
	Preferences EntityType = "preferences"
	Invites     EntityType = "invites"
	ProjectKeys EntityType = "projectKeys"
	Config      EntityType = "config"
	Auth        EntityType = "auth"
)

// Qualifiers and relation tags.
const (
	QualifierList   = "list"
	QualifierDetail = "detail"
	RelAttachments  = "attachments"
	RelProjectKeys  = "projectKeys"
	authCurrentUser = "currentUser"
)

// Variant selects the shape of a key.
type Variant int

const (
	// VariantAll addresses every key of an entity type.
	VariantAll Variant = iota
	// VariantLists addresses every list of an entity type.
	VariantLists
	// VariantList addresses one list, optionally filtered.
	VariantList
	// VariantDetails addresses every detail of an entity type.
	VariantDetails
	// VariantDetail addresses one entity by id.
	VariantDetail
	// VariantAttachments addresses the attachment list of a computer or project.
	VariantAttachments
)

// Filters narrows a list query. Filters are compared by value.
type Filters map[string]any

// Build returns the key for entityType and variant.
//
// params are interpreted per variant: VariantList takes an optional Filters,
// VariantDetail and VariantAttachments take the entity id. Missing params
// yield the broader key, so Build(t, VariantDetail) equals Details(t).
func Build(entityType EntityType, variant Variant, params ...any) cache.Key {
	switch variant {
	case VariantLists:
		return Lists(entityType)
	case VariantList:
		if len(params) == 0 {
			return Lists(entityType)
		}
		switch f := params[0].(type) {
		case Filters:
			return List(entityType, f)
		case map[string]any:
			return List(entityType, f)
		}
		return Lists(entityType).Append(params[0])
	case VariantDetails:
		return Details(entityType)
	case VariantDetail:
		if len(params) == 0 {
			return Details(entityType)
		}
		return Details(entityType).Append(params[0])
	case VariantAttachments:
		if len(params) == 0 {
			return Details(entityType)
		}
		return Details(entityType).Append(params[0], RelAttachments)
	default:
		return All(entityType)
	}
}

// All returns the root key of an entity type.
func All(t EntityType) cache.Key {
	return cache.Key{string(t)}
}

// Lists returns the prefix of every list key of an entity type.
func Lists(t EntityType) cache.Key {
	return cache.Key{string(t), QualifierList}
}

// List returns the key of a filtered list. A nil or empty filter yields the
// same key as an unfiltered list.
func List(t EntityType, filters Filters) cache.Key {
	if len(filters) == 0 {
		return Lists(t)
	}
	return Lists(t).Append(map[string]any(filters))
}

// Details returns the prefix of every detail key of an entity type.
func Details(t EntityType) cache.Key {
	return cache.Key{string(t), QualifierDetail}
}

// Detail returns the key of a single entity.
func Detail(t EntityType, id string) cache.Key {
	return cache.Key{string(t), QualifierDetail, id}
}

// ComputerAttachments returns the key of a computer's attachment list.
func ComputerAttachments(computerID string) cache.Key {
	return Detail(Computers, computerID).Append(RelAttachments)
}

// ProjectAttachments returns the key of a project's attachment list.
func ProjectAttachments(projectID string) cache.Key {
	return Detail(Projects, projectID).Append(RelAttachments)
}

// UserProjectKeys returns the key of a user's per-project account keys.
func UserProjectKeys(userID string) cache.Key {
	return Detail(Users, userID).Append(RelProjectKeys)
}

// CurrentUser returns the key of the authenticated user's record.
func CurrentUser() cache.Key {
	return cache.Key{string(Auth), authCurrentUser}
}

// AuthAll returns the prefix of every authentication-scoped key.
func AuthAll() cache.Key {
	return All(Auth)
}

// DefaultPolicy returns cache.DefaultPolicy with global configuration marked
// as never stale.
func DefaultPolicy() cache.Policy {
	return cache.DefaultPolicy().WithStaleTime(string(Config), cache.NeverStale)
}
