package mutation

import (
	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/entity"
	"github.com/jonwraymond/entitycache/keys"
)

// Relation describes the cache keys that depend on an entity through its
// foreign keys.
type Relation struct {
	// Dependents derives the dependent keys from an entity value or a
	// create payload. ok is false when the foreign keys are unknown.
	Dependents func(v any) (deps []cache.Key, ok bool)

	// Tag is the key segment that marks dependent keys. When the foreign
	// keys are unknown, every cached key containing Tag is invalidated.
	Tag string
}

// DefaultRelations returns the relations of the account manager entities.
func DefaultRelations() map[keys.EntityType]Relation {
	return map[keys.EntityType]Relation{
		keys.Attachments: {
			Dependents: attachmentDependents,
			Tag:        keys.RelAttachments,
		},
		keys.ProjectKeys: {
			Dependents: projectKeyDependents,
			Tag:        keys.RelProjectKeys,
		},
	}
}

func attachmentDependents(v any) ([]cache.Key, bool) {
	links, ok := entity.LinksOf(v)
	if !ok {
		return nil, false
	}
	var deps []cache.Key
	if links.ComputerID != "" {
		deps = append(deps, keys.ComputerAttachments(links.ComputerID))
	}
	if links.ProjectID != "" {
		deps = append(deps, keys.ProjectAttachments(links.ProjectID))
	}
	return deps, links.Complete()
}

func projectKeyDependents(v any) ([]cache.Key, bool) {
	var userID string
	switch k := v.(type) {
	case entity.UserProjectKey:
		userID = k.UserID
	case *entity.UserProjectKey:
		if k != nil {
			userID = k.UserID
		}
	case map[string]any:
		userID, _ = k["user_id"].(string)
	}
	if userID == "" {
		return nil, false
	}
	return []cache.Key{keys.UserProjectKeys(userID)}, true
}
