// Package entity defines the server-owned records cached by the engine.
//
// Every record has an opaque identifier. ProjectAttachment additionally
// carries the foreign keys that link a computer to a project; they are fixed
// at creation and drive invalidation of the related attachment lists.
package entity

import "time"

// Identifiable is implemented by records that expose their identifier.
type Identifiable interface {
	EntityID() string
}

// User is an account on the account manager.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Country   string    `json:"country,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityID returns the user id.
func (u User) EntityID() string { return u.ID }

// Computer is a host machine donating compute time.
type Computer struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Hostname string    `json:"hostname"`
	Platform string    `json:"platform"`
	CPUCount int       `json:"cpu_count"`
	LastSeen time.Time `json:"last_seen"`
}

// EntityID returns the computer id.
func (c Computer) EntityID() string { return c.ID }

// Project is a remote volunteer-computing project.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// EntityID returns the project id.
func (p Project) EntityID() string { return p.ID }

// ProjectAttachment attaches a computer to a project.
// ComputerID and ProjectID never change after creation.
type ProjectAttachment struct {
	ID            string  `json:"id"`
	ComputerID    string  `json:"computer_id"`
	ProjectID     string  `json:"project_id"`
	ResourceShare float64 `json:"resource_share"`
	Suspended     bool    `json:"suspended"`
	NoMoreWork    bool    `json:"dont_request_more_work"`
}

// EntityID returns the attachment id.
func (a ProjectAttachment) EntityID() string { return a.ID }

// PreferenceGroup is a named set of computing preferences.
type PreferenceGroup struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	Preferences map[string]any `json:"preferences"`
}

// EntityID returns the preference group id.
func (g PreferenceGroup) EntityID() string { return g.ID }

// InviteCode gates registration.
type InviteCode struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	UsesRemaining int       `json:"uses_remaining"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// EntityID returns the invite code id.
func (i InviteCode) EntityID() string { return i.ID }

// UserProjectKey is a user's account key on one project.
type UserProjectKey struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	ProjectID  string `json:"project_id"`
	AccountKey string `json:"account_key"`
}

// EntityID returns the key id.
func (k UserProjectKey) EntityID() string { return k.ID }
