package project

import "time"

type Project struct {
	ID          string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const (
	// UnknownName is shown when a project document has disappeared.
	UnknownName = "Unknown Project"
	// PersonalName labels standalone tasks that belong to no project.
	PersonalName = "Personal Tasks"
)
