package model

// Project is a logical grouping of websites owned by one account.
type Project struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// Website is a single scan target belonging to a project.
type Website struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Slug      string `json:"slug"`
	Name      string `json:"name,omitempty"`
	Origin    string `json:"origin"`
	CreatedAt int64  `json:"created_at"`

	// LastScannedAt is the finish time of the latest scan, if any.
	LastScannedAt int64 `json:"last_scanned_at,omitempty"`
}
