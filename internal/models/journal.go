package models

// JournalEntry is a free-text journal note with optional ratings.
type JournalEntry struct {
	Base
	Content     string   `json:"content"`
	EntryDate   string   `json:"entryDate"`
	Mood        *int     `json:"mood,omitempty"`
	Motivation  *int     `json:"motivation,omitempty"`
	Energy      *int     `json:"energy,omitempty"`
	Location    string   `json:"location,omitempty"`
	LocationLat *float64 `json:"locationLat,omitempty"`
	LocationLng *float64 `json:"locationLng,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	MediaIDs    []string `json:"mediaIds,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
}

// TableName returns the table name for JournalEntry.
func (JournalEntry) TableName() string {
	return "journal_entries"
}

// Validate checks the entry's fields.
func (j *JournalEntry) Validate() error {
	v := newValidation(j)
	if j.Content == "" {
		v.Add("content", "is required")
	}
	if j.EntryDate == "" {
		v.Add("entryDate", "is required")
	}
	for field, rating := range map[string]*int{"mood": j.Mood, "motivation": j.Motivation, "energy": j.Energy} {
		if rating != nil && (*rating < 1 || *rating > 10) {
			v.Add(field, "must be between 1 and 10")
		}
	}
	validReference(v, "projectId", j.ProjectID, false)
	return v.Err()
}
