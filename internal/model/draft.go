package model

import "time"

// DraftEntry is the single in-progress, unsubmitted form entry. It is
// autosaved continuously so an app restart can resume the flow at Step.
type DraftEntry struct {
	Step       int       `json:"step"`
	ImageURI   string    `json:"imageUri,omitempty"`
	Date       string    `json:"date"`
	Category   string    `json:"category"`
	CategoryID *int64    `json:"categoryId,omitempty"`
	Client     string    `json:"client"`
	Amount     string    `json:"amount"`
	Note       string    `json:"note"`
	SavedAt    time.Time `json:"savedAt"`
}

// HasContent reports whether the draft carries anything worth persisting.
// Empty drafts are not written so HasDraft stays false until the user
// actually enters something.
func (d DraftEntry) HasContent() bool {
	return d.ImageURI != "" || d.Category != "" || d.Client != "" || d.Amount != ""
}
