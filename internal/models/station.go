package models

import "time"

// Station represents one cataloged audio stream with health, descriptive,
// and engagement fields.
type Station struct {
	ID          int64   `json:"id"`
	URL         string  `json:"url"`
	Name        string  `json:"name"`
	Genre       string  `json:"genre"`
	Icon        string  `json:"icon,omitempty"`
	Homepage    *string `json:"homepage,omitempty"`
	ContentType string  `json:"content_type"`

	Online    bool   `json:"online"`
	Bitrate   *int   `json:"bitrate,omitempty"` // nil means unknown; 0 is a reported value
	Error     string `json:"-"`                 // last failure reason, internal only
	Duplicate bool   `json:"-"`

	PlayMinutes int64 `json:"play_minutes"`
	InList      int64 `json:"in_list"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Score returns the popularity score used for search ranking.
func (s *Station) Score() int64 {
	return s.InList*PopularityListWeight + s.PlayMinutes
}
