package model

// Target is one industry/location pair in the scraping rotation.
type Target struct {
	ID       int64  `json:"id"`
	Industry string `json:"industry"`
	Country  string `json:"country"`
	State    string `json:"state,omitempty"`
}

// Location returns the most specific location the target carries.
func (t Target) Location() string {
	if t.State != "" {
		return t.State
	}
	return t.Country
}
