package model

import "time"

// SeasonEntry is a season search hit. ID is nil when the season was only
// seen as a bare year string.
type SeasonEntry struct {
	ID   *int    `json:"id"`
	Name string  `json:"name"`
	Logo *string `json:"logo"`
}

// ImportedKit summarizes a stored kit.
type ImportedKit struct {
	ID           uint     `json:"id"`
	FkaID        *int     `json:"id_fka"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	Team         string   `json:"team,omitempty"`
	Season       string   `json:"season,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	Type         string   `json:"type,omitempty"`
	Competitions []string `json:"competitions"`
	MainImgURL   string   `json:"main_img_url"`
}

// BulkImportResult counts the outcome of a bulk kit import.
type BulkImportResult struct {
	Requested int      `json:"requested"`
	Imported  int      `json:"imported"`
	Failed    int      `json:"failed"`
	Missing   []string `json:"missing,omitempty"`
}

// UserCollection is a fully paged FootballKitArchive user collection.
type UserCollection struct {
	UserID  int                      `json:"user_id"`
	User    map[string]interface{}   `json:"user"`
	Entries []map[string]interface{} `json:"entries"`
	Pages   int                      `json:"pages"`
}

// BreakerStatus mirrors the upstream circuit breaker state.
type BreakerStatus struct {
	Name            string     `json:"name"`
	State           string     `json:"state"`
	FailureCount    int        `json:"failure_count"`
	LastFailureTime *time.Time `json:"last_failure_time"`
}

// HealthStatus is served on the health endpoint.
type HealthStatus struct {
	Status       string        `json:"status"`
	CacheBackend string        `json:"cache_backend"`
	Breaker      BreakerStatus `json:"circuit_breaker"`
}
