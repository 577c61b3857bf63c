package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// UploadedPolicy is the metadata record of a policy wording PDF whose text
// has been (or is being) chunked into the retrieval index.
type UploadedPolicy struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	Insurer     string         `json:"insurer"`
	Label       string         `json:"label"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	ChunkCount  int            `json:"chunk_count"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PageText is the extracted text of one 1-based page.
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// IngestReport summarizes a directory ingestion run.
type IngestReport struct {
	Embedded int      `json:"embedded"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// InsurerKey reduces an insurer name to lowercase ASCII letters and digits,
// so "Star Health", "star_health" and "STAR-HEALTH" share the key
// "starhealth".
func InsurerKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// InsurerMatches reports whether two insurer names refer to the same
// insurer: their keys are non-empty and one is a prefix of the other, so
// "Star Health" matches "Star Health Insurance".
func InsurerMatches(a, b string) bool {
	ka, kb := InsurerKey(a), InsurerKey(b)
	if ka == "" || kb == "" {
		return false
	}
	return strings.HasPrefix(ka, kb) || strings.HasPrefix(kb, ka)
}
