package models

import "fmt"

// RepoType selects which document repository an operation targets.
type RepoType string

const (
	// RepoUniversity is the shared repository managed by admins.
	RepoUniversity RepoType = "university"
	// RepoPersonal is a teacher's own repository.
	RepoPersonal RepoType = "personal"
)

// ValidateRepo checks a repository selector the way the backend does:
// personal repositories need an owner.
func ValidateRepo(repo RepoType, ownerID *int) error {
	switch repo {
	case RepoUniversity:
		return nil
	case RepoPersonal:
		if ownerID == nil {
			return fmt.Errorf("owner_id required for personal repository")
		}
		return nil
	}
	return fmt.Errorf("repo_type must be %q or %q", RepoUniversity, RepoPersonal)
}

// DocumentSummary is one row of the repository listing.
type DocumentSummary struct {
	DocumentID       string `json:"document_id"`
	FileName         string `json:"file_name"`
	FileType         string `json:"file_type,omitempty"`
	NumChunks        int    `json:"num_chunks,omitempty"`
	NumPagesOrSlides int    `json:"num_pages_or_slides,omitempty"`
	IndexedAt        string `json:"indexed_at,omitempty"`
}

// DocumentList is the /documents/list response.
type DocumentList struct {
	Documents []DocumentSummary `json:"documents"`
}

// RepoStats is the /documents/stats response. The backend reports an error
// string instead of counts when its database is missing.
type RepoStats struct {
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
	Error         string `json:"error,omitempty"`
	DBPath        string `json:"db_path,omitempty"`
}
