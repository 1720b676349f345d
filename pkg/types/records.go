package types

// FileRecord describes one file in the server's storage namespace together
// with its archived revisions. It is the entry shape of the LIST response.
type FileRecord struct {
	Filename string          `json:"filename"`          // Name within the namespace
	Size     int64           `json:"size"`              // File size in bytes
	Modified string          `json:"modified"`          // Last-modified time, "2006-01-02 15:04:05"
	Hash     string          `json:"hash,omitempty"`    // Hex SHA-256 of the current content
	Versions []VersionRecord `json:"versions"`          // Archived revisions, oldest first
}

// VersionRecord is immutable metadata for one archived prior revision of a
// file. Records are append-only: normal operation never mutates or deletes
// them.
type VersionRecord struct {
	Filename string `json:"filename"`       // Archived name (base name + timestamp)
	Size     int64  `json:"size"`           // Size in bytes at archive time
	Modified string `json:"modified"`       // Last-modified time, "2006-01-02 15:04:05"
	Hash     string `json:"hash,omitempty"` // Hex SHA-256 of the archived content
}

// TimeFormat is the layout used for the Modified fields.
const TimeFormat = "2006-01-02 15:04:05"
