package domain

import "time"

// FileItem describes one directory entry inside the managed file root.
type FileItem struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Type        string    `json:"type"` // "file" or "folder"
	Size        int64     `json:"size,omitempty"`
	Modified    time.Time `json:"modified"`
	Permissions string    `json:"permissions"`
	Checksum    string    `json:"checksum,omitempty"`
}
