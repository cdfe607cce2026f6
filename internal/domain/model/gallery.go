package model

import "time"

// ImageRecord is one entry of a recursive folder listing.
type ImageRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Download  string `json:"download"`
}

// UploadResult reports which files of a batch were written and which were
// rejected by the extension allow-list.
type UploadResult struct {
	Files   []string `json:"files"`
	Skipped []string `json:"skipped"`
}

// FileInfo describes a resolved gallery file ready to be streamed.
type FileInfo struct {
	AbsPath     string
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
}
