package cases

import (
	"time"
)

// ID tipe untuk Case
type CaseID string

// Status enum
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAnalyzing Status = "ANALYZING"
	StatusSolved    Status = "SOLVED"
)

// User referensi read-only (pemilik case), dipakai untuk tujuan notifikasi
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Aggregate Root: Case
// Evidence keys are object-storage keys, set at intake and immutable after.
type Case struct {
	ID          CaseID    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PersonName  string    `json:"person_name"`
	RefImageKey string    `json:"ref_image_key"`
	VideoKey    string    `json:"video_key"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `json:"user_id"`
	Owner       *User     `json:"owner,omitempty"`
}
