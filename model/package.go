package model

import "time"

type Package struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text;not null"`
	Name        string    `json:"name" gorm:"not null;uniqueIndex:idx_pkg_name_version;size:214"`
	Version     string    `json:"version" gorm:"not null;uniqueIndex:idx_pkg_name_version;size:64"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	ContentKey  string    `json:"-" gorm:"not null"` // object key in artifact storage
	Size        int64     `json:"size" gorm:"not null;default:0"`
	SHA256      string    `json:"sha256" gorm:"size:64"`
	UploadedBy  string    `json:"uploaded_by" gorm:"index;size:64"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}
