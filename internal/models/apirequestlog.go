package models

import (
	"time"

	"github.com/google/uuid"
)

// Represents one tracked request/response cycle
type APIRequestLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Actor identity. UserID/Username are set when the request carried a
	// valid JWT. UsernamePersistent survives user deletion.
	UserID             *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Username           string     `json:"username,omitempty"`
	UsernamePersistent string     `json:"username_persistent"`
	APIKeyID           *uuid.UUID `gorm:"type:uuid;index" json:"api_key_id,omitempty"`

	RequestedAt time.Time `gorm:"index" json:"requested_at"`
	ResponseMs  int       `json:"response_ms"`

	Path       string `gorm:"index" json:"path"`
	View       string `json:"view"`
	ViewMethod string `json:"view_method"`
	RemoteAddr string `json:"remote_addr"`
	Host       string `json:"host"`
	Method     string `json:"method"`

	QueryParams string `gorm:"type:text" json:"query_params"`
	Data        string `gorm:"type:text" json:"data"`
	Response    string `gorm:"type:text" json:"response"`
	Errors      string `gorm:"type:text" json:"errors,omitempty"`

	StatusCode int `gorm:"index" json:"status_code"`
}

func (APIRequestLog) TableName() string {
	return "api_request_logs"
}
