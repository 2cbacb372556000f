package domain

import "time"

// SecuritySettings feed the lockout policy and token lifetime.
type SecuritySettings struct {
	MaxFailedLogins    int      `json:"max_failed_logins"`
	LockoutDurationMin int      `json:"lockout_duration"` // minutes
	RequireTwoFactor   bool     `json:"require_two_factor"`
	AllowedIPs         []string `json:"allowed_ips"`
	AutoLockTimeoutMin int      `json:"auto_lock_timeout"` // minutes
}

type RDPSettings struct {
	DefaultPort       int    `json:"default_port"`
	DefaultQuality    string `json:"default_quality"`
	AudioRedirection  bool   `json:"audio_redirection"`
	ClipboardSync     bool   `json:"clipboard_sync"`
	ConnectTimeoutSec int    `json:"connection_timeout"`
}

type FileSettings struct {
	MaxFileSizeMB     int      `json:"max_file_size"`
	AllowedExtensions []string `json:"allowed_extensions"`
	EncryptUploads    bool     `json:"encrypt_uploads"`
}

type SystemSettings struct {
	LogLevel          string `json:"log_level"`
	LogRetentionDays  int    `json:"log_retention_days"`
	AutoBackup        bool   `json:"auto_backup"`
	BackupIntervalHrs int    `json:"backup_interval_hours"`
	MaintenanceMode   bool   `json:"maintenance_mode"`
}

// AppSettings is the single settings document. It is stored whole as JSON;
// partial updates replace a section and rewrite the document.
type AppSettings struct {
	Security SecuritySettings `json:"security"`
	RDP      RDPSettings      `json:"rdp"`
	Files    FileSettings     `json:"files"`
	System   SystemSettings   `json:"system"`

	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSettings mirrors the defaults the panel ships with.
func DefaultSettings() AppSettings {
	return AppSettings{
		Security: SecuritySettings{
			MaxFailedLogins:    5,
			LockoutDurationMin: 30,
			RequireTwoFactor:   true,
			AutoLockTimeoutMin: 30,
		},
		RDP: RDPSettings{
			DefaultPort:       3389,
			DefaultQuality:    "high",
			AudioRedirection:  true,
			ClipboardSync:     true,
			ConnectTimeoutSec: 30,
		},
		Files: FileSettings{
			MaxFileSizeMB:     100,
			AllowedExtensions: []string{"pdf", "doc", "docx", "txt", "jpg", "png", "zip"},
			EncryptUploads:    true,
		},
		System: SystemSettings{
			LogLevel:          "INFO",
			LogRetentionDays:  30,
			AutoBackup:        true,
			BackupIntervalHrs: 24,
		},
	}
}
