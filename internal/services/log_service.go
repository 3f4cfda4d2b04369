package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ledgermail/core/internal/database/models"
	"gorm.io/gorm"
)

// LogService records audit log rows
type LogService struct {
	db       *gorm.DB
	logLevel models.LogLevel
}

// NewLogService creates a new LogService instance
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{
		db:       db,
		logLevel: models.LogLevelInfo,
	}
}

// NewLogServiceWithLevel creates a new LogService instance with specified log level
func NewLogServiceWithLevel(db *gorm.DB, level string) *LogService {
	return &LogService{
		db:       db,
		logLevel: parseLogLevel(level),
	}
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) models.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return models.LogLevelDebug
	case "INFO":
		return models.LogLevelInfo
	case "WARN", "WARNING":
		return models.LogLevelWarn
	case "ERROR":
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}

// GetLogLevel returns the current log level
func (s *LogService) GetLogLevel() models.LogLevel {
	return s.logLevel
}

var levelPriority = map[models.LogLevel]int{
	models.LogLevelDebug: 0,
	models.LogLevelInfo:  1,
	models.LogLevelWarn:  2,
	models.LogLevelError: 3,
}

// shouldLog checks if a log entry should be recorded based on log level
func (s *LogService) shouldLog(level models.LogLevel) bool {
	return levelPriority[level] >= levelPriority[s.logLevel]
}

// LogEntry represents a log entry to be created
type LogEntry struct {
	UserID  string
	Level   models.LogLevel
	Module  models.LogModule
	Action  string
	Message string
	Details interface{} // serialized to JSON
}

// Log creates a new log entry
func (s *LogService) Log(entry LogEntry) error {
	if !s.shouldLog(entry.Level) {
		return nil
	}

	var detailsJSON string
	if entry.Details != nil {
		bytes, err := json.Marshal(entry.Details)
		if err != nil {
			detailsJSON = "{}"
		} else {
			detailsJSON = string(bytes)
		}
	}

	return s.db.Create(&models.Log{
		UserID:  entry.UserID,
		Level:   string(entry.Level),
		Module:  string(entry.Module),
		Action:  entry.Action,
		Message: entry.Message,
		Details: detailsJSON,
	}).Error
}

// LogInfo creates an INFO level log entry
func (s *LogService) LogInfo(userID string, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{UserID: userID, Level: models.LogLevelInfo, Module: module, Action: action, Message: message, Details: details})
}

// LogWarn creates a WARN level log entry
func (s *LogService) LogWarn(userID string, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{UserID: userID, Level: models.LogLevelWarn, Module: module, Action: action, Message: message, Details: details})
}

// LogError creates an ERROR level log entry
func (s *LogService) LogError(userID string, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{UserID: userID, Level: models.LogLevelError, Module: module, Action: action, Message: message, Details: details})
}

// ===== API Request Logging =====

// APIRequestDetails represents details for API request logs
type APIRequestDetails struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	Duration   int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// LogAPIRequest logs an API request; the level follows the status code class
func (s *LogService) LogAPIRequest(userID, method, path string, statusCode int, durationMs int64, clientIP, userAgent string) error {
	level := models.LogLevelDebug
	if statusCode >= 400 && statusCode < 500 {
		level = models.LogLevelWarn
	} else if statusCode >= 500 {
		level = models.LogLevelError
	}

	return s.Log(LogEntry{
		UserID:  userID,
		Level:   level,
		Module:  models.LogModuleAPI,
		Action:  "request",
		Message: method + " " + path,
		Details: APIRequestDetails{
			Method:     method,
			Path:       path,
			StatusCode: statusCode,
			Duration:   durationMs,
			ClientIP:   clientIP,
			UserAgent:  userAgent,
		},
	})
}

// ===== Authentication Logging =====

// AuthOperationDetails represents details for authentication operation logs
type AuthOperationDetails struct {
	Username string `json:"username,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
	Status   string `json:"status"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// LogLogin logs a login attempt; failures are recorded at WARN
func (s *LogService) LogLogin(userID, username, clientIP string, success bool, err error) error {
	details := AuthOperationDetails{
		Username: username,
		ClientIP: clientIP,
		Status:   "success",
	}
	if success {
		return s.LogInfo(userID, models.LogModuleAuth, "login", "User logged in successfully", details)
	}

	details.Status = "failed"
	if err != nil {
		details.ErrorMsg = err.Error()
	}
	return s.LogWarn(userID, models.LogModuleAuth, "login", "Login attempt failed", details)
}

// LogRegister logs a user registration
func (s *LogService) LogRegister(userID, username, clientIP string) error {
	return s.LogInfo(userID, models.LogModuleAuth, "register", "User registered", AuthOperationDetails{
		Username: username,
		ClientIP: clientIP,
		Status:   "success",
	})
}

// LogLogout logs a logout event
func (s *LogService) LogLogout(userID string) error {
	return s.LogInfo(userID, models.LogModuleAuth, "logout", "User logged out", nil)
}

// ===== Email and Label Logging =====

// EmailOperationDetails represents details for email operation logs
type EmailOperationDetails struct {
	EmailID  string `json:"email_id,omitempty"`
	LabelID  uint   `json:"label_id,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Status   string `json:"status,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// LogEmailChange logs a create, update or delete of an email
func (s *LogService) LogEmailChange(userID, action, emailID, subject string) error {
	return s.LogInfo(userID, models.LogModuleEmail, action, "Email "+action+"d", EmailOperationDetails{
		EmailID: emailID,
		Subject: subject,
	})
}

// LogLabelChange logs a create, update, delete, attach or detach of a label
func (s *LogService) LogLabelChange(userID, action string, labelID uint, emailID string) error {
	return s.LogInfo(userID, models.LogModuleLabel, action, "Label "+action, EmailOperationDetails{
		EmailID: emailID,
		LabelID: labelID,
	})
}

// LogExport logs a document export attempt
func (s *LogService) LogExport(userID, emailID, fileID string, err error) error {
	details := EmailOperationDetails{
		EmailID: emailID,
		FileID:  fileID,
		Status:  "exported",
	}

	level := models.LogLevelInfo
	message := "Email exported"
	if err != nil {
		level = models.LogLevelError
		details.Status = "failed"
		details.ErrorMsg = err.Error()
		message = "Failed to export email"
	}

	return s.Log(LogEntry{
		UserID:  userID,
		Level:   level,
		Module:  models.LogModuleExport,
		Action:  "export",
		Message: message,
		Details: details,
	})
}

// LogSync logs a mailbox sync trigger
func (s *LogService) LogSync(userID string, err error) error {
	if err != nil {
		return s.LogError(userID, models.LogModuleSync, "sync", "Sync failed", EmailOperationDetails{
			Status:   "failed",
			ErrorMsg: err.Error(),
		})
	}
	return s.LogInfo(userID, models.LogModuleSync, "sync", "Sync triggered", EmailOperationDetails{
		Status: "triggered",
	})
}

// ===== Log Query Methods =====

// LogQuery represents query parameters for log retrieval
type LogQuery struct {
	UserID    string
	Level     string
	Module    string
	Action    string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	Limit     int
}

// LogQueryResult represents the result of a log query
type LogQueryResult struct {
	Total int64
	Logs  []models.Log
}

// QueryLogs retrieves logs based on query parameters
func (s *LogService) QueryLogs(query LogQuery) (*LogQueryResult, error) {
	db := s.db.Model(&models.Log{})

	if query.UserID != "" {
		db = db.Where("user_id = ?", query.UserID)
	}
	if query.Level != "" {
		db = db.Where("level = ?", query.Level)
	}
	if query.Module != "" {
		db = db.Where("module = ?", query.Module)
	}
	if query.Action != "" {
		db = db.Where("action = ?", query.Action)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}

	var logs []models.Log
	if err := db.Order("created_at DESC").Order("id DESC").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&logs).Error; err != nil {
		return nil, err
	}

	return &LogQueryResult{
		Total: total,
		Logs:  logs,
	}, nil
}
