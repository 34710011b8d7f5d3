package models

import "time"

// User is the profile returned by the backend on login.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

// Session pairs the bearer token issued by the backend with the profile it belongs to.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponse is the backend's login payload.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// SignupRequest is submitted to /auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest is submitted to /auth/login.
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

// VerifyOTPRequest is submitted to /auth/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VideoUpload acknowledges an accepted upload. Processing has not finished yet.
type VideoUpload struct {
	VideoID  string `json:"video_id"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// VideoStatus is one observation of a processing job.
type VideoStatus struct {
	VideoID      string `json:"video_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	Message      string `json:"message"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// BoundingBox locates a detection within a frame.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// DetectedObject is a single object detection.
type DetectedObject struct {
	FrameNumber int         `json:"frame_number"`
	Timestamp   float64     `json:"timestamp"`
	ObjectClass string      `json:"object_class"`
	Confidence  float64     `json:"confidence"`
	BBox        BoundingBox `json:"bbox"`
}

// ExtractedText is a single OCR hit.
type ExtractedText struct {
	FrameNumber int     `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
}

// VideoResults holds the finished output of a processing job.
type VideoResults struct {
	VideoID         string           `json:"video_id"`
	Filename        string           `json:"filename"`
	Status          string           `json:"status"`
	Duration        *float64         `json:"duration,omitempty"`
	FPS             *float64         `json:"fps,omitempty"`
	TotalFrames     int              `json:"total_frames"`
	DetectedObjects []DetectedObject `json:"detected_objects"`
	ExtractedTexts  []ExtractedText  `json:"extracted_texts"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	CreatedAt       Timestamp        `json:"created_at"`
	CompletedAt     *Timestamp       `json:"completed_at,omitempty"`
}

// VideoSummary is a row of /video/list.
type VideoSummary struct {
	VideoID     string     `json:"video_id"`
	Filename    string     `json:"filename"`
	Status      string     `json:"status"`
	CreatedAt   Timestamp  `json:"created_at"`
	CompletedAt *Timestamp `json:"completed_at,omitempty"`
}

// VideoList is the /video/list payload.
type VideoList struct {
	Total  int            `json:"total"`
	Videos []VideoSummary `json:"videos"`
}

// Backend status values.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
