package dto

type TranscodeVideoPayload struct {
	VideoID     string   `json:"video_id" validate:"required"`
	SourcePath  string   `json:"source_path" validate:"required"`
	Resolutions []string `json:"resolutions" validate:"required,min=1,dive,oneof=360p 480p 720p 1080p"`
}
