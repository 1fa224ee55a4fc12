package cvfile

import "time"

// File is an uploaded résumé.
type File struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	FileURL      string    `db:"file_url" json:"file_url"`
	StorageKey   string    `db:"storage_key" json:"-"`
	OriginalName string    `db:"original_name" json:"original_name"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// AspectFeedback is one stored evaluation aspect, carried alongside a file
// in listings so the frontend renders past results without a second call.
type AspectFeedback struct {
	Aspect   string `db:"aspect" json:"aspect"`
	Score    int    `db:"score" json:"score"`
	Feedback string `db:"feedback" json:"feedback"`
}

// FileWithEvaluations is a listing row.
type FileWithEvaluations struct {
	File
	Evaluations []AspectFeedback `json:"evaluations"`
}
