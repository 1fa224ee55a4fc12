package evaluation

// EvaluateRequest is the evaluation form. Language is optional; when absent
// the handler falls back to the Accept-Language header.
type EvaluateRequest struct {
	FileID          string `json:"file_id" validate:"required,uuid"`
	DesiredPosition string `json:"desired_position" validate:"required,max=200"`
	Skills          string `json:"skills" validate:"max=1000"`
	Tools           string `json:"tools" validate:"max=1000"`
	Country         string `json:"country" validate:"max=100"`
	Language        string `json:"language" validate:"omitempty,eval_language"`
	AnalyseAgain    bool   `json:"analyse_again"`
}

// Form is the validated, language-resolved evaluation input.
type Form struct {
	FileID          string
	DesiredPosition string
	Skills          string
	Tools           string
	Country         string
	Language        string
	AnalyseAgain    bool
}
