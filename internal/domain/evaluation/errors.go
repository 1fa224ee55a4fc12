package evaluation

import "errors"

var (
	// ErrNotCV is returned when the gate model decides the file is not a résumé
	ErrNotCV = errors.New("file is not a cv")

	// ErrNoResults is returned when no stored evaluation exists for the file
	ErrNoResults = errors.New("no evaluation results for this file")

	ErrInternal = errors.New("internal error")
)
