package analysis

import "errors"

var (
	ErrGenerationFailed = errors.New("failed to generate analysis")
	ErrEmptyAnalysis    = errors.New("analysis is empty")
)
