package models

import (
	"time"

	"github.com/zeto-space/exoclassify/internal/acquisition"
	"github.com/zeto-space/exoclassify/internal/pipeline"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

// SessionView is the API representation of an acquisition session
type SessionView struct {
	ID        string               `json:"id"`
	Status    acquisition.Status   `json:"status"`
	Cursor    int                  `json:"cursor"`
	Total     int                  `json:"total"`
	Prompt    string               `json:"prompt,omitempty"`
	Answered  []acquisition.Answer `json:"answered"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewSession is returned when a session starts
type NewSession struct {
	SessionView
	Greeting []acquisition.Output `json:"greeting"`
}

// AnswerRequest carries one operator answer. Value may be a JSON string or number.
type AnswerRequest struct {
	Value any `json:"value"`
}

// AnswerResponse is the outcome of one submission
type AnswerResponse struct {
	Session SessionView            `json:"session"`
	Outputs []acquisition.Output   `json:"outputs"`
	Result  *pipeline.SingleResult `json:"analysis,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// UploadResponse is the outcome of a bulk upload
type UploadResponse struct {
	FileName   string                     `json:"file_name,omitempty"`
	Records    int                        `json:"records"`
	Results    []verdict.RawServiceResult `json:"results"`
	Verdicts   []verdict.Verdict          `json:"verdicts"`
	Summary    verdict.Summary            `json:"summary"`
	AnalysisID string                     `json:"analysis_id,omitempty"`
	Briefing   string                     `json:"briefing,omitempty"`
	ExportName string                     `json:"export_name"`
}
