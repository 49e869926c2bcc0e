package httpadapter

import (
	"time"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

type sessionResponse struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source,omitempty"`
	HasDataset bool                   `json:"has_dataset"`
	Stats      *domain.NormalizeStats `json:"stats,omitempty"`
	Quiz       *domain.QuizState      `json:"quiz,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

type datasetResponse struct {
	Source string                `json:"source"`
	Stats  domain.NormalizeStats `json:"stats"`
}

type histogramResponse struct {
	Dimension domain.Dimension `json:"dimension"`
	Filter    domain.Filter    `json:"filter"`
	Buckets   []domain.Bucket  `json:"buckets"`
}

type timeSeriesResponse struct {
	Filter domain.Filter       `json:"filter"`
	Series []domain.DailyCount `json:"series"`
}

type pointsResponse struct {
	Filter domain.Filter  `json:"filter"`
	Points []domain.Point `json:"points"`
}

// quizRequest starts a new indicator exercise. Kind is matched case-insensitively.
type quizRequest struct {
	Kind       string  `json:"kind" validate:"required"`
	Mode       string  `json:"mode" validate:"required,oneof=generate manual"`
	Values     [][]int `json:"values" validate:"required_if=Mode manual"`
	Population int64   `json:"population"`
}

type quizResponse struct {
	Table      domain.Table `json:"table"`
	Population int64        `json:"population"`
	// Pending lists variations that cannot be computed until the table is filled in.
	Pending []string `json:"pending,omitempty"`
}

type checkRequest struct {
	Rates      map[string]float64 `json:"rates"`
	Variations map[string]float64 `json:"variations"`
	Tolerance  *float64           `json:"tolerance" validate:"omitempty,gt=0"`
}

type checkResponse struct {
	domain.Grade
	AllMatch bool `json:"all_match"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}
