package dto

import "encoding/json"

type SubmitJobDTO struct {
	Payload   json.RawMessage `json:"payload" validate:"required"`
	TimeoutMs int64           `json:"timeout_ms,omitempty" validate:"gte=0"`
}

type SubmitJobResponseDTO struct {
	ID string `json:"id"`
}

type FailJobDTO struct {
	Error string `json:"error,omitempty"`
}

type ResizeDTO struct {
	Count int `json:"count" validate:"required,gt=0"`
}

type ConcurrencyDTO struct {
	Limit int `json:"limit" validate:"required,gt=0"`
}
