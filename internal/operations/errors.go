package operations

import (
	"errors"
	"fmt"

	apperrors "backfill/internal/errors"
	"backfill/pkg/contracts/domain"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrStageOutOfOrder is returned when a stage runs before its inputs exist
	ErrStageOutOfOrder = errors.New("stage out of order")
	// ErrUnknownStage is returned for stage IDs missing from the registry
	ErrUnknownStage = errors.New("unknown stage")
)

// NewStageOrderError reports that stage cannot run until requires completed
func NewStageOrderError(stage string, requires domain.StageID) error {
	msg := fmt.Sprintf("%s requires a completed %s upload", stage, requires)
	return apperrors.NewAppError(apperrors.ErrTypeState, msg, ErrStageOutOfOrder).
		WithContext("stage", stage).
		WithContext("requires", string(requires))
}

func sessionNotFound(id string) error {
	return apperrors.NewAppError(apperrors.ErrTypeNotFound, fmt.Sprintf("session %s not found", id), ErrSessionNotFound).
		WithContext("session_id", id)
}

func unknownStage(id domain.StageID) error {
	return apperrors.NewAppError(apperrors.ErrTypeNotFound, fmt.Sprintf("stage %q not found", id), ErrUnknownStage)
}
