// Package businessflow contains the campaign delivery, tracking and reporting use cases
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound        = errors.New("campaign not found")
	ErrCampaignAccessDenied    = errors.New("campaign access denied")
	ErrCampaignAlreadySending  = errors.New("campaign is already sending")
	ErrCampaignAlreadySent     = errors.New("campaign has already been sent")
	ErrCampaignNoAudience      = errors.New("campaign has no active recipients")
	ErrInvalidStatusTransition = errors.New("invalid campaign status transition")
	ErrScheduleTimeInPast      = errors.New("schedule time must be in the future")
	ErrCampaignUUIDRequired    = errors.New("campaign UUID is required")

	// Delivery errors
	ErrProviderUnavailable = errors.New("email provider unavailable")
	ErrDispatchInProgress  = errors.New("campaign dispatch already in progress")
	ErrDispatchQueueFull   = errors.New("dispatch queue is full")
	ErrTestSendFailed      = errors.New("test message could not be sent")

	// Tracking and subscriber errors
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrTrackingURLMissing = errors.New("tracking url is missing")

	// Filter errors
	ErrInvalidDateRange = errors.New("invalid date range")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignAlreadySending(err error) bool {
	return errors.Is(err, ErrCampaignAlreadySending)
}

func IsCampaignAlreadySent(err error) bool {
	return errors.Is(err, ErrCampaignAlreadySent)
}

func IsCampaignNoAudience(err error) bool {
	return errors.Is(err, ErrCampaignNoAudience)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsScheduleTimeInPast(err error) bool {
	return errors.Is(err, ErrScheduleTimeInPast)
}

func IsCampaignUUIDRequired(err error) bool {
	return errors.Is(err, ErrCampaignUUIDRequired)
}

func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

func IsDispatchInProgress(err error) bool {
	return errors.Is(err, ErrDispatchInProgress)
}

func IsDispatchQueueFull(err error) bool {
	return errors.Is(err, ErrDispatchQueueFull)
}

func IsTestSendFailed(err error) bool {
	return errors.Is(err, ErrTestSendFailed)
}

func IsSubscriberNotFound(err error) bool {
	return errors.Is(err, ErrSubscriberNotFound)
}

func IsTrackingURLMissing(err error) bool {
	return errors.Is(err, ErrTrackingURLMissing)
}

func IsInvalidDateRange(err error) bool {
	return errors.Is(err, ErrInvalidDateRange)
}
