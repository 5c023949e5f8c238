// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/orochi-mail/app/dto"
	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/amirphl/orochi-mail/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	trackingRequestTimeout = 5 * time.Second
	reportRequestTimeout   = 60 * time.Second
)

// Business error codes that describe bad input rather than a server fault
var badRequestCodes = map[string]bool{
	"SCHEDULE_TIME_INVALID":    true,
	"BLACKLIST_REASON_INVALID": true,
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func validationMessages(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// flowError maps a business flow error to a status, an error code and a message.
// Unknown errors map to 500.
func flowError(err error) (int, string, string) {
	switch {
	case businessflow.IsCampaignUUIDRequired(err):
		return fiber.StatusBadRequest, "CAMPAIGN_UUID_REQUIRED", "Campaign UUID is required"
	case businessflow.IsCampaignNotFound(err):
		return fiber.StatusNotFound, "CAMPAIGN_NOT_FOUND", "Campaign not found"
	case businessflow.IsCampaignAccessDenied(err):
		return fiber.StatusForbidden, "CAMPAIGN_ACCESS_DENIED", "Campaign belongs to another user"
	case businessflow.IsCampaignAlreadySending(err):
		return fiber.StatusConflict, "CAMPAIGN_ALREADY_SENDING", "Campaign is already sending"
	case businessflow.IsCampaignAlreadySent(err):
		return fiber.StatusConflict, "CAMPAIGN_ALREADY_SENT", "Campaign has already been sent"
	case businessflow.IsDispatchInProgress(err):
		return fiber.StatusConflict, "DISPATCH_IN_PROGRESS", "Campaign dispatch already in progress"
	case businessflow.IsInvalidStatusTransition(err):
		return fiber.StatusConflict, "INVALID_STATUS_TRANSITION", "Campaign status does not allow this action"
	case businessflow.IsCampaignNoAudience(err):
		return fiber.StatusUnprocessableEntity, "CAMPAIGN_NO_AUDIENCE", "Campaign has no active recipients"
	case businessflow.IsScheduleTimeInPast(err):
		return fiber.StatusUnprocessableEntity, "SCHEDULE_TIME_IN_PAST", "Scheduled time must be in the future"
	case businessflow.IsProviderUnavailable(err):
		return fiber.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "Email provider is unavailable"
	case businessflow.IsDispatchQueueFull(err):
		return fiber.StatusServiceUnavailable, "DISPATCH_QUEUE_FULL", "Dispatch queue is full, try again later"
	case businessflow.IsTestSendFailed(err):
		return fiber.StatusBadGateway, "TEST_SEND_FAILED", errorMessage(err)
	case businessflow.IsInvalidDateRange(err):
		return fiber.StatusBadRequest, "INVALID_DATE_RANGE", errorMessage(err)
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) && badRequestCodes[be.Code] {
		return fiber.StatusBadRequest, be.Code, be.Message
	}
	return fiber.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
}

func errorMessage(err error) string {
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// flowErrorResponse writes the mapped error and logs anything unexpected
func flowErrorResponse(c fiber.Ctx, action string, err error) error {
	status, code, message := flowError(err)
	if status == fiber.StatusInternalServerError {
		log.Println(action+" failed", err)
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			code = be.Code
		}
	}
	return errorResponse(c, status, message, code, nil)
}

func userIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("user_id").(uint)
	return userID, ok && userID != 0
}

// createRequestContext builds the flow context for a request. The caller must call cancel.
func createRequestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, businessflow.ClientIP(c.Get("X-Forwarded-For"), c.IP()))
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	if userID, ok := userIDFromContext(c); ok {
		ctx = context.WithValue(ctx, utils.UserIDKey, userID)
	}
	return ctx, cancel
}
