package handlers

import (
	"strconv"

	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AnalyticsHandlerInterface defines the contract for dashboard analytics handlers
type AnalyticsHandlerInterface interface {
	Overview(c fiber.Ctx) error
	RealTime(c fiber.Ctx) error
	Daily(c fiber.Ctx) error
}

type AnalyticsHandler struct {
	flow businessflow.AnalyticsFlow
}

func NewAnalyticsHandler(flow businessflow.AnalyticsFlow) *AnalyticsHandler {
	return &AnalyticsHandler{flow: flow}
}

// Overview returns totals and a per-day series for the trailing window
// @Summary Analytics Overview
// @Tags Analytics
// @Produce json
// @Param days query int false "Window in days (default 30, max 365)"
// @Success 200 {object} dto.APIResponse{data=dto.AnalyticsOverviewResponse}
// @Failure 400 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/analytics/overview [get]
func (h *AnalyticsHandler) Overview(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return errorResponse(c, fiber.StatusBadRequest, "days must be a positive number", "INVALID_DAYS", nil)
		}
		days = n
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/overview", defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.Overview(ctx, userID, days)
	if err != nil {
		return flowErrorResponse(c, "Analytics overview", err)
	}
	return successResponse(c, fiber.StatusOK, "Analytics overview retrieved successfully", result)
}

// RealTime returns the month-to-date header figures
// @Summary Real-time Stats
// @Tags Analytics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.RealTimeStatsResponse}
// @Security BearerAuth
// @Router /api/v1/analytics/realtime [get]
func (h *AnalyticsHandler) RealTime(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/realtime", defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.RealTime(ctx, userID)
	if err != nil {
		return flowErrorResponse(c, "Real-time stats", err)
	}
	return successResponse(c, fiber.StatusOK, "Real-time stats retrieved successfully", result)
}

// Daily refreshes and returns the rollup of one day
// @Summary Daily Analytics
// @Tags Analytics
// @Produce json
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} dto.APIResponse{data=dto.DailyAnalyticsResponse}
// @Failure 400 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/analytics/daily [get]
func (h *AnalyticsHandler) Daily(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/daily", defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.Daily(ctx, userID, c.Query("date"))
	if err != nil {
		return flowErrorResponse(c, "Daily analytics", err)
	}
	return successResponse(c, fiber.StatusOK, "Daily analytics retrieved successfully", result)
}
