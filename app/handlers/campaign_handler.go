package handlers

import (
	"net/url"

	"github.com/amirphl/orochi-mail/app/dto"
	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/amirphl/orochi-mail/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	SendCampaign(c fiber.Ctx) error
	TestSend(c fiber.Ctx) error
	ScheduleCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	GetCampaignStats(c fiber.Ctx) error
	GetRecentStats(c fiber.Ctx) error
	DownloadDeliveryReport(c fiber.Ctx) error
	AddToBlacklist(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	dispatchFlow businessflow.CampaignDispatchFlow
	statsFlow    businessflow.CampaignStatsFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(
	campaignFlow businessflow.CampaignFlow,
	dispatchFlow businessflow.CampaignDispatchFlow,
	statsFlow businessflow.CampaignStatsFlow,
) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		dispatchFlow: dispatchFlow,
		statsFlow:    statsFlow,
		validator:    validator.New(),
	}
}

// SendCampaign claims a campaign and queues it for background delivery
// @Summary Send Campaign
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 202 {object} dto.APIResponse{data=dto.SendCampaignResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 422 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/campaigns/{uuid}/send [post]
func (h *CampaignHandler) SendCampaign(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	campaignUUID := c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/send", defaultRequestTimeout)
	defer cancel()

	result, err := h.dispatchFlow.Trigger(ctx, userID, campaignUUID)
	if err != nil {
		return flowErrorResponse(c, "Send campaign", err)
	}

	return successResponse(c, fiber.StatusAccepted, "Campaign queued for delivery", dto.SendCampaignResponse{
		Message:      "Campaign is being sent",
		UUID:         result.CampaignUUID,
		Status:       string(models.CampaignStatusSending),
		AudienceSize: result.AudienceSize,
	})
}

// TestSend delivers one untracked copy of the campaign to the given address
// @Summary Test Send Campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.TestSendRequest true "Recipient"
// @Success 200 {object} dto.APIResponse{data=dto.TestSendResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 502 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/campaigns/{uuid}/test-send [post]
func (h *CampaignHandler) TestSend(c fiber.Ctx) error {
	var req dto.TestSendRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID
	req.UUID = c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/test-send", defaultRequestTimeout)
	defer cancel()

	result, err := h.campaignFlow.TestSend(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, "Test send", err)
	}
	return successResponse(c, fiber.StatusOK, "Test message sent", result)
}

// ScheduleCampaign sets a future send time
// @Summary Schedule Campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.ScheduleCampaignRequest true "RFC3339 send time"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignStatusResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 422 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/campaigns/{uuid}/schedule [post]
func (h *CampaignHandler) ScheduleCampaign(c fiber.Ctx) error {
	var req dto.ScheduleCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID
	req.UUID = c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/schedule", defaultRequestTimeout)
	defer cancel()

	result, err := h.campaignFlow.Schedule(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, "Schedule campaign", err)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// PauseCampaign stops a sending campaign at its next checkpoint
// @Summary Pause Campaign
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignStatusResponse}
// @Failure 409 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/campaigns/{uuid}/pause [post]
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	campaignUUID := c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/pause", defaultRequestTimeout)
	defer cancel()

	result, err := h.campaignFlow.Pause(ctx, userID, campaignUUID)
	if err != nil {
		return flowErrorResponse(c, "Pause campaign", err)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// GetCampaignStats returns the counters and rates of a campaign
// @Summary Campaign Stats
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignStatsResponse}
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/campaigns/{uuid}/stats [get]
func (h *CampaignHandler) GetCampaignStats(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	campaignUUID := c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/stats", defaultRequestTimeout)
	defer cancel()

	result, err := h.statsFlow.GetCampaignStats(ctx, userID, campaignUUID)
	if err != nil {
		return flowErrorResponse(c, "Get campaign stats", err)
	}
	return successResponse(c, fiber.StatusOK, "Campaign stats retrieved successfully", result)
}

// GetRecentStats returns opens and clicks of the last hour
// @Summary Campaign Recent Activity
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RecentStatsResponse}
// @Security BearerAuth
// @Router /api/v1/campaigns/{uuid}/stats/recent [get]
func (h *CampaignHandler) GetRecentStats(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	campaignUUID := c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/stats/recent", defaultRequestTimeout)
	defer cancel()

	result, err := h.statsFlow.GetRecentStats(ctx, userID, campaignUUID)
	if err != nil {
		return flowErrorResponse(c, "Get recent stats", err)
	}
	return successResponse(c, fiber.StatusOK, "Recent stats retrieved successfully", result)
}

// DownloadDeliveryReport streams the per-recipient delivery sheet
// @Summary Download Delivery Report
// @Tags Campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Campaign UUID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /api/v1/campaigns/{uuid}/report.xlsx [get]
func (h *CampaignHandler) DownloadDeliveryReport(c fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	campaignUUID := c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/report.xlsx", reportRequestTimeout)
	defer cancel()

	filename, data, err := h.statsFlow.ExportDeliveryReport(ctx, userID, campaignUUID)
	if err != nil {
		return flowErrorResponse(c, "Export delivery report", err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+url.PathEscape(filename))
	return c.Send(data)
}

// AddToBlacklist excludes an address from every future audience of the user
// @Summary Blacklist Address
// @Tags Blacklist
// @Accept json
// @Produce json
// @Param request body dto.AddBlacklistRequest true "Address and reason"
// @Success 201 {object} dto.APIResponse{data=dto.AddBlacklistResponse}
// @Failure 400 {object} dto.APIResponse
// @Security BearerAuth
// @Router /api/v1/blacklist [post]
func (h *CampaignHandler) AddToBlacklist(c fiber.Ctx) error {
	var req dto.AddBlacklistRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	ctx, cancel := createRequestContext(c, "/api/v1/blacklist", defaultRequestTimeout)
	defer cancel()

	result, err := h.campaignFlow.AddToBlacklist(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, "Add to blacklist", err)
	}
	return successResponse(c, fiber.StatusCreated, result.Message, result)
}
