package handlers

import (
	"encoding/base64"
	"log"
	"strings"

	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/amirphl/orochi-mail/utils"
	"github.com/gofiber/fiber/v3"
)

var trackingPixel = mustDecodePixel(utils.TrackingPixelGIF)

// TrackingThrottledKey marks a beacon request over the per-IP limit.
// The response is still served, only recording is skipped.
const TrackingThrottledKey = "tracking_throttled"

func trackingThrottled(c fiber.Ctx) bool {
	throttled, _ := c.Locals(TrackingThrottledKey).(bool)
	return throttled
}

func mustDecodePixel(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// TrackingHandlerInterface defines contract for the public open and click beacons
type TrackingHandlerInterface interface {
	Open(c fiber.Ctx) error
	Click(c fiber.Ctx) error
}

type TrackingHandler struct {
	flow businessflow.TrackingFlow
}

func NewTrackingHandler(flow businessflow.TrackingFlow) TrackingHandlerInterface {
	return &TrackingHandler{flow: flow}
}

// Open records the first open of a message and always answers with the pixel
// @Summary Open Beacon
// @Tags Tracking
// @Produce image/gif
// @Param rid path string true "Recipient UUID"
// @Param cid path string true "Campaign UUID"
// @Success 200 {file} file
// @Router /track/open/{rid}/{cid}/ [get]
func (h *TrackingHandler) Open(c fiber.Ctx) error {
	rid, cid := c.Params("rid"), c.Params("cid")

	if !trackingThrottled(c) {
		ctx, cancel := createRequestContext(c, "/track/open", trackingRequestTimeout)
		defer cancel()

		ip := businessflow.ClientIP(c.Get("X-Forwarded-For"), c.IP())
		if err := h.flow.RecordOpen(ctx, rid, cid, c.Get("User-Agent"), ip); err != nil {
			log.Println("Record open failed", err)
		}
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Set("Pragma", "no-cache")
	c.Set("Expires", "0")
	return c.Status(fiber.StatusOK).Send(trackingPixel)
}

// Click records a link click and redirects to the original url
// @Summary Click Redirect
// @Tags Tracking
// @Param rid path string true "Recipient UUID"
// @Param cid path string true "Campaign UUID"
// @Param url query string true "Original link"
// @Success 302 {string} string "Redirect"
// @Failure 400 {string} string "missing url"
// @Router /track/click/{rid}/{cid}/ [get]
func (h *TrackingHandler) Click(c fiber.Ctx) error {
	rid, cid := c.Params("rid"), c.Params("cid")
	target := c.Query("url")

	if trackingThrottled(c) {
		if strings.TrimSpace(target) == "" {
			return c.Status(fiber.StatusBadRequest).SendString("missing url")
		}
		c.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		return c.Redirect().Status(fiber.StatusFound).To(target)
	}

	ctx, cancel := createRequestContext(c, "/track/click", trackingRequestTimeout)
	defer cancel()

	ip := businessflow.ClientIP(c.Get("X-Forwarded-For"), c.IP())
	link, err := h.flow.RecordClick(ctx, rid, cid, target, c.Get("User-Agent"), ip)
	if err != nil {
		if businessflow.IsTrackingURLMissing(err) {
			return c.Status(fiber.StatusBadRequest).SendString("missing url")
		}
		log.Println("Record click failed", err)
	}
	if link == "" {
		link = target
	}

	c.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	return c.Redirect().Status(fiber.StatusFound).To(link)
}
