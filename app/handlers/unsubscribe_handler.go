package handlers

import (
	"bytes"
	"html/template"
	"log"

	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/gofiber/fiber/v3"
)

var unsubscribePages = template.Must(template.New("unsubscribe").Parse(`
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.}}</title>
    <style>
        body { font-family: Arial, sans-serif; background: #f5f5f5; margin: 0; }
        .box { max-width: 480px; margin: 80px auto; background: #fff; padding: 32px; border-radius: 8px; text-align: center; }
        button { background: #d9534f; color: #fff; border: 0; padding: 12px 24px; border-radius: 4px; cursor: pointer; }
    </style>
</head>
<body>
<div class="box">{{end}}
{{define "foot"}}</div>
</body>
</html>{{end}}
{{define "confirm"}}{{template "head" "Unsubscribe"}}
    <h2>Unsubscribe</h2>
    <p><strong>{{.Email}}</strong> will no longer receive messages like "{{.CampaignName}}".</p>
    <form method="post">
        <button type="submit">Unsubscribe</button>
    </form>
{{template "foot"}}{{end}}
{{define "success"}}{{template "head" "Unsubscribed"}}
    <h2>You have been unsubscribed</h2>
    {{if .AlreadyUnsubscribed}}<p><strong>{{.Email}}</strong> was already unsubscribed.</p>{{else}}<p><strong>{{.Email}}</strong> will not receive further messages.</p>{{end}}
{{template "foot"}}{{end}}
{{define "error"}}{{template "head" "Unsubscribe"}}
    <h2>Link not valid</h2>
    <p>{{.}}</p>
{{template "foot"}}{{end}}
`))

// UnsubscribeHandlerInterface defines contract for the public unsubscribe pages
type UnsubscribeHandlerInterface interface {
	Confirm(c fiber.Ctx) error
	Unsubscribe(c fiber.Ctx) error
}

type UnsubscribeHandler struct {
	flow businessflow.UnsubscribeFlow
}

func NewUnsubscribeHandler(flow businessflow.UnsubscribeFlow) UnsubscribeHandlerInterface {
	return &UnsubscribeHandler{flow: flow}
}

// Confirm shows the confirmation page
// @Summary Unsubscribe Confirmation Page
// @Tags Unsubscribe
// @Produce html
// @Param rid path string true "Recipient UUID"
// @Param cid path string true "Campaign UUID"
// @Success 200 {string} string "HTML page"
// @Failure 404 {string} string "HTML page"
// @Router /unsubscribe/{rid}/{cid}/ [get]
func (h *UnsubscribeHandler) Confirm(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/unsubscribe", defaultRequestTimeout)
	defer cancel()

	preview, err := h.flow.Preview(ctx, c.Params("rid"), c.Params("cid"))
	if err != nil {
		return h.errorPage(c, "Preview unsubscribe", err)
	}
	return renderPage(c, fiber.StatusOK, "confirm", preview)
}

// Unsubscribe deactivates the subscriber and shows the success page
// @Summary Unsubscribe
// @Tags Unsubscribe
// @Produce html
// @Param rid path string true "Recipient UUID"
// @Param cid path string true "Campaign UUID"
// @Success 200 {string} string "HTML page"
// @Failure 404 {string} string "HTML page"
// @Router /unsubscribe/{rid}/{cid}/ [post]
func (h *UnsubscribeHandler) Unsubscribe(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/unsubscribe", defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.Unsubscribe(ctx, c.Params("rid"), c.Params("cid"))
	if err != nil {
		return h.errorPage(c, "Unsubscribe", err)
	}
	return renderPage(c, fiber.StatusOK, "success", result)
}

func (h *UnsubscribeHandler) errorPage(c fiber.Ctx, action string, err error) error {
	if businessflow.IsSubscriberNotFound(err) || businessflow.IsCampaignNotFound(err) {
		return renderPage(c, fiber.StatusNotFound, "error", "This unsubscribe link is invalid or has expired.")
	}
	log.Println(action+" failed", err)
	return renderPage(c, fiber.StatusInternalServerError, "error", "Something went wrong, please try again later.")
}

func renderPage(c fiber.Ctx, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := unsubscribePages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Println("Render page failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Status(status).Send(buf.Bytes())
}
