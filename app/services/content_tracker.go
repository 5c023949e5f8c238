// Package services provides external service integrations and technical concerns like email delivery and tokens
package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	absoluteHrefPattern = regexp.MustCompile(`(?i)href="(https?://[^"]+)"`)
	bodyOpenTagPattern  = regexp.MustCompile(`(?i)<body[^>]*>`)
)

// IsHTMLBody reports whether body looks like an HTML document or fragment
func IsHTMLBody(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div")
}

// OpenPixelURL is the open beacon address for one recipient of one campaign
func OpenPixelURL(baseURL, recipientID, campaignID string) string {
	return fmt.Sprintf("%s/track/open/%s/%s/", strings.TrimRight(baseURL, "/"), recipientID, campaignID)
}

// ClickRedirectURL wraps target in the click redirect for one recipient of one campaign
func ClickRedirectURL(baseURL, recipientID, campaignID, target string) string {
	return fmt.Sprintf("%s/track/click/%s/%s/?url=%s",
		strings.TrimRight(baseURL, "/"), recipientID, campaignID, url.QueryEscape(target))
}

// UnsubscribeURL is the one-click unsubscribe address for one recipient of one campaign
func UnsubscribeURL(baseURL, recipientID, campaignID string) string {
	return fmt.Sprintf("%s/unsubscribe/%s/%s/", strings.TrimRight(baseURL, "/"), recipientID, campaignID)
}

func openPixelTag(baseURL, recipientID, campaignID string) string {
	return fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none;" alt="" />`,
		OpenPixelURL(baseURL, recipientID, campaignID))
}

// PrepareTrackedBody rewrites absolute links through the click redirect and
// embeds exactly one open pixel. Plain text is wrapped in a paragraph first.
func PrepareTrackedBody(body, recipientID, campaignID, baseURL string) string {
	if body == "" {
		return ""
	}

	pixel := openPixelTag(baseURL, recipientID, campaignID)

	if !IsHTMLBody(body) {
		return "<p>" + body + "</p>" + pixel
	}

	tracked := absoluteHrefPattern.ReplaceAllStringFunc(body, func(match string) string {
		target := absoluteHrefPattern.FindStringSubmatch(match)[1]
		return `href="` + ClickRedirectURL(baseURL, recipientID, campaignID, target) + `"`
	})

	if loc := bodyOpenTagPattern.FindStringIndex(tracked); loc != nil {
		return tracked[:loc[1]] + pixel + tracked[loc[1]:]
	}
	return tracked + pixel
}
