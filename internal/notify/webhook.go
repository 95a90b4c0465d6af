package notify

import (
	"context"
	"net/http"
	"strings"

	"github.com/darshan-rambhia/herald/internal/model"
)

type webhookParams struct {
	URL         string `json:"webhookUrl"`
	Body        string `json:"webhookBody"`
	Headers     string `json:"webhookHeaders"`
	Method      string `json:"webhookMethod"`
	ContentType string `json:"webhookContentType"`
}

// buildWebhookRequest renders the templates of a generic webhook. Either the
// URL or the body must reference $title.
func buildWebhookRequest(msg model.Message, p webhookParams) (Request, error) {
	if !strings.Contains(p.URL, PlaceholderTitle) && !strings.Contains(p.Body, PlaceholderTitle) {
		return Request{}, invalid(model.ChannelWebhook, "url or body must contain %s", PlaceholderTitle)
	}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodPost
	}

	headers := ParseHeaders(p.Headers)
	body := ParseBody(p.Body, p.ContentType, func(v string) string { return Substitute(v, msg) })
	data, contentType, err := EncodeBody(p.ContentType, body)
	if err != nil {
		return Request{}, invalid(model.ChannelWebhook, "encode body: %v", err)
	}
	if contentType != "" {
		if _, ok := headers["content-type"]; !ok || p.ContentType == ContentTypeMultipart {
			headers["content-type"] = contentType
		}
	}

	return Request{
		Method: method,
		URL:    FormatURL(p.URL, msg),
		Header: headers,
		Body:   data,
	}, nil
}

func sendWebhook(ctx context.Context, env Env, msg model.Message, p webhookParams) (bool, error) {
	req, err := buildWebhookRequest(msg, p)
	if err != nil {
		return false, err
	}
	if _, err := call(ctx, env, model.ChannelWebhook, req); err != nil {
		return false, err
	}
	return true, nil
}
