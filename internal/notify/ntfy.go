package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/darshan-rambhia/herald/internal/model"
)

type ntfyParams struct {
	URL      string `json:"ntfyUrl"`
	Topic    string `json:"ntfyTopic"`
	Priority string `json:"ntfyPriority"`
	Token    string `json:"ntfyToken"`
}

func sendNtfy(ctx context.Context, env Env, msg model.Message, p ntfyParams) (bool, error) {
	if p.Topic == "" {
		return false, invalid(model.ChannelNtfy, "ntfyTopic is required")
	}
	base := strings.TrimRight(p.URL, "/")
	if base == "" {
		base = "https://ntfy.sh"
	}

	header := map[string]string{
		"Title":        msg.Title,
		"Content-Type": "text/plain; charset=utf-8",
	}
	if p.Priority != "" {
		header["Priority"] = p.Priority
	}
	if p.Token != "" {
		header["Authorization"] = "Bearer " + p.Token
	}

	req := Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/%s", base, p.Topic),
		Header: header,
		Body:   []byte(msg.Content),
	}
	if _, err := call(ctx, env, model.ChannelNtfy, req); err != nil {
		return false, err
	}
	return true, nil
}
