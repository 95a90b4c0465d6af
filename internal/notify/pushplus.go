package notify

import (
	"context"
	"unicode/utf8"

	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/darshan-rambhia/herald/templates"
)

const wePlusBotHTMLThreshold = 800

var pushPlusSuccess = When("code", Equals(200))

type pushPlusParams struct {
	Token string `json:"pushPlusToken"`
	User  string `json:"pushPlusUser"`
}

func sendPushPlus(ctx context.Context, env Env, msg model.Message, p pushPlusParams) (bool, error) {
	return postJSON(ctx, env, model.ChannelPushPlus, "https://www.pushplus.plus/send", map[string]string{
		"token":   p.Token,
		"title":   msg.Title,
		"content": templates.HTMLBreaks(msg.Content),
		"topic":   p.User,
	}, nil, pushPlusSuccess)
}

type wePlusBotParams struct {
	Token    string `json:"wePlusBotToken"`
	Receiver string `json:"wePlusBotReceiver"`
	Version  string `json:"wePlusBotVersion"`
}

func sendWePlusBot(ctx context.Context, env Env, msg model.Message, p wePlusBotParams) (bool, error) {
	content, template := msg.Content, "txt"
	if utf8.RuneCountInString(msg.Content) > wePlusBotHTMLThreshold {
		template = "html"
		content = templates.HTMLBreaks(msg.Content)
	}
	version := p.Version
	if version == "" {
		version = "pro"
	}
	return postJSON(ctx, env, model.ChannelWePlusBot, "https://www.weplusbot.com/send", map[string]string{
		"token":    p.Token,
		"title":    msg.Title,
		"template": template,
		"content":  content,
		"receiver": p.Receiver,
		"version":  version,
	}, nil, pushPlusSuccess)
}
