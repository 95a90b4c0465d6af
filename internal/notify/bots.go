package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/darshan-rambhia/herald/internal/model"
)

var (
	goCqHttpSuccess = When("retcode", Equals(0))
	chatSuccess     = When("success", Truthy())
	telegramSuccess = When("ok", Truthy())
	larkSuccess     = When("StatusCode", Equals(0)).Or("code", Equals(0))
	aibotkSuccess   = When("code", Equals(0))
)

type goCqHttpParams struct {
	URL   string `json:"gobotUrl"`
	QQ    string `json:"gobotQq"`
	Token string `json:"gobotToken"`
}

func sendGoCqHttpBot(ctx context.Context, env Env, msg model.Message, p goCqHttpParams) (bool, error) {
	return postJSON(ctx, env, model.ChannelGoCqHttpBot, fmt.Sprintf("%s?%s", p.URL, p.QQ),
		map[string]string{"message": msg.Title + "\n" + msg.Content},
		map[string]string{"Authorization": "Bearer " + p.Token},
		goCqHttpSuccess)
}

type chatParams struct {
	URL   string `json:"chatUrl"`
	Token string `json:"chatToken"`
}

func sendChat(ctx context.Context, env Env, msg model.Message, p chatParams) (bool, error) {
	payload, err := json.Marshal(map[string]string{"text": msg.Title + "\n" + msg.Content})
	if err != nil {
		return false, invalid(model.ChannelChat, "marshal payload: %v", err)
	}
	req := formRequest(p.URL+p.Token, url.Values{"payload": {string(payload)}})
	return expect(ctx, env, model.ChannelChat, req, chatSuccess)
}

type telegramParams struct {
	APIHost   string `json:"tgApiHost"`
	ProxyAuth string `json:"tgProxyAuth"`
	ProxyHost string `json:"tgProxyHost"`
	ProxyPort string `json:"tgProxyPort"`
	BotToken  string `json:"tgBotToken"`
	UserID    string `json:"tgUserId"`
}

// proxy returns the configured HTTP proxy, or nil when host or port is unset.
func (p telegramParams) proxy() (*url.URL, error) {
	if p.ProxyHost == "" || p.ProxyPort == "" {
		return nil, nil
	}
	auth := ""
	if p.ProxyAuth != "" {
		auth = p.ProxyAuth + "@"
	}
	return url.Parse(fmt.Sprintf("http://%s%s:%s", auth, p.ProxyHost, p.ProxyPort))
}

func sendTelegramBot(ctx context.Context, env Env, msg model.Message, p telegramParams) (bool, error) {
	host := p.APIHost
	if host == "" {
		host = "https://api.telegram.org"
	}
	proxy, err := p.proxy()
	if err != nil {
		return false, invalid(model.ChannelTelegramBot, "invalid proxy: %v", err)
	}
	req := formRequest(fmt.Sprintf("%s/bot%s/sendMessage", host, p.BotToken), url.Values{
		"chat_id":                  {p.UserID},
		"text":                     {msg.Title + "\n\n" + msg.Content},
		"disable_web_page_preview": {"true"},
	})
	req.Proxy = proxy
	return expect(ctx, env, model.ChannelTelegramBot, req, telegramSuccess)
}

type larkParams struct {
	Key string `json:"fskey"`
}

func sendLark(ctx context.Context, env Env, msg model.Message, p larkParams) (bool, error) {
	endpoint := withDefaultHost(p.Key, "https://open.feishu.cn/open-apis/bot/v2/hook/")
	return postJSON(ctx, env, model.ChannelLark, endpoint, map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": msg.Title + "\n\n" + msg.Content},
	}, nil, larkSuccess)
}

type aibotkParams struct {
	Key  string `json:"aibotkKey"`
	Type string `json:"aibotkType"`
	Name string `json:"aibotkName"`
}

func sendAibotk(ctx context.Context, env Env, msg model.Message, p aibotkParams) (bool, error) {
	body := map[string]any{
		"apiKey": p.Key,
		"message": map[string]any{
			"type":    1,
			"content": fmt.Sprintf("【%s】\n\n%s\n%s", env.brand(), msg.Title, msg.Content),
		},
	}
	var endpoint string
	switch strings.TrimSpace(p.Type) {
	case "room":
		endpoint = "https://api-bot.aibotk.com/openapi/v1/chat/room"
		body["roomName"] = p.Name
	case "contact":
		endpoint = "https://api-bot.aibotk.com/openapi/v1/chat/contact"
		body["name"] = p.Name
	default:
		return false, invalid(model.ChannelAibotk, "aibotkType must be room or contact, got %q", p.Type)
	}
	return postJSON(ctx, env, model.ChannelAibotk, endpoint, body, nil, aibotkSuccess)
}
