package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/darshan-rambhia/herald/templates"
)

const defaultWeWorkOrigin = "https://qyapi.weixin.qq.com"

type weWorkParams struct {
	Key    string `json:"qywxKey"`
	Origin string `json:"qywxOrigin"`
}

func (p weWorkParams) origin() string {
	if p.Origin == "" {
		return defaultWeWorkOrigin
	}
	return strings.TrimRight(p.Origin, "/")
}

func sendWeWorkBot(ctx context.Context, env Env, msg model.Message, p weWorkParams) (bool, error) {
	endpoint := p.origin() + "/cgi-bin/webhook/send?key=" + p.Key
	return postJSON(ctx, env, model.ChannelWeWorkBot, endpoint, textMessage(msg), nil, errcodeSuccess)
}

// weWorkAppKey is the comma separated qywxKey of the app channel:
// corpid,corpsecret,touser,agentid[,thumb_media_id].
type weWorkAppKey struct {
	CorpID     string
	CorpSecret string
	ToUser     string
	AgentID    string
	Thumb      string
}

func parseWeWorkAppKey(raw string) (weWorkAppKey, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) < 4 {
		return weWorkAppKey{}, false
	}
	k := weWorkAppKey{
		CorpID:     parts[0],
		CorpSecret: parts[1],
		ToUser:     parts[2],
		AgentID:    parts[3],
		Thumb:      "1",
	}
	if len(parts) > 4 {
		k.Thumb = parts[4]
	}
	return k, true
}

// weWorkAppMessage picks the message kind from the thumb id: "0" sends a
// text card, "1" plain text, anything else an mpnews article using it as
// the thumbnail media id.
func weWorkAppMessage(env Env, msg model.Message, thumb string) map[string]any {
	switch thumb {
	case "0":
		return map[string]any{
			"msgtype": "textcard",
			"textcard": map[string]string{
				"title":       msg.Title,
				"description": msg.Content,
				"url":         env.link(),
				"btntxt":      "More",
			},
		}
	case "1":
		return map[string]any{
			"msgtype": "text",
			"text":    map[string]string{"content": msg.Title + "\n\n" + msg.Content},
		}
	}
	return map[string]any{
		"msgtype": "mpnews",
		"mpnews": map[string]any{
			"articles": []map[string]string{{
				"title":              msg.Title,
				"thumb_media_id":     thumb,
				"author":             env.brand(),
				"content_source_url": "",
				"content":            templates.XHTMLBreaks(msg.Content),
				"digest":             msg.Content,
			}},
		},
	}
}

func weWorkAccessToken(ctx context.Context, env Env, origin string, key weWorkAppKey) (string, error) {
	req, err := jsonRequest(origin+"/cgi-bin/gettoken", map[string]string{
		"corpid":     key.CorpID,
		"corpsecret": key.CorpSecret,
	}, nil)
	if err != nil {
		return "", invalid(model.ChannelWeWorkApp, "%v", err)
	}
	resp, err := call(ctx, env, model.ChannelWeWorkApp, req)
	if err != nil {
		return "", err
	}
	doc, err := resp.JSON()
	if err != nil {
		return "", rejected(model.ChannelWeWorkApp, resp)
	}
	token, _ := lookup(doc, "access_token")
	s, ok := token.(string)
	if !ok || s == "" {
		return "", rejected(model.ChannelWeWorkApp, resp)
	}
	return s, nil
}

func sendWeWorkApp(ctx context.Context, env Env, msg model.Message, p weWorkParams) (bool, error) {
	key, ok := parseWeWorkAppKey(p.Key)
	if !ok {
		return false, invalid(model.ChannelWeWorkApp, "qywxKey must be corpid,corpsecret,touser,agentid[,thumb_media_id]")
	}
	origin := p.origin()

	token, err := weWorkAccessToken(ctx, env, origin, key)
	if err != nil {
		return false, err
	}

	body := weWorkAppMessage(env, msg, key.Thumb)
	body["touser"] = key.ToUser
	body["agentid"] = key.AgentID
	body["safe"] = "0"
	endpoint := origin + "/cgi-bin/message/send?access_token=" + url.QueryEscape(token)
	return postJSON(ctx, env, model.ChannelWeWorkApp, endpoint, body, nil, errcodeSuccess)
}
