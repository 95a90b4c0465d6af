package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/darshan-rambhia/herald/internal/model"
)

// Push services: one POST, one JSON success marker.

type gotifyParams struct {
	URL      string `json:"gotifyUrl"`
	Token    string `json:"gotifyToken"`
	Priority string `json:"gotifyPriority"`
}

var (
	gotifySuccess     = When("id", IsNumber())
	serverChanSuccess = When("errno", Equals(0)).Or("data.errno", Equals(0))
	pushDeerSuccess   = When("content.result", NonEmptyList())
	iGotSuccess       = When("ret", Equals(0))
	barkSuccess       = When("code", Equals(200))
)

func sendGotify(ctx context.Context, env Env, msg model.Message, p gotifyParams) (bool, error) {
	priority := p.Priority
	if priority == "" {
		priority = "1"
	}
	endpoint := fmt.Sprintf("%s/message?token=%s", p.URL, p.Token)
	req := formRequest(endpoint, url.Values{
		"title":    {msg.Title},
		"message":  {msg.Content},
		"priority": {priority},
	})
	return expect(ctx, env, model.ChannelGotify, req, gotifySuccess)
}

type serverChanParams struct {
	PushKey string `json:"pushKey"`
}

func serverChanURL(key string) string {
	if strings.HasPrefix(key, "SCT") {
		return fmt.Sprintf("https://sctapi.ftqq.com/%s.send", key)
	}
	return fmt.Sprintf("https://sc.ftqq.com/%s.send", key)
}

func sendServerChan(ctx context.Context, env Env, msg model.Message, p serverChanParams) (bool, error) {
	req := formRequest(serverChanURL(p.PushKey), url.Values{
		"title": {msg.Title},
		"desp":  {msg.Content},
	})
	return expect(ctx, env, model.ChannelServerChan, req, serverChanSuccess)
}

type pushDeerParams struct {
	Key string `json:"deerKey"`
	URL string `json:"deerUrl"`
}

func sendPushDeer(ctx context.Context, env Env, msg model.Message, p pushDeerParams) (bool, error) {
	endpoint := p.URL
	if endpoint == "" {
		endpoint = "https://api2.pushdeer.com/message/push"
	}
	req := formRequest(endpoint, url.Values{
		"pushkey": {p.Key},
		"text":    {msg.Title},
		"desp":    {msg.Content},
		"type":    {"markdown"},
	})
	return expect(ctx, env, model.ChannelPushDeer, req, pushDeerSuccess)
}

type iGotParams struct {
	PushKey string `json:"igotPushKey"`
}

func sendIGot(ctx context.Context, env Env, msg model.Message, p iGotParams) (bool, error) {
	req := formRequest("https://push.hellyw.com/"+strings.ToLower(p.PushKey), url.Values{
		"title":   {msg.Title},
		"content": {msg.Content},
	})
	return expect(ctx, env, model.ChannelIGot, req, iGotSuccess)
}

type barkParams struct {
	Push    string `json:"barkPush"`
	Icon    string `json:"barkIcon"`
	Sound   string `json:"barkSound"`
	Group   string `json:"barkGroup"`
	Level   string `json:"barkLevel"`
	URL     string `json:"barkUrl"`
	Archive string `json:"barkArchive"`
}

// withDefaultHost turns a bare key into a full endpoint.
func withDefaultHost(value, prefix string) string {
	if strings.HasPrefix(value, "http") {
		return value
	}
	return prefix + value
}

func sendBark(ctx context.Context, env Env, msg model.Message, p barkParams) (bool, error) {
	return postJSON(ctx, env, model.ChannelBark, withDefaultHost(p.Push, "https://api.day.app/"), map[string]string{
		"title":     msg.Title,
		"body":      msg.Content,
		"icon":      p.Icon,
		"sound":     p.Sound,
		"group":     p.Group,
		"isArchive": p.Archive,
		"level":     p.Level,
		"url":       p.URL,
	}, nil, barkSuccess)
}

type pushMeParams struct {
	Key string `json:"pushmeKey"`
	URL string `json:"pushmeUrl"`
}

// pushMe answers with a plain-text body rather than JSON.
func sendPushMe(ctx context.Context, env Env, msg model.Message, p pushMeParams) (bool, error) {
	endpoint := p.URL
	if endpoint == "" {
		endpoint = "https://push.i-i.me/"
	}
	req, err := jsonRequest(endpoint, map[string]string{
		"push_key": p.Key,
		"title":    msg.Title,
		"content":  msg.Content,
	}, nil)
	if err != nil {
		return false, invalid(model.ChannelPushMe, "%v", err)
	}
	resp, err := call(ctx, env, model.ChannelPushMe, req)
	if err != nil {
		return false, err
	}
	if string(resp.Body) != "success" {
		return false, rejected(model.ChannelPushMe, resp)
	}
	return true, nil
}
