package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/darshan-rambhia/herald/internal/model"
)

var errcodeSuccess = When("errcode", Equals(0))

type dingtalkParams struct {
	Token  string `json:"ddBotToken"`
	Secret string `json:"ddBotSecret"`
}

// signDingtalk computes the URL-encoded base64 HMAC-SHA256 of
// "{timestampMillis}\n{secret}" keyed by secret.
func signDingtalk(secret string, timestampMillis int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d\n%s", timestampMillis, secret)
	return url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func dingtalkURL(p dingtalkParams, timestampMillis int64) string {
	endpoint := "https://oapi.dingtalk.com/robot/send?access_token=" + p.Token
	if p.Secret != "" {
		endpoint += fmt.Sprintf("&timestamp=%d&sign=%s", timestampMillis, signDingtalk(p.Secret, timestampMillis))
	}
	return endpoint
}

func textMessage(msg model.Message) map[string]any {
	return map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": " " + msg.Title + "\n\n" + msg.Content},
	}
}

func sendDingtalkBot(ctx context.Context, env Env, msg model.Message, p dingtalkParams) (bool, error) {
	endpoint := dingtalkURL(p, env.now().UnixMilli())
	return postJSON(ctx, env, model.ChannelDingtalkBot, endpoint, textMessage(msg), nil, errcodeSuccess)
}
