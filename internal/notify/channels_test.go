package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMsg = model.Message{Title: "Disk alert", Content: "sda is 91% full\ncheck it"}

// singleCallChannels covers every channel that makes exactly one provider
// call and judges success from that response.
var singleCallChannels = []struct {
	typ     model.ChannelType
	params  map[string]any
	url     string
	success string
	failure string
}{
	{
		typ:     model.ChannelGotify,
		params:  map[string]any{"gotifyUrl": "http://gotify.local", "gotifyToken": "tok"},
		url:     "http://gotify.local/message?token=tok",
		success: `{"id":12,"appid":1}`,
		failure: `{"error":"Unauthorized","errorCode":401}`,
	},
	{
		typ:     model.ChannelGoCqHttpBot,
		params:  map[string]any{"gobotUrl": "http://cq.local/send_private_msg", "gobotQq": "user_id=10001", "gobotToken": "t"},
		url:     "http://cq.local/send_private_msg?user_id=10001",
		success: `{"retcode":0,"status":"ok"}`,
		failure: `{"retcode":100,"status":"failed"}`,
	},
	{
		typ:     model.ChannelServerChan,
		params:  map[string]any{"pushKey": "SCT12345"},
		url:     "https://sctapi.ftqq.com/SCT12345.send",
		success: `{"code":0,"data":{"errno":0}}`,
		failure: `{"code":40001,"message":"bad pushkey"}`,
	},
	{
		typ:     model.ChannelPushDeer,
		params:  map[string]any{"deerKey": "PDU1"},
		url:     "https://api2.pushdeer.com/message/push",
		success: `{"code":0,"content":{"result":["{\"counts\":1}"]}}`,
		failure: `{"code":0,"content":{"result":[]}}`,
	},
	{
		typ:     model.ChannelChat,
		params:  map[string]any{"chatUrl": "http://chat.local/webapi/entry.cgi?token=", "chatToken": "abc"},
		url:     "http://chat.local/webapi/entry.cgi?token=abc",
		success: `{"success":true}`,
		failure: `{"error":{"code":800},"success":false}`,
	},
	{
		typ:     model.ChannelBark,
		params:  map[string]any{"barkPush": "devicekey"},
		url:     "https://api.day.app/devicekey",
		success: `{"code":200,"message":"success"}`,
		failure: `{"code":400,"message":"device token invalid"}`,
	},
	{
		typ:     model.ChannelTelegramBot,
		params:  map[string]any{"tgBotToken": "123:abc", "tgUserId": "42"},
		url:     "https://api.telegram.org/bot123:abc/sendMessage",
		success: `{"ok":true,"result":{}}`,
		failure: `{"ok":false,"description":"chat not found"}`,
	},
	{
		typ:     model.ChannelDingtalkBot,
		params:  map[string]any{"ddBotToken": "ddtok"},
		url:     "https://oapi.dingtalk.com/robot/send?access_token=ddtok",
		success: `{"errcode":0,"errmsg":"ok"}`,
		failure: `{"errcode":310000,"errmsg":"sign not match"}`,
	},
	{
		typ:     model.ChannelWeWorkBot,
		params:  map[string]any{"qywxKey": "botkey"},
		url:     "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=botkey",
		success: `{"errcode":0,"errmsg":"ok"}`,
		failure: `{"errcode":93000,"errmsg":"invalid webhook url"}`,
	},
	{
		typ:     model.ChannelAibotk,
		params:  map[string]any{"aibotkKey": "k", "aibotkType": "room", "aibotkName": "ops"},
		url:     "https://api-bot.aibotk.com/openapi/v1/chat/room",
		success: `{"code":0}`,
		failure: `{"code":1,"msg":"room not found"}`,
	},
	{
		typ:     model.ChannelIGot,
		params:  map[string]any{"igotPushKey": "ABCdef"},
		url:     "https://push.hellyw.com/abcdef",
		success: `{"ret":0}`,
		failure: `{"ret":201,"errMsg":"key invalid"}`,
	},
	{
		typ:     model.ChannelPushPlus,
		params:  map[string]any{"pushPlusToken": "pp"},
		url:     "https://www.pushplus.plus/send",
		success: `{"code":200,"msg":"ok"}`,
		failure: `{"code":903,"msg":"invalid token"}`,
	},
	{
		typ:     model.ChannelWePlusBot,
		params:  map[string]any{"wePlusBotToken": "wp"},
		url:     "https://www.weplusbot.com/send",
		success: `{"code":200}`,
		failure: `{"code":500,"msg":"quota"}`,
	},
	{
		typ:     model.ChannelPushMe,
		params:  map[string]any{"pushmeKey": "pm"},
		url:     "https://push.i-i.me/",
		success: `success`,
		failure: `push_key error`,
	},
	{
		typ:     model.ChannelLark,
		params:  map[string]any{"fskey": "hook-id"},
		url:     "https://open.feishu.cn/open-apis/bot/v2/hook/hook-id",
		success: `{"StatusCode":0,"StatusMessage":"success"}`,
		failure: `{"code":19021,"msg":"sign match fail"}`,
	},
	{
		typ:     model.ChannelNtfy,
		params:  map[string]any{"ntfyTopic": "alerts"},
		url:     "https://ntfy.sh/alerts",
		success: `{"id":"x1"}`,
	},
}

func TestChannels_Success(t *testing.T) {
	reg := NewRegistry()
	for _, tc := range singleCallChannels {
		t.Run(string(tc.typ), func(t *testing.T) {
			tr := reply(http.StatusOK, tc.success)
			a, ok := reg.Resolve(tc.typ)
			require.True(t, ok)

			delivered, err := a.Send(context.Background(), stubEnv(tr), testMsg, tc.params)

			require.NoError(t, err)
			assert.True(t, delivered)
			require.Equal(t, 1, tr.calls())
			assert.Equal(t, tc.url, tr.last(t).URL)
			assert.Equal(t, http.MethodPost, tr.last(t).Method)
		})
	}
}

func TestChannels_MissingMarkerIsProviderError(t *testing.T) {
	reg := NewRegistry()
	for _, tc := range singleCallChannels {
		if tc.failure == "" {
			continue
		}
		t.Run(string(tc.typ), func(t *testing.T) {
			tr := reply(http.StatusOK, tc.failure)
			a, _ := reg.Resolve(tc.typ)

			delivered, err := a.Send(context.Background(), stubEnv(tr), testMsg, tc.params)

			assert.False(t, delivered)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.failure, err.Error())
			assert.Equal(t, tc.typ, pe.Channel)
		})
	}
}

func TestChannels_HTTPErrorIsProviderError(t *testing.T) {
	reg := NewRegistry()
	for _, tc := range singleCallChannels {
		t.Run(string(tc.typ), func(t *testing.T) {
			tr := reply(http.StatusInternalServerError, `upstream exploded`)
			a, _ := reg.Resolve(tc.typ)

			delivered, err := a.Send(context.Background(), stubEnv(tr), testMsg, tc.params)

			assert.False(t, delivered)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
			assert.Equal(t, "upstream exploded", err.Error())
		})
	}
}

func TestChannels_TransportErrorText(t *testing.T) {
	reg := NewRegistry()
	cause := errors.New("dial tcp 10.0.0.1:443: i/o timeout")
	for _, tc := range singleCallChannels {
		t.Run(string(tc.typ), func(t *testing.T) {
			tr := replies(stubReply{err: cause})
			a, _ := reg.Resolve(tc.typ)

			delivered, err := a.Send(context.Background(), stubEnv(tr), testMsg, tc.params)

			assert.False(t, delivered)
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, cause.Error(), err.Error())
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestGotify_FormFields(t *testing.T) {
	tr := reply(http.StatusOK, `{"id":1}`)
	_, err := sendGotify(context.Background(), stubEnv(tr), testMsg, gotifyParams{URL: "http://g", Token: "t"})
	require.NoError(t, err)

	req := tr.last(t)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header["Content-Type"])
	form := formBody(t, req)
	assert.Equal(t, testMsg.Title, form.Get("title"))
	assert.Equal(t, testMsg.Content, form.Get("message"))
	assert.Equal(t, "1", form.Get("priority"))
}

func TestGotify_PriorityFromNumber(t *testing.T) {
	tr := reply(http.StatusOK, `{"id":1}`)
	a, _ := NewRegistry().Resolve(model.ChannelGotify)
	_, err := a.Send(context.Background(), stubEnv(tr), testMsg, map[string]any{
		"gotifyUrl": "http://g", "gotifyToken": "t", "gotifyPriority": float64(8),
	})
	require.NoError(t, err)
	assert.Equal(t, "8", formBody(t, tr.last(t)).Get("priority"))
}

func TestGotify_IDMustBeNumber(t *testing.T) {
	tr := reply(http.StatusOK, `{"id":"12"}`)
	ok, err := sendGotify(context.Background(), stubEnv(tr), testMsg, gotifyParams{URL: "http://g"})
	assert.False(t, ok)
	assert.EqualError(t, err, `{"id":"12"}`)
}

func TestServerChan_LegacyKeyAndTopLevelErrno(t *testing.T) {
	assert.Equal(t, "https://sc.ftqq.com/SCU9.send", serverChanURL("SCU9"))
	assert.Equal(t, "https://sctapi.ftqq.com/SCT9.send", serverChanURL("SCT9"))

	tr := reply(http.StatusOK, `{"errno":0,"errmsg":"success"}`)
	ok, err := sendServerChan(context.Background(), stubEnv(tr), testMsg, serverChanParams{PushKey: "SCU9"})
	require.NoError(t, err)
	assert.True(t, ok)
	form := formBody(t, tr.last(t))
	assert.Equal(t, testMsg.Title, form.Get("title"))
	assert.Equal(t, testMsg.Content, form.Get("desp"))
}

func TestServerChan_ErrnoStringIsFailure(t *testing.T) {
	tr := reply(http.StatusOK, `{"errno":"0"}`)
	ok, err := sendServerChan(context.Background(), stubEnv(tr), testMsg, serverChanParams{PushKey: "SCT1"})
	assert.False(t, ok)
	assert.EqualError(t, err, `{"errno":"0"}`)
}

func TestPushDeer_CustomURLAndMarkdown(t *testing.T) {
	tr := reply(http.StatusOK, `{"content":{"result":["ok"]}}`)
	_, err := sendPushDeer(context.Background(), stubEnv(tr), testMsg, pushDeerParams{Key: "k", URL: "http://deer.local/push"})
	require.NoError(t, err)

	req := tr.last(t)
	assert.Equal(t, "http://deer.local/push", req.URL)
	form := formBody(t, req)
	assert.Equal(t, "k", form.Get("pushkey"))
	assert.Equal(t, "markdown", form.Get("type"))
	assert.Equal(t, testMsg.Title, form.Get("text"))
}

func TestPushDeer_UnexpectedShape(t *testing.T) {
	tr := reply(http.StatusOK, `{"content":"not a list"}`)
	ok, err := sendPushDeer(context.Background(), stubEnv(tr), testMsg, pushDeerParams{Key: "k"})
	assert.False(t, ok)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, `{"content":"not a list"}`, pe.Body)
}

func TestChat_PayloadIsJSONEncoded(t *testing.T) {
	tr := reply(http.StatusOK, `{"success":true}`)
	msg := model.Message{Title: `Say "hi"`, Content: "line\nbreak"}
	_, err := sendChat(context.Background(), stubEnv(tr), msg, chatParams{URL: "http://c?token=", Token: "t"})
	require.NoError(t, err)

	payload := formBody(t, tr.last(t)).Get("payload")
	assert.JSONEq(t, `{"text":"Say \"hi\"\nline\nbreak"}`, payload)
}

func TestBark_Payload(t *testing.T) {
	tr := reply(http.StatusOK, `{"code":200}`)
	_, err := sendBark(context.Background(), stubEnv(tr), testMsg, barkParams{
		Push: "https://bark.self.host/key", Sound: "bell", Group: "ops", Archive: "1", Level: "timeSensitive",
	})
	require.NoError(t, err)

	req := tr.last(t)
	assert.Equal(t, "https://bark.self.host/key", req.URL)
	assert.Equal(t, "application/json", req.Header["Content-Type"])
	body := jsonBody(t, req)
	assert.Equal(t, testMsg.Title, body["title"])
	assert.Equal(t, testMsg.Content, body["body"])
	assert.Equal(t, "bell", body["sound"])
	assert.Equal(t, "ops", body["group"])
	assert.Equal(t, "1", body["isArchive"])
	assert.Equal(t, "timeSensitive", body["level"])
}

func TestGoCqHttp_AuthAndMessage(t *testing.T) {
	tr := reply(http.StatusOK, `{"retcode":0}`)
	_, err := sendGoCqHttpBot(context.Background(), stubEnv(tr), testMsg, goCqHttpParams{URL: "http://cq", QQ: "group_id=7", Token: "secret"})
	require.NoError(t, err)

	req := tr.last(t)
	assert.Equal(t, "Bearer secret", req.Header["Authorization"])
	assert.Equal(t, testMsg.Title+"\n"+testMsg.Content, jsonBody(t, req)["message"])
}

func TestTelegram_MessageAndHost(t *testing.T) {
	tr := reply(http.StatusOK, `{"ok":true}`)
	_, err := sendTelegramBot(context.Background(), stubEnv(tr), testMsg, telegramParams{
		APIHost: "https://tg.mirror", BotToken: "1:x", UserID: "99",
	})
	require.NoError(t, err)

	req := tr.last(t)
	assert.Equal(t, "https://tg.mirror/bot1:x/sendMessage", req.URL)
	assert.Nil(t, req.Proxy)
	form := formBody(t, req)
	assert.Equal(t, "99", form.Get("chat_id"))
	assert.Equal(t, testMsg.Title+"\n\n"+testMsg.Content, form.Get("text"))
	assert.Equal(t, "true", form.Get("disable_web_page_preview"))
}

func TestTelegram_Proxy(t *testing.T) {
	tests := []struct {
		name string
		p    telegramParams
		want string
	}{
		{"none", telegramParams{}, ""},
		{"host only", telegramParams{ProxyHost: "10.0.0.1"}, ""},
		{"host and port", telegramParams{ProxyHost: "10.0.0.1", ProxyPort: "3128"}, "http://10.0.0.1:3128"},
		{"with auth", telegramParams{ProxyHost: "10.0.0.1", ProxyPort: "3128", ProxyAuth: "u:p"}, "http://u:p@10.0.0.1:3128"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := reply(http.StatusOK, `{"ok":true}`)
			tt.p.BotToken = "1:x"
			_, err := sendTelegramBot(context.Background(), stubEnv(tr), testMsg, tt.p)
			require.NoError(t, err)

			proxy := tr.last(t).Proxy
			if tt.want == "" {
				assert.Nil(t, proxy)
				return
			}
			require.NotNil(t, proxy)
			assert.Equal(t, tt.want, proxy.String())
		})
	}
}

func TestDingtalk_SignatureIsDeterministic(t *testing.T) {
	const secret = "SECabc"
	ts := fixedNow.UnixMilli()

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d\n%s", ts, secret)
	want := url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	assert.Equal(t, want, signDingtalk(secret, ts))
	assert.Equal(t, signDingtalk(secret, ts), signDingtalk(secret, ts))
	assert.NotEqual(t, signDingtalk(secret, ts), signDingtalk(secret, ts+1))

	tr := reply(http.StatusOK, `{"errcode":0}`)
	_, err := sendDingtalkBot(context.Background(), stubEnv(tr), testMsg, dingtalkParams{Token: "tok", Secret: secret})
	require.NoError(t, err)
	assert.Equal(t,
		fmt.Sprintf("https://oapi.dingtalk.com/robot/send?access_token=tok&timestamp=%d&sign=%s", ts, want),
		tr.last(t).URL)

	text := jsonBody(t, tr.last(t))["text"].(map[string]any)
	assert.Equal(t, " "+testMsg.Title+"\n\n"+testMsg.Content, text["content"])
}

func TestDingtalk_SignatureIsURLSafe(t *testing.T) {
	for i := int64(0); i < 50; i++ {
		sig := signDingtalk("secret", 1700000000000+i)
		assert.NotContains(t, sig, "+")
		assert.NotContains(t, sig, "/")
		assert.NotContains(t, sig, "=")
	}
}

func TestWeWorkBot_Origin(t *testing.T) {
	tr := reply(http.StatusOK, `{"errcode":0}`)
	_, err := sendWeWorkBot(context.Background(), stubEnv(tr), testMsg, weWorkParams{Key: "k", Origin: "https://proxy.local/"})
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.local/cgi-bin/webhook/send?key=k", tr.last(t).URL)
	assert.Equal(t, "text", jsonBody(t, tr.last(t))["msgtype"])
}

func TestAibotk(t *testing.T) {
	t.Run("contact", func(t *testing.T) {
		tr := reply(http.StatusOK, `{"code":0}`)
		_, err := sendAibotk(context.Background(), Env{HTTP: tr, Brand: "Ops"}, testMsg, aibotkParams{Key: "k", Type: "contact", Name: "alice"})
		require.NoError(t, err)

		req := tr.last(t)
		assert.Equal(t, "https://api-bot.aibotk.com/openapi/v1/chat/contact", req.URL)
		body := jsonBody(t, req)
		assert.Equal(t, "alice", body["name"])
		assert.Equal(t, "k", body["apiKey"])
		message := body["message"].(map[string]any)
		assert.Equal(t, float64(1), message["type"])
		assert.Equal(t, "【Ops】\n\n"+testMsg.Title+"\n"+testMsg.Content, message["content"])
	})

	t.Run("room", func(t *testing.T) {
		tr := reply(http.StatusOK, `{"code":0}`)
		_, err := sendAibotk(context.Background(), stubEnv(tr), testMsg, aibotkParams{Key: "k", Type: "room", Name: "ops"})
		require.NoError(t, err)
		assert.Equal(t, "ops", jsonBody(t, tr.last(t))["roomName"])
	})

	t.Run("unknown type", func(t *testing.T) {
		tr := reply(http.StatusOK, `{"code":0}`)
		ok, err := sendAibotk(context.Background(), stubEnv(tr), testMsg, aibotkParams{Key: "k", Type: "group"})
		assert.False(t, ok)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Zero(t, tr.calls())
	})
}

func TestIGot_LowercasesKey(t *testing.T) {
	tr := reply(http.StatusOK, `{"ret":0}`)
	_, err := sendIGot(context.Background(), stubEnv(tr), testMsg, iGotParams{PushKey: "MiXeD"})
	require.NoError(t, err)
	assert.Equal(t, "https://push.hellyw.com/mixed", tr.last(t).URL)
}

func TestPushPlus_HTMLBreaks(t *testing.T) {
	tr := reply(http.StatusOK, `{"code":200}`)
	_, err := sendPushPlus(context.Background(), stubEnv(tr), model.Message{Title: "T", Content: "a\nb"}, pushPlusParams{Token: "t", User: "group1"})
	require.NoError(t, err)

	body := jsonBody(t, tr.last(t))
	assert.Equal(t, "a<br>b", body["content"])
	assert.Equal(t, "group1", body["topic"])
}

func TestWePlusBot_TemplateThreshold(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		template string
	}{
		{"short", strings.Repeat("a", 800), "txt"},
		{"long", strings.Repeat("a", 801), "html"},
		{"multibyte at limit", strings.Repeat("界", 800), "txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := reply(http.StatusOK, `{"code":200}`)
			_, err := sendWePlusBot(context.Background(), stubEnv(tr), model.Message{Title: "T", Content: tt.content}, wePlusBotParams{Token: "t"})
			require.NoError(t, err)

			body := jsonBody(t, tr.last(t))
			assert.Equal(t, tt.template, body["template"])
			assert.Equal(t, "pro", body["version"])
		})
	}
}

func TestPushMe_CustomURL(t *testing.T) {
	tr := reply(http.StatusOK, "success")
	_, err := sendPushMe(context.Background(), stubEnv(tr), testMsg, pushMeParams{Key: "k", URL: "http://pushme.local"})
	require.NoError(t, err)

	req := tr.last(t)
	assert.Equal(t, "http://pushme.local", req.URL)
	body := jsonBody(t, req)
	assert.Equal(t, "k", body["push_key"])
	assert.Equal(t, testMsg.Content, body["content"])
}

func TestLark_CodeAlternative(t *testing.T) {
	tr := reply(http.StatusOK, `{"code":0,"msg":"success"}`)
	ok, err := sendLark(context.Background(), stubEnv(tr), testMsg, larkParams{Key: "https://open.larksuite.com/open-apis/bot/v2/hook/x"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://open.larksuite.com/open-apis/bot/v2/hook/x", tr.last(t).URL)

	body := jsonBody(t, tr.last(t))
	assert.Equal(t, "text", body["msg_type"])
	assert.Equal(t, testMsg.Title+"\n\n"+testMsg.Content, body["content"].(map[string]any)["text"])
}

func TestDecodeParams_Scalars(t *testing.T) {
	var p telegramParams
	require.NoError(t, decodeParams(map[string]any{
		"tgUserId":    float64(12345678901),
		"tgProxyPort": 8080,
		"tgBotToken":  nil,
		"tgApiHost":   true,
		"unknown":     "ignored",
	}, &p))

	assert.Equal(t, "12345678901", p.UserID)
	assert.Equal(t, "8080", p.ProxyPort)
	assert.Equal(t, "", p.BotToken)
	assert.Equal(t, "true", p.APIHost)
}

func TestChannel_BadParamsAreValidationErrors(t *testing.T) {
	tr := reply(http.StatusOK, `{"code":200}`)
	a, _ := NewRegistry().Resolve(model.ChannelBark)

	ok, err := a.Send(context.Background(), stubEnv(tr), testMsg, map[string]any{
		"barkPush": map[string]any{"nested": true},
	})

	assert.False(t, ok)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, model.ChannelBark, ve.Channel)
	assert.Zero(t, tr.calls())
}
