package notify

import (
	"testing"

	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestIsSecretParam(t *testing.T) {
	for _, name := range []string{
		"aibotkKey", "barkPush", "chatToken", "chronocatToken", "ddBotSecret", "ddBotToken",
		"deerKey", "fskey", "gobotToken", "gotifyToken", "igotPushKey", "ntfyToken", "pushKey",
		"pushPlusToken", "pushmeKey", "qywxKey", "smtpPassword", "tgBotToken", "tgProxyAuth",
		"wePlusBotToken", "webhookHeaders",
	} {
		assert.True(t, IsSecretParam(name), name)
	}
	for _, name := range []string{
		"barkSound", "gotifyUrl", "ntfyTopic", "smtpName", "smtpService", "tgUserId",
		"webhookUrl", "webhookBody", "qywxOrigin", "chronocatQQ",
	} {
		assert.False(t, IsSecretParam(name), name)
	}
}

func TestRedact(t *testing.T) {
	cfg := model.ChannelConfig{Type: model.ChannelEmail, Params: map[string]any{
		"smtpService":  "Gmail",
		"smtpName":     "ops@example.com",
		"smtpPassword": "hunter2",
		"ddBotToken":   "",
		"pushKey":      12345,
	}}

	got := Redact(cfg)

	assert.Equal(t, model.ChannelEmail, got.Type)
	assert.Equal(t, "Gmail", got.Params["smtpService"])
	assert.Equal(t, "ops@example.com", got.Params["smtpName"])
	assert.Equal(t, RedactedValue, got.Params["smtpPassword"])
	assert.Equal(t, "", got.Params["ddBotToken"])
	assert.Equal(t, RedactedValue, got.Params["pushKey"])
	assert.Equal(t, "hunter2", cfg.Params["smtpPassword"], "input must not be modified")
}
