// Package model defines all shared domain types for Herald.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChannelType identifies a notification provider.
type ChannelType string

const (
	ChannelGotify      ChannelType = "gotify"
	ChannelGoCqHttpBot ChannelType = "goCqHttpBot"
	ChannelServerChan  ChannelType = "serverChan"
	ChannelPushDeer    ChannelType = "pushDeer"
	ChannelChat        ChannelType = "chat"
	ChannelBark        ChannelType = "bark"
	ChannelTelegramBot ChannelType = "telegramBot"
	ChannelDingtalkBot ChannelType = "dingtalkBot"
	ChannelWeWorkBot   ChannelType = "weWorkBot"
	ChannelWeWorkApp   ChannelType = "weWorkApp"
	ChannelAibotk      ChannelType = "aibotk"
	ChannelIGot        ChannelType = "iGot"
	ChannelPushPlus    ChannelType = "pushPlus"
	ChannelWePlusBot   ChannelType = "wePlusBot"
	ChannelEmail       ChannelType = "email"
	ChannelPushMe      ChannelType = "pushMe"
	ChannelWebhook     ChannelType = "webhook"
	ChannelLark        ChannelType = "lark"
	ChannelChronocat   ChannelType = "chronocat"
	ChannelNtfy        ChannelType = "ntfy"
)

// ChannelTypes returns every supported channel type in catalog order.
func ChannelTypes() []ChannelType {
	return []ChannelType{
		ChannelGotify,
		ChannelGoCqHttpBot,
		ChannelServerChan,
		ChannelPushDeer,
		ChannelChat,
		ChannelBark,
		ChannelTelegramBot,
		ChannelDingtalkBot,
		ChannelWeWorkBot,
		ChannelWeWorkApp,
		ChannelAibotk,
		ChannelIGot,
		ChannelPushPlus,
		ChannelWePlusBot,
		ChannelEmail,
		ChannelPushMe,
		ChannelWebhook,
		ChannelLark,
		ChannelChronocat,
		ChannelNtfy,
	}
}

// Message is the title/content pair delivered by a single dispatch.
type Message struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ChannelConfig is a notification mode: the channel type plus the flat
// provider parameters that travel next to it ({"type": "bark", "barkPush": ...}).
type ChannelConfig struct {
	Type   ChannelType
	Params map[string]any
}

// Configured reports whether a channel type is set.
func (c ChannelConfig) Configured() bool {
	return strings.TrimSpace(string(c.Type)) != ""
}

// ChannelConfigFromMap splits a flat {type, ...params} object.
// A missing or non-string type yields an unconfigured value.
func ChannelConfigFromMap(m map[string]any) ChannelConfig {
	cfg := ChannelConfig{Params: make(map[string]any, len(m))}
	for k, v := range m {
		if k == "type" {
			if s, ok := v.(string); ok {
				cfg.Type = ChannelType(s)
			}
			continue
		}
		cfg.Params[k] = v
	}
	return cfg
}

// Map returns the flat {type, ...params} form.
func (c ChannelConfig) Map() map[string]any {
	m := make(map[string]any, len(c.Params)+1)
	for k, v := range c.Params {
		m[k] = v
	}
	if c.Type != "" {
		m["type"] = string(c.Type)
	}
	return m
}

func (c ChannelConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

func (c *ChannelConfig) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decoding channel config: %w", err)
	}
	*c = ChannelConfigFromMap(m)
	return nil
}

// UserNotification is a per-user notification mode as persisted by the store.
type UserNotification struct {
	UserID    string        `json:"user_id"`
	Config    ChannelConfig `json:"config"`
	UpdatedAt time.Time     `json:"updated_at"`
}
