package notify

import (
	"fmt"

	"github.com/darshan-rambhia/herald/internal/model"
)

// Registry maps channel types to adapters. It is immutable once built.
type Registry struct {
	adapters map[model.ChannelType]Adapter
}

// NewRegistry builds the registry for every type in model.ChannelTypes.
// It panics if a type has no adapter, so a missing case surfaces at startup
// and in tests rather than as a silently disabled channel.
func NewRegistry() *Registry {
	types := model.ChannelTypes()
	r := &Registry{adapters: make(map[model.ChannelType]Adapter, len(types))}
	for _, t := range types {
		a := adapterFor(t)
		if a == nil {
			panic(fmt.Sprintf("notify: no adapter for channel type %q", t))
		}
		r.adapters[t] = a
	}
	return r
}

// Resolve returns the adapter for a channel type.
func (r *Registry) Resolve(t model.ChannelType) (Adapter, bool) {
	a, ok := r.adapters[t]
	return a, ok
}

// Types lists the registered channel types in catalog order.
func (r *Registry) Types() []model.ChannelType {
	var out []model.ChannelType
	for _, t := range model.ChannelTypes() {
		if _, ok := r.adapters[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func adapterFor(t model.ChannelType) Adapter {
	switch t {
	case model.ChannelGotify:
		return channel[gotifyParams]{t, sendGotify}
	case model.ChannelGoCqHttpBot:
		return channel[goCqHttpParams]{t, sendGoCqHttpBot}
	case model.ChannelServerChan:
		return channel[serverChanParams]{t, sendServerChan}
	case model.ChannelPushDeer:
		return channel[pushDeerParams]{t, sendPushDeer}
	case model.ChannelChat:
		return channel[chatParams]{t, sendChat}
	case model.ChannelBark:
		return channel[barkParams]{t, sendBark}
	case model.ChannelTelegramBot:
		return channel[telegramParams]{t, sendTelegramBot}
	case model.ChannelDingtalkBot:
		return channel[dingtalkParams]{t, sendDingtalkBot}
	case model.ChannelWeWorkBot:
		return channel[weWorkParams]{t, sendWeWorkBot}
	case model.ChannelWeWorkApp:
		return channel[weWorkParams]{t, sendWeWorkApp}
	case model.ChannelAibotk:
		return channel[aibotkParams]{t, sendAibotk}
	case model.ChannelIGot:
		return channel[iGotParams]{t, sendIGot}
	case model.ChannelPushPlus:
		return channel[pushPlusParams]{t, sendPushPlus}
	case model.ChannelWePlusBot:
		return channel[wePlusBotParams]{t, sendWePlusBot}
	case model.ChannelEmail:
		return channel[emailParams]{t, sendEmail}
	case model.ChannelPushMe:
		return channel[pushMeParams]{t, sendPushMe}
	case model.ChannelWebhook:
		return channel[webhookParams]{t, sendWebhook}
	case model.ChannelLark:
		return channel[larkParams]{t, sendLark}
	case model.ChannelChronocat:
		return channel[chronocatParams]{t, sendChronocat}
	case model.ChannelNtfy:
		return channel[ntfyParams]{t, sendNtfy}
	}
	return nil
}
