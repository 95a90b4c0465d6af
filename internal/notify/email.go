package notify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/darshan-rambhia/herald/templates"
)

type emailParams struct {
	Service  string `json:"smtpService"`
	Name     string `json:"smtpName"`
	Password string `json:"smtpPassword"`
}

// sendEmail mails the message to the sending account itself.
func sendEmail(ctx context.Context, env Env, msg model.Message, p emailParams) (bool, error) {
	if env.Mailer == nil {
		return false, invalid(model.ChannelEmail, "no mailer configured")
	}

	var html bytes.Buffer
	if err := templates.EmailBody(msg.Content).Render(ctx, &html); err != nil {
		return false, invalid(model.ChannelEmail, "render body: %v", err)
	}

	m := Mail{
		FromName: env.brand(),
		From:     p.Name,
		To:       p.Name,
		Subject:  msg.Title,
		HTML:     html.String(),
	}
	id, err := env.Mailer.Send(ctx, SMTPAccount{Service: p.Service, Username: p.Name, Password: p.Password}, m)
	if err != nil {
		return false, failed(model.ChannelEmail, err)
	}
	if id == "" {
		return false, &ProviderError{Channel: model.ChannelEmail, Body: fmt.Sprintf(`{"to":%q,"messageId":""}`, p.Name)}
	}
	return true, nil
}
