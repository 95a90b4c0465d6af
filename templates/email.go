package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// EmailBody renders message content as the HTML body of a notification
// mail. Content is inserted as-is so that senders may embed markup; line
// feeds become <br/>.
func EmailBody(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, XHTMLBreaks(content))
		return err
	})
}
