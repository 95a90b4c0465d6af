package notify

import (
	"context"
	"net/http"
	"regexp"

	"github.com/darshan-rambhia/herald/internal/model"
)

var (
	chronocatUserPattern  = regexp.MustCompile(`user_id=(\d+)`)
	chronocatGroupPattern = regexp.MustCompile(`group_id=(\d+)`)
)

// Chronocat peer chat types.
const (
	chatTypeUser  = 1
	chatTypeGroup = 2
)

type chronocatParams struct {
	URL   string `json:"chronocatURL"`
	QQ    string `json:"chronocatQQ"`
	Token string `json:"chronocatToken"`
}

type chronocatRecipients struct {
	chatType int
	ids      []string
}

// parseChronocatRecipients extracts user ids, then group ids, from a string
// such as "user_id=1;group_id=2;user_id=3".
func parseChronocatRecipients(raw string) []chronocatRecipients {
	extract := func(re *regexp.Regexp) []string {
		var ids []string
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			ids = append(ids, m[1])
		}
		return ids
	}
	return []chronocatRecipients{
		{chatType: chatTypeUser, ids: extract(chronocatUserPattern)},
		{chatType: chatTypeGroup, ids: extract(chronocatGroupPattern)},
	}
}

// sendChronocat tries each recipient in turn and stops at the first one the
// relay accepts. With no recipients at all it reports false without error.
func sendChronocat(ctx context.Context, env Env, msg model.Message, p chronocatParams) (bool, error) {
	endpoint := p.URL + "/api/message/send"
	header := map[string]string{"Authorization": "Bearer " + p.Token}

	var lastErr error
	for _, group := range parseChronocatRecipients(p.QQ) {
		for _, id := range group.ids {
			req, err := jsonRequest(endpoint, map[string]any{
				"peer": map[string]any{
					"chatType": group.chatType,
					"peerUin":  id,
				},
				"elements": []map[string]any{{
					"elementType": 1,
					"textElement": map[string]string{"content": msg.Title + "\n\n" + msg.Content},
				}},
			}, header)
			if err != nil {
				return false, invalid(model.ChannelChronocat, "%v", err)
			}
			resp, err := env.HTTP.Do(ctx, req)
			switch {
			case err != nil:
				lastErr = failed(model.ChannelChronocat, err)
			case resp.StatusCode == http.StatusOK:
				return true, nil
			default:
				lastErr = rejected(model.ChannelChronocat, resp)
			}
		}
	}
	return false, lastErr
}
