package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/darshan-rambhia/herald/internal/model"
)

const (
	defaultBrand = "Herald"
	defaultLink  = "https://github.com/darshan-rambhia/herald"
)

// Env holds the shared, immutable collaborators every adapter may use.
type Env struct {
	HTTP   Transport
	Mailer Mailer
	// Now is the clock used for request signing.
	Now func() time.Time
	// Brand labels messages on channels that carry a sender name.
	Brand string
	// Link is attached to card-style messages.
	Link string
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) brand() string {
	if e.Brand != "" {
		return e.Brand
	}
	return defaultBrand
}

func (e Env) link() string {
	if e.Link != "" {
		return e.Link
	}
	return defaultLink
}

// Adapter delivers a message through one provider. Implementations keep no
// per-call state and are safe for concurrent use.
type Adapter interface {
	Type() model.ChannelType
	Send(ctx context.Context, env Env, msg model.Message, params map[string]any) (bool, error)
}

// channel binds a provider's typed parameters to its send function.
type channel[P any] struct {
	kind model.ChannelType
	send func(ctx context.Context, env Env, msg model.Message, p P) (bool, error)
}

func (c channel[P]) Type() model.ChannelType { return c.kind }

func (c channel[P]) Send(ctx context.Context, env Env, msg model.Message, params map[string]any) (bool, error) {
	var p P
	if err := decodeParams(params, &p); err != nil {
		return false, invalid(c.kind, "decode params: %v", err)
	}
	return c.send(ctx, env, msg, p)
}

// decodeParams maps the flat parameter object onto a typed struct. Scalars
// are stringified first so that numeric ids and tokens decode into string
// fields regardless of how the config file spelled them.
func decodeParams(params map[string]any, dst any) error {
	flat := make(map[string]any, len(params))
	for k, v := range params {
		flat[k] = scalarString(v)
	}
	data, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func scalarString(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	default:
		return v
	}
}

func jsonRequest(rawURL string, payload any, header map[string]string) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("marshal: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range header {
		h[k] = v
	}
	return Request{Method: http.MethodPost, URL: rawURL, Header: h, Body: body}, nil
}

func formRequest(rawURL string, values url.Values) Request {
	return Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Header: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:   []byte(values.Encode()),
	}
}

// call performs a request and returns the response only when it arrived
// with a 2xx status.
func call(ctx context.Context, env Env, ch model.ChannelType, req Request) (*Response, error) {
	resp, err := env.HTTP.Do(ctx, req)
	if err != nil {
		return nil, failed(ch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, rejected(ch, resp)
	}
	return resp, nil
}

// expect performs a request and checks the decoded JSON response against
// the provider's success predicate.
func expect(ctx context.Context, env Env, ch model.ChannelType, req Request, pred Predicate) (bool, error) {
	resp, err := call(ctx, env, ch, req)
	if err != nil {
		return false, err
	}
	doc, err := resp.JSON()
	if err != nil || !pred.Match(doc) {
		return false, rejected(ch, resp)
	}
	return true, nil
}

func postJSON(ctx context.Context, env Env, ch model.ChannelType, rawURL string, payload any, header map[string]string, pred Predicate) (bool, error) {
	req, err := jsonRequest(rawURL, payload, header)
	if err != nil {
		return false, invalid(ch, "%v", err)
	}
	return expect(ctx, env, ch, req, pred)
}
