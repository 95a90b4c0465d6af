package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/darshan-rambhia/herald/internal/model"
)

// Webhook template placeholders.
const (
	PlaceholderTitle   = "$title"
	PlaceholderContent = "$content"
)

// Webhook body content types.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeMultipart = "multipart/form-data"
	ContentTypeText      = "text/plain"
)

// bodyKeyPattern matches a line that starts a new "key:" body field.
var bodyKeyPattern = regexp.MustCompile(`^(\w+):`)

// EncodeURIComponent escapes s the way browsers do for a URI component:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return strings.NewReplacer(
		"+", "%20",
		"%21", "!",
		"%27", "'",
		"%28", "(",
		"%29", ")",
		"%2A", "*",
	).Replace(escaped)
}

// Substitute replaces the placeholders with the raw title and content.
func Substitute(s string, msg model.Message) string {
	return strings.NewReplacer(PlaceholderTitle, msg.Title, PlaceholderContent, msg.Content).Replace(s)
}

// FormatURL replaces the placeholders with URI-component encoded values.
func FormatURL(tmpl string, msg model.Message) string {
	return strings.NewReplacer(
		PlaceholderTitle, EncodeURIComponent(msg.Title),
		PlaceholderContent, EncodeURIComponent(msg.Content),
	).Replace(tmpl)
}

// ParseHeaders reads one "Key: value" header per line. Keys are lower-cased;
// repeated keys are joined with ", ". Lines without a key are ignored.
func ParseHeaders(text string) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:i]))
		if key == "" {
			continue
		}
		val := strings.TrimSpace(line[i+1:])
		if prev, ok := headers[key]; ok && prev != "" {
			val = prev + ", " + val
		}
		headers[key] = val
	}
	return headers
}

// Field is one parsed body entry. Value is either the substituted string or,
// when that string is valid JSON, the decoded value.
type Field struct {
	Key   string
	Value any
}

// Body is a parsed webhook body template.
type Body struct {
	// Text holds the substituted template for raw text bodies.
	Text   string
	Fields []Field
	// Raw reports whether Text, rather than Fields, is the body.
	Raw bool
}

// ParseBody parses a body template for the given content type, applying
// replace to every value (or to the whole text for raw bodies).
func ParseBody(text, contentType string, replace func(string) string) Body {
	if contentType == ContentTypeText || text == "" {
		if text != "" && replace != nil {
			text = replace(text)
		}
		return Body{Text: text, Raw: true}
	}

	var body Body
	seen := make(map[string]bool)
	for _, f := range splitBodyFields(text) {
		key := f[0]
		if seen[key] {
			continue
		}
		seen[key] = true
		raw := strings.TrimSpace(f[1])
		if replace != nil {
			raw = replace(raw)
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			body.Fields = append(body.Fields, Field{Key: key, Value: decoded})
		} else {
			body.Fields = append(body.Fields, Field{Key: key, Value: raw})
		}
	}
	return body
}

// splitBodyFields cuts a template into key/value pairs. A value runs from
// its key up to the next line that starts a new key, so multi-line JSON
// values stay whole. Text before the first key line is dropped.
func splitBodyFields(text string) [][2]string {
	var fields [][2]string
	for _, line := range strings.Split(strings.TrimLeft(text, " \t\r\n"), "\n") {
		if m := bodyKeyPattern.FindStringSubmatch(line); m != nil {
			fields = append(fields, [2]string{m[1], line[len(m[0]):]})
			continue
		}
		if n := len(fields); n > 0 {
			fields[n-1][1] += "\n" + line
		}
	}
	return fields
}

// EncodeBody serializes a parsed body for the content type and returns the
// payload with the Content-Type header it needs. Unknown content types and
// empty templates produce no body.
func EncodeBody(contentType string, body Body) ([]byte, string, error) {
	if body.Raw && body.Text == "" {
		return nil, "", nil
	}
	switch contentType {
	case ContentTypeJSON:
		data, err := encodeJSONFields(body.Fields)
		return data, ContentTypeJSON, err
	case ContentTypeMultipart:
		return encodeMultipart(body.Fields)
	case ContentTypeForm:
		return []byte(joinFormFields(body.Fields)), ContentTypeForm, nil
	case ContentTypeText:
		return []byte(body.Text), ContentTypeText, nil
	}
	return nil, "", nil
}

// encodeJSONFields writes the fields as a JSON object in template order.
func encodeJSONFields(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeMultipart(fields []Field) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.Key, fieldString(f.Value)); err != nil {
			return nil, "", fmt.Errorf("field %s: %w", f.Key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// joinFormFields joins fields as k=v pairs. Values are inserted verbatim,
// so templates control their own escaping.
func joinFormFields(fields []Field) string {
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, f.Key+"="+fieldString(f.Value))
	}
	return strings.Join(pairs, "&")
}

func fieldString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
