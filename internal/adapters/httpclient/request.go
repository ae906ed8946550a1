// Package httpclient dispatches API test requests: a uniform request
// builder covering the seven body framings, keyed cookie sessions, and
// sync/async executors with typed timeout errors.
package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// filesKey is the body key holding upload descriptors in files mode.
const filesKey = "__files__"

// RequestSpec is one request after variable substitution: everything the
// builder needs to frame the outgoing request.
type RequestSpec struct {
	Method   string
	URL      string
	Headers  map[string]any
	Params   map[string]any
	Body     any
	BodyType model.BodyType
}

// PreparedRequest is the uniform dispatch record: final URL, headers, and
// framed body bytes. An empty Body sends no body at all.
type PreparedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Prepare builds the dispatch record from a spec. Query parameters with
// empty or null values are dropped; the distinguished "_raw" parameter is
// appended to the URL (as query when it contains '=', as a path segment
// otherwise). Content-Type is only added when the caller did not set one,
// except in files mode where the multipart boundary always wins.
func Prepare(spec RequestSpec) (*PreparedRequest, error) {
	header := http.Header{}
	for k, v := range spec.Headers {
		header.Set(k, vars.Stringify(v))
	}

	var extra map[string]string
	if spec.BodyType == model.BodyTypeParams {
		extra = paramsFromBody(spec.Body)
	}
	finalURL := buildURL(spec.URL, spec.Params, extra)

	body, err := frameBody(spec.BodyType, spec.Body, header)
	if err != nil {
		return nil, err
	}

	return &PreparedRequest{
		Method: strings.ToUpper(spec.Method),
		URL:    finalURL,
		Header: header,
		Body:   body,
	}, nil
}

func buildURL(rawURL string, params map[string]any, extra map[string]string) string {
	u := rawURL
	if rawParam, ok := params[model.RawParamKey]; ok {
		rawVal := strings.Trim(vars.Stringify(rawParam), "/")
		if strings.Contains(rawVal, "=") {
			u += querySep(u) + rawVal
		} else if rawVal != "" {
			u = strings.TrimRight(u, "/") + "/" + rawVal
		}
	}

	query := url.Values{}
	for k, v := range params {
		if k == model.RawParamKey || emptyParam(v) {
			continue
		}
		query.Set(k, vars.Stringify(v))
	}
	for k, v := range extra {
		query.Set(k, v)
	}
	if enc := query.Encode(); enc != "" {
		u += querySep(u) + enc
	}
	return u
}

func querySep(u string) string {
	if strings.Contains(u, "?") {
		return "&"
	}
	return "?"
}

func emptyParam(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// bodyEmpty reports whether a decoded body counts as absent: {}, "", null,
// or [].
func bodyEmpty(body any) bool {
	switch b := body.(type) {
	case nil:
		return true
	case string:
		return b == ""
	case map[string]any:
		return len(b) == 0
	case []any:
		return len(b) == 0
	}
	return false
}

// paramsFromBody flattens a params-mode body into extra query entries: a
// map contributes its non-empty entries, a string is parsed as a JSON
// object (unparsable strings contribute nothing).
func paramsFromBody(body any) map[string]string {
	extra := map[string]string{}
	switch b := body.(type) {
	case map[string]any:
		for k, v := range b {
			if emptyParam(v) {
				continue
			}
			extra[k] = vars.Stringify(v)
		}
	case string:
		if strings.TrimSpace(b) == "" {
			break
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(b), &m); err == nil {
			for k, v := range m {
				extra[k] = vars.Stringify(v)
			}
		}
	}
	return extra
}

func frameBody(bodyType model.BodyType, body any, header http.Header) ([]byte, error) {
	switch bodyType {
	case model.BodyTypeData:
		switch b := body.(type) {
		case map[string]any:
			if len(b) == 0 {
				return nil, nil
			}
			setIfAbsent(header, "Content-Type", "application/x-www-form-urlencoded")
			return []byte(encodeForm(b)), nil
		case string:
			if b == "" {
				return nil, nil
			}
			return []byte(b), nil
		case nil:
			return nil, nil
		default:
			s := vars.Stringify(body)
			if s == "" {
				return nil, nil
			}
			return []byte(s), nil
		}

	case model.BodyTypeParams:
		// merged into the query string by Prepare
		return nil, nil

	case model.BodyTypeForm:
		m, ok := body.(map[string]any)
		if !ok || len(m) == 0 {
			return nil, nil
		}
		setIfAbsent(header, "Content-Type", "application/x-www-form-urlencoded")
		return []byte(encodeForm(m)), nil

	case model.BodyTypeText:
		var text string
		switch b := body.(type) {
		case string:
			text = b
		case map[string]any, []any:
			encoded, err := encodeJSON(b)
			if err != nil {
				return nil, err
			}
			text = string(encoded)
		case nil:
			text = ""
		default:
			text = vars.Stringify(body)
		}
		if text == "" {
			return nil, nil
		}
		setIfAbsent(header, "Content-Type", "text/plain; charset=utf-8")
		return []byte(text), nil

	case model.BodyTypeRaw:
		if bodyEmpty(body) {
			return nil, nil
		}
		switch body.(type) {
		case map[string]any, []any:
			encoded, err := encodeJSON(body)
			if err != nil {
				return nil, err
			}
			setIfAbsent(header, "Content-Type", "application/json")
			return encoded, nil
		default:
			return []byte(vars.Stringify(body)), nil
		}

	case model.BodyTypeFiles:
		return frameMultipart(body, header)

	default:
		// json mode, and the fallback for unknown body types
		if bodyEmpty(body) {
			return nil, nil
		}
		encoded, err := encodeJSON(body)
		if err != nil {
			return nil, err
		}
		setIfAbsent(header, "Content-Type", "application/json")
		return encoded, nil
	}
}

type fileUpload struct {
	Field string
	Path  string
	MIME  string
}

func frameMultipart(body any, header http.Header) ([]byte, error) {
	fields := map[string]any{}
	var uploads []fileUpload
	if m, ok := body.(map[string]any); ok {
		for k, v := range m {
			if k == filesKey {
				uploads = fileUploads(v)
				continue
			}
			fields[k] = v
		}
	}

	if len(uploads) == 0 {
		if len(fields) == 0 {
			return nil, nil
		}
		setIfAbsent(header, "Content-Type", "application/x-www-form-urlencoded")
		return []byte(encodeForm(fields)), nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range sortedKeys(fields) {
		if err := w.WriteField(k, vars.Stringify(fields[k])); err != nil {
			return nil, fmt.Errorf("write multipart field %s: %w", k, err)
		}
	}
	for _, up := range uploads {
		data, err := os.ReadFile(up.Path)
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", up.Path, err)
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`,
				up.Field, filepath.Base(up.Path))},
			"Content-Type": {up.MIME},
		})
		if err != nil {
			return nil, fmt.Errorf("create multipart part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("write upload %s: %w", up.Path, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}
	header.Set("Content-Type", w.FormDataContentType())
	return buf.Bytes(), nil
}

// fileUploads decodes {field, path, mime} descriptors, dropping entries
// whose path does not point at a regular file.
func fileUploads(v any) []fileUpload {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var uploads []fileUpload
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path := vars.Stringify(m["path"])
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		up := fileUpload{
			Field: vars.Stringify(m["field"]),
			Path:  path,
			MIME:  vars.Stringify(m["mime"]),
		}
		if up.Field == "" {
			up.Field = "file"
		}
		if up.MIME == "" {
			up.MIME = "application/octet-stream"
		}
		uploads = append(uploads, up)
	}
	return uploads
}

func encodeForm(m map[string]any) string {
	values := url.Values{}
	for k, v := range m {
		values.Set(k, vars.Stringify(v))
	}
	return values.Encode()
}

// encodeJSON marshals without HTML escaping so payload bytes match the
// stored template text.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func setIfAbsent(header http.Header, key, value string) {
	if header.Get(key) == "" {
		header.Set(key, value)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
