package submit

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/url"
	"sort"
	"strconv"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

// Encoding selects the wire format a snapshot is submitted in.
type Encoding uint8

const (
	// EncodingJSON posts the snapshot as a JSON document.
	EncodingJSON Encoding = iota

	// EncodingForm posts an application/x-www-form-urlencoded body whose
	// keys are scope paths.
	EncodingForm

	// EncodingMultipart posts a multipart/form-data body whose field names
	// are scope paths.
	EncodingMultipart

	// EncodingMergePatch posts an RFC 7386 merge patch computed against the
	// previously submitted snapshot.
	EncodingMergePatch
)

// String returns the encoding name as accepted by ParseEncoding.
func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingForm:
		return "form"
	case EncodingMultipart:
		return "multipart"
	case EncodingMergePatch:
		return "merge-patch"
	default:
		return "unknown"
	}
}

// ContentType returns the Content-Type header value for the encoding. The
// multipart content type is incomplete without a boundary; EncodeMultipart
// returns the full value.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingForm:
		return "application/x-www-form-urlencoded"
	case EncodingMultipart:
		return "multipart/form-data"
	case EncodingMergePatch:
		return "application/merge-patch+json"
	default:
		return "application/json"
	}
}

// ParseEncoding maps a configuration string to an Encoding. The empty string
// means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "json", "":
		return EncodingJSON, nil
	case "form":
		return EncodingForm, nil
	case "multipart":
		return EncodingMultipart, nil
	case "merge-patch":
		return EncodingMergePatch, nil
	default:
		return 0, fmt.Errorf("submit: unknown encoding %q", s)
	}
}

// EncodeForm flattens a snapshot to url.Values keyed by scope path: mapping
// fields join with '/', sequence elements get explicit "[i]" groups, and
// scalars format as strings. The flattening is lossy for empty containers,
// which produce no pairs.
func EncodeForm(data formdata.FormData) url.Values {
	out := url.Values{}
	for key, v := range data {
		encodeValue(out, key, v)
	}
	return out
}

func encodeValue(out url.Values, key string, v *formdata.Value) {
	switch {
	case v == nil:
		out.Set(key, "")
	case v.Kind == formdata.KindMapping:
		for k, child := range v.Map {
			encodeValue(out, key+"/"+k, child)
		}
	case v.Kind == formdata.KindSequence:
		for i, item := range v.Seq {
			encodeValue(out, key+"["+strconv.Itoa(i)+"]", item)
		}
	default:
		out.Set(key, formatScalar(v.Scalar))
	}
}

// formatScalar renders a scalar the way a browser form field would.
func formatScalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// DecodeForm builds a snapshot from url.Values, treating each key as a scope
// path. Values stay strings: url encoding carries no types, so "3" decodes
// as the string "3", not the number. A key with multiple values becomes a
// sequence. Keys are processed in sorted order so the result is independent
// of map iteration.
func DecodeForm(values url.Values) (formdata.FormData, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	root := formdata.FormData{}
	for _, key := range keys {
		vs := values[key]
		var v *formdata.Value
		if len(vs) == 1 {
			v = formdata.Scalar(vs[0])
		} else {
			items := make([]*formdata.Value, len(vs))
			for i, s := range vs {
				items[i] = formdata.Scalar(s)
			}
			v = formdata.Seq(items...)
		}
		if err := formdata.Put(root, key, v); err != nil {
			return nil, fmt.Errorf("submit: key %q: %w", key, err)
		}
	}
	return root, nil
}

// EncodeMultipart renders the snapshot as a multipart/form-data body, one
// field per flattened scope path, and returns the body together with the
// boundary-qualified content type.
func EncodeMultipart(data formdata.FormData) (body []byte, contentType string, err error) {
	values := EncodeForm(data)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, key := range keys {
		for _, v := range values[key] {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("submit: multipart field %q: %w", key, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("submit: multipart close: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
