package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/elnormous/contenttype"

	"github.com/LiaiZenApp/liazen-api/pkg/authsdk"
)

const maxBodyBytes = 64 << 10

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
	formMediaType = contenttype.NewMediaType("application/x-www-form-urlencoded")
)

var (
	errUnsupportedMediaType = errors.New("unsupported media type")
	errMalformedBody        = errors.New("malformed body")
)

// decodeBody reads a JSON body into v, or a form body through fromForm. A
// request without Content-Type is treated as JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, fromForm func(url.Values)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType := jsonMediaType
	if r.Header.Get("Content-Type") != "" {
		mt, err := contenttype.GetMediaType(r)
		if err != nil {
			return errUnsupportedMediaType
		}
		mediaType = mt
	}

	switch {
	case mediaType.Matches(jsonMediaType):
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			return errMalformedBody
		}
	case mediaType.Matches(formMediaType):
		if err := r.ParseForm(); err != nil {
			return errMalformedBody
		}
		fromForm(r.PostForm)
	default:
		return errUnsupportedMediaType
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errUnsupportedMediaType) {
		authsdk.ErrUnsupportedMediaType.WriteError(w)
		return
	}
	authsdk.ErrInvalidRequest.WriteError(w)
}
