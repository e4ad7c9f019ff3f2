package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/iliafrenkel/unbin/src/service"
)

// errUnsupportedMedia is returned by readPasteRequest for content types
// other than JSON or url-encoded forms.
var errUnsupportedMedia = errors.New("unsupported media type")

// readPasteRequest reads title and text from the request body. JSON is
// expected, url-encoded forms are accepted as well. An empty body results in
// an empty request, the service decides what to do with it.
// The returned error message is meant for the client.
func readPasteRequest(r *http.Request) (service.PasteRequest, error) {
	var pr service.PasteRequest

	mt := "application/json"
	if hdr := r.Header.Get("Content-Type"); hdr != "" {
		var err error
		if mt, _, err = mime.ParseMediaType(hdr); err != nil {
			return pr, fmt.Errorf("%w: %s", errUnsupportedMedia, hdr)
		}
	}

	switch mt {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return pr, errors.New("Request body contains malformed form data")
		}
		pr.Title = r.PostFormValue("title")
		pr.Text = r.PostFormValue("text")
		return pr, nil
	case "application/json":
	default:
		return pr, fmt.Errorf("%w: %s", errUnsupportedMedia, mt)
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&pr); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		switch {
		// An io.EOF error is returned by Decode() if the request body is
		// empty. Missing fields are reported by the service.
		case errors.Is(err, io.EOF):
			return service.PasteRequest{}, nil

		// Catch any syntax errors in the JSON and send an error message
		// which interpolates the location of the problem to make it
		// easier for the client to fix.
		case errors.As(err, &syntaxError):
			return pr, fmt.Errorf("Request body contains malformed JSON (at position %d)", syntaxError.Offset)

		// In some circumstances Decode() may also return an
		// io.ErrUnexpectedEOF error for syntax errors in the JSON.
		case errors.Is(err, io.ErrUnexpectedEOF):
			return pr, errors.New("Request body contains malformed JSON")

		// Trying to assign a number to the title and such.
		case errors.As(err, &unmarshalTypeError):
			return pr, fmt.Errorf("Request body contains an invalid value for the %q field (at position %d)",
				unmarshalTypeError.Field,
				unmarshalTypeError.Offset)

		default:
			return pr, fmt.Errorf("Request body cannot be decoded: %v", err)
		}
	}

	// Call decode again, using a pointer to an empty anonymous struct as
	// the destination. If the request body only contained a single JSON
	// object this will return an io.EOF error.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pr, errors.New("Request body must only contain a single JSON object")
	}

	return pr, nil
}
