package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/microcosm-cc/bluemonday"
	"net/http"
)

// sanitizer strips all markup from API responses.
var sanitizer = bluemonday.StrictPolicy()

func sanitizedJSONResponse(w http.ResponseWriter, i interface{}) {
	ret, err := marshalAndSanitizeJSON(i)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, string(ret))
}

func marshalAndSanitizeJSON(i interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		return nil, err
	}
	return sanitizeJSON(out)
}

// sanitizeJSON strips markup from every string in s. Numbers are decoded
// as json.Number so satoshi amounts pass through unchanged.
func sanitizeJSON(s []byte) ([]byte, error) {
	d := json.NewDecoder(bytes.NewReader(s))
	d.UseNumber()

	var i interface{}
	if err := d.Decode(&i); err != nil {
		return nil, err
	}
	return json.MarshalIndent(sanitize(i), "", "    ")
}

// sanitize cleans a decoded JSON value in place and drops null object
// fields.
func sanitize(data interface{}) interface{} {
	switch d := data.(type) {
	case string:
		return sanitizer.Sanitize(d)
	case map[string]interface{}:
		for k, v := range d {
			if v == nil {
				delete(d, k)
				continue
			}
			d[k] = sanitize(v)
		}
	case []interface{}:
		for i, v := range d {
			d[i] = sanitize(v)
		}
	}
	return data
}
