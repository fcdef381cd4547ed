package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/conduit-realworld/conduitauth"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Errors struct {
		Body []string `json:"body"`
	} `json:"errors"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var body errorBody
	body.Errors.Body = []string{msg}
	writeJSON(w, status, body)
}

// decode reads a single JSON object into v. Unknown fields are ignored.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("body is not valid JSON")
	}
	return nil
}

// inputMessage strips the sentinel prefix from an ErrInvalidInput chain.
func inputMessage(err error) string {
	msg := err.Error()
	prefix := conduitauth.ErrInvalidInput.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return msg[len(prefix):]
	}
	return msg
}

// optionalString distinguishes an absent JSON field from an explicit value. An
// explicit null is treated as "".
type optionalString struct {
	set   bool
	value string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.set = true
	if string(data) == "null" {
		o.value = ""
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

func (o optionalString) ptr() *string {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// nullable renders "" as JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
