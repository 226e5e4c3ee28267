package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
)

// ============================================================
// Response helpers
// ============================================================

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// backendError covers both PostgREST ({message, details, hint, code}) and
// GoTrue ({msg} / {error, error_description}) error bodies.
type backendError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// parseBackendError maps a non-2xx response into a domain error. The message
// produced by the backend is kept verbatim.
func parseBackendError(status int, body []byte) error {
	var be backendError
	msg := ""
	if err := json.Unmarshal(body, &be); err == nil {
		for _, m := range []string{be.Message, be.Msg, be.ErrorDescription, be.Error} {
			if m != "" {
				msg = m
				break
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("supabase returned %d", status)
	}

	if status == http.StatusUnauthorized {
		return &domain.ErrUnauthorized{Message: msg}
	}
	return &domain.ErrBackend{Status: status, Message: msg}
}

// parseContentRange extracts the total from a PostgREST Content-Range header
// ("0-49/1234", "*/0"). Returns -1 when the total is unknown.
func parseContentRange(h string) int {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return -1
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// flexFloat decodes numeric columns sent as numbers, numeric strings or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes text columns that may arrive as numbers (ids, flags).
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(raw)
	return nil
}
