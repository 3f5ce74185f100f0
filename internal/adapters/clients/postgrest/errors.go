package postgrest

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// codeInvalidText is SQLSTATE 22P02: a filter value could not be cast to the
// column type, as with a malformed uuid.
const codeInvalidText = "22P02"

// apiError is the body PostgREST sends with a failed request.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *apiError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}

	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}

	return msg
}

// readAPIError decodes r as a PostgREST error. Bodies that are not one, such
// as a gateway's HTML page, yield nil.
func readAPIError(r io.Reader) *apiError {
	if r == nil {
		return nil
	}

	var body apiError
	if json.NewDecoder(r).Decode(&body) != nil || (body.Code == "" && body.Message == "") {
		return nil
	}

	return &body
}

// failure converts the outcome of a PostgREST call into a domain error, or nil
// when the call succeeded. id is the quote the request filtered on; an id the
// database cannot cast cannot name a stored quote, so it reports not found.
func failure(operation, id string, resp *http.Response, err error) error {
	switch {
	case err != nil:
		return domain.NewStoreError(operation, err)
	case resp == nil:
		return domain.NewStoreError(operation, errors.New("no response received"))
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	}

	body := readAPIError(resp.Body)
	switch {
	case body == nil:
		return domain.NewStoreError(operation, fmt.Errorf("HTTP %d", resp.StatusCode))
	case id != "" && body.Code == codeInvalidText:
		return domain.NewNotFoundError(domain.EntityQuote, id)
	default:
		return domain.NewStoreError(operation, fmt.Errorf("HTTP %d: %w", resp.StatusCode, body))
	}
}
