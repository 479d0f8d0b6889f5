package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/forecastqa/forecastqa/internal/ask"
	"github.com/forecastqa/forecastqa/internal/auth"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Success   bool           `json:"success"`
	Answer    string         `json:"answer"`
	Citations []ask.Citation `json:"citations"`
	QueryType string         `json:"query_type"`
}

// maxAskBodyBytes caps the request body well above the longest accepted
// question, so oversized payloads fail at the decoder instead of being
// buffered.
const maxAskBodyBytes = 4 << 10

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "body must be a JSON object with a question field")
		return
	}

	result, err := deps.Ask.Ask(r.Context(), callerKey(r), req.Question)
	if err != nil {
		status, code, message := mapAskError(err)
		writeError(w, status, code, message)
		return
	}

	citations := result.Citations
	if citations == nil {
		citations = []ask.Citation{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		Success:   true,
		Answer:    result.Answer,
		Citations: citations,
		QueryType: string(result.QueryType),
	})
}

// callerKey identifies the caller for rate limiting: the authenticated
// identity when auth is on, otherwise the client address.
func callerKey(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.CallerID
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func mapAskError(err error) (int, string, string) {
	var aerr *ask.Error
	if !errors.As(err, &aerr) {
		return http.StatusInternalServerError, string(ask.CodeInternal), "internal error"
	}

	status := http.StatusInternalServerError
	switch aerr.Code {
	case ask.CodeRateLimited:
		status = http.StatusTooManyRequests
	case ask.CodeInvalidInput, ask.CodeSecurityRejected:
		status = http.StatusBadRequest
	case ask.CodeUnanswerable, ask.CodeSchemaInvalid:
		status = http.StatusUnprocessableEntity
	case ask.CodeLLMTimeout:
		status = http.StatusGatewayTimeout
	case ask.CodeLLMAuth, ask.CodeLLMUnavailable:
		status = http.StatusBadGateway
	case ask.CodeLLMRateLimited:
		status = http.StatusServiceUnavailable
	case ask.CodeDBError, ask.CodeInternal:
		status = http.StatusInternalServerError
	}
	return status, string(aerr.Code), aerr.Message
}
