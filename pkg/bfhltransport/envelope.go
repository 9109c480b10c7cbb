package bfhltransport

import (
	"net/http"

	"github.com/bfhl/bfhlsvc/pkg/service"
)

// Envelope is the uniform body of every response.
type Envelope struct {
	IsSuccess     bool        `json:"is_success"`
	OfficialEmail string      `json:"official_email"`
	Data          interface{} `json:"data,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// Formatter builds envelopes stamped with the service's official email.
type Formatter struct {
	Email string
}

// Health returns the body of a successful health check. It carries no data.
func (f Formatter) Health() Envelope {
	return Envelope{IsSuccess: true, OfficialEmail: f.Email}
}

// Success wraps data.
func (f Formatter) Success(data interface{}) Envelope {
	return Envelope{IsSuccess: true, OfficialEmail: f.Email, Data: data}
}

// Failure returns the status code and envelope for err. Only the public
// message of err is included.
func (f Formatter) Failure(err error) (int, Envelope) {
	return StatusCode(err), Envelope{
		IsSuccess:     false,
		OfficialEmail: f.Email,
		Error:         service.PublicMessage(err),
	}
}

// StatusCode maps err to an HTTP status: 400 for client faults, 500 for
// everything else.
func StatusCode(err error) int {
	if service.KindOf(err).ClientFault() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
