// Package dialect implements the four AWS wire dialects microstack
// multiplexes over its single HTTP port (see spec.md §6): REST+JSON for
// the Function API, AWS JSON 1.1 for the Log API, REST+XML path-style for
// the Object API, and Query/XML for the Stack API. Each dialect has its
// own request/response shape but shares one error taxonomy, defined in
// internal/apierr, and one rendering convention per envelope family
// here.
package dialect

import (
	"encoding/json"
	"encoding/xml"
	"net/http"

	"github.com/oriys/microstack/internal/apierr"
)

// classify turns any error into an *apierr.Error, defaulting to Internal
// so a programming error never leaks an unstructured 500.
func classify(err error) *apierr.Error {
	if e, ok := apierr.As(err); ok {
		return e
	}
	return apierr.Internalf("%v", err)
}

// jsonErrorBody is the AWS JSON services' error envelope.
type jsonErrorBody struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// WriteJSONError renders err as the JSON services' error envelope
// (Function API, Log API): {"__type": code, "message": msg} with header
// X-Amzn-ErrorType, per spec.md §6.
func WriteJSONError(w http.ResponseWriter, err error) {
	e := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Amzn-ErrorType", e.Code)
	w.WriteHeader(e.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(jsonErrorBody{Type: e.Code, Message: e.Message})
}

// xmlErrorBody is the S3-style REST+XML error envelope.
type xmlErrorBody struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// WriteXMLError renders err as the Object API's REST+XML error document.
func WriteXMLError(w http.ResponseWriter, err error) {
	e := classify(err)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(e.Kind.HTTPStatus())
	_ = xml.NewEncoder(w).Encode(xmlErrorBody{Code: e.Code, Message: e.Message})
}

// cfnErrorBody is the CloudFormation Query/XML error envelope.
type cfnErrorBody struct {
	XMLName xml.Name     `xml:"ErrorResponse"`
	Error   cfnErrorInfo `xml:"Error"`
}

type cfnErrorInfo struct {
	Type    string `xml:"Type"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

// WriteCloudFormationError renders err as the Stack API's
// <ErrorResponse><Error>... document.
func WriteCloudFormationError(w http.ResponseWriter, err error) {
	e := classify(err)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(e.Kind.HTTPStatus())
	_ = xml.NewEncoder(w).Encode(cfnErrorBody{Error: cfnErrorInfo{Type: "Sender", Code: e.Code, Message: e.Message}})
}
