package dialect

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/registry"
	"github.com/oriys/microstack/internal/runtime"
)

// FunctionHandler implements the REST+JSON Function API under
// /2015-03-31/functions, mirroring the AWS Lambda control-plane shapes
// closely enough for the Lambda SDKs to round-trip against it.
type FunctionHandler struct {
	registry *registry.Registry
	runtime  *runtime.Runtime
}

// NewFunctionHandler builds a FunctionHandler.
func NewFunctionHandler(reg *registry.Registry, rt *runtime.Runtime) *FunctionHandler {
	return &FunctionHandler{registry: reg, runtime: rt}
}

type envelopeVariables struct {
	Variables map[string]string `json:"Variables"`
}

type codeEnvelope struct {
	ZipFile string `json:"ZipFile"`
}

type createFunctionRequest struct {
	FunctionName string             `json:"FunctionName"`
	Runtime      string             `json:"Runtime"`
	Role         string             `json:"Role"`
	Handler      string             `json:"Handler"`
	Timeout      int                `json:"Timeout,omitempty"`
	Environment  *envelopeVariables `json:"Environment,omitempty"`
	Code         codeEnvelope       `json:"Code"`
}

type updateCodeRequest struct {
	ZipFile string `json:"ZipFile"`
}

type updateConfigRequest struct {
	Runtime     *string            `json:"Runtime,omitempty"`
	Role        *string            `json:"Role,omitempty"`
	Handler     *string            `json:"Handler,omitempty"`
	Timeout     *int               `json:"Timeout,omitempty"`
	Environment *envelopeVariables `json:"Environment,omitempty"`
}

type functionConfiguration struct {
	FunctionName string             `json:"FunctionName"`
	FunctionArn  string             `json:"FunctionArn"`
	Runtime      string             `json:"Runtime"`
	Role         string             `json:"Role"`
	Handler      string             `json:"Handler"`
	CodeSize     int                `json:"CodeSize"`
	CodeSha256   string             `json:"CodeSha256"`
	Timeout      int                `json:"Timeout"`
	LastModified string             `json:"LastModified"`
	Version      string             `json:"Version"`
	Environment  *envelopeVariables `json:"Environment,omitempty"`
}

func toFunctionConfiguration(fn *registry.Function) functionConfiguration {
	cfg := functionConfiguration{
		FunctionName: fn.Name,
		FunctionArn:  fmt.Sprintf("arn:aws:lambda:us-east-1:000000000000:function:%s", fn.Name),
		Runtime:      fn.Runtime,
		Role:         fn.Role,
		Handler:      fn.Handler,
		CodeSize:     len(fn.CodeBundle),
		CodeSha256:   fn.CodeDigest,
		Timeout:      fn.TimeoutSeconds,
		LastModified: fn.LastModified.Format("2006-01-02T15:04:05.000-0700"),
		Version:      "$LATEST",
	}
	if fn.Environment != nil {
		cfg.Environment = &envelopeVariables{Variables: fn.Environment}
	}
	return cfg
}

// Create handles POST /2015-03-31/functions.
func (h *FunctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("InvalidRequestContentException", "malformed request body"))
		return
	}
	var env map[string]string
	if req.Environment != nil {
		env = req.Environment.Variables
	}
	fn, err := h.registry.Create(registry.CreateInput{
		Name:           req.FunctionName,
		Runtime:        req.Runtime,
		Role:           req.Role,
		Handler:        req.Handler,
		TimeoutSeconds: req.Timeout,
		Environment:    env,
		CodeBundleB64:  req.Code.ZipFile,
	})
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFunctionConfiguration(fn))
}

// Get handles GET /2015-03-31/functions/{name}.
func (h *FunctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, err := h.registry.Get(name)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFunctionConfiguration(fn))
}

// List handles GET /2015-03-31/functions.
func (h *FunctionHandler) List(w http.ResponseWriter, r *http.Request) {
	fns := h.registry.List()
	out := make([]functionConfiguration, 0, len(fns))
	for _, fn := range fns {
		out = append(out, toFunctionConfiguration(fn))
	}
	writeJSON(w, http.StatusOK, struct {
		Functions []functionConfiguration `json:"Functions"`
	}{Functions: out})
}

// Delete handles DELETE /2015-03-31/functions/{name}.
func (h *FunctionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.registry.Delete(name); err != nil {
		WriteJSONError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCode handles PUT /2015-03-31/functions/{name}/code.
func (h *FunctionHandler) UpdateCode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req updateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("InvalidRequestContentException", "malformed request body"))
		return
	}
	fn, err := h.registry.UpdateCode(name, req.ZipFile)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFunctionConfiguration(fn))
}

// UpdateConfiguration handles PUT /2015-03-31/functions/{name}/configuration.
func (h *FunctionHandler) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("InvalidRequestContentException", "malformed request body"))
		return
	}
	patch := registry.ConfigPatch{
		Runtime:        req.Runtime,
		Role:           req.Role,
		Handler:        req.Handler,
		TimeoutSeconds: req.Timeout,
	}
	if req.Environment != nil {
		patch.Environment = &req.Environment.Variables
	}
	fn, err := h.registry.UpdateConfig(name, patch)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFunctionConfiguration(fn))
}

// Invoke handles POST /2015-03-31/functions/{name}/invocations. The request
// body is the raw payload; the response body is the raw return value, with
// X-Amz-Function-Error set on a handler fault or timeout per §4.D.
func (h *FunctionHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("InvalidRequestContentException", "unreadable request body"))
		return
	}
	result, err := h.runtime.Invoke(r.Context(), name, payload)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Amz-Executed-Version", "$LATEST")
	if result.FunctionError != "" {
		w.Header().Set("X-Amz-Function-Error", result.FunctionError)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
