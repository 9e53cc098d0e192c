package stacks

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/oriys/microstack/internal/apierr"
)

const (
	typeLambda   = "AWS::Lambda::Function"
	typeLogGroup = "AWS::Logs::LogGroup"
	typeBucket   = "AWS::S3::Bucket"
)

var knownTypes = map[string]bool{
	typeLambda:   true,
	typeLogGroup: true,
	typeBucket:   true,
}

// validateProperties enforces the §4.E per-type property schema against a
// resource's template-literal property values, before intrinsic
// resolution: unknown properties are rejected and required fields must be
// present as non-empty strings. Unknown resource types are left
// unvalidated — they are rejected during the creation pass instead, where
// the spec requires the failure to surface as a CREATE_FAILED terminal
// stack state rather than a flat template-validation error.
func validateProperties(resourceType string, props map[string]any) error {
	switch resourceType {
	case typeLambda:
		return validateLambdaProperties(props)
	case typeLogGroup:
		return validateLogGroupProperties(props)
	case typeBucket:
		return validateBucketProperties(props)
	default:
		return nil
	}
}

func validateLambdaProperties(props map[string]any) error {
	allowed := map[string]bool{
		"FunctionName": true, "Runtime": true, "Role": true, "Handler": true,
		"Code": true, "Environment": true, "Timeout": true,
	}
	for k := range props {
		if !allowed[k] {
			return apierr.InvalidArgumentf("ValidationError", "unknown Lambda property %q", k)
		}
	}
	for _, req := range []string{"FunctionName", "Runtime", "Role", "Handler"} {
		if isIntrinsic(props[req]) {
			continue
		}
		s, ok := props[req].(string)
		if !ok || s == "" {
			return apierr.InvalidArgumentf("ValidationError", "Lambda requires a non-empty %q", req)
		}
	}
	if !isIntrinsic(props["Code"]) {
		code, ok := props["Code"].(map[string]any)
		if !ok || len(code) != 1 {
			return apierr.InvalidArgumentf("ValidationError", "Lambda Code must be a mapping containing exactly the key ZipFile")
		}
		if zf := code["ZipFile"]; !isIntrinsic(zf) {
			s, ok := zf.(string)
			if !ok || s == "" {
				return apierr.InvalidArgumentf("ValidationError", "Lambda Code.ZipFile must be a non-empty string")
			}
		}
	}
	if env, ok := props["Environment"]; ok && !isIntrinsic(env) {
		envMap, ok := env.(map[string]any)
		if !ok || len(envMap) != 1 {
			return apierr.InvalidArgumentf("ValidationError", "Lambda Environment must be a mapping containing exactly the key Variables")
		}
		vars, ok := envMap["Variables"].(map[string]any)
		if !ok {
			return apierr.InvalidArgumentf("ValidationError", "Lambda Environment.Variables must be a mapping")
		}
		for k, v := range vars {
			if !isIntrinsic(v) {
				if _, ok := v.(string); !ok {
					return apierr.InvalidArgumentf("ValidationError", "Lambda Environment.Variables[%q] must be a string", k)
				}
			}
		}
	}
	if t, ok := props["Timeout"]; ok && !isIntrinsic(t) && !isNumeric(t) {
		return apierr.InvalidArgumentf("ValidationError", "Lambda Timeout must be numeric")
	}
	return nil
}

func validateLogGroupProperties(props map[string]any) error {
	allowed := map[string]bool{"LogGroupName": true, "RetentionInDays": true}
	for k := range props {
		if !allowed[k] {
			return apierr.InvalidArgumentf("ValidationError", "unknown LogGroup property %q", k)
		}
	}
	if !isIntrinsic(props["LogGroupName"]) {
		name, ok := props["LogGroupName"].(string)
		if !ok || name == "" {
			return apierr.InvalidArgumentf("ValidationError", "LogGroup requires a non-empty LogGroupName")
		}
	}
	if v, ok := props["RetentionInDays"]; ok && !isIntrinsic(v) && !isNumeric(v) {
		return apierr.InvalidArgumentf("ValidationError", "LogGroup RetentionInDays must be numeric")
	}
	return nil
}

func validateBucketProperties(props map[string]any) error {
	allowed := map[string]bool{"BucketName": true}
	for k := range props {
		if !allowed[k] {
			return apierr.InvalidArgumentf("ValidationError", "unknown Bucket property %q", k)
		}
	}
	if !isIntrinsic(props["BucketName"]) {
		name, ok := props["BucketName"].(string)
		if !ok || name == "" {
			return apierr.InvalidArgumentf("ValidationError", "Bucket requires a non-empty BucketName")
		}
	}
	return nil
}

// isIntrinsic reports whether v is an unresolved Ref or Fn::GetAtt
// intrinsic, deferring its type check to resolution time rather than
// rejecting it here against the raw template.
func isIntrinsic(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	_, isRef := m["Ref"]
	_, isGetAtt := m["Fn::GetAtt"]
	return isRef || isGetAtt
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	default:
		return false
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}

// arnFor computes the type-specific ARN Fn::GetAtt's Arn attribute
// resolves to. Physical ids equal the property name for every supported
// type (FunctionName, LogGroupName, BucketName), per the glossary.
func arnFor(r *Resource) string {
	switch r.Type {
	case typeLambda:
		return fmt.Sprintf("arn:aws:lambda:us-east-1:000000000000:function:%s", r.PhysicalID)
	case typeLogGroup:
		return fmt.Sprintf("arn:aws:logs:us-east-1:000000000000:log-group:%s", r.PhysicalID)
	case typeBucket:
		return fmt.Sprintf("arn:aws:s3:::%s", r.PhysicalID)
	default:
		return r.PhysicalID
	}
}

// wrapInlineSource packages a CloudFormation Lambda resource's inline
// Code.ZipFile text (the spec's literal "inline source text", not
// a pre-built bundle) into the single-entry ZIP archive the function
// registry expects, under the filename the runtime's handler-resolution
// algorithm will find it by.
func wrapInlineSource(module, source string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(module + ".mjs")
	if err != nil {
		return nil, fmt.Errorf("wrap inline source: %w", err)
	}
	if _, err := w.Write([]byte(source)); err != nil {
		return nil, fmt.Errorf("wrap inline source: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("wrap inline source: %w", err)
	}
	return buf.Bytes(), nil
}
