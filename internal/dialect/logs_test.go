package dialect

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oriys/microstack/internal/logs"
)

func doLogsRequest(h *LogsHandler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("X-Amz-Target", targetPrefix+target)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLogsCreateGroupAndPutEvents(t *testing.T) {
	h := NewLogsHandler(logs.New(logs.Config{}))

	rec := doLogsRequest(h, "CreateLogGroup", `{"logGroupName":"/aws/lambda/f"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("CreateLogGroup status = %d, body = %s", rec.Code, rec.Body.String())
	}

	putBody := `{"logGroupName":"/aws/lambda/f","logStreamName":"s","logEvents":[{"timestamp":1000,"message":"hello"}]}`
	rec = doLogsRequest(h, "PutLogEvents", putBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("PutLogEvents status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var putResp struct {
		NextSequenceToken string `json:"nextSequenceToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &putResp); err != nil {
		t.Fatalf("PutLogEvents response decode error = %v", err)
	}
	if putResp.NextSequenceToken == "" {
		t.Error("PutLogEvents should return a nextSequenceToken")
	}

	rec = doLogsRequest(h, "GetLogEvents", `{"logGroupName":"/aws/lambda/f","logStreamName":"s"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("GetLogEvents status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var getResp struct {
		Events []struct {
			Message   string `json:"message"`
			Timestamp int64  `json:"timestamp"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &getResp); err != nil {
		t.Fatalf("GetLogEvents response decode error = %v", err)
	}
	if len(getResp.Events) != 1 || getResp.Events[0].Message != "hello" {
		t.Fatalf("GetLogEvents events = %+v", getResp.Events)
	}
}

func TestLogsPutEventsAutoCreatesGroupAndStream(t *testing.T) {
	h := NewLogsHandler(logs.New(logs.Config{}))

	putBody := `{"logGroupName":"/aws/lambda/auto","logStreamName":"s","logEvents":[{"message":"hi"}]}`
	rec := doLogsRequest(h, "PutLogEvents", putBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("PutLogEvents status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doLogsRequest(h, "DescribeLogGroups", `{"logGroupNamePrefix":"/aws/lambda/auto"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("DescribeLogGroups status = %d", rec.Code)
	}
	var resp struct {
		LogGroups []struct{ LogGroupName string } `json:"logGroups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(resp.LogGroups) != 1 {
		t.Fatalf("DescribeLogGroups result = %+v, want the auto-created group", resp.LogGroups)
	}
}

func TestLogsUnknownTargetIsUnknownOperation(t *testing.T) {
	h := NewLogsHandler(logs.New(logs.Config{}))
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Amz-Target", targetPrefix+"NotAnOperation")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown target status = %d, want 400", rec.Code)
	}
	if rec.Header().Get("X-Amzn-ErrorType") != "UnknownOperationException" {
		t.Errorf("unknown target error type = %q", rec.Header().Get("X-Amzn-ErrorType"))
	}
}

func TestLogsGetEventsUnknownGroupIsNotFound(t *testing.T) {
	h := NewLogsHandler(logs.New(logs.Config{}))
	rec := doLogsRequest(h, "GetLogEvents", `{"logGroupName":"/missing","logStreamName":"s"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GetLogEvents on missing group status = %d, want 404", rec.Code)
	}
}
