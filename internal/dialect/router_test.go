package dialect

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func namedHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(name))
	})
}

func TestRootDispatcherSelectsByHeader(t *testing.T) {
	dispatch := RootDispatcher(namedHandler("logs"), namedHandler("stacks"), namedHandler("objects"))

	logsReq := httptest.NewRequest(http.MethodPost, "/", nil)
	logsReq.Header.Set("X-Amz-Target", "Logs_20140328.CreateLogGroup")
	logsRec := httptest.NewRecorder()
	dispatch(logsRec, logsReq)
	if logsRec.Body.String() != "logs" {
		t.Errorf("dispatch with X-Amz-Target = %q, want logs", logsRec.Body.String())
	}

	stacksReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Action=CreateStack"))
	stacksReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	stacksRec := httptest.NewRecorder()
	dispatch(stacksRec, stacksReq)
	if stacksRec.Body.String() != "stacks" {
		t.Errorf("dispatch with form content-type = %q, want stacks", stacksRec.Body.String())
	}

	objectsReq := httptest.NewRequest(http.MethodPost, "/", nil)
	objectsRec := httptest.NewRecorder()
	dispatch(objectsRec, objectsReq)
	if objectsRec.Body.String() != "objects" {
		t.Errorf("dispatch with neither header = %q, want objects", objectsRec.Body.String())
	}
}
