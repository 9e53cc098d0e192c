package dialect

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/logs"
)

// LogsHandler implements the AWS JSON 1.1 Log API: every operation is a
// POST / with an X-Amz-Target: Logs_20140328.<Operation> header selecting
// the action, per §6.
type LogsHandler struct {
	ledger *logs.Ledger
}

// NewLogsHandler builds a LogsHandler.
func NewLogsHandler(ledger *logs.Ledger) *LogsHandler {
	return &LogsHandler{ledger: ledger}
}

// targetPrefix is stripped from X-Amz-Target to recover the operation name.
const targetPrefix = "Logs_20140328."

// ServeHTTP dispatches on the X-Amz-Target header.
func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	op := strings.TrimPrefix(target, targetPrefix)
	switch op {
	case "CreateLogGroup":
		h.createLogGroup(w, r)
	case "DeleteLogGroup":
		h.deleteLogGroup(w, r)
	case "PutLogEvents":
		h.putLogEvents(w, r)
	case "DescribeLogGroups":
		h.describeLogGroups(w, r)
	case "DescribeLogStreams":
		h.describeLogStreams(w, r)
	case "GetLogEvents":
		h.getLogEvents(w, r)
	default:
		WriteJSONError(w, apierr.InvalidArgumentf("UnknownOperationException", "unrecognized X-Amz-Target %q", target))
	}
}

type createLogGroupRequest struct {
	LogGroupName    string `json:"logGroupName"`
	RetentionInDays *int   `json:"retentionInDays,omitempty"`
}

func (h *LogsHandler) createLogGroup(w http.ResponseWriter, r *http.Request) {
	var req createLogGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("SerializationException", "malformed request body"))
		return
	}
	if err := h.ledger.CreateGroup(req.LogGroupName, req.RetentionInDays); err != nil {
		WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type deleteLogGroupRequest struct {
	LogGroupName string `json:"logGroupName"`
}

func (h *LogsHandler) deleteLogGroup(w http.ResponseWriter, r *http.Request) {
	var req deleteLogGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("SerializationException", "malformed request body"))
		return
	}
	if err := h.ledger.DeleteGroup(req.LogGroupName); err != nil {
		WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type inputLogEvent struct {
	Timestamp int64  `json:"timestamp,omitempty"`
	Message   string `json:"message"`
}

type putLogEventsRequest struct {
	LogGroupName  string          `json:"logGroupName"`
	LogStreamName string          `json:"logStreamName"`
	LogEvents     []inputLogEvent `json:"logEvents"`
}

func (h *LogsHandler) putLogEvents(w http.ResponseWriter, r *http.Request) {
	var req putLogEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("SerializationException", "malformed request body"))
		return
	}
	for _, e := range req.LogEvents {
		var ts time.Time
		if e.Timestamp != 0 {
			ts = time.UnixMilli(e.Timestamp).UTC()
		}
		if err := h.ledger.AppendEvent(req.LogGroupName, req.LogStreamName, e.Message, ts); err != nil {
			WriteJSONError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, struct {
		NextSequenceToken string `json:"nextSequenceToken"`
	}{NextSequenceToken: "0"})
}

type describeLogGroupsRequest struct {
	LogGroupNamePrefix string `json:"logGroupNamePrefix"`
}

type logGroupOut struct {
	LogGroupName    string `json:"logGroupName"`
	CreationTime    int64  `json:"creationTime"`
	StoredBytes     int64  `json:"storedBytes"`
	RetentionInDays *int   `json:"retentionInDays,omitempty"`
}

func (h *LogsHandler) describeLogGroups(w http.ResponseWriter, r *http.Request) {
	var req describeLogGroupsRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	groups := h.ledger.DescribeGroups(req.LogGroupNamePrefix)
	out := make([]logGroupOut, 0, len(groups))
	for _, g := range groups {
		out = append(out, logGroupOut{
			LogGroupName:    g.Name,
			CreationTime:    g.CreationTime.UnixMilli(),
			StoredBytes:     g.StoredBytes,
			RetentionInDays: g.RetentionDays,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		LogGroups []logGroupOut `json:"logGroups"`
	}{LogGroups: out})
}

type describeLogStreamsRequest struct {
	LogGroupName         string `json:"logGroupName"`
	LogStreamNamePrefix  string `json:"logStreamNamePrefix"`
}

type logStreamOut struct {
	LogStreamName     string `json:"logStreamName"`
	CreationTime      int64  `json:"creationTime"`
	StoredBytes       int64  `json:"storedBytes"`
	LastIngestionTime *int64 `json:"lastIngestionTime,omitempty"`
}

func (h *LogsHandler) describeLogStreams(w http.ResponseWriter, r *http.Request) {
	var req describeLogStreamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("SerializationException", "malformed request body"))
		return
	}
	streams, err := h.ledger.DescribeStreams(req.LogGroupName, req.LogStreamNamePrefix)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	out := make([]logStreamOut, 0, len(streams))
	for _, s := range streams {
		o := logStreamOut{
			LogStreamName: s.Name,
			CreationTime:  s.CreationTime.UnixMilli(),
			StoredBytes:   s.StoredBytes,
		}
		if s.LastIngestionTime != nil {
			ms := s.LastIngestionTime.UnixMilli()
			o.LastIngestionTime = &ms
		}
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, struct {
		LogStreams []logStreamOut `json:"logStreams"`
	}{LogStreams: out})
}

type getLogEventsRequest struct {
	LogGroupName  string `json:"logGroupName"`
	LogStreamName string `json:"logStreamName"`
}

type logEventOut struct {
	Timestamp     int64  `json:"timestamp"`
	IngestionTime int64  `json:"ingestionTime"`
	Message       string `json:"message"`
}

func (h *LogsHandler) getLogEvents(w http.ResponseWriter, r *http.Request) {
	var req getLogEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, apierr.InvalidArgumentf("SerializationException", "malformed request body"))
		return
	}
	events, err := h.ledger.GetEvents(req.LogGroupName, req.LogStreamName)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	out := make([]logEventOut, 0, len(events))
	for _, e := range events {
		out = append(out, logEventOut{
			Timestamp:     e.Timestamp.UnixMilli(),
			IngestionTime: e.IngestionTime.UnixMilli(),
			Message:       e.Message,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Events []logEventOut `json:"events"`
	}{Events: out})
}
