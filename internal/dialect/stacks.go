package dialect

import (
	"encoding/xml"
	"net/http"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/stacks"
)

// StacksHandler implements the Query/XML Stack API: every operation is a
// POST / with Content-Type: application/x-www-form-urlencoded and an
// Action form field, per §6.
type StacksHandler struct {
	orchestrator *stacks.Orchestrator
}

// NewStacksHandler builds a StacksHandler.
func NewStacksHandler(o *stacks.Orchestrator) *StacksHandler {
	return &StacksHandler{orchestrator: o}
}

// ServeHTTP dispatches on the Action form field.
func (h *StacksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteCloudFormationError(w, apierr.InvalidArgumentf("ValidationError", "malformed form body"))
		return
	}
	switch r.PostForm.Get("Action") {
	case "CreateStack":
		h.createStack(w, r)
	case "UpdateStack":
		h.updateStack(w, r)
	case "DeleteStack":
		h.deleteStack(w, r)
	case "DescribeStacks":
		h.describeStacks(w, r)
	case "DescribeStackResources":
		h.describeStackResources(w, r)
	default:
		WriteCloudFormationError(w, apierr.InvalidArgumentf("ValidationError", "unrecognized Action %q", r.PostForm.Get("Action")))
	}
}

func (h *StacksHandler) createStack(w http.ResponseWriter, r *http.Request) {
	stack, err := h.orchestrator.CreateStack(r.PostForm.Get("StackName"), r.PostForm.Get("TemplateBody"))
	if err != nil {
		WriteCloudFormationError(w, err)
		return
	}
	writeCfnXML(w, "CreateStackResponse", struct {
		XMLName xml.Name `xml:"CreateStackResponse"`
		Result  struct {
			StackID string `xml:"StackId"`
		} `xml:"CreateStackResult"`
	}{Result: struct {
		StackID string `xml:"StackId"`
	}{StackID: stack.StackID}})
}

func (h *StacksHandler) updateStack(w http.ResponseWriter, r *http.Request) {
	stack, err := h.orchestrator.UpdateStack(r.PostForm.Get("StackName"), r.PostForm.Get("TemplateBody"))
	if err != nil {
		WriteCloudFormationError(w, err)
		return
	}
	writeCfnXML(w, "UpdateStackResponse", struct {
		XMLName xml.Name `xml:"UpdateStackResponse"`
		Result  struct {
			StackID string `xml:"StackId"`
		} `xml:"UpdateStackResult"`
	}{Result: struct {
		StackID string `xml:"StackId"`
	}{StackID: stack.StackID}})
}

func (h *StacksHandler) deleteStack(w http.ResponseWriter, r *http.Request) {
	if _, err := h.orchestrator.DeleteStack(r.PostForm.Get("StackName")); err != nil {
		WriteCloudFormationError(w, err)
		return
	}
	writeCfnXML(w, "DeleteStackResponse", struct {
		XMLName xml.Name `xml:"DeleteStackResponse"`
	}{})
}

type stackMember struct {
	StackID      string `xml:"StackId"`
	StackName    string `xml:"StackName"`
	StackStatus  string `xml:"StackStatus"`
	StatusReason string `xml:"StackStatusReason,omitempty"`
	CreationTime string `xml:"CreationTime"`
}

func toStackMember(s *stacks.Stack) stackMember {
	return stackMember{
		StackID:      s.StackID,
		StackName:    s.StackName,
		StackStatus:  string(s.Status),
		StatusReason: s.StatusReason,
		CreationTime: s.CreationTime.Format(awsTimeFormat),
	}
}

func (h *StacksHandler) describeStacks(w http.ResponseWriter, r *http.Request) {
	name := r.PostForm.Get("StackName")
	var members []stackMember
	if name != "" {
		stack, err := h.orchestrator.GetStack(name)
		if err != nil {
			WriteCloudFormationError(w, err)
			return
		}
		members = append(members, toStackMember(stack))
	} else {
		for _, stack := range h.orchestrator.ListStacks() {
			members = append(members, toStackMember(stack))
		}
	}
	writeCfnXML(w, "DescribeStacksResponse", struct {
		XMLName xml.Name `xml:"DescribeStacksResponse"`
		Result  struct {
			Stacks []stackMember `xml:"Stacks>member"`
		} `xml:"DescribeStacksResult"`
	}{Result: struct {
		Stacks []stackMember `xml:"Stacks>member"`
	}{Stacks: members}})
}

type resourceMember struct {
	LogicalResourceID  string `xml:"LogicalResourceId"`
	PhysicalResourceID string `xml:"PhysicalResourceId"`
	ResourceType       string `xml:"ResourceType"`
	ResourceStatus     string `xml:"ResourceStatus"`
	StackName          string `xml:"StackName"`
	StackID            string `xml:"StackId"`
}

func (h *StacksHandler) describeStackResources(w http.ResponseWriter, r *http.Request) {
	name := r.PostForm.Get("StackName")
	stack, err := h.orchestrator.GetStack(name)
	if err != nil {
		WriteCloudFormationError(w, err)
		return
	}
	members := make([]resourceMember, 0, len(stack.Resources))
	for _, res := range stack.Resources {
		members = append(members, resourceMember{
			LogicalResourceID:  res.LogicalID,
			PhysicalResourceID: res.PhysicalID,
			ResourceType:       res.Type,
			ResourceStatus:     string(res.Status),
			StackName:          stack.StackName,
			StackID:            stack.StackID,
		})
	}
	writeCfnXML(w, "DescribeStackResourcesResponse", struct {
		XMLName xml.Name `xml:"DescribeStackResourcesResponse"`
		Result  struct {
			Resources []resourceMember `xml:"StackResources>member"`
		} `xml:"DescribeStackResourcesResult"`
	}{Result: struct {
		Resources []resourceMember `xml:"StackResources>member"`
	}{Resources: members}})
}

func writeCfnXML(w http.ResponseWriter, _ string, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_ = xml.NewEncoder(w).Encode(v)
}
