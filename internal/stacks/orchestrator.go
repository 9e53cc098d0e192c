package stacks

import (
	"encoding/base64"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/metrics"
	"github.com/oriys/microstack/internal/objects"
	"github.com/oriys/microstack/internal/registry"
	"github.com/oriys/microstack/internal/runtime"
)

var stackNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{0,127}$`)

// FunctionAdapter is the narrow interface the orchestrator drives the
// function registry through for AWS::Lambda::Function resources.
// *registry.Registry satisfies it directly.
type FunctionAdapter interface {
	Create(in registry.CreateInput) (*registry.Function, error)
	Delete(name string) error
}

// LogGroupAdapter is the narrow interface for AWS::Logs::LogGroup
// resources. *logs.Ledger satisfies it directly.
type LogGroupAdapter interface {
	CreateGroup(name string, retentionDays *int) error
	DeleteGroup(name string) error
}

// BucketAdapter is the narrow interface for AWS::S3::Bucket resources.
// *objects.Store satisfies it directly.
type BucketAdapter interface {
	CreateBucket(name string) (*objects.Bucket, error)
	DeleteBucket(name string) error
}

// Orchestrator is the single owner of every stack in the process and the
// only caller of the A/B/C adapters on the stacks' behalf.
type Orchestrator struct {
	mu     sync.Mutex // guards the stacks map itself, not stack content
	stacks map[string]*Stack

	functions FunctionAdapter
	logGroups LogGroupAdapter
	buckets   BucketAdapter

	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// Config wires an Orchestrator's adapters.
type Config struct {
	Functions FunctionAdapter
	LogGroups LogGroupAdapter
	Buckets   BucketAdapter
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
}

// New builds an Orchestrator with no stacks.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		stacks:    make(map[string]*Stack),
		functions: cfg.Functions,
		logGroups: cfg.LogGroups,
		buckets:   cfg.Buckets,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// prepare parses, validates and topologically sorts a template, the work
// shared by CreateStack and the validation half of UpdateStack. A non-nil
// error here is a plain validation failure that never reaches the state
// machine.
func prepare(templateBody string) (*Template, []ResourceDef, error) {
	tmpl, err := ParseTemplate(templateBody)
	if err != nil {
		return nil, nil, err
	}
	if err := validateTemplate(tmpl); err != nil {
		return nil, nil, err
	}
	order, err := topoSort(tmpl)
	if err != nil {
		return nil, nil, err
	}
	return tmpl, order, nil
}

// CreateStack validates name and templateBody, then drives the full
// create pass. A validation failure (bad name, duplicate name, malformed
// template, cycle) is returned as a Go error and never creates a stack. A
// per-resource failure during the create pass is captured as a
// CREATE_FAILED terminal stack state and returned as a normal result.
func (o *Orchestrator) CreateStack(name, templateBody string) (*Stack, error) {
	if !stackNameRE.MatchString(name) {
		return nil, apierr.InvalidArgumentf("ValidationError", "stack name %q is invalid", name)
	}
	_, order, err := prepare(templateBody)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if _, exists := o.stacks[name]; exists {
		o.mu.Unlock()
		return nil, apierr.AlreadyExistsf("AlreadyExistsException", "stack %q already exists", name)
	}
	stack := newStack(name, templateBody)
	o.stacks[name] = stack
	o.mu.Unlock()

	stack.mu.Lock()
	defer stack.mu.Unlock()

	stack.transition(StatusCreateInProgress, "")
	if err := o.createResources(stack, order); err != nil {
		stack.transition(StatusCreateFailed, err.Error())
		o.observeTransition(StatusCreateFailed)
		return stack.snapshot(), nil
	}
	stack.transition(StatusCreateComplete, "")
	o.observeTransition(StatusCreateComplete)
	return stack.snapshot(), nil
}

// UpdateStack parses and validates the new template first (a failure here
// never touches the stack), then deletes every resource of the current
// template in reverse creation order and recreates the new template in
// its own topological order — update is delete-then-recreate of every
// resource, per the design note resolving spec.md §9's open question.
// Any failure during the create phase triggers rollback: delete whatever
// the failed pass managed to create, then re-create the previous
// template.
func (o *Orchestrator) UpdateStack(name, newTemplateBody string) (*Stack, error) {
	_, newOrder, err := prepare(newTemplateBody)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	stack, ok := o.stacks[name]
	o.mu.Unlock()
	if !ok {
		return nil, apierr.NotFoundf("ResourceNotFoundException", "stack %q not found", name)
	}

	stack.mu.Lock()
	defer stack.mu.Unlock()

	previousTemplateBody := stack.TemplateBody
	_, previousOrder, perr := prepare(previousTemplateBody)
	if perr != nil {
		// The stored template was valid when it was created; this should
		// not happen, but without a usable rollback target we cannot
		// proceed safely.
		return nil, apierr.Internalf("stored template for stack %q is no longer valid: %v", name, perr)
	}

	stack.transition(StatusUpdateInProgress, "")

	o.deleteResources(stack, reverse(stack.CreationOrder))
	stack.CreationOrder = nil

	if err := o.createResources(stack, newOrder); err != nil {
		stack.transition(StatusUpdateFailed, err.Error())
		o.observeTransition(StatusUpdateFailed)
		o.rollback(stack, previousOrder)
		return stack.snapshot(), nil
	}

	stack.TemplateBody = newTemplateBody
	stack.transition(StatusUpdateComplete, "")
	o.observeTransition(StatusUpdateComplete)
	return stack.snapshot(), nil
}

// rollback deletes whatever the failed update pass created, then
// attempts to re-create the previous template.
func (o *Orchestrator) rollback(stack *Stack, previousOrder []ResourceDef) {
	stack.transition(StatusUpdateRollbackInProgress, "")

	o.deleteResources(stack, reverse(stack.CreationOrder))
	stack.CreationOrder = nil

	if err := o.createResources(stack, previousOrder); err != nil {
		stack.transition(StatusUpdateRollbackFailed, err.Error())
		o.observeTransition(StatusUpdateRollbackFailed)
		return
	}
	stack.transition(StatusUpdateRollbackComplete, "")
	o.observeTransition(StatusUpdateRollbackComplete)
}

// DeleteStack walks the stack's creation order in reverse, tolerating
// resources already gone. The first non-tolerated failure halts the walk
// and leaves the stack DELETE_FAILED; callers may retry.
func (o *Orchestrator) DeleteStack(name string) (*Stack, error) {
	o.mu.Lock()
	stack, ok := o.stacks[name]
	o.mu.Unlock()
	if !ok {
		return nil, apierr.NotFoundf("ResourceNotFoundException", "stack %q not found", name)
	}

	stack.mu.Lock()
	defer stack.mu.Unlock()

	stack.transition(StatusDeleteInProgress, "")
	if err := o.deleteResources(stack, reverse(stack.CreationOrder)); err != nil {
		stack.transition(StatusDeleteFailed, err.Error())
		o.observeTransition(StatusDeleteFailed)
		return stack.snapshot(), nil
	}
	stack.CreationOrder = nil
	stack.transition(StatusDeleteComplete, "")
	o.observeTransition(StatusDeleteComplete)
	return stack.snapshot(), nil
}

// GetStack returns a snapshot of one stack.
func (o *Orchestrator) GetStack(name string) (*Stack, error) {
	o.mu.Lock()
	stack, ok := o.stacks[name]
	o.mu.Unlock()
	if !ok {
		return nil, apierr.NotFoundf("ResourceNotFoundException", "stack %q not found", name)
	}
	stack.mu.Lock()
	defer stack.mu.Unlock()
	return stack.snapshot(), nil
}

// ListStacks returns a snapshot of every stack, in no particular order.
func (o *Orchestrator) ListStacks() []*Stack {
	o.mu.Lock()
	all := make([]*Stack, 0, len(o.stacks))
	for _, s := range o.stacks {
		all = append(all, s)
	}
	o.mu.Unlock()

	out := make([]*Stack, 0, len(all))
	for _, s := range all {
		s.mu.Lock()
		out = append(out, s.snapshot())
		s.mu.Unlock()
	}
	return out
}

// DescribeStackResources returns a snapshot of one stack's resource list.
func (o *Orchestrator) DescribeStackResources(name string) ([]*Resource, error) {
	stack, err := o.GetStack(name)
	if err != nil {
		return nil, err
	}
	return stack.Resources, nil
}

// createResources creates each resource in order, resolving Ref/
// Fn::GetAtt intrinsics against resources already created earlier in
// this same pass, and recording both per-resource events and the pass's
// successful logical ids into stack.CreationOrder as it goes. On the
// first failure it marks that resource CREATE_FAILED and returns the
// error; the caller decides the resulting stack-level status.
func (o *Orchestrator) createResources(stack *Stack, order []ResourceDef) error {
	created := make(map[string]*Resource, len(order))
	for _, id := range stack.CreationOrder {
		if r := stack.resourceByID(id); r != nil {
			created[id] = r
		}
	}

	for _, def := range order {
		stack.appendResourceEvent(def.LogicalID, def.Type, StatusCreateInProgress, "")
		physicalID, err := o.createOne(def, created)
		if err != nil {
			res := &Resource{LogicalID: def.LogicalID, Type: def.Type, Status: StatusCreateFailed, StatusReason: err.Error()}
			stack.upsertResource(res)
			stack.appendResourceEvent(def.LogicalID, def.Type, StatusCreateFailed, err.Error())
			return err
		}
		res := &Resource{LogicalID: def.LogicalID, PhysicalID: physicalID, Type: def.Type, Status: StatusCreateComplete}
		stack.upsertResource(res)
		stack.CreationOrder = append(stack.CreationOrder, def.LogicalID)
		created[def.LogicalID] = res
		stack.appendResourceEvent(def.LogicalID, def.Type, StatusCreateComplete, "")
	}
	return nil
}

// deleteResources walks ids, tolerating resources already gone. The first
// non-tolerated failure halts the walk and is returned.
func (o *Orchestrator) deleteResources(stack *Stack, ids []string) error {
	for _, id := range ids {
		res := stack.resourceByID(id)
		if res == nil {
			continue
		}
		stack.appendResourceEvent(id, res.Type, StatusDeleteInProgress, "")
		if err := o.deleteOne(res); err != nil {
			stack.upsertResource(&Resource{LogicalID: id, PhysicalID: res.PhysicalID, Type: res.Type, Status: StatusDeleteFailed, StatusReason: err.Error()})
			stack.appendResourceEvent(id, res.Type, StatusDeleteFailed, err.Error())
			return err
		}
		stack.upsertResource(&Resource{LogicalID: id, PhysicalID: res.PhysicalID, Type: res.Type, Status: StatusDeleteComplete})
		stack.appendResourceEvent(id, res.Type, StatusDeleteComplete, "")
	}
	return nil
}

func (o *Orchestrator) createOne(def ResourceDef, created map[string]*Resource) (string, error) {
	props, err := resolveProperties(def.Properties, created)
	if err != nil {
		return "", err
	}
	switch def.Type {
	case typeLambda:
		return o.createLambda(props)
	case typeLogGroup:
		return o.createLogGroup(props)
	case typeBucket:
		return o.createBucket(props)
	default:
		return "", apierr.InvalidArgumentf("ValidationError", "Unsupported resource type %q", def.Type)
	}
}

func (o *Orchestrator) deleteOne(res *Resource) error {
	var err error
	switch res.Type {
	case typeLambda:
		err = o.functions.Delete(res.PhysicalID)
	case typeLogGroup:
		err = o.logGroups.DeleteGroup(res.PhysicalID)
	case typeBucket:
		err = o.buckets.DeleteBucket(res.PhysicalID)
	default:
		return nil
	}
	return tolerate(err)
}

func (o *Orchestrator) createLambda(props map[string]any) (string, error) {
	name, _ := props["FunctionName"].(string)
	runtimeTag, _ := props["Runtime"].(string)
	role, _ := props["Role"].(string)
	handler, _ := props["Handler"].(string)
	code, _ := props["Code"].(map[string]any)
	zipFile, _ := code["ZipFile"].(string)

	module, _, err := runtime.SplitHandler(handler)
	if err != nil {
		return "", err
	}
	bundle, err := wrapInlineSource(module, zipFile)
	if err != nil {
		return "", err
	}

	var env map[string]string
	if rawEnv, ok := props["Environment"].(map[string]any); ok {
		if vars, ok := rawEnv["Variables"].(map[string]any); ok {
			env = make(map[string]string, len(vars))
			for k, v := range vars {
				if s, ok := v.(string); ok {
					env[k] = s
				}
			}
		}
	}

	timeout := 0
	if t, ok := props["Timeout"]; ok {
		timeout = int(toFloat(t))
	}

	_, err = o.functions.Create(registry.CreateInput{
		Name:           name,
		Runtime:        runtimeTag,
		Role:           role,
		Handler:        handler,
		TimeoutSeconds: timeout,
		Environment:    env,
		CodeBundleB64:  base64.StdEncoding.EncodeToString(bundle),
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func (o *Orchestrator) createLogGroup(props map[string]any) (string, error) {
	name, _ := props["LogGroupName"].(string)
	var retention *int
	if v, ok := props["RetentionInDays"]; ok {
		r := int(toFloat(v))
		retention = &r
	}
	if err := o.logGroups.CreateGroup(name, retention); err != nil {
		return "", err
	}
	return name, nil
}

func (o *Orchestrator) createBucket(props map[string]any) (string, error) {
	name, _ := props["BucketName"].(string)
	if _, err := o.buckets.CreateBucket(name); err != nil {
		return "", err
	}
	return name, nil
}

func (o *Orchestrator) observeTransition(status Status) {
	if o.metrics != nil {
		o.metrics.ObserveStackTransition(string(status))
	}
}

// tolerate absorbs a NotFound failure (resource already gone), letting
// tolerant deletion continue; any other kind of error is returned as is.
func tolerate(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := apierr.As(err); ok && e.Kind == apierr.NotFound {
		return nil
	}
	return err
}

func reverse(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

func (s *Stack) resourceByID(id string) *Resource {
	for _, r := range s.Resources {
		if r.LogicalID == id {
			return r
		}
	}
	return nil
}
