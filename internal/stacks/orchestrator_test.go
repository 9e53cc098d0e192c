package stacks

import (
	"testing"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/objects"
	"github.com/oriys/microstack/internal/registry"
)

// fakeFunctions is a FunctionAdapter test double recording create/delete
// calls against a name-keyed set, so tests can assert on physical state
// without the real registry's bundle-decoding side effects.
type fakeFunctions struct {
	created map[string]registry.CreateInput
	deleted []string
	failOn  string
}

func newFakeFunctions() *fakeFunctions {
	return &fakeFunctions{created: map[string]registry.CreateInput{}}
}

func (f *fakeFunctions) Create(in registry.CreateInput) (*registry.Function, error) {
	if in.Name == f.failOn {
		return nil, apierr.InvalidArgumentf("InvalidParameterValueException", "forced failure for %q", in.Name)
	}
	f.created[in.Name] = in
	return &registry.Function{Name: in.Name}, nil
}

func (f *fakeFunctions) Delete(name string) error {
	if _, ok := f.created[name]; !ok {
		return apierr.NotFoundf("ResourceNotFoundException", "function %q not found", name)
	}
	delete(f.created, name)
	f.deleted = append(f.deleted, name)
	return nil
}

type fakeLogGroups struct {
	created map[string]bool
	failOn  string
}

func newFakeLogGroups() *fakeLogGroups { return &fakeLogGroups{created: map[string]bool{}} }

func (f *fakeLogGroups) CreateGroup(name string, retentionDays *int) error {
	if name == f.failOn {
		return apierr.InvalidArgumentf("ValidationError", "forced failure for %q", name)
	}
	f.created[name] = true
	return nil
}

func (f *fakeLogGroups) DeleteGroup(name string) error {
	if !f.created[name] {
		return apierr.NotFoundf("ResourceNotFoundException", "log group %q not found", name)
	}
	delete(f.created, name)
	return nil
}

type fakeBuckets struct {
	created map[string]bool
}

func newFakeBuckets() *fakeBuckets { return &fakeBuckets{created: map[string]bool{}} }

func (f *fakeBuckets) CreateBucket(name string) (*objects.Bucket, error) {
	f.created[name] = true
	return &objects.Bucket{Name: name}, nil
}

func (f *fakeBuckets) DeleteBucket(name string) error {
	if !f.created[name] {
		return apierr.NotFoundf("NoSuchBucket", "bucket %q not found", name)
	}
	delete(f.created, name)
	return nil
}

func newTestOrchestrator() (*Orchestrator, *fakeFunctions, *fakeLogGroups, *fakeBuckets) {
	fns := newFakeFunctions()
	groups := newFakeLogGroups()
	buckets := newFakeBuckets()
	o := New(Config{Functions: fns, LogGroups: groups, Buckets: buckets})
	return o, fns, groups, buckets
}

const lambdaZipFile = "export async function handler(){return {ok:true};}"

func templateWithDependency() string {
	return `{
		"Resources": {
			"MyLogGroup": {
				"Type": "AWS::Logs::LogGroup",
				"Properties": { "LogGroupName": "/aws/lambda/g" }
			},
			"MyFunction": {
				"Type": "AWS::Lambda::Function",
				"DependsOn": ["MyLogGroup"],
				"Properties": {
					"FunctionName": "g",
					"Runtime": "nodejs20.x",
					"Role": "arn:aws:iam::000000000000:role/noop",
					"Handler": "index.handler",
					"Code": { "ZipFile": "` + lambdaZipFile + `" }
				}
			}
		}
	}`
}

// TestCreateStackWithDependency covers scenario 5: LogGroup must be
// created before the Lambda that DependsOn it, and both resources land
// in CREATE_COMPLETE.
func TestCreateStackWithDependency(t *testing.T) {
	o, fns, groups, _ := newTestOrchestrator()

	stack, err := o.CreateStack("my-stack", templateWithDependency())
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	if stack.Status != StatusCreateComplete {
		t.Fatalf("CreateStack() status = %v, want CREATE_COMPLETE", stack.Status)
	}
	if len(stack.Resources) != 2 {
		t.Fatalf("CreateStack() resources = %d, want 2", len(stack.Resources))
	}
	for _, r := range stack.Resources {
		if r.Status != StatusCreateComplete {
			t.Errorf("resource %q status = %v, want CREATE_COMPLETE", r.LogicalID, r.Status)
		}
	}
	if !groups.created["/aws/lambda/g"] {
		t.Error("log group was not created through the adapter")
	}
	if _, ok := fns.created["g"]; !ok {
		t.Error("function was not created through the adapter")
	}
	if stack.CreationOrder[0] != "MyLogGroup" || stack.CreationOrder[1] != "MyFunction" {
		t.Fatalf("CreationOrder = %v, want [MyLogGroup MyFunction]", stack.CreationOrder)
	}
}

// TestDeleteStackTolerantOfMissingDependent covers scenario 6: deleting
// the Lambda out-of-band before deleting the stack must still reach
// DELETE_COMPLETE.
func TestDeleteStackTolerantOfMissingDependent(t *testing.T) {
	o, fns, _, _ := newTestOrchestrator()
	stack, err := o.CreateStack("my-stack", templateWithDependency())
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}

	if err := fns.Delete("g"); err != nil {
		t.Fatalf("direct Delete() error = %v", err)
	}

	deleted, err := o.DeleteStack(stack.StackName)
	if err != nil {
		t.Fatalf("DeleteStack() error = %v", err)
	}
	if deleted.Status != StatusDeleteComplete {
		t.Fatalf("DeleteStack() status = %v, want DELETE_COMPLETE", deleted.Status)
	}
	for _, r := range deleted.Resources {
		if r.Status != StatusDeleteComplete {
			t.Errorf("resource %q status = %v, want DELETE_COMPLETE", r.LogicalID, r.Status)
		}
	}
}

func TestCreateStackDependencyCycleRejected(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()
	body := `{
		"Resources": {
			"A": {"Type": "AWS::S3::Bucket", "DependsOn": ["B"], "Properties": {"BucketName": "a"}},
			"B": {"Type": "AWS::S3::Bucket", "DependsOn": ["A"], "Properties": {"BucketName": "b"}}
		}
	}`
	_, err := o.CreateStack("cyclic", body)
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.InvalidArgument {
		t.Fatalf("CreateStack() with a cycle error = %v, want InvalidArgument", err)
	}
}

func TestCreateStackInvalidNameRejected(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()
	_, err := o.CreateStack("123-starts-with-digit", `{"Resources":{"A":{"Type":"AWS::S3::Bucket","Properties":{"BucketName":"a"}}}}`)
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.InvalidArgument {
		t.Fatalf("CreateStack() with invalid name error = %v, want InvalidArgument", err)
	}
}

func TestCreateStackDuplicateNameRejected(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()
	body := `{"Resources":{"A":{"Type":"AWS::S3::Bucket","Properties":{"BucketName":"a"}}}}`
	if _, err := o.CreateStack("dup", body); err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	_, err := o.CreateStack("dup", body)
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.AlreadyExists {
		t.Fatalf("CreateStack() duplicate name error = %v, want AlreadyExists", err)
	}
}

func TestCreateStackUnsupportedTypeFailsAtCreation(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()
	body := `{"Resources":{"A":{"Type":"AWS::DynamoDB::Table","Properties":{}}}}`

	stack, err := o.CreateStack("bad-type", body)
	if err != nil {
		t.Fatalf("CreateStack() should not return a Go error for an unsupported type, got %v", err)
	}
	if stack.Status != StatusCreateFailed {
		t.Fatalf("CreateStack() status = %v, want CREATE_FAILED", stack.Status)
	}
}

func TestUpdateStackRollsBackOnFailure(t *testing.T) {
	o, fns, groups, _ := newTestOrchestrator()
	stack, err := o.CreateStack("my-stack", templateWithDependency())
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	originalFunctionCount := len(fns.created)

	groups.failOn = "/aws/lambda/h"
	newBody := `{
		"Resources": {
			"OtherLogGroup": {
				"Type": "AWS::Logs::LogGroup",
				"Properties": { "LogGroupName": "/aws/lambda/h" }
			}
		}
	}`

	updated, err := o.UpdateStack(stack.StackName, newBody)
	if err != nil {
		t.Fatalf("UpdateStack() error = %v", err)
	}
	if updated.Status != StatusUpdateRollbackComplete {
		t.Fatalf("UpdateStack() status = %v, want UPDATE_ROLLBACK_COMPLETE", updated.Status)
	}
	if len(fns.created) != originalFunctionCount {
		t.Errorf("rollback did not recreate the original function set: got %d, want %d", len(fns.created), originalFunctionCount)
	}
	if updated.TemplateBody != templateWithDependency() {
		t.Error("UpdateStack() should leave TemplateBody unchanged after a rolled-back update")
	}
}

func TestUpdateStackSuccessReplacesResources(t *testing.T) {
	o, _, groups, buckets := newTestOrchestrator()
	body := `{"Resources":{"A":{"Type":"AWS::Logs::LogGroup","Properties":{"LogGroupName":"/aws/lambda/old"}}}}`
	stack, err := o.CreateStack("my-stack", body)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}

	newBody := `{"Resources":{"B":{"Type":"AWS::S3::Bucket","Properties":{"BucketName":"new-bucket"}}}}`
	updated, err := o.UpdateStack(stack.StackName, newBody)
	if err != nil {
		t.Fatalf("UpdateStack() error = %v", err)
	}
	if updated.Status != StatusUpdateComplete {
		t.Fatalf("UpdateStack() status = %v, want UPDATE_COMPLETE", updated.Status)
	}
	if groups.created["/aws/lambda/old"] {
		t.Error("UpdateStack() should have deleted the old log group")
	}
	if !buckets.created["new-bucket"] {
		t.Error("UpdateStack() should have created the new bucket")
	}
}

func TestGetAttResolvesArn(t *testing.T) {
	o, fns, _, _ := newTestOrchestrator()
	body := `{
		"Resources": {
			"MyLogGroup": {
				"Type": "AWS::Logs::LogGroup",
				"Properties": { "LogGroupName": "/aws/lambda/g" }
			},
			"MyFunction": {
				"Type": "AWS::Lambda::Function",
				"DependsOn": ["MyLogGroup"],
				"Properties": {
					"FunctionName": "g",
					"Runtime": "nodejs20.x",
					"Role": { "Fn::GetAtt": ["MyLogGroup", "Arn"] },
					"Handler": "index.handler",
					"Code": { "ZipFile": "` + lambdaZipFile + `" }
				}
			}
		}
	}`
	_, err := o.CreateStack("attr-stack", body)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	role := fns.created["g"].Role
	want := "arn:aws:logs:us-east-1:000000000000:log-group:/aws/lambda/g"
	if role != want {
		t.Errorf("Fn::GetAtt resolved Role = %q, want %q", role, want)
	}
}

func TestRefFailsWhenTargetNotYetCreated(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()
	body := `{
		"Resources": {
			"MyFunction": {
				"Type": "AWS::Lambda::Function",
				"Properties": {
					"FunctionName": { "Ref": "NotYetCreated" },
					"Runtime": "nodejs20.x",
					"Role": "noop",
					"Handler": "index.handler",
					"Code": { "ZipFile": "` + lambdaZipFile + `" }
				}
			}
		}
	}`
	stack, err := o.CreateStack("ref-stack", body)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	if stack.Status != StatusCreateFailed {
		t.Fatalf("CreateStack() status = %v, want CREATE_FAILED for an unresolved Ref", stack.Status)
	}
}
