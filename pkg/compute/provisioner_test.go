package compute

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-host/nimbus-backend/pkg/config"
)

const (
	testSecureListener   = "arn:listener/secure"
	testInsecureListener = "arn:listener/insecure"
)

type fakeECS struct {
	services    map[string]string // service name -> status
	updateCalls int
	createCalls int
	lastTaskDef string
}

func (f *fakeECS) RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error) {
	arn := fmt.Sprintf("arn:taskdef/%s:1", aws.ToString(params.Family))
	return &ecs.RegisterTaskDefinitionOutput{
		TaskDefinition: &ecstypes.TaskDefinition{TaskDefinitionArn: aws.String(arn)},
	}, nil
}

func (f *fakeECS) DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	out := &ecs.DescribeServicesOutput{}
	for _, name := range params.Services {
		if status, ok := f.services[name]; ok {
			out.Services = append(out.Services, ecstypes.Service{
				ServiceName: aws.String(name),
				Status:      aws.String(status),
			})
		}
	}
	return out, nil
}

func (f *fakeECS) CreateService(ctx context.Context, params *ecs.CreateServiceInput, optFns ...func(*ecs.Options)) (*ecs.CreateServiceOutput, error) {
	f.createCalls++
	if f.services == nil {
		f.services = map[string]string{}
	}
	f.services[aws.ToString(params.ServiceName)] = "ACTIVE"
	f.lastTaskDef = aws.ToString(params.TaskDefinition)
	return &ecs.CreateServiceOutput{}, nil
}

func (f *fakeECS) UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	f.updateCalls++
	f.lastTaskDef = aws.ToString(params.TaskDefinition)
	return &ecs.UpdateServiceOutput{}, nil
}

func (f *fakeECS) DeleteService(ctx context.Context, params *ecs.DeleteServiceInput, optFns ...func(*ecs.Options)) (*ecs.DeleteServiceOutput, error) {
	delete(f.services, aws.ToString(params.Service))
	return &ecs.DeleteServiceOutput{}, nil
}

// fakeELB keeps target groups and per-listener rules in memory.
type fakeELB struct {
	targetGroups map[string]string // name -> arn
	rules        map[string][]elbtypes.Rule
	tgCreates    int
	ruleCreates  int
	ruleModifies int
	nextRuleID   int
}

func newFakeELB() *fakeELB {
	return &fakeELB{
		targetGroups: map[string]string{},
		rules:        map[string][]elbtypes.Rule{},
	}
}

func (f *fakeELB) DescribeTargetGroups(ctx context.Context, params *elbv2.DescribeTargetGroupsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error) {
	out := &elbv2.DescribeTargetGroupsOutput{}
	for _, name := range params.Names {
		arn, ok := f.targetGroups[name]
		if !ok {
			return nil, &smithyErr{code: "TargetGroupNotFoundException"}
		}
		out.TargetGroups = append(out.TargetGroups, elbtypes.TargetGroup{
			TargetGroupName: aws.String(name),
			TargetGroupArn:  aws.String(arn),
		})
	}
	return out, nil
}

func (f *fakeELB) CreateTargetGroup(ctx context.Context, params *elbv2.CreateTargetGroupInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateTargetGroupOutput, error) {
	f.tgCreates++
	name := aws.ToString(params.Name)
	arn := "arn:targetgroup/" + name
	f.targetGroups[name] = arn
	return &elbv2.CreateTargetGroupOutput{
		TargetGroups: []elbtypes.TargetGroup{
			{TargetGroupName: params.Name, TargetGroupArn: aws.String(arn)},
		},
	}, nil
}

func (f *fakeELB) DeleteTargetGroup(ctx context.Context, params *elbv2.DeleteTargetGroupInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteTargetGroupOutput, error) {
	for name, arn := range f.targetGroups {
		if arn == aws.ToString(params.TargetGroupArn) {
			delete(f.targetGroups, name)
		}
	}
	return &elbv2.DeleteTargetGroupOutput{}, nil
}

func (f *fakeELB) DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error) {
	return &elbv2.DescribeLoadBalancersOutput{
		LoadBalancers: []elbtypes.LoadBalancer{
			{
				VpcId:                 aws.String("vpc-123"),
				DNSName:               aws.String("shared-alb.example.com"),
				CanonicalHostedZoneId: aws.String("Z123"),
			},
		},
	}, nil
}

func (f *fakeELB) DescribeRules(ctx context.Context, params *elbv2.DescribeRulesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeRulesOutput, error) {
	return &elbv2.DescribeRulesOutput{
		Rules: append([]elbtypes.Rule(nil), f.rules[aws.ToString(params.ListenerArn)]...),
	}, nil
}

func (f *fakeELB) CreateRule(ctx context.Context, params *elbv2.CreateRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateRuleOutput, error) {
	listener := aws.ToString(params.ListenerArn)
	priority := fmt.Sprintf("%d", aws.ToInt32(params.Priority))
	for _, rule := range f.rules[listener] {
		if aws.ToString(rule.Priority) == priority {
			return nil, &smithyErr{code: "PriorityInUse"}
		}
	}
	f.ruleCreates++
	f.nextRuleID++
	rule := elbtypes.Rule{
		RuleArn:    aws.String(fmt.Sprintf("arn:rule/%d", f.nextRuleID)),
		Priority:   aws.String(priority),
		Conditions: params.Conditions,
		Actions:    params.Actions,
	}
	f.rules[listener] = append(f.rules[listener], rule)
	return &elbv2.CreateRuleOutput{Rules: []elbtypes.Rule{rule}}, nil
}

func (f *fakeELB) ModifyRule(ctx context.Context, params *elbv2.ModifyRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.ModifyRuleOutput, error) {
	f.ruleModifies++
	for listener, rules := range f.rules {
		for i := range rules {
			if aws.ToString(rules[i].RuleArn) == aws.ToString(params.RuleArn) {
				f.rules[listener][i].Actions = params.Actions
			}
		}
	}
	return &elbv2.ModifyRuleOutput{}, nil
}

func (f *fakeELB) DeleteRule(ctx context.Context, params *elbv2.DeleteRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteRuleOutput, error) {
	for listener, rules := range f.rules {
		kept := rules[:0]
		for _, rule := range rules {
			if aws.ToString(rule.RuleArn) != aws.ToString(params.RuleArn) {
				kept = append(kept, rule)
			}
		}
		f.rules[listener] = kept
	}
	return &elbv2.DeleteRuleOutput{}, nil
}

type fakeLogGroups struct {
	groups map[string]bool
}

func (f *fakeLogGroups) CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	name := aws.ToString(params.LogGroupName)
	if f.groups == nil {
		f.groups = map[string]bool{}
	}
	if f.groups[name] {
		return nil, &smithyErr{code: "ResourceAlreadyExistsException"}
	}
	f.groups[name] = true
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogGroups) DeleteLogGroup(ctx context.Context, params *cloudwatchlogs.DeleteLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
	delete(f.groups, aws.ToString(params.LogGroupName))
	return &cloudwatchlogs.DeleteLogGroupOutput{}, nil
}

func testProvisioner(ecsFake *fakeECS, elbFake *fakeELB) *Provisioner {
	return NewProvisioner(ecsFake, elbFake, &fakeLogGroups{}, &config.Config{
		AWSRegion:           "us-east-1",
		BaseDomain:          "apps.example.com",
		ClusterName:         "nimbus",
		LoadBalancerARN:     "arn:loadbalancer/shared",
		SecureListenerARN:   testSecureListener,
		InsecureListenerARN: testInsecureListener,
		ContainerPort:       3000,
	})
}

func TestEnsureTargetGroupIsIdempotent(t *testing.T) {
	elbFake := newFakeELB()
	p := testProvisioner(&fakeECS{}, elbFake)

	first, err := p.EnsureTargetGroup(context.Background(), "demo")
	require.NoError(t, err)
	second, err := p.EnsureTargetGroup(context.Background(), "demo")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, elbFake.tgCreates)
}

func TestReconcileListenerRulesCreatesThenModifies(t *testing.T) {
	elbFake := newFakeELB()
	p := testProvisioner(&fakeECS{}, elbFake)

	require.NoError(t, p.ReconcileListenerRules(context.Background(), "demo", "arn:targetgroup/demo-tg"))
	// Bare host + wildcard on both listeners.
	assert.Equal(t, 4, elbFake.ruleCreates)
	assert.Len(t, elbFake.rules[testSecureListener], 2)
	assert.Len(t, elbFake.rules[testInsecureListener], 2)

	require.NoError(t, p.ReconcileListenerRules(context.Background(), "demo", "arn:targetgroup/demo-tg"))
	assert.Equal(t, 4, elbFake.ruleCreates, "second reconcile must not create duplicates")
	assert.Equal(t, 4, elbFake.ruleModifies)
}

func TestReconcilePriorityNeverCollides(t *testing.T) {
	elbFake := newFakeELB()
	elbFake.rules[testSecureListener] = []elbtypes.Rule{
		{RuleArn: aws.String("arn:rule/existing"), Priority: aws.String("7"),
			Conditions: []elbtypes.RuleCondition{hostCondition("other.apps.example.com")}},
		{RuleArn: aws.String("arn:rule/default"), Priority: aws.String("default"), IsDefault: aws.Bool(true)},
	}
	p := testProvisioner(&fakeECS{}, elbFake)

	require.NoError(t, p.ReconcileListenerRules(context.Background(), "demo", "arn:tg"))

	priorities := map[string]bool{}
	for _, rule := range elbFake.rules[testSecureListener] {
		if aws.ToBool(rule.IsDefault) {
			continue
		}
		priority := aws.ToString(rule.Priority)
		assert.False(t, priorities[priority], "duplicate priority %s", priority)
		priorities[priority] = true
	}
	assert.True(t, priorities["8"])
	assert.True(t, priorities["9"])
}

func TestInsecureRulesRedirect(t *testing.T) {
	elbFake := newFakeELB()
	p := testProvisioner(&fakeECS{}, elbFake)

	require.NoError(t, p.ReconcileListenerRules(context.Background(), "demo", "arn:tg"))

	for _, rule := range elbFake.rules[testInsecureListener] {
		require.Len(t, rule.Actions, 1)
		assert.Equal(t, elbtypes.ActionTypeEnumRedirect, rule.Actions[0].Type)
		assert.Equal(t, elbtypes.RedirectActionStatusCodeEnumHttp301, rule.Actions[0].RedirectConfig.StatusCode)
		assert.Equal(t, "443", aws.ToString(rule.Actions[0].RedirectConfig.Port))
	}
	for _, rule := range elbFake.rules[testSecureListener] {
		require.Len(t, rule.Actions, 1)
		assert.Equal(t, elbtypes.ActionTypeEnumForward, rule.Actions[0].Type)
		assert.Equal(t, "arn:tg", aws.ToString(rule.Actions[0].TargetGroupArn))
	}
}

func TestDeleteRulesForHosts(t *testing.T) {
	elbFake := newFakeELB()
	p := testProvisioner(&fakeECS{}, elbFake)
	require.NoError(t, p.ReconcileListenerRules(context.Background(), "demo", "arn:tg"))
	require.NoError(t, p.EnsureHostRules(context.Background(), "api.demo.apps.example.com", "arn:tg"))

	err := p.DeleteRulesForHosts(context.Background(), []string{"api.demo.apps.example.com"})
	require.NoError(t, err)

	for _, listener := range []string{testSecureListener, testInsecureListener} {
		for _, rule := range elbFake.rules[listener] {
			for _, cond := range rule.Conditions {
				if cond.HostHeaderConfig != nil {
					assert.NotContains(t, cond.HostHeaderConfig.Values, "api.demo.apps.example.com")
				}
			}
		}
		assert.Len(t, elbFake.rules[listener], 2)
	}
}

func TestCreateOrUpdateService(t *testing.T) {
	ecsFake := &fakeECS{}
	p := testProvisioner(ecsFake, newFakeELB())

	require.NoError(t, p.CreateOrUpdateService(context.Background(), "demo", "arn:taskdef/demo-task:1", "arn:tg"))
	assert.Equal(t, 1, ecsFake.createCalls)
	assert.Equal(t, 0, ecsFake.updateCalls)

	require.NoError(t, p.CreateOrUpdateService(context.Background(), "demo", "arn:taskdef/demo-task:2", "arn:tg"))
	assert.Equal(t, 1, ecsFake.createCalls)
	assert.Equal(t, 1, ecsFake.updateCalls)
	assert.Equal(t, "arn:taskdef/demo-task:2", ecsFake.lastTaskDef)
}

func TestTaskEnvVarsFiltersMalformedPairs(t *testing.T) {
	vars := taskEnvVars(map[string]string{
		"GOOD":  "value",
		"":      "no key",
		"EMPTY": "",
	})
	require.Len(t, vars, 1)
	assert.Equal(t, "GOOD", aws.ToString(vars[0].Name))
}

type smithyErr struct {
	code string
}

func (e *smithyErr) Error() string                 { return e.code }
func (e *smithyErr) ErrorCode() string             { return e.code }
func (e *smithyErr) ErrorMessage() string          { return e.code }
func (e *smithyErr) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }
