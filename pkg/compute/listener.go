package compute

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
)

// ReconcileListenerRules points host-header routing for the project's bare
// host and its wildcard form at targetGroupARN. Secure-listener rules
// forward; insecure-listener rules redirect permanently to HTTPS. Existing
// rules are modified in place, missing ones created at the next free
// priority.
func (p *Provisioner) ReconcileListenerRules(ctx context.Context, projectName, targetGroupARN string) error {
	hosts := []string{
		utils.ProjectHost(projectName, p.cfg.BaseDomain),
		utils.WildcardHost(projectName, p.cfg.BaseDomain),
	}

	if err := p.reconcileListener(ctx, p.cfg.SecureListenerARN, hosts, forwardAction(targetGroupARN)); err != nil {
		return err
	}
	return p.reconcileListener(ctx, p.cfg.InsecureListenerARN, hosts, redirectAction())
}

// EnsureHostRules is the single-host variant used by rollback when
// re-pointing a reduced hostname set.
func (p *Provisioner) EnsureHostRules(ctx context.Context, host, targetGroupARN string) error {
	if err := p.reconcileListener(ctx, p.cfg.SecureListenerARN, []string{host}, forwardAction(targetGroupARN)); err != nil {
		return err
	}
	return p.reconcileListener(ctx, p.cfg.InsecureListenerARN, []string{host}, redirectAction())
}

func (p *Provisioner) reconcileListener(ctx context.Context, listenerARN string, hosts []string, actions []elbtypes.Action) error {
	described, err := p.elb.DescribeRules(ctx, &elbv2.DescribeRulesInput{
		ListenerArn: aws.String(listenerARN),
	})
	if err != nil {
		return wrapProvisioning("describe listener rules", err)
	}

	nextPriority := maxRulePriority(described.Rules) + 1

	for _, host := range hosts {
		if existing := findRuleForHost(described.Rules, host); existing != nil {
			_, err := p.elb.ModifyRule(ctx, &elbv2.ModifyRuleInput{
				RuleArn: existing.RuleArn,
				Actions: actions,
			})
			if err != nil {
				return wrapProvisioning("modify listener rule", err)
			}
			continue
		}

		_, err := p.elb.CreateRule(ctx, &elbv2.CreateRuleInput{
			ListenerArn: aws.String(listenerARN),
			Priority:    aws.Int32(nextPriority),
			Conditions:  []elbtypes.RuleCondition{hostCondition(host)},
			Actions:     actions,
		})
		if err != nil {
			return wrapProvisioning("create listener rule", err)
		}
		logger.Info("listener rule created",
			zap.String("host", host),
			zap.Int32("priority", nextPriority))
		nextPriority++
	}
	return nil
}

// DeleteRulesForHosts removes every rule on both listeners whose host-header
// condition matches any of hosts.
func (p *Provisioner) DeleteRulesForHosts(ctx context.Context, hosts []string) error {
	wanted := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		wanted[h] = true
	}

	for _, listenerARN := range []string{p.cfg.SecureListenerARN, p.cfg.InsecureListenerARN} {
		described, err := p.elb.DescribeRules(ctx, &elbv2.DescribeRulesInput{
			ListenerArn: aws.String(listenerARN),
		})
		if err != nil {
			return err
		}
		for i := range described.Rules {
			rule := &described.Rules[i]
			if aws.ToBool(rule.IsDefault) {
				continue
			}
			if !ruleMatchesAny(rule, wanted) {
				continue
			}
			if _, err := p.elb.DeleteRule(ctx, &elbv2.DeleteRuleInput{
				RuleArn: rule.RuleArn,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func hostCondition(host string) elbtypes.RuleCondition {
	return elbtypes.RuleCondition{
		Field: aws.String("host-header"),
		HostHeaderConfig: &elbtypes.HostHeaderConditionConfig{
			Values: []string{host},
		},
	}
}

func forwardAction(targetGroupARN string) []elbtypes.Action {
	return []elbtypes.Action{
		{
			Type:           elbtypes.ActionTypeEnumForward,
			TargetGroupArn: aws.String(targetGroupARN),
		},
	}
}

// redirectAction sends insecure traffic to the secure equivalent. The query
// string is preserved so cached intermediaries cannot pin a stale scheme.
func redirectAction() []elbtypes.Action {
	return []elbtypes.Action{
		{
			Type: elbtypes.ActionTypeEnumRedirect,
			RedirectConfig: &elbtypes.RedirectActionConfig{
				Protocol:   aws.String("HTTPS"),
				Port:       aws.String("443"),
				Host:       aws.String("#{host}"),
				Path:       aws.String("/#{path}"),
				Query:      aws.String("#{query}"),
				StatusCode: elbtypes.RedirectActionStatusCodeEnumHttp301,
			},
		},
	}
}

// maxRulePriority scans existing priorities so new rules never collide.
// Returns 0 when the listener only has its default rule.
func maxRulePriority(rules []elbtypes.Rule) int32 {
	var max int32
	for i := range rules {
		if aws.ToBool(rules[i].IsDefault) {
			continue
		}
		n, err := strconv.ParseInt(aws.ToString(rules[i].Priority), 10, 32)
		if err != nil {
			continue
		}
		if int32(n) > max {
			max = int32(n)
		}
	}
	return max
}

func findRuleForHost(rules []elbtypes.Rule, host string) *elbtypes.Rule {
	for i := range rules {
		if aws.ToBool(rules[i].IsDefault) {
			continue
		}
		if ruleMatchesAny(&rules[i], map[string]bool{host: true}) {
			return &rules[i]
		}
	}
	return nil
}

func ruleMatchesAny(rule *elbtypes.Rule, hosts map[string]bool) bool {
	for _, cond := range rule.Conditions {
		if aws.ToString(cond.Field) != "host-header" || cond.HostHeaderConfig == nil {
			continue
		}
		for _, v := range cond.HostHeaderConfig.Values {
			if hosts[v] {
				return true
			}
		}
	}
	return false
}
