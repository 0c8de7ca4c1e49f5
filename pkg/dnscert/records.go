package dnscert

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
)

// Record is one hosted-zone entry managed for a project, in the shape stored
// as the domain row's snapshot.
type Record struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UpdateRecords replaces the project's hosted-zone entries with the given
// hostnames. The bare project host becomes an alias to the shared load
// balancer; every other hostname becomes a CNAME onto the bare host. Stale
// records for names no longer in the set are deleted first, then the new set
// is upserted in one change batch.
func (m *Manager) UpdateRecords(ctx context.Context, projectName string, hostnames []string) ([]Record, error) {
	bareHost := utils.ProjectHost(projectName, m.cfg.BaseDomain)

	lbDNS, lbZone, err := m.loadBalancerTarget(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := m.listProjectRecords(ctx, bareHost)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]r53types.RRType, len(hostnames))
	for _, h := range hostnames {
		if h == bareHost {
			wanted[normalizeRecordName(h)] = r53types.RRTypeA
		} else {
			wanted[normalizeRecordName(h)] = r53types.RRTypeCname
		}
	}

	// The upsert below only replaces a record set of the same name AND type,
	// so a wanted name carrying a record of a different type must be deleted
	// here or the zone rejects the conflicting write.
	changes := []r53types.Change{}
	for i := range existing {
		wantType, ok := wanted[normalizeRecordName(aws.ToString(existing[i].Name))]
		if ok && existing[i].Type == wantType {
			continue
		}
		changes = append(changes, r53types.Change{
			Action:            r53types.ChangeActionDelete,
			ResourceRecordSet: &existing[i],
		})
	}

	records := make([]Record, 0, len(hostnames))
	for _, host := range hostnames {
		var set r53types.ResourceRecordSet
		if host == bareHost {
			set = r53types.ResourceRecordSet{
				Name: aws.String(host),
				Type: r53types.RRTypeA,
				AliasTarget: &r53types.AliasTarget{
					DNSName:              aws.String(lbDNS),
					HostedZoneId:         aws.String(lbZone),
					EvaluateTargetHealth: false,
				},
			}
			records = append(records, Record{Name: host, Type: "A", Value: lbDNS})
		} else {
			set = r53types.ResourceRecordSet{
				Name: aws.String(host),
				Type: r53types.RRTypeCname,
				TTL:  aws.Int64(300),
				ResourceRecords: []r53types.ResourceRecord{
					{Value: aws.String(bareHost)},
				},
			}
			records = append(records, Record{Name: host, Type: "CNAME", Value: bareHost})
		}
		changes = append(changes, r53types.Change{
			Action:            r53types.ChangeActionUpsert,
			ResourceRecordSet: &set,
		})
	}

	if len(changes) > 0 {
		_, err = m.dns.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
			HostedZoneId: aws.String(m.cfg.HostedZoneID),
			ChangeBatch:  &r53types.ChangeBatch{Changes: changes},
		})
		if err != nil {
			return nil, errs.Provisioning("change record sets", err)
		}
	}

	logger.Info("dns records synced",
		zap.String("project", projectName),
		zap.Int("records", len(records)))
	return records, nil
}

// DeleteRecords removes the given records from the hosted zone, deduplicated
// by name and type so a snapshot replayed twice does not double-delete.
func (m *Manager) DeleteRecords(ctx context.Context, records []Record) error {
	lbDNS, lbZone, lbErr := m.loadBalancerTarget(ctx)

	seen := map[string]bool{}
	changes := []r53types.Change{}
	for _, rec := range records {
		key := normalizeRecordName(rec.Name) + "/" + rec.Type
		if seen[key] {
			continue
		}
		seen[key] = true

		set := &r53types.ResourceRecordSet{
			Name: aws.String(rec.Name),
			Type: r53types.RRType(rec.Type),
		}
		if rec.Type == "A" {
			if lbErr != nil {
				return lbErr
			}
			set.AliasTarget = &r53types.AliasTarget{
				DNSName:              aws.String(lbDNS),
				HostedZoneId:         aws.String(lbZone),
				EvaluateTargetHealth: false,
			}
		} else {
			set.TTL = aws.Int64(300)
			set.ResourceRecords = []r53types.ResourceRecord{
				{Value: aws.String(rec.Value)},
			}
		}
		changes = append(changes, r53types.Change{
			Action:            r53types.ChangeActionDelete,
			ResourceRecordSet: set,
		})
	}
	if len(changes) == 0 {
		return nil
	}

	_, err := m.dns.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(m.cfg.HostedZoneID),
		ChangeBatch:  &r53types.ChangeBatch{Changes: changes},
	})
	return err
}

// listProjectRecords returns every record set under the project's bare host,
// validation records included.
func (m *Manager) listProjectRecords(ctx context.Context, bareHost string) ([]r53types.ResourceRecordSet, error) {
	suffix := normalizeRecordName(bareHost)
	out := []r53types.ResourceRecordSet{}

	var startName *string
	var startType r53types.RRType
	for {
		resp, err := m.dns.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
			HostedZoneId:    aws.String(m.cfg.HostedZoneID),
			StartRecordName: startName,
			StartRecordType: startType,
		})
		if err != nil {
			return nil, errs.Provisioning("list record sets", err)
		}
		for _, set := range resp.ResourceRecordSets {
			name := normalizeRecordName(aws.ToString(set.Name))
			if name == suffix || strings.HasSuffix(name, "."+suffix) {
				out = append(out, set)
			}
		}
		if !resp.IsTruncated {
			return out, nil
		}
		startName = resp.NextRecordName
		startType = resp.NextRecordType
	}
}

// loadBalancerTarget resolves the alias target of the shared load balancer.
func (m *Manager) loadBalancerTarget(ctx context.Context) (dnsName, zoneID string, err error) {
	lbs, err := m.elb.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{m.cfg.LoadBalancerARN},
	})
	if err != nil {
		return "", "", errs.Provisioning("describe load balancer", err)
	}
	if len(lbs.LoadBalancers) == 0 {
		return "", "", errs.Provisioning("describe load balancer",
			fmt.Errorf("load balancer %s not found", m.cfg.LoadBalancerARN))
	}
	lb := lbs.LoadBalancers[0]
	return aws.ToString(lb.DNSName), aws.ToString(lb.CanonicalHostedZoneId), nil
}

// normalizeRecordName strips the trailing dot the zone API appends and
// lowercases, so stored and listed names compare equal.
func normalizeRecordName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
