// Package dnscert keeps a project's public name working: the wildcard TLS
// certificate, the hosted-zone records pointing at the shared load balancer
// and a best-effort check that those records are visible to the outside
// world.
package dnscert

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/poll"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/config"
)

type ACMAPI interface {
	RequestCertificate(ctx context.Context, params *acm.RequestCertificateInput, optFns ...func(*acm.Options)) (*acm.RequestCertificateOutput, error)
	DescribeCertificate(ctx context.Context, params *acm.DescribeCertificateInput, optFns ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error)
	DeleteCertificate(ctx context.Context, params *acm.DeleteCertificateInput, optFns ...func(*acm.Options)) (*acm.DeleteCertificateOutput, error)
}

type Route53API interface {
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
}

type ListenerCertAPI interface {
	DescribeListenerCertificates(ctx context.Context, params *elbv2.DescribeListenerCertificatesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeListenerCertificatesOutput, error)
	AddListenerCertificates(ctx context.Context, params *elbv2.AddListenerCertificatesInput, optFns ...func(*elbv2.Options)) (*elbv2.AddListenerCertificatesOutput, error)
	RemoveListenerCertificates(ctx context.Context, params *elbv2.RemoveListenerCertificatesInput, optFns ...func(*elbv2.Options)) (*elbv2.RemoveListenerCertificatesOutput, error)
	DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error)
}

type Manager struct {
	acm ACMAPI
	dns Route53API
	elb ListenerCertAPI
	cfg *config.Config

	certPollInterval time.Duration
	certPollLimit    time.Duration
	propAttempts     uint64
	propInterval     time.Duration
}

func NewManager(acmClient ACMAPI, dnsClient Route53API, elbClient ListenerCertAPI, cfg *config.Config) *Manager {
	return &Manager{
		acm:              acmClient,
		dns:              dnsClient,
		elb:              elbClient,
		cfg:              cfg,
		certPollInterval: 15 * time.Second,
		certPollLimit:    5 * time.Minute,
		propAttempts:     10,
		propInterval:     15 * time.Second,
	}
}

// EnsureCertificate returns the ARN of an issued wildcard certificate for
// the project host, reusing recordedARN when it still resolves to an issued
// certificate. A new request covers both the bare host and its wildcard
// form, validated over DNS.
func (m *Manager) EnsureCertificate(ctx context.Context, projectName, recordedARN string) (string, error) {
	if recordedARN != "" {
		described, err := m.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
			CertificateArn: aws.String(recordedARN),
		})
		if err == nil && described.Certificate.Status == acmtypes.CertificateStatusIssued {
			return recordedARN, nil
		}
		// Stale or revoked; fall through and request a fresh one.
	}

	bareHost := utils.ProjectHost(projectName, m.cfg.BaseDomain)
	requested, err := m.acm.RequestCertificate(ctx, &acm.RequestCertificateInput{
		DomainName:              aws.String(bareHost),
		SubjectAlternativeNames: []string{utils.WildcardHost(projectName, m.cfg.BaseDomain)},
		ValidationMethod:        acmtypes.ValidationMethodDns,
	})
	if err != nil {
		return "", errs.Provisioning("request certificate", err)
	}
	arn := aws.ToString(requested.CertificateArn)
	logger.Info("certificate requested",
		zap.String("host", bareHost),
		zap.String("certificateArn", arn))

	if err := m.waitForIssuance(ctx, arn); err != nil {
		return "", err
	}
	return arn, nil
}

// waitForIssuance upserts the DNS validation records as they become visible
// on the certificate, then polls until the certificate is issued.
func (m *Manager) waitForIssuance(ctx context.Context, arn string) error {
	validated := map[string]bool{}

	err := poll.UntilDeadline(ctx, m.certPollInterval, m.certPollLimit, func(ctx context.Context) error {
		described, err := m.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
			CertificateArn: aws.String(arn),
		})
		if err != nil {
			return poll.Retryable(errs.Transient("describe certificate", err))
		}
		cert := described.Certificate

		for _, opt := range cert.DomainValidationOptions {
			rec := opt.ResourceRecord
			if rec == nil {
				continue
			}
			name := aws.ToString(rec.Name)
			if validated[name] {
				continue
			}
			if err := m.upsertValidationRecord(ctx, rec); err != nil {
				return errs.Provisioning("upsert validation record", err)
			}
			validated[name] = true
		}

		switch cert.Status {
		case acmtypes.CertificateStatusIssued:
			return nil
		case acmtypes.CertificateStatusPendingValidation:
			return poll.Retryable(errs.Transient("certificate validation",
				fmt.Errorf("certificate %s still pending validation", arn)))
		default:
			return errs.Provisioning("certificate validation",
				fmt.Errorf("certificate %s entered status %s", arn, cert.Status))
		}
	})
	if err != nil {
		if errs.IsTransient(err) {
			return errs.Provisioning("certificate validation",
				fmt.Errorf("certificate %s not issued within %s", arn, m.certPollLimit))
		}
		return err
	}
	return nil
}

func (m *Manager) upsertValidationRecord(ctx context.Context, rec *acmtypes.ResourceRecord) error {
	_, err := m.dns.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(m.cfg.HostedZoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Changes: []r53types.Change{
				{
					Action: r53types.ChangeActionUpsert,
					ResourceRecordSet: &r53types.ResourceRecordSet{
						Name: rec.Name,
						Type: r53types.RRType(rec.Type),
						TTL:  aws.Int64(300),
						ResourceRecords: []r53types.ResourceRecord{
							{Value: rec.Value},
						},
					},
				},
			},
		},
	})
	return err
}

// AttachCertificate makes the secure listener present the certificate.
// Attaching an already-attached certificate is a no-op.
func (m *Manager) AttachCertificate(ctx context.Context, certARN string) error {
	described, err := m.elb.DescribeListenerCertificates(ctx, &elbv2.DescribeListenerCertificatesInput{
		ListenerArn: aws.String(m.cfg.SecureListenerARN),
	})
	if err != nil {
		return errs.Provisioning("describe listener certificates", err)
	}
	for _, c := range described.Certificates {
		if aws.ToString(c.CertificateArn) == certARN {
			return nil
		}
	}

	_, err = m.elb.AddListenerCertificates(ctx, &elbv2.AddListenerCertificatesInput{
		ListenerArn: aws.String(m.cfg.SecureListenerARN),
		Certificates: []elbtypes.Certificate{
			{CertificateArn: aws.String(certARN)},
		},
	})
	if err != nil {
		return errs.Provisioning("attach listener certificate", err)
	}
	logger.Info("certificate attached", zap.String("certificateArn", certARN))
	return nil
}

// DetachCertificate removes the certificate from the secure listener before
// deletion. The default listener certificate cannot be removed; callers only
// pass project certificates.
func (m *Manager) DetachCertificate(ctx context.Context, certARN string) error {
	_, err := m.elb.RemoveListenerCertificates(ctx, &elbv2.RemoveListenerCertificatesInput{
		ListenerArn: aws.String(m.cfg.SecureListenerARN),
		Certificates: []elbtypes.Certificate{
			{CertificateArn: aws.String(certARN)},
		},
	})
	return err
}

func (m *Manager) DeleteCertificate(ctx context.Context, certARN string) error {
	_, err := m.acm.DeleteCertificate(ctx, &acm.DeleteCertificateInput{
		CertificateArn: aws.String(certARN),
	})
	return err
}
