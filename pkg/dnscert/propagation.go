package dnscert

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/poll"
)

// VerifyPropagation asks a public resolver directly for rec.Name until the
// expected record is answered: a CNAME must point at rec.Value, and an alias A
// record must resolve to one of the addresses rec.Value resolves to, since
// the zone answers an alias with the target's own addresses. Resolution
// failures after the attempt budget are logged, not returned: records
// committed to the zone will converge, and deployment must not fail on
// resolver lag. The return value reports whether the record was observed.
func (m *Manager) VerifyPropagation(ctx context.Context, rec Record) bool {
	client := &dns.Client{}

	err := poll.UntilAttempts(ctx, m.propInterval, m.propAttempts, func(ctx context.Context) error {
		observed, err := m.recordObserved(ctx, client, rec)
		if err != nil {
			return poll.Retryable(errs.Transient("dns query", err))
		}
		if !observed {
			return poll.Retryable(errs.Transient("dns query",
				fmt.Errorf("%s record for %s not visible yet", rec.Type, rec.Name)))
		}
		return nil
	})
	if err != nil {
		logger.Warn("dns record not visible on public resolver yet",
			zap.String("hostname", rec.Name),
			zap.String("type", rec.Type),
			zap.String("resolver", m.cfg.DNSResolver))
		return false
	}
	logger.Info("dns record propagated",
		zap.String("hostname", rec.Name),
		zap.String("type", rec.Type))
	return true
}

func (m *Manager) recordObserved(ctx context.Context, client *dns.Client, rec Record) (bool, error) {
	if rec.Type == "CNAME" {
		answers, err := m.resolve(ctx, client, rec.Name, dns.TypeCNAME)
		if err != nil {
			return false, err
		}
		for _, rr := range answers {
			cname, ok := rr.(*dns.CNAME)
			if ok && strings.EqualFold(cname.Target, dns.Fqdn(rec.Value)) {
				return true, nil
			}
		}
		return false, nil
	}

	got, err := m.addresses(ctx, client, rec.Name)
	if err != nil {
		return false, err
	}
	want, err := m.addresses(ctx, client, rec.Value)
	if err != nil {
		return false, err
	}
	for addr := range got {
		if want[addr] {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) addresses(ctx context.Context, client *dns.Client, host string) (map[string]bool, error) {
	answers, err := m.resolve(ctx, client, host, dns.TypeA)
	if err != nil {
		return nil, err
	}
	addrs := map[string]bool{}
	for _, rr := range answers {
		if a, ok := rr.(*dns.A); ok {
			addrs[a.A.String()] = true
		}
	}
	return addrs, nil
}

func (m *Manager) resolve(ctx context.Context, client *dns.Client, name string, qtype uint16) ([]dns.RR, error) {
	msg := &dns.Msg{}
	msg.SetQuestion(dns.Fqdn(name), qtype)

	resp, _, err := client.ExchangeContext(ctx, msg, m.cfg.DNSResolver)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s: %s", name, dns.RcodeToString[resp.Rcode])
	}
	return resp.Answer, nil
}
