package dnscert

import (
	"context"
	"net"
	"testing"
	"time"

	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startResolver serves canned answers on a loopback UDP port. records maps a
// fully qualified owner name to zone-file lines; only lines matching the
// queried type are answered.
func startResolver(t *testing.T, records map[string][]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		reply := new(dns.Msg)
		reply.SetReply(r)
		q := r.Question[0]
		for _, line := range records[q.Name] {
			rr, err := dns.NewRR(line)
			if err == nil && rr.Header().Rrtype == q.Qtype {
				reply.Answer = append(reply.Answer, rr)
			}
		}
		_ = w.WriteMsg(reply)
	})

	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func propagationManager(resolver string) *Manager {
	m := testManager(newFakeRoute53(), &fakeACM{status: acmtypes.CertificateStatusIssued})
	m.cfg.DNSResolver = resolver
	m.propAttempts = 2
	m.propInterval = time.Millisecond
	return m
}

func TestVerifyPropagationMatchesCNAMETarget(t *testing.T) {
	resolver := startResolver(t, map[string][]string{
		"b.demo.apps.example.com.": {"b.demo.apps.example.com. 300 IN CNAME demo.apps.example.com."},
	})
	m := propagationManager(resolver)

	ok := m.VerifyPropagation(context.Background(), Record{
		Name: "b.demo.apps.example.com", Type: "CNAME", Value: "demo.apps.example.com",
	})
	assert.True(t, ok)
}

func TestVerifyPropagationRejectsWrongCNAMETarget(t *testing.T) {
	resolver := startResolver(t, map[string][]string{
		"b.demo.apps.example.com.": {"b.demo.apps.example.com. 300 IN CNAME elsewhere.example.com."},
	})
	m := propagationManager(resolver)

	ok := m.VerifyPropagation(context.Background(), Record{
		Name: "b.demo.apps.example.com", Type: "CNAME", Value: "demo.apps.example.com",
	})
	assert.False(t, ok, "a CNAME pointing somewhere else must not count as propagated")
}

func TestVerifyPropagationMatchesAliasAddress(t *testing.T) {
	resolver := startResolver(t, map[string][]string{
		"demo.apps.example.com.": {"demo.apps.example.com. 60 IN A 192.0.2.10"},
		"shared-alb.example.com.": {
			"shared-alb.example.com. 60 IN A 192.0.2.10",
			"shared-alb.example.com. 60 IN A 192.0.2.11",
		},
	})
	m := propagationManager(resolver)

	ok := m.VerifyPropagation(context.Background(), Record{
		Name: "demo.apps.example.com", Type: "A", Value: "shared-alb.example.com",
	})
	assert.True(t, ok)
}

func TestVerifyPropagationRejectsForeignAddress(t *testing.T) {
	resolver := startResolver(t, map[string][]string{
		"demo.apps.example.com.":  {"demo.apps.example.com. 60 IN A 192.0.2.99"},
		"shared-alb.example.com.": {"shared-alb.example.com. 60 IN A 192.0.2.10"},
	})
	m := propagationManager(resolver)

	ok := m.VerifyPropagation(context.Background(), Record{
		Name: "demo.apps.example.com", Type: "A", Value: "shared-alb.example.com",
	})
	assert.False(t, ok, "an address outside the load balancer's set must not count as propagated")
}
