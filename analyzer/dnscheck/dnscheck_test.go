package dnscheck

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// Starts an in-process DNS server for the duration of a test and returns
// its address.
func runTestServer(t *testing.T, handler dns.Handler) string {
	packetConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &dns.Server{PacketConn: packetConn, Handler: handler}
	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = server.Shutdown()
	})
	return packetConn.LocalAddr().String()
}

// A handler serving a fixed zone for example.org.
func exampleZoneHandler() dns.Handler {
	return dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)

		question := r.Question[0]
		switch question.Qtype {
		case dns.TypeA:
			rr, _ := dns.NewRR("example.org. 300 IN A 192.0.2.10")
			m.Answer = append(m.Answer, rr)
		case dns.TypeNS:
			rr, _ := dns.NewRR("example.org. 300 IN NS ns1.example.org.")
			m.Answer = append(m.Answer, rr)
		case dns.TypePTR:
			rr, _ := dns.NewRR("10.2.0.192.in-addr.arpa. 300 IN PTR example.org.")
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	})
}

// Check a basic A record lookup against a local resolver.
func TestLookup(t *testing.T) {
	server := runTestServer(t, exampleZoneHandler())
	analyzer, err := NewAnalyzer(server)
	require.NoError(t, err)

	lookup, err := analyzer.Lookup("example.org", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, "A", lookup.RecordType)
	require.Equal(t, "NOERROR", lookup.Rcode)
	require.Equal(t, []string{"192.0.2.10"}, lookup.Records)
	require.NotZero(t, lookup.ResponseTime)
}

// Check the reverse lookup path.
func TestReverse(t *testing.T) {
	server := runTestServer(t, exampleZoneHandler())
	analyzer, err := NewAnalyzer(server)
	require.NoError(t, err)

	lookup, err := analyzer.Reverse("192.0.2.10")
	require.NoError(t, err)
	require.Equal(t, "PTR", lookup.RecordType)
	require.Equal(t, []string{"example.org."}, lookup.Records)

	_, err = analyzer.Reverse("not-an-ip")
	require.Error(t, err)
}

// Check the full domain sweep and that missing MX records are flagged.
func TestAnalyzeDomain(t *testing.T) {
	server := runTestServer(t, exampleZoneHandler())
	analyzer, err := NewAnalyzer(server)
	require.NoError(t, err)

	report, err := analyzer.AnalyzeDomain("example.org")
	require.NoError(t, err)
	require.Equal(t, "example.org", report.Domain)
	require.Contains(t, report.Lookups, "A")
	require.Contains(t, report.Lookups, "NS")
	require.NotEmpty(t, report.Lookups["A"].Records)
	require.Contains(t, report.Issues, "no MX records: mail for this domain is not deliverable")
}

// Check that an invalid domain is rejected before any query is sent.
func TestAnalyzeDomainInvalidName(t *testing.T) {
	analyzer, err := NewAnalyzer("127.0.0.1:53")
	require.NoError(t, err)

	_, err = analyzer.AnalyzeDomain("bad domain..")
	require.Error(t, err)
}

// Check that NXDOMAIN answers are turned into an issue.
func TestAnalyzeDomainNXDomain(t *testing.T) {
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeNameError)
		_ = w.WriteMsg(m)
	})
	server := runTestServer(t, handler)
	analyzer, err := NewAnalyzer(server)
	require.NoError(t, err)

	report, err := analyzer.AnalyzeDomain("missing.example.org")
	require.NoError(t, err)
	require.Contains(t, report.Issues, "domain does not exist (NXDOMAIN)")
}

// Check latency statistics over repeated queries.
func TestMeasurePerformance(t *testing.T) {
	server := runTestServer(t, exampleZoneHandler())
	analyzer, err := NewAnalyzer(server)
	require.NoError(t, err)

	stats := analyzer.MeasurePerformance("example.org", 5)
	require.Equal(t, 5, stats.Queries)
	require.Zero(t, stats.Failed)
	require.LessOrEqual(t, stats.Min, stats.Avg)
	require.LessOrEqual(t, stats.Avg, stats.Max)
}

// Check that the default port is appended to a bare server address.
func TestNewAnalyzerAppendsPort(t *testing.T) {
	analyzer, err := NewAnalyzer("192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, "192.0.2.1:53", analyzer.Server())
}
