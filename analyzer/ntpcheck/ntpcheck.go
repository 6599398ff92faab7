package ntpcheck

import (
	"math"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultTimeout = 5 * time.Second

// Result of a single NTP exchange.
type QueryResult struct {
	Packet *Packet       `json:"packet"`
	Offset time.Duration `json:"offset"`
	Delay  time.Duration `json:"delay"`
}

// Statistics over repeated exchanges.
type PerformanceStats struct {
	Samples   int           `json:"samples"`
	Failed    int           `json:"failed"`
	MinDelay  time.Duration `json:"minDelay"`
	MaxDelay  time.Duration `json:"maxDelay"`
	AvgDelay  time.Duration `json:"avgDelay"`
	AvgOffset time.Duration `json:"avgOffset"`
	Jitter    time.Duration `json:"jitter"`
}

// Complete server analysis.
type Report struct {
	Server      string            `json:"server"`
	Reachable   bool              `json:"reachable"`
	Query       *QueryResult      `json:"query,omitempty"`
	Stratum     string            `json:"stratum,omitempty"`
	Leap        string            `json:"leap,omitempty"`
	Performance *PerformanceStats `json:"performance,omitempty"`
	Issues      []string          `json:"issues,omitempty"`
}

// Analyzer queries one NTP server.
type Analyzer struct {
	server  string
	timeout time.Duration
}

// Creates an analyzer for a server address. The default NTP port is
// appended when missing.
func NewAnalyzer(server string) *Analyzer {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "123")
	}
	return &Analyzer{
		server:  server,
		timeout: defaultTimeout,
	}
}

// Returns the server address used by the analyzer.
func (a *Analyzer) Server() string {
	return a.server
}

// Performs one client/server exchange and derives clock offset and
// round-trip delay from the four timestamps.
func (a *Analyzer) Query() (*QueryResult, error) {
	conn, err := net.Dial("udp", a.server)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot reach NTP server %s", a.server)
	}
	defer conn.Close()

	if err = conn.SetDeadline(time.Now().Add(a.timeout)); err != nil {
		return nil, errors.Wrap(err, "cannot set socket deadline")
	}

	// T1: client transmit time.
	clientTransmit := time.Now()
	if _, err = conn.Write(encodeRequest(clientTransmit)); err != nil {
		return nil, errors.Wrapf(err, "cannot send NTP request to %s", a.server)
	}

	response := make([]byte, packetLength)
	n, err := conn.Read(response)
	// T4: client receive time.
	clientReceive := time.Now()
	if err != nil {
		return nil, errors.Wrapf(err, "no NTP response from %s", a.server)
	}

	packet, err := decodePacket(response[:n])
	if err != nil {
		return nil, err
	}
	if packet.Mode != modeServer {
		return nil, errors.Errorf("unexpected NTP mode %d in response from %s", packet.Mode, a.server)
	}

	// offset = ((T2 - T1) + (T3 - T4)) / 2, delay = (T4 - T1) - (T3 - T2).
	t2 := packet.ReceiveTime
	t3 := packet.TransmitTime
	offset := (t2.Sub(clientTransmit) + t3.Sub(clientReceive)) / 2
	delay := clientReceive.Sub(clientTransmit) - t3.Sub(t2)

	return &QueryResult{
		Packet: packet,
		Offset: offset,
		Delay:  delay,
	}, nil
}

// Repeats the exchange to measure delay spread and offset jitter.
func (a *Analyzer) MeasurePerformance(samples int) *PerformanceStats {
	stats := &PerformanceStats{Samples: samples}

	var delays, offsets []time.Duration
	for i := 0; i < samples; i++ {
		result, err := a.Query()
		if err != nil {
			log.WithError(err).Debug("NTP sample failed")
			stats.Failed++
			continue
		}
		delays = append(delays, result.Delay)
		offsets = append(offsets, result.Offset)
	}
	if len(delays) == 0 {
		return stats
	}

	var totalDelay, totalOffset time.Duration
	stats.MinDelay = delays[0]
	for i, delay := range delays {
		totalDelay += delay
		totalOffset += offsets[i]
		if delay < stats.MinDelay {
			stats.MinDelay = delay
		}
		if delay > stats.MaxDelay {
			stats.MaxDelay = delay
		}
	}
	stats.AvgDelay = totalDelay / time.Duration(len(delays))
	stats.AvgOffset = totalOffset / time.Duration(len(offsets))
	stats.Jitter = stddev(offsets, stats.AvgOffset)
	return stats
}

// Runs the full analysis: reachability, one detailed exchange and a
// multi-sample performance measurement.
func (a *Analyzer) AnalyzeServer(samples int) *Report {
	report := &Report{Server: a.server}

	result, err := a.Query()
	if err != nil {
		report.Issues = append(report.Issues, err.Error())
		return report
	}

	report.Reachable = true
	report.Query = result
	report.Stratum = StratumDescription(result.Packet.Stratum)
	report.Leap = LeapDescription(result.Packet.LeapIndicator)

	if result.Packet.Stratum == 0 || result.Packet.Stratum > 15 {
		report.Issues = append(report.Issues, "server is not synchronized to a time source")
	}
	if result.Packet.LeapIndicator == 3 {
		report.Issues = append(report.Issues, "server clock is unsynchronized (leap indicator 3)")
	}
	if offset := result.Offset; offset > time.Second || offset < -time.Second {
		report.Issues = append(report.Issues, "local clock offset exceeds one second")
	}

	if samples > 1 {
		report.Performance = a.MeasurePerformance(samples)
	}
	return report
}

func stddev(values []time.Duration, mean time.Duration) time.Duration {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, value := range values {
		diff := float64(value - mean)
		sum += diff * diff
	}
	return time.Duration(math.Sqrt(sum / float64(len(values)-1)))
}
