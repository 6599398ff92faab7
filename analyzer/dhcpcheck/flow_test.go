package dhcpcheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLogLine(t *testing.T) {
	now := time.Now()

	message := ParseLogLine("dnsmasq-dhcp[123]: DHCPDISCOVER(eth0) 02:42:ac:11:00:02", now)
	require.NotNil(t, message)
	require.EqualValues(t, Discover, message.Type)
	require.EqualValues(t, "02:42:ac:11:00:02", message.Client)
	require.Empty(t, message.Address)

	message = ParseLogLine("dnsmasq-dhcp[123]: DHCPACK(eth0) 192.168.1.110 02:42:ac:11:00:02 client1", now)
	require.NotNil(t, message)
	require.EqualValues(t, Ack, message.Type)
	require.EqualValues(t, "192.168.1.110", message.Address)
	require.EqualValues(t, "02:42:ac:11:00:02", message.Client)

	require.Nil(t, ParseLogLine("dnsmasq[123]: reading /etc/resolv.conf", now))
}

func TestReconstructFlowsComplete(t *testing.T) {
	base := time.Now()
	client := "02:42:ac:11:00:02"
	messages := []Message{
		{Type: Discover, Client: client, Timestamp: base},
		{Type: Offer, Client: client, Address: "192.168.1.110", Timestamp: base.Add(time.Millisecond)},
		{Type: Request, Client: client, Timestamp: base.Add(2 * time.Millisecond)},
		{Type: Ack, Client: client, Address: "192.168.1.110", Timestamp: base.Add(3 * time.Millisecond)},
	}

	exchanges := ReconstructFlows(messages)
	require.Len(t, exchanges, 1)
	require.True(t, exchanges[0].Complete)
	require.Empty(t, exchanges[0].Issues)
	require.EqualValues(t, "192.168.1.110", exchanges[0].Address)
	require.EqualValues(t, []MessageType{Discover, Offer, Request, Ack}, exchanges[0].Messages)
}

func TestReconstructFlowsIssues(t *testing.T) {
	base := time.Now()
	messages := []Message{
		// Client with no response to its discover.
		{Type: Discover, Client: "aa:aa:aa:aa:aa:01", Timestamp: base},
		// Client refused by the server.
		{Type: Request, Client: "aa:aa:aa:aa:aa:02", Timestamp: base},
		{Type: Nak, Client: "aa:aa:aa:aa:aa:02", Timestamp: base.Add(time.Millisecond)},
		// Client whose request went unanswered.
		{Type: Discover, Client: "aa:aa:aa:aa:aa:03", Timestamp: base},
		{Type: Offer, Client: "aa:aa:aa:aa:aa:03", Timestamp: base.Add(time.Millisecond)},
		{Type: Request, Client: "aa:aa:aa:aa:aa:03", Timestamp: base.Add(2 * time.Millisecond)},
	}

	exchanges := ReconstructFlows(messages)
	require.Len(t, exchanges, 3)

	require.False(t, exchanges[0].Complete)
	require.Contains(t, exchanges[0].Issues[0], "no offer followed")

	require.False(t, exchanges[1].Complete)
	require.Contains(t, exchanges[1].Issues[0], "refused")

	require.False(t, exchanges[2].Complete)
	require.Contains(t, exchanges[2].Issues[0], "never acknowledged")
}

func TestReconstructFlowsIgnoresAnonymousMessages(t *testing.T) {
	messages := []Message{
		{Type: Discover, Timestamp: time.Now()},
	}
	require.Empty(t, ReconstructFlows(messages))
}
