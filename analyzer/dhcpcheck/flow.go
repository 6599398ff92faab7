package dhcpcheck

import (
	"sort"
	"strings"
	"time"
)

// DHCP message types as seen in dnsmasq logs.
type MessageType string

const (
	Discover MessageType = "DHCPDISCOVER"
	Offer    MessageType = "DHCPOFFER"
	Request  MessageType = "DHCPREQUEST"
	Ack      MessageType = "DHCPACK"
	Nak      MessageType = "DHCPNAK"
	Decline  MessageType = "DHCPDECLINE"
	Release  MessageType = "DHCPRELEASE"
	Inform   MessageType = "DHCPINFORM"
)

// One captured DHCP message.
type Message struct {
	Type      MessageType `json:"type"`
	Client    string      `json:"client"`
	Address   string      `json:"address,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// The reconstructed exchange of a single client.
type Exchange struct {
	Client   string        `json:"client"`
	Messages []MessageType `json:"messages"`
	Address  string        `json:"address,omitempty"`
	Complete bool          `json:"complete"`
	Issues   []string      `json:"issues,omitempty"`
}

// Parses a dnsmasq-dhcp log line, e.g.
// "dnsmasq-dhcp[123]: DHCPDISCOVER(eth0) 02:42:ac:11:00:02". Returns
// nil for lines that carry no DHCP message.
func ParseLogLine(line string, timestamp time.Time) *Message {
	fields := strings.Fields(line)
	for i, field := range fields {
		kind, _, _ := strings.Cut(field, "(")
		switch MessageType(kind) {
		case Discover, Offer, Request, Ack, Nak, Decline, Release, Inform:
		default:
			continue
		}
		message := &Message{Type: MessageType(kind), Timestamp: timestamp}
		// dnsmasq logs "TYPE(iface) [address] mac [hostname]".
		rest := fields[i+1:]
		for _, value := range rest {
			if strings.Count(value, ":") == 5 {
				message.Client = value
			} else if strings.Count(value, ".") == 3 {
				message.Address = value
			}
		}
		return message
	}
	return nil
}

// Groups messages by client and checks each exchange against the
// discover, offer, request, acknowledge sequence.
func ReconstructFlows(messages []Message) []*Exchange {
	byClient := map[string][]Message{}
	for _, message := range messages {
		if message.Client == "" {
			continue
		}
		byClient[message.Client] = append(byClient[message.Client], message)
	}

	var exchanges []*Exchange
	for client, clientMessages := range byClient {
		sort.SliceStable(clientMessages, func(i, j int) bool {
			return clientMessages[i].Timestamp.Before(clientMessages[j].Timestamp)
		})
		exchanges = append(exchanges, analyzeExchange(client, clientMessages))
	}
	sort.Slice(exchanges, func(i, j int) bool {
		return exchanges[i].Client < exchanges[j].Client
	})
	return exchanges
}

func analyzeExchange(client string, messages []Message) *Exchange {
	exchange := &Exchange{Client: client}

	seen := map[MessageType]bool{}
	for _, message := range messages {
		exchange.Messages = append(exchange.Messages, message.Type)
		seen[message.Type] = true
		if message.Address != "" && (message.Type == Ack || message.Type == Offer) {
			exchange.Address = message.Address
		}
	}

	exchange.Complete = seen[Request] && seen[Ack]

	switch {
	case seen[Nak]:
		exchange.Issues = append(exchange.Issues, "server refused the requested address")
	case seen[Decline]:
		exchange.Issues = append(exchange.Issues, "client declined the offered address; possible address conflict")
	case seen[Discover] && !seen[Offer]:
		exchange.Issues = append(exchange.Issues, "no offer followed the discover; server unreachable or pool exhausted")
	case seen[Request] && !seen[Ack]:
		exchange.Issues = append(exchange.Issues, "request was never acknowledged")
	}
	return exchange
}
