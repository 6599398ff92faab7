// Package ntpcheck analyzes NTP servers over the wire: it speaks NTPv4
// client mode directly over UDP, computes clock offset and round-trip
// delay from the four-timestamp exchange and summarizes server health.
package ntpcheck

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"

	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// Length of an NTP packet without extensions.
const packetLength = 48

// Seconds between the NTP epoch (1900-01-01) and the Unix epoch.
const ntpEpochOffset = 2208988800

// Protocol constants for the first packet octet.
const (
	versionNumber = 4
	modeClient    = 3
	modeServer    = 4
)

// A decoded NTP packet.
type Packet struct {
	LeapIndicator  uint8
	Version        uint8
	Mode           uint8
	Stratum        uint8
	Poll           int8
	Precision      int8
	RootDelay      time.Duration
	RootDispersion time.Duration
	ReferenceID    string
	ReferenceTime  time.Time
	OriginTime     time.Time
	ReceiveTime    time.Time
	TransmitTime   time.Time
}

// Builds a client request with the transmit timestamp set to now.
func encodeRequest(now time.Time) []byte {
	packet := make([]byte, packetLength)
	packet[0] = versionNumber<<3 | modeClient
	putTimestamp(packet[40:48], now)
	return packet
}

// Decodes a server response.
func decodePacket(raw []byte) (*Packet, error) {
	if len(raw) < packetLength {
		return nil, errors.Errorf("NTP packet too short: %d bytes", len(raw))
	}

	packet := &Packet{
		LeapIndicator:  raw[0] >> 6,
		Version:        raw[0] >> 3 & 0x7,
		Mode:           raw[0] & 0x7,
		Stratum:        raw[1],
		Poll:           int8(raw[2]),
		Precision:      int8(raw[3]),
		RootDelay:      fixedPointDuration(raw[4:8]),
		RootDispersion: fixedPointDuration(raw[8:12]),
		ReferenceID:    referenceID(raw[1], raw[12:16]),
		ReferenceTime:  timestamp(raw[16:24]),
		OriginTime:     timestamp(raw[24:32]),
		ReceiveTime:    timestamp(raw[32:40]),
		TransmitTime:   timestamp(raw[40:48]),
	}
	return packet, nil
}

// Writes a time as the 64-bit NTP timestamp: 32-bit seconds since the
// NTP epoch and a 32-bit fraction of a second.
func putTimestamp(destination []byte, moment time.Time) {
	seconds := uint64(moment.Unix()) + ntpEpochOffset
	fraction := uint64(moment.Nanosecond()) << 32 / uint64(time.Second)
	binary.BigEndian.PutUint32(destination[0:4], uint32(seconds))
	binary.BigEndian.PutUint32(destination[4:8], uint32(fraction))
}

// Reads the 64-bit NTP timestamp. The zero timestamp decodes as the zero
// time.
func timestamp(raw []byte) time.Time {
	seconds := binary.BigEndian.Uint32(raw[0:4])
	fraction := binary.BigEndian.Uint32(raw[4:8])
	if seconds == 0 && fraction == 0 {
		return time.Time{}
	}
	nanoseconds := uint64(fraction) * uint64(time.Second) >> 32
	return time.Unix(int64(seconds)-ntpEpochOffset, int64(nanoseconds)).UTC()
}

// Reads the 16.16 signed fixed-point values used by root delay and root
// dispersion.
func fixedPointDuration(raw []byte) time.Duration {
	value := int32(binary.BigEndian.Uint32(raw))
	return time.Duration(value) * time.Second >> 16
}

// Renders the reference identifier: a four-character code for stratum 0
// and 1 servers, an IPv4 address otherwise. Codes with no printable
// characters are rendered as hex.
func referenceID(stratum uint8, raw []byte) string {
	if stratum <= 1 {
		printable := make([]byte, 0, 4)
		for _, b := range raw {
			if b >= ' ' && b <= '~' {
				printable = append(printable, b)
			}
		}
		if len(printable) > 0 {
			return string(printable)
		}
		return netlabutil.BytesToHex(raw)
	}
	return fmt.Sprintf("%d.%d.%d.%d", raw[0], raw[1], raw[2], raw[3])
}

// Describes the stratum level of a server.
func StratumDescription(stratum uint8) string {
	switch {
	case stratum == 0:
		return "unspecified or kiss-o'-death"
	case stratum == 1:
		return "primary reference (e.g. GPS, atomic clock)"
	case stratum <= 15:
		return fmt.Sprintf("secondary reference (%d hops from primary)", stratum-1)
	default:
		return "unsynchronized"
	}
}

// Describes the leap indicator bits.
func LeapDescription(leap uint8) string {
	switch leap {
	case 0:
		return "no warning"
	case 1:
		return "last minute of the day has 61 seconds"
	case 2:
		return "last minute of the day has 59 seconds"
	default:
		return "clock unsynchronized"
	}
}
