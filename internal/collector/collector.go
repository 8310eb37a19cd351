// Package collector derives a feature record from an inbound HTTP request.
//
// Only the source address, source port and elapsed handling time come from
// the request. The remaining traffic fields are fixed placeholders: the
// server has no packet-level view of the connection, so they are reported as
// constants rather than measured.
package collector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/TrafficSentry/internal/features"
)

// Placeholder values for fields that are not measured.
const (
	PlaceholderDestinationPort = 80
	PlaceholderProtocol        = 6 // TCP
	PlaceholderBytesSent       = 1024
	PlaceholderBytesReceived   = 2048
	PlaceholderPacketsSent     = 100
	PlaceholderPacketsReceived = 150
)

// ErrBadRemoteAddr is returned when the request's remote address cannot be
// split into an IP and a numeric port.
var ErrBadRemoteAddr = errors.New("unparseable remote address")

// Observation is everything collected for one request.
type Observation struct {
	SourceIP        string        `json:"source_ip"`
	SourcePort      int           `json:"source_port"`
	DestinationHost string        `json:"destination_host"`
	DestinationPort int           `json:"destination_port"`
	Protocol        int           `json:"protocol"`
	BytesSent       int           `json:"bytes_sent"`
	BytesReceived   int           `json:"bytes_received"`
	PacketsSent     int           `json:"packets_sent"`
	PacketsReceived int           `json:"packets_received"`
	Duration        time.Duration `json:"duration"`

	// Record holds the raw features in tensor order.
	Record features.Record `json:"record"`
}

// Collector builds observations. The zero value is not usable; call New.
type Collector struct {
	now func() time.Time
}

// New returns a Collector using the wall clock.
func New() *Collector {
	return &Collector{now: time.Now}
}

// Collect reads remote address, remote port and host from r. start is the
// timestamp recorded when the request entered the server; Duration is the
// wall-clock time between start and record construction, so it measures
// internal processing time rather than the network exchange.
func (c *Collector) Collect(r *http.Request, start time.Time) (*Observation, error) {
	return c.FromAddr(r.RemoteAddr, r.Host, start)
}

// FromAddr builds an observation from a "host:port" remote address and a
// destination host.
func (c *Collector) FromAddr(remoteAddr, host string, start time.Time) (*Observation, error) {
	ipStr, portStr, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadRemoteAddr, remoteAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w %q: bad port", ErrBadRemoteAddr, remoteAddr)
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, fmt.Errorf("%w %q: bad ip", ErrBadRemoteAddr, remoteAddr)
	}

	elapsed := c.now().Sub(start)
	if start.IsZero() || elapsed < 0 {
		elapsed = 0
	}

	obs := &Observation{
		SourceIP:        ipStr,
		SourcePort:      port,
		DestinationHost: host,
		DestinationPort: PlaceholderDestinationPort,
		Protocol:        PlaceholderProtocol,
		BytesSent:       PlaceholderBytesSent,
		BytesReceived:   PlaceholderBytesReceived,
		PacketsSent:     PlaceholderPacketsSent,
		PacketsReceived: PlaceholderPacketsReceived,
		Duration:        elapsed,
	}
	obs.Record = features.Record{
		{Name: features.SourceIP, Value: float64(EncodeIP(ip))},
		{Name: features.SourcePort, Value: float64(port)},
		{Name: features.DestinationPort, Value: float64(obs.DestinationPort)},
		{Name: features.Protocol, Value: float64(obs.Protocol)},
		{Name: features.BytesSent, Value: float64(obs.BytesSent)},
		{Name: features.BytesReceived, Value: float64(obs.BytesReceived)},
		{Name: features.PacketsSent, Value: float64(obs.PacketsSent)},
		{Name: features.PacketsReceived, Value: float64(obs.PacketsReceived)},
		{Name: features.Duration, Value: elapsed.Seconds()},
	}
	return obs, nil
}

// EncodeIP turns an address into the integer feature the classifier was
// trained on: the dotted IPv4 form with the dots removed, read as a decimal
// number (127.0.0.1 → 127001). IPv6 addresses use their IPv4-mapped form
// when they have one, otherwise their low 32 bits.
func EncodeIP(ip net.IP) int64 {
	v4 := ip.To4()
	if v4 == nil {
		v16 := ip.To16()
		v4 = make(net.IP, 4)
		binary.BigEndian.PutUint32(v4, binary.BigEndian.Uint32(v16[12:]))
	}
	n, _ := strconv.ParseInt(strings.ReplaceAll(v4.String(), ".", ""), 10, 64)
	return n
}
