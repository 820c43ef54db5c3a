package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"etfservice/internal/metrics"
)

const (
	readDeadline  = 500 * time.Millisecond // per §5: all UDP reads <= 500ms
	datagramLimit = 4096
)

// SequenceTracker observes a monotonically increasing sequence number and
// flags gaps without rejecting the message that arrived. Zero means "no
// baseline yet" per spec §3 — the first observed sequence never counts as a
// gap.
type SequenceTracker struct {
	last uint32
}

// Observe reports whether seq represents a gap relative to the last
// observed sequence, then advances the cursor regardless.
func (t *SequenceTracker) Observe(seq uint32) (gap bool) {
	if t.last != 0 && seq != t.last+1 {
		gap = true
	}
	t.last = seq
	return gap
}

// MDReceiver joins the market data multicast group and dispatches decoded
// order book events to a consumer callback.
type MDReceiver struct {
	groupIP string
	port    int
	bindIP  string
	logger  *slog.Logger

	seq SequenceTracker
}

// NewMDReceiver creates a market data multicast receiver.
func NewMDReceiver(groupIP string, port int, bindIP string, logger *slog.Logger) *MDReceiver {
	return &MDReceiver{
		groupIP: groupIP,
		port:    port,
		bindIP:  bindIP,
		logger:  logger.With("component", "md-receiver"),
	}
}

// Run joins the multicast group and processes datagrams until ctx is
// cancelled, handing each decoded event to onEvent. Blocks until cancelled
// or the socket cannot be opened.
func (r *MDReceiver) Run(ctx context.Context, onEvent func(MDEvent)) error {
	conn, err := joinMulticast(r.groupIP, r.port, r.bindIP)
	if err != nil {
		return fmt.Errorf("md receiver: %w", err)
	}
	defer conn.Close()

	r.logger.Info("listening", "group", r.groupIP, "port", r.port)

	buf := make([]byte, datagramLimit)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("read error", "error", err)
			continue
		}

		evt, ok := DecodeMD(buf[:n])
		if !ok {
			metrics.FramesDropped.WithLabelValues("md").Inc()
			continue // malformed frame: silently dropped per §7
		}

		if gap := r.seq.Observe(evt.SeqNum); gap {
			metrics.SequenceGaps.WithLabelValues("md").Inc()
			r.logger.Warn("sequence gap", "feed", "md", "seq", evt.SeqNum)
		}

		if evt.Kind != EventNone {
			onEvent(evt)
		}
	}
}

// CLReceiver joins the clearing multicast group and dispatches decoded fill
// events to a consumer callback.
type CLReceiver struct {
	groupIP string
	port    int
	bindIP  string
	logger  *slog.Logger

	seq SequenceTracker
}

// NewCLReceiver creates a clearing multicast receiver.
func NewCLReceiver(groupIP string, port int, bindIP string, logger *slog.Logger) *CLReceiver {
	return &CLReceiver{
		groupIP: groupIP,
		port:    port,
		bindIP:  bindIP,
		logger:  logger.With("component", "clearing-receiver"),
	}
}

// Run joins the multicast group and processes datagrams until ctx is
// cancelled, handing each decoded fill to onEvent.
func (r *CLReceiver) Run(ctx context.Context, onEvent func(CLEvent)) error {
	conn, err := joinMulticast(r.groupIP, r.port, r.bindIP)
	if err != nil {
		return fmt.Errorf("clearing receiver: %w", err)
	}
	defer conn.Close()

	r.logger.Info("listening", "group", r.groupIP, "port", r.port)

	buf := make([]byte, datagramLimit)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("read error", "error", err)
			continue
		}

		evt, ok := DecodeCL(buf[:n])
		if !ok {
			metrics.FramesDropped.WithLabelValues("clearing").Inc()
			continue
		}

		if gap := r.seq.Observe(evt.SeqNum); gap {
			metrics.SequenceGaps.WithLabelValues("clearing").Inc()
			r.logger.Warn("sequence gap", "feed", "clearing", "seq", evt.SeqNum)
		}

		if evt.Kind != EventNone {
			onEvent(evt)
		}
	}
}

// joinMulticast opens a UDP socket bound to groupIP:port and joins the
// multicast group on the interface that owns bindIP, with SO_REUSEADDR so
// multiple processes (or restarts) can share the port.
func joinMulticast(groupIP string, port int, bindIP string) (*net.UDPConn, error) {
	group := net.ParseIP(groupIP)
	if group == nil {
		return nil, fmt.Errorf("invalid multicast address %q", groupIP)
	}

	iface, err := interfaceForIP(bindIP)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenMulticastUDP("udp4", iface, &net.UDPAddr{IP: group, Port: port})
	if err != nil {
		return nil, err
	}
	conn.SetReadBuffer(1 << 20)
	return conn, nil
}

// interfaceForIP finds the network interface that owns bindIP. A nil
// *net.Interface tells ListenMulticastUDP to use the system default, which
// is the correct fallback when bindIP is a loopback/any address used purely
// for local testing.
func interfaceForIP(bindIP string) (*net.Interface, error) {
	want := net.ParseIP(bindIP)
	if want == nil {
		return nil, fmt.Errorf("invalid bind address %q", bindIP)
	}
	if want.IsLoopback() {
		return nil, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if ok && ipNet.IP.Equal(want) {
				return &iface, nil
			}
		}
	}
	return nil, nil
}
