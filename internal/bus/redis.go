package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// Channel names used on the wire when REDIS_URL is configured, matching the
// original publisher/consumer pairing.
const (
	ChannelTracks   = "harpy:tracks"
	ChannelAlerts   = "harpy:alerts"
	ChannelLinks    = "harpy:links"
	ChannelStatuses = "harpy:provider-status"
)

// redisBus wraps a memBus for local fanout and additionally publishes every
// message to a Redis channel, and relays messages received from that
// channel (including its own publishes) into the local rings. No Redis
// client library is present anywhere in the retrieval pack, so this speaks
// just enough RESP to PUBLISH and SUBSCRIBE — nothing else.
type redisBus struct {
	*memBus
	conn   net.Conn
	mu     sync.Mutex
	closed bool
}

// NewRedisBus dials addr (host:port) and starts a subscriber goroutine that
// relays inbound messages into the wrapped memBus. Publish failures are
// logged, never fatal — the in-process bus keeps working even if Redis is
// unreachable.
func NewRedisBus(addr string, cfg Config) (Bus, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("bus: dial redis %s: %w", addr, err)
	}

	rb := &redisBus{memBus: NewMemBus(cfg).(*memBus), conn: conn}

	subConn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus: dial redis subscriber %s: %w", addr, err)
	}
	if err := respSubscribe(subConn, ChannelTracks, ChannelAlerts, ChannelLinks, ChannelStatuses); err != nil {
		conn.Close()
		subConn.Close()
		return nil, err
	}
	go rb.relayLoop(subConn)

	return rb, nil
}

func (b *redisBus) PublishTrackBatch(t TrackBatch) {
	b.memBus.PublishTrackBatch(t)
	b.publishJSON(ChannelTracks, t)
}

func (b *redisBus) PublishAlert(a model.Alert) {
	b.memBus.PublishAlert(a)
	b.publishJSON(ChannelAlerts, a)
}

func (b *redisBus) PublishLink(l model.Link) {
	b.memBus.PublishLink(l)
	b.publishJSON(ChannelLinks, l)
}

func (b *redisBus) PublishProviderStatus(s model.ProviderStatus) {
	b.memBus.PublishProviderStatus(s)
	b.publishJSON(ChannelStatuses, s)
}

func (b *redisBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.conn.Close()
}

func (b *redisBus) publishJSON(channel string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[bus] marshal error for %s: %v", channel, err)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if err := respCommand(b.conn, "PUBLISH", channel, string(payload)); err != nil {
		log.Printf("[bus] publish to %s failed: %v", channel, err)
	}
}

// relayLoop reads PUBLISH push-messages off subConn and replays every one
// of them into the local rings. Messages this process itself published are
// not filtered out, so they reach local subscribers a second time.
func (b *redisBus) relayLoop(subConn net.Conn) {
	defer subConn.Close()
	reader := bufio.NewReader(subConn)
	for {
		channel, payload, err := respReadMessage(reader)
		if err != nil {
			log.Printf("[bus] redis subscriber closed: %v", err)
			return
		}
		switch channel {
		case ChannelTracks:
			var t TrackBatch
			if json.Unmarshal([]byte(payload), &t) == nil {
				b.memBus.PublishTrackBatch(t)
			}
		case ChannelAlerts:
			var a model.Alert
			if json.Unmarshal([]byte(payload), &a) == nil {
				b.memBus.PublishAlert(a)
			}
		case ChannelLinks:
			var l model.Link
			if json.Unmarshal([]byte(payload), &l) == nil {
				b.memBus.PublishLink(l)
			}
		case ChannelStatuses:
			var s model.ProviderStatus
			if json.Unmarshal([]byte(payload), &s) == nil {
				b.memBus.PublishProviderStatus(s)
			}
		}
	}
}

// --- minimal RESP (REdis Serialization Protocol) framing ---

func respCommand(conn net.Conn, args ...string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(&sb, "$%d\r\n%s\r\n", len(a), a)
	}
	_, err := conn.Write([]byte(sb.String()))
	return err
}

func respSubscribe(conn net.Conn, channels ...string) error {
	args := append([]string{"SUBSCRIBE"}, channels...)
	return respCommand(conn, args...)
}

// respReadMessage reads RESP arrays until it finds a "message" push frame
// and returns (channel, payload). It discards the SUBSCRIBE acks that
// precede the first real message.
func respReadMessage(r *bufio.Reader) (string, string, error) {
	for {
		parts, err := respReadArray(r)
		if err != nil {
			return "", "", err
		}
		if len(parts) == 3 && parts[0] == "message" {
			return parts[1], parts[2], nil
		}
	}
}

func respReadArray(r *bufio.Reader) ([]string, error) {
	line, err := respReadLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 || line[0] != '*' {
		return nil, fmt.Errorf("bus: expected array, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, fmt.Errorf("bus: malformed array header %q: %w", line, err)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		bulk, err := respReadBulkString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, bulk)
	}
	return out, nil
}

func respReadBulkString(r *bufio.Reader) (string, error) {
	line, err := respReadLine(r)
	if err != nil {
		return "", err
	}
	if len(line) == 0 || line[0] != '$' {
		return "", fmt.Errorf("bus: expected bulk string, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return "", fmt.Errorf("bus: malformed bulk header %q: %w", line, err)
	}
	if n < 0 {
		return "", nil
	}
	buf := make([]byte, n+2) // payload + trailing \r\n
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func respReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
