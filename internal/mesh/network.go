package mesh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

// ServiceName is the mDNS service advertised by a mesh master.
const ServiceName = "_softbox-mesh._udp"

const readBufferSize = 64

// Config configures the UDP mesh network.
type Config struct {
	Port        int
	Broadcast   string // IPv4 broadcast address
	NetworkName string
}

// Network is the UDP broadcast mesh transport. It satisfies the lifecycle
// network contract: scan for a master, join or create, report connectivity, reset.
type Network struct {
	cfg   Config
	relay *Relay

	mu      sync.Mutex
	conn    *net.UDPConn
	dst     *net.UDPAddr
	server  *mdns.Server
	loopEnd chan struct{}
}

// NewNetwork creates a network that delivers received frames to relay.
func NewNetwork(cfg Config, relay *Relay) *Network {
	return &Network{cfg: cfg, relay: relay}
}

// SetNetworkName changes the network to scan for and advertise.
func (n *Network) SetNetworkName(name string) {
	n.mu.Lock()
	n.cfg.NetworkName = name
	n.mu.Unlock()
}

// Init validates the configuration.
func (n *Network) Init(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cfg.Port <= 0 || n.cfg.Port > 65535 {
		return fmt.Errorf("invalid mesh port %d", n.cfg.Port)
	}
	if net.ParseIP(n.cfg.Broadcast).To4() == nil {
		return fmt.Errorf("invalid mesh broadcast address %q", n.cfg.Broadcast)
	}
	return nil
}

// Scan looks for a master advertising the configured network name.
func (n *Network) Scan(ctx context.Context, timeout time.Duration) (bool, error) {
	n.mu.Lock()
	name := n.cfg.NetworkName
	n.mu.Unlock()

	entriesCh := make(chan *mdns.ServiceEntry, 10)
	found := make(chan bool, 1)

	go func() {
		match := false
		for entry := range entriesCh {
			if entryMatches(entry, name) {
				log.Info().
					Str("host", entry.Host).
					Int("port", entry.Port).
					Msg("Found mesh master")
				match = true
			}
		}
		found <- match
	}()

	params := mdns.DefaultParams(ServiceName)
	params.Entries = entriesCh
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entriesCh)
	match := <-found

	if err != nil {
		return match, fmt.Errorf("mDNS query failed: %w", err)
	}
	return match, ctx.Err()
}

func entryMatches(entry *mdns.ServiceEntry, network string) bool {
	if !strings.Contains(entry.Name, ServiceName) {
		return false
	}
	for _, txt := range entry.InfoFields {
		if v, ok := strings.CutPrefix(txt, "network="); ok && v == network {
			return true
		}
	}
	return false
}

// Join opens the mesh socket as a client.
func (n *Network) Join(ctx context.Context) error {
	if err := n.open(); err != nil {
		return err
	}
	n.relay.Attach(n, false)
	return nil
}

// Create opens the mesh socket and advertises this node as the master.
func (n *Network) Create(ctx context.Context) error {
	if err := n.open(); err != nil {
		return err
	}

	n.mu.Lock()
	host, _ := os.Hostname()
	if host == "" {
		host = "softbox"
	}
	service, err := mdns.NewMDNSService(host, ServiceName, "", "", n.cfg.Port, nil,
		[]string{"network=" + n.cfg.NetworkName})
	if err == nil {
		n.server, err = mdns.NewServer(&mdns.Config{Zone: service})
	}
	n.mu.Unlock()

	if err != nil {
		n.Reset()
		return fmt.Errorf("failed to advertise mesh: %w", err)
	}

	n.relay.Attach(n, true)
	return nil
}

func (n *Network) open() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		return nil
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: n.cfg.Port})
	if err != nil {
		return fmt.Errorf("failed to open mesh socket: %w", err)
	}
	n.conn = conn
	n.dst = &net.UDPAddr{IP: net.ParseIP(n.cfg.Broadcast), Port: n.cfg.Port}
	n.loopEnd = make(chan struct{})

	go n.readLoop(conn, n.loopEnd)
	log.Info().Int("port", n.cfg.Port).Str("broadcast", n.cfg.Broadcast).Msg("Mesh socket open")
	return nil
}

func (n *Network) readLoop(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readBufferSize)
	for {
		size, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("Mesh receive failed")
			}
			return
		}
		log.Trace().Int("len", size).Str("from", from.String()).Msg("Mesh frame received")
		frame := make([]byte, size)
		copy(frame, buf[:size])
		n.relay.HandleFrame(frame)
	}
}

// Send broadcasts a frame to every peer.
func (n *Network) Send(frame []byte) error {
	n.mu.Lock()
	conn, dst := n.conn, n.dst
	n.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.WriteToUDP(frame, dst); err != nil {
		return fmt.Errorf("mesh send failed: %w", err)
	}
	return nil
}

// Connected reports whether the socket is open and its receive loop alive.
func (n *Network) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		return false
	}
	select {
	case <-n.loopEnd:
		return false
	default:
		return true
	}
}

// Reset closes the socket and stops advertising.
func (n *Network) Reset() error {
	n.relay.Detach()

	n.mu.Lock()
	conn, server, done := n.conn, n.server, n.loopEnd
	n.conn, n.server, n.loopEnd = nil, nil, nil
	n.mu.Unlock()

	var errs []error
	if server != nil {
		if err := server.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("mdns shutdown: %w", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("socket close: %w", err))
		}
		<-done
	}
	return errors.Join(errs...)
}
