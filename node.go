package tuuid

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// NodeIdentifier is the 48-bit node field of v1 and v6 UUIDs.
type NodeIdentifier uint64

const (
	// MulticastBit marks a node identifier that is not a burned-in MAC
	// address (RFC 4122 §4.1.6). It is the least significant bit of the
	// first octet.
	MulticastBit NodeIdentifier = 1 << 40

	nodeMask NodeIdentifier = 1<<48 - 1
)

// IsMulticast reports whether the multicast bit is set.
func (n NodeIdentifier) IsMulticast() bool { return n&MulticastBit != 0 }

// Bytes returns the six octets in network order.
func (n NodeIdentifier) Bytes() [6]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n&nodeMask))
	var out [6]byte
	copy(out[:], b[2:])
	return out
}

// String formats the node like a MAC address.
func (n NodeIdentifier) String() string {
	b := n.Bytes()
	return net.HardwareAddr(b[:]).String()
}

// NodeIdentifierFromBytes reads the first six octets of b.
func NodeIdentifierFromBytes(b []byte) NodeIdentifier {
	var buf [8]byte
	copy(buf[2:], b)
	return NodeIdentifier(binary.BigEndian.Uint64(buf[:]))
}

// ParseNodeIdentifier parses an externally configured node identifier:
// 0x-prefixed hex, plain decimal, or a MAC address with ':' or '-'.
func ParseNodeIdentifier(s string) (NodeIdentifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value: %w", ErrInvalidNodeIdentifier)
	}

	var v uint64
	var err error
	switch {
	case strings.ContainsAny(s, ":-"):
		var hw net.HardwareAddr
		hw, err = net.ParseMAC(s)
		if err == nil && len(hw) != 6 {
			err = fmt.Errorf("expected 6 octets, got %d", len(hw))
		}
		if err == nil {
			return NodeIdentifierFromBytes(hw), nil
		}
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 64)
	default:
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%q: %v: %w", s, err, ErrInvalidNodeIdentifier)
	}
	if NodeIdentifier(v) > nodeMask {
		return 0, fmt.Errorf("%q exceeds 48 bits: %w", s, ErrInvalidNodeIdentifier)
	}
	return NodeIdentifier(v), nil
}

// NodeOrigin records which resolution step produced a node identifier.
type NodeOrigin uint8

const (
	NodeOriginUnresolved NodeOrigin = iota
	NodeOriginFixed
	NodeOriginHardware
	NodeOriginHash
	NodeOriginRandom
)

func (o NodeOrigin) String() string {
	switch o {
	case NodeOriginFixed:
		return "fixed"
	case NodeOriginHardware:
		return "hardware"
	case NodeOriginHash:
		return "hash"
	case NodeOriginRandom:
		return "random"
	default:
		return "unresolved"
	}
}

type nodeKind uint8

const (
	nodeHardware nodeKind = iota
	nodeHash
	nodeFixed
	nodeRandom
)

// NodeSource selects where node resolution starts. Each source falls through
// to the following ones: hardware, then hash, then random.
type NodeSource struct {
	kind  nodeKind
	fixed NodeIdentifier
}

// HardwareNode starts from the first usable network interface MAC address.
func HardwareNode() NodeSource { return NodeSource{kind: nodeHardware} }

// HashNode starts from a digest of machine-identifying data.
func HashNode() NodeSource { return NodeSource{kind: nodeHash} }

// FixedNode always resolves to n.
func FixedNode(n NodeIdentifier) NodeSource { return NodeSource{kind: nodeFixed, fixed: n & nodeMask} }

// RandomNode resolves to a random identifier with the multicast bit set.
func RandomNode() NodeSource { return NodeSource{kind: nodeRandom} }

// ParseNodeSource accepts hardware, hash and random.
func ParseNodeSource(s string) (NodeSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hardware", "mac":
		return HardwareNode(), nil
	case "hash":
		return HashNode(), nil
	case "random":
		return RandomNode(), nil
	default:
		return NodeSource{}, fmt.Errorf("tuuid: unknown node source %q", s)
	}
}

// NodeIdentifierProvider resolves a node identifier once and caches it.
type NodeIdentifierProvider struct {
	source     NodeSource
	randReader io.Reader
	logger     zerolog.Logger

	// replaceable in tests
	interfaces func() ([]net.Interface, error)
	hostname   func() (string, error)

	once   sync.Once
	value  NodeIdentifier
	origin NodeOrigin
}

// NewNodeIdentifierProvider creates a provider; nothing is resolved until
// the first call to Resolve.
func NewNodeIdentifierProvider(source NodeSource, r io.Reader, logger zerolog.Logger) *NodeIdentifierProvider {
	if r == nil {
		r = rand.Reader
	}
	return &NodeIdentifierProvider{
		source:     source,
		randReader: r,
		logger:     logger,
		interfaces: net.Interfaces,
		hostname:   os.Hostname,
	}
}

// Resolve returns the cached node identifier, resolving it on first use.
func (p *NodeIdentifierProvider) Resolve() NodeIdentifier {
	p.once.Do(p.resolve)
	return p.value
}

// Origin reports which step produced the resolved identifier.
func (p *NodeIdentifierProvider) Origin() NodeOrigin {
	p.once.Do(p.resolve)
	return p.origin
}

func (p *NodeIdentifierProvider) resolve() {
	kind := p.source.kind
	if kind == nodeFixed {
		p.value, p.origin = p.source.fixed, NodeOriginFixed
		p.logger.Debug().Str("node", p.value.String()).Msg("using fixed node identifier")
		return
	}

	var ifaces []net.Interface
	if kind == nodeHardware || kind == nodeHash {
		var err error
		ifaces, err = p.interfaces()
		if err != nil {
			p.logger.Warn().Err(err).Msg("listing network interfaces failed")
		}
	}

	if kind == nodeHardware {
		if n, ok := hardwareNode(ifaces); ok {
			p.value, p.origin = n, NodeOriginHardware
			p.logger.Info().Str("node", n.String()).Msg("node identifier resolved from hardware address")
			return
		}
		p.logger.Warn().Msg("no usable hardware address, falling back to machine hash")
	}

	if kind == nodeHardware || kind == nodeHash {
		if n, ok := p.hashNode(ifaces); ok {
			p.value, p.origin = n, NodeOriginHash
			p.logger.Info().Str("node", n.String()).Msg("node identifier resolved from machine hash")
			return
		}
		p.logger.Warn().Msg("no machine-identifying data, falling back to random node identifier")
	}

	p.value, p.origin = randomNode(p.randReader), NodeOriginRandom
	p.logger.Info().Str("node", p.value.String()).Msg("node identifier resolved from random source")
}

var virtualInterfacePrefixes = []string{
	"docker", "veth", "br-", "virbr", "vmnet", "vboxnet", "tun", "tap", "utun", "cni", "flannel", "cali", "weave", "zt",
}

func isVirtualInterface(iface net.Interface) bool {
	name := strings.ToLower(iface.Name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// hardwareNode picks the first non-loopback, non-virtual interface with a
// globally administered unicast 6-byte address.
func hardwareNode(ifaces []net.Interface) (NodeIdentifier, bool) {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || isVirtualInterface(iface) {
			continue
		}
		hw := iface.HardwareAddr
		if len(hw) != 6 || bytes.Equal(hw, make([]byte, 6)) {
			continue
		}
		// locally administered or multicast addresses are not burned-in MACs
		if hw[0]&0x03 != 0 {
			continue
		}
		return NodeIdentifierFromBytes(hw), true
	}
	return 0, false
}

// hashNode digests hostname, platform and interface data with SHA-256.
func (p *NodeIdentifierProvider) hashNode(ifaces []net.Interface) (NodeIdentifier, bool) {
	host, err := p.hostname()
	if err != nil {
		host = ""
	}
	if host == "" && len(ifaces) == 0 {
		return 0, false
	}

	entries := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		entries = append(entries, iface.Name+"="+iface.HardwareAddr.String())
	}
	sort.Strings(entries)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s/%s\n", host, runtime.GOOS, runtime.GOARCH)
	for _, e := range entries {
		io.WriteString(h, e)
		io.WriteString(h, "\n")
	}
	sum := h.Sum(nil)
	return NodeIdentifierFromBytes(sum[:6]) | MulticastBit, true
}

func randomNode(r io.Reader) NodeIdentifier {
	var b [6]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		// crypto/rand does not fail on supported platforms; a broken custom
		// reader still gets a multicast identifier.
		binary.BigEndian.PutUint32(b[2:], uint32(os.Getpid()))
	}
	return NodeIdentifierFromBytes(b[:]) | MulticastBit
}
