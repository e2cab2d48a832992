package artnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Haba1234/go-artnet"

	"lightrig/internal/clientmqtt"
	"lightrig/internal/config"
	"lightrig/internal/dmx"
	"lightrig/internal/logger"
)

const nodeScanInterval = 30 * time.Second

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP). Frames are
// coalesced into one slot; the sender goroutine always sends the latest.
type ArtNet struct {
	log      *logger.Log
	nodes    NodePublisher
	sender   *artnet.Controller
	universe uint16
	refresh  time.Duration

	mu          sync.Mutex
	latest      dmx.Frame
	have        bool
	sendTrigger chan struct{}

	ctx context.Context
	wg  sync.WaitGroup
}

// NewController returns an art-net controller bound to the interface inside
// cfg.Network. nodes may be nil.
func NewController(log logger.Logger, cfg config.DMXConf, nodes NodePublisher) (*ArtNet, error) {
	l := log.Module("art-net")
	ip, err := FindArtNetIP(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}

	host = strings.ToLower(strings.Split(host, ".")[0])
	l.Infof("Using ArtNet IP %s and hostname %s", ip.String(), host)

	senderLogger := artnet.NewDefaultLogger("info")
	fps := cfg.MaxFPS
	if fps <= 0 {
		fps = 40
	}

	return &ArtNet{
		log:         l,
		nodes:       nodes,
		sender:      artnet.NewController(host, ip, senderLogger, artnet.MaxFPS(fps)),
		universe:    cfg.Universe,
		refresh:     cfg.Refresh.Duration,
		sendTrigger: make(chan struct{}, 1),
	}, nil
}

// Start the ArtNet.
func (c *ArtNet) Start(ctx context.Context) error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}

	c.ctx = ctx
	c.wg.Add(2)
	go c.sendBackground()
	go c.debugDevices()
	return nil
}

// Stop waits for the background goroutines, which exit with the Start
// context, and stops the sender.
func (c *ArtNet) Stop() {
	c.wg.Wait()
	c.sender.Stop()
}

// FlushUniverse queues f for sending. It never blocks: a frame not yet sent
// is replaced.
func (c *ArtNet) FlushUniverse(f dmx.Frame) {
	c.mu.Lock()
	c.latest, c.have = f, true
	c.mu.Unlock()
	select {
	case c.sendTrigger <- struct{}{}:
	default:
	}
}

func (c *ArtNet) pending() (dmx.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.have
}

func (c *ArtNet) sendBackground() {
	defer c.wg.Done()
	var refresh <-chan time.Time
	if c.refresh > 0 {
		t := time.NewTicker(c.refresh)
		defer t.Stop()
		refresh = t.C
	}
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.sendTrigger:
		case <-refresh:
			// nodes drop a universe that stops arriving
		}
		frame, ok := c.pending()
		if !ok {
			continue
		}
		c.sender.SendDMXToAddress([512]byte(frame), universeToAddress(c.universe))
	}
}

// universeToAddress converts a dmx universe to art-net address
// universe: старший байт - Net, младший байт - SubUni.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

// NodeToString returns a string representation of the given Node.
func NodeToString(n *artnet.ControlledNode) (string, clientmqtt.Node) {
	var inputs, outputs, outStr []string
	for _, p := range n.Node.InputPorts {
		inputs = append(inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	for _, p := range n.Node.OutputPorts {
		outputs = append(outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
		outStr = append(outStr, p.Address.String())
	}

	return fmt.Sprintf(
			" | IP=%s name=%q type=%q manufacturer=%q desc=%q inputs=%q outputs=%q",
			n.UDPAddress.String(), n.Node.Name, n.Node.Type,
			n.Node.Manufacturer, n.Node.Description,
			strings.Join(inputs, "; "), strings.Join(outputs, "; "),
		), clientmqtt.Node{
			Name:    n.Node.Name,
			IP:      n.UDPAddress.IP.String(),
			Outputs: outStr,
		}
}

func ips(nodes []*artnet.ControlledNode) ([]string, []clientmqtt.Node) {
	var lines []string
	var out []clientmqtt.Node
	for _, n := range nodes {
		line, node := NodeToString(n)
		lines = append(lines, line)
		out = append(out, node)
	}
	return lines, out
}

func (c *ArtNet) debugDevices() {
	defer c.wg.Done()
	t := time.NewTicker(nodeScanInterval)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
		}
		lines, nodes := ips(c.sender.Nodes)
		c.log.Debugf("Currently %d devices are registered: %v", len(lines), lines)
		if c.nodes != nil {
			c.nodes.PublishNodes(nodes)
		}
	}
}
