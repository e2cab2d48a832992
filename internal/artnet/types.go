package artnet

import "lightrig/internal/clientmqtt"

// NodePublisher receives the Art-Net nodes seen on the network.
type NodePublisher interface {
	PublishNodes(nodes []clientmqtt.Node)
}
