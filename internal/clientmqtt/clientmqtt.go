package clientmqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lightrig/internal/catalog"
	"lightrig/internal/logger"
	"lightrig/internal/state"
)

var (
	errUnknownTopic = errors.New("mqtt: unknown topic")
	errNotStarted   = errors.New("mqtt: client not started")
)

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	log       *logger.Log
	cfgClient MQTTConf
	topics    topics

	// mu guards the fields set by Start; publishers may run before it.
	mu     sync.RWMutex
	ctx    context.Context
	client mqtt.Client
	cmds   Commands
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient MQTTConf) *ClientMQTT {
	return &ClientMQTT{
		log:       log.Module("mqtt"),
		cfgClient: cfgClient,
		topics:    newTopics(cfgClient.Prefix),
	}
}

// Start connects to the broker. Remote commands are routed to cmds.
func (c *ClientMQTT) Start(ctx context.Context, cmds Commands) error {
	if c.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetWill(c.topics.status, statusOffline, c.cfgClient.Qos, true).
		SetOrderMatters(false).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	client := mqtt.NewClient(opts)
	c.mu.Lock()
	c.ctx, c.cmds, c.client = ctx, cmds, client
	c.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-ctx.Done():
		return errors.New("context canceled")
	}

	c.log.Infof("Status: %v", client.IsConnected())
	return nil
}

// conn returns the client and its context once Start has run.
func (c *ClientMQTT) conn() (mqtt.Client, context.Context) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client, c.ctx
}

// Stop publishes the offline status and disconnects.
func (c *ClientMQTT) Stop() error {
	client, _ := c.conn()
	if client != nil && client.IsConnected() {
		client.Publish(c.topics.status, c.cfgClient.Qos, true, statusOffline).WaitTimeout(500 * time.Millisecond)
		client.Disconnect(500)
	}
	return nil
}

// connectHandler runs on every (re)connect: subscriptions do not survive a
// clean session.
func (c *ClientMQTT) connectHandler(client mqtt.Client) {
	c.log.Info("client connected to server")
	c.publish(c.topics.status, true, []byte(statusOnline))
	c.sub(client, c.topics.fixtureSet)
	c.sub(client, c.topics.sceneLoad)
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.Errorf("server connect lost: %v", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.Debugf("received message: %s from topic: %s", msg.Payload(), msg.Topic())
	if err := c.handle(msg.Topic(), msg.Payload()); err != nil {
		c.log.Warnf("topic %s: %v", msg.Topic(), err)
	}
}

// handle routes one message to the show.
func (c *ClientMQTT) handle(topic string, payload []byte) error {
	c.mu.RLock()
	cmds := c.cmds
	c.mu.RUnlock()
	if cmds == nil {
		return fmt.Errorf("%w: %s", errNotStarted, topic)
	}
	if name, ok := c.topics.fixture(topic); ok {
		var v catalog.Values
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("message could not be parsed: %w", err)
		}
		return cmds.SetFixture(name, v)
	}
	if topic == c.topics.sceneLoad {
		return cmds.LoadScene(sceneName(payload))
	}
	return fmt.Errorf("%w: %s", errUnknownTopic, topic)
}

// sceneName accepts a bare name or {"name": "..."}.
func sceneName(payload []byte) string {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var req struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(payload, &req) == nil {
			return req.Name
		}
	}
	return string(payload)
}

func (c *ClientMQTT) sub(client mqtt.Client, topic string) {
	_, ctx := c.conn()
	token := client.Subscribe(topic, c.cfgClient.Qos, nil)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("topic %s subscription error. %v", topic, token.Error())
				return
			}
		}
		c.log.Debugf("topic %s subscribed", topic)
	}()
}

func (c *ClientMQTT) publish(topic string, retained bool, payload []byte) {
	client, ctx := c.conn()
	if client == nil || !client.IsConnected() {
		return
	}
	token := client.Publish(topic, c.cfgClient.Qos, retained, payload)
	go func() {
		select {
		case <-ctx.Done():
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("error publish topic %s. %v", topic, token.Error())
			}
		}
	}()
}

// PublishState publishes the retained state document.
func (c *ClientMQTT) PublishState(st state.State) {
	msg, err := json.Marshal(st)
	if err != nil {
		c.log.Errorf("public state. msg: %v", err)
		return
	}
	c.publish(c.topics.state, true, msg)
}

// PublishNodes publishes the Art-Net nodes currently seen.
func (c *ClientMQTT) PublishNodes(nodes []Node) {
	msg, err := json.Marshal(nodes)
	if err != nil {
		c.log.Errorf("public nodes. msg: %v", err)
		return
	}
	c.publish(c.topics.nodes, true, msg)
}
