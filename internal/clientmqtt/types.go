package clientmqtt

import (
	"strings"

	"lightrig/internal/catalog"
)

type MQTTConf struct {
	ClientID string // ClientID - уникальное имя клиента для брокеров.
	Schema   string // Schema - тип подключения.
	Host     string // Host - адрес MQTT сервера.
	Port     string // Port - порт MQTT сервера.
	User     string // User - логин для подключения к MQTT серверу.
	Password string // Password - пароль для подключения к MQTT серверу.
	Qos      byte   // Qos - качество обслуживания.
	Prefix   string // Prefix - topic root.
}

// Commands are the show operations reachable over MQTT.
type Commands interface {
	SetFixture(name string, v catalog.Values) error
	LoadScene(name string) error
}

// Node is an Art-Net node seen on the network, as published to the nodes topic.
type Node struct {
	Name    string   `json:"name"`
	IP      string   `json:"ip"`
	Outputs []string `json:"outputs"`
}

// Status payloads.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// topics are the topic names under one prefix.
type topics struct {
	prefix     string
	state      string
	status     string
	fixtureSet string // subscription filter
	sceneLoad  string
	nodes      string
}

func newTopics(prefix string) topics {
	prefix = strings.TrimSuffix(prefix, "/")
	return topics{
		prefix:     prefix,
		state:      prefix + "/state",
		status:     prefix + "/status",
		fixtureSet: prefix + "/fixture/+/set",
		sceneLoad:  prefix + "/scene/load",
		nodes:      prefix + "/artnet/nodes",
	}
}

// fixture returns the fixture name of a <prefix>/fixture/<name>/set topic.
func (t topics) fixture(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/fixture/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
