package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kestrel-ops/kestrel/core/model"
	coremqtt "github.com/kestrel-ops/kestrel/core/mqtt"
	"github.com/kestrel-ops/kestrel/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker         string          `json:"broker"`
	ClientID       string          `json:"client_id"`
	Username       string          `json:"username"`
	Password       string          `json:"password"`
	AlertTopic     string          `json:"alert_topic"`
	TelemetryTopic string          `json:"telemetry_topic"`
	AckTopic       string          `json:"ack_topic"`
	UseTLS         bool            `json:"use_tls"`
	ClientCert     string          `json:"client_cert"`
	ClientKey      string          `json:"client_key"`
	CABundle       string          `json:"ca_bundle"`
	AuthMethod     string          `json:"auth_method"`
	QoS            map[string]byte `json:"qos"`
	LWTTopic       string          `json:"lwt_topic"`
	LWTPayload     string          `json:"lwt_payload"`
	LWTQoS         byte            `json:"lwt_qos"`
	LWTRetain      bool            `json:"lwt_retain"`
	MaxRetries     int             `json:"max_retries"`
	BackoffMS      int             `json:"backoff_ms"`
	TLSConfig      *tls.Config     `json:"-"`
}

// SetDefaults fills in the standard topic layout.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "kestrel-engine"
	}
	if c.AlertTopic == "" {
		c.AlertTopic = "kestrel/alerts"
	}
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = "kestrel/telemetry/+"
	}
	if c.AckTopic == "" {
		c.AckTopic = "kestrel/acks"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements the CommandPublisher interface using Eclipse Paho and
// feeds inbound alerts and telemetry to the registered handlers.
type PahoClient struct {
	cli            pahoClient
	alertTopic     string
	telemetryTopic string
	ackTopic       string
	qos            map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	onAlert    coremqtt.AlertHandler
	onTelem    coremqtt.TelemetryHandler
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the alert,
// telemetry and ack topics. The handlers may be nil, in which case the
// corresponding messages are dropped.
func NewPahoClient(cfg Config, onAlert coremqtt.AlertHandler, onTelem coremqtt.TelemetryHandler) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		alertTopic:     cfg.AlertTopic,
		telemetryTopic: cfg.TelemetryTopic,
		ackTopic:       cfg.AckTopic,
		ackChans:       make(map[string]chan struct{}),
		onAlert:        onAlert,
		onTelem:        onTelem,
		logger:         log,
		qos:            cfg.QoS,
		maxRetries:     cfg.MaxRetries,
		backoff:        time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		subs := []struct {
			topic string
			key   string
			cb    paho.MessageHandler
		}{
			{pc.alertTopic, "alert", pc.handleAlert},
			{pc.telemetryTopic, "telemetry", pc.handleTelemetry},
			{pc.ackTopic, "ack", pc.handleAck},
		}
		for _, s := range subs {
			qos := byte(0)
			if q, ok := pc.qos[s.key]; ok {
				qos = q
			}
			if token := c.Subscribe(s.topic, qos, s.cb); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe %s error: %v", s.topic, token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) handleAlert(_ paho.Client, msg paho.Message) {
	var a model.Alert
	if err := json.Unmarshal(msg.Payload(), &a); err != nil {
		p.logger.Errorf("failed to decode alert: %v", err)
		return
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.Status = model.AlertPending
	if err := a.Validate(); err != nil {
		p.logger.Errorf("rejected alert %s: %v", a.ID, err)
		return
	}
	if p.onAlert != nil {
		p.onAlert(a)
	}
}

func (p *PahoClient) handleTelemetry(_ paho.Client, msg paho.Message) {
	var t model.Telemetry
	if err := json.Unmarshal(msg.Payload(), &t); err != nil {
		p.logger.Errorf("failed to decode telemetry: %v", err)
		return
	}
	if p.onTelem != nil {
		p.onTelem(t)
	}
}

func (p *PahoClient) handleAck(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.CommandID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Infof("received ack %s", m.CommandID)
	}
	p.mu.Unlock()
}

// SendCommand publishes the mission command on the unit specific topic and
// returns the command identifier used for acknowledgment tracking.
func (p *PahoClient) SendCommand(cmd model.MissionCommand) (string, error) {
	cmdID := uuid.NewString()
	envelope := struct {
		CommandID string `json:"command_id"`
		model.MissionCommand
	}{CommandID: cmdID, MissionCommand: cmd}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}

	topic := fmt.Sprintf("kestrel/units/%s/command", cmd.UnitID)
	qos := byte(0)
	if q, ok := p.qos["command"]; ok {
		qos = q
	}

	// Register before publishing so an ack racing the publish is not lost.
	// WaitForAck removes the entry whether the ack arrives or times out.
	p.mu.Lock()
	p.ackChans[cmdID] = make(chan struct{}, 1)
	p.mu.Unlock()

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent command %s to %s", cmdID, topic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	if publishErr != nil {
		p.mu.Lock()
		delete(p.ackChans, cmdID)
		p.mu.Unlock()
		return "", publishErr
	}
	return cmdID, nil
}

// WaitForAck blocks until an ACK for the given command ID is received or timeout.
func (p *PahoClient) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[commandID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown command")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		p.mu.Lock()
		delete(p.ackChans, commandID)
		p.mu.Unlock()
		return true, nil
	case <-timer.C:
		p.mu.Lock()
		delete(p.ackChans, commandID)
		p.mu.Unlock()
		return false, coremqtt.ErrAckTimeout
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
