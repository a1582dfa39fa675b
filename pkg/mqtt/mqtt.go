package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/benmeehan/docks/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// ClientFactory builds a client from options. Tests swap it for a mock.
type ClientFactory func(opts *mqtt.ClientOptions) MQTTClient

// NewPahoClient is the default ClientFactory.
func NewPahoClient(opts *mqtt.ClientOptions) MQTTClient {
	return mqtt.NewClient(opts)
}

// Credentials authenticate a client against the broker.
type Credentials struct {
	Username      string
	Password      string
	CACertificate string // path; enables TLS when set
	// ServerName is the name the broker certificate is verified against.
	// Required with TLS, since the broker is dialed through a local forward.
	ServerName string
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations
	newClient  ClientFactory
	timeout    time.Duration
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations, newClient ClientFactory, timeout time.Duration) *MqttService {
	if newClient == nil {
		newClient = NewPahoClient
	}
	return &MqttService{
		fileClient: fileClient,
		newClient:  newClient,
		timeout:    timeout,
	}
}

// Initialize sets up the MQTT client and connects to broker, e.g.
// "tcp://127.0.0.1:56565". The connection is one-shot: no reconnects.
func (s *MqttService) Initialize(broker, clientID string, creds Credentials) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(s.timeout)
	if creds.Username != "" {
		opts.SetUsername(creds.Username)
		opts.SetPassword(creds.Password)
	}

	if creds.CACertificate != "" {
		caCert, err := s.fileClient.ReadFileRaw(creds.CACertificate)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return fmt.Errorf("failed to append CA certificate")
		}
		if creds.ServerName == "" {
			return fmt.Errorf("failed to configure TLS for %s: no server name to verify", broker)
		}
		opts.SetTLSConfig(&tls.Config{
			RootCAs:    caCertPool,
			ServerName: creds.ServerName,
			MinVersion: tls.VersionTLS12,
		})
	}

	s.client = s.newClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("failed to connect to %s: timed out after %s", broker, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", broker, err)
	}
	return nil
}

// Publish sends payload to topic and waits for the broker to acknowledge it.
func (s *MqttService) Publish(topic string, qos byte, payload []byte) error {
	if s.client == nil {
		return fmt.Errorf("failed to publish to %s: client not initialized", topic)
	}
	token := s.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("failed to publish to %s: timed out after %s", topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(quiesce)
	}
}
