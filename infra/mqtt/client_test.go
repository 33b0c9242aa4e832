package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pdptw/core/central"
	"github.com/kilianp07/pdptw/core/experiment"
	"github.com/kilianp07/pdptw/core/model"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func useMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate(), "disabled config is not checked")
	assert.Error(t, Config{Enabled: true}.Validate())
	assert.Error(t, Config{Enabled: true, Broker: "tcp://b:1883", TopicPrefix: "a/#"}.Validate())
	assert.Error(t, Config{Enabled: true, Broker: "tcp://b:1883", QoS: map[string]byte{"route": 3}}.Validate())

	c := Config{Enabled: true, Broker: "tcp://b:1883"}
	c.SetDefaults()
	assert.NoError(t, c.Validate())
	assert.Equal(t, "pdptw", c.TopicPrefix)
	assert.NotEmpty(t, c.ClientID)
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "lab", QoS: map[string]byte{"route": 2, "control": 1}}
	cli, err := NewPahoClient(cfg)
	require.NoError(t, err)

	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, "lab/control", mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)

	p := &model.Parcel{ID: "p1"}
	require.NoError(t, cli.PublishRoute("day 1", 5000, "v1", []*model.Parcel{p, p}))
	require.Len(t, mc.published, 1)
	assert.Equal(t, byte(2), mc.published[0].qos)
	assert.Equal(t, "lab/scenario/day 1/vehicle/v1/route", mc.published[0].topic)

	var msg RouteMessage
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &msg))
	assert.Equal(t, []string{"p1", "p1"}, msg.Route)
	assert.Equal(t, int64(5000), msg.Time)
	assert.NotEmpty(t, msg.MessageID)
}

func TestTopicsAreEscaped(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	require.NoError(t, err)

	require.NoError(t, cli.PublishProgress(experiment.Progress{
		RunID: "r/1#",
		Done:  1,
		Total: 2,
		Result: experiment.InstanceResult{
			ScenarioID: "s1",
			Objective:  12.5,
			Result:     central.Result{Finished: true},
		},
	}))
	require.Len(t, mc.published, 1)
	assert.Equal(t, "pdptw/run/r_1_/progress", mc.published[0].topic)

	var msg ProgressMessage
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &msg))
	assert.Equal(t, "r/1#", msg.RunID)
	assert.True(t, msg.Finished)
	assert.Equal(t, 12.5, msg.Objective)
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg)
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))
	cli.Disconnect()
	assert.Empty(t, mc.published, "unexpected publish on disconnect")
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	useMockClient(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	require.NoError(t, cli.PublishRoute("s1", 0, "v1", nil))
	assert.Len(t, mc.published, 2)
}

func TestControlMessages(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	require.NoError(t, err)

	var got []Control
	cli.OnControl(func(c Control) { got = append(got, c) })
	cli.onMessage(nil, mockMessage{[]byte(`{"action":"cancel","run_id":"r1"}`)})
	cli.onMessage(nil, mockMessage{[]byte(`not json`)})
	cli.onMessage(nil, mockMessage{[]byte(`{}`)})

	require.Len(t, got, 1)
	assert.Equal(t, Control{Action: "cancel", RunID: "r1"}, got[0])
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published   []published
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	data, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, data})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
