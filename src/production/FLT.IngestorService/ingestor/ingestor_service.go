package fltingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Config"
	"gitlab.com/fleetsense/flt.device_server/src/production/FLT.IngestorService/client"
	logger "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Logger"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
)

// HeartbeatEvent is the topic segment that marks a message as a liveness
// signal rather than a telemetry log.
const HeartbeatEvent = "heartbeat"

// Config holds ingestor runtime settings
type Config struct {
	MQTT        config.MQTTConfig
	BatchSize   int
	BatchWindow time.Duration
}

// TelemetryMessage is a parsed MQTT message awaiting relay to the API
type TelemetryMessage struct {
	OwnerID    string
	DeviceID   string
	Event      string
	Value      interface{}
	Metadata   map[string]string
	Topic      string
	ReceivedAt time.Time
}

type Ingestor struct {
	cfg        Config
	apiClient  *client.APIClient
	mqttClient mqtt.Client
	msgCh      chan TelemetryMessage
	wg         sync.WaitGroup
	logger     *logger.Logger
}

func New(cfg Config, apiClient *client.APIClient, logger *logger.Logger) *Ingestor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = 2 * time.Second
	}
	return &Ingestor{
		cfg:       cfg,
		apiClient: apiClient,
		msgCh:     make(chan TelemetryMessage, 4096),
		logger:    logger,
	}
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL()).
		SetClientID(i.cfg.MQTT.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.MQTT.BrokerUser != "" {
		opts.SetUsername(i.cfg.MQTT.BrokerUser)
		opts.SetPassword(i.cfg.MQTT.BrokerPass)
	}

	if i.cfg.MQTT.UseTLS {
		tlsCfg, err := i.tlsConfig(i.cfg.MQTT.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.MQTT.Topic
		if i.cfg.MQTT.SharedGroup != "" {
			topic = fmt.Sprintf("$share/%s/%s", i.cfg.MQTT.SharedGroup, i.cfg.MQTT.Topic)
		}
		i.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	// batch writer
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.batchWriter(ctx)
	}()

	return nil
}

func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}
	close(i.msgCh)
	i.wg.Wait()
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// messagePayload is the expected JSON body of a device publish
type messagePayload struct {
	Value    interface{}       `json:"value"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.logger.Logger.Debug().Str("topic", m.Topic()).Str("payload", string(m.Payload())).Msg("Received MQTT message")

	// Parse topic to extract owner_id, device_id and event
	// Expected format: devices/<owner_id>/<device_id>/<event>
	parts := strings.Split(m.Topic(), "/")
	if len(parts) < 4 {
		i.logger.Logger.Warn().Str("topic", m.Topic()).Str("expected", "devices/<owner_id>/<device_id>/<event>").Msg("Invalid topic format")
		ownerID := "unknown"
		deviceID := "unknown"
		if len(parts) >= 2 {
			ownerID = parts[1]
		}
		if len(parts) >= 3 {
			deviceID = parts[2]
		}
		i.publishError(ownerID, deviceID, "invalid_topic", fmt.Sprintf("Invalid topic format: %s, expected: devices/<owner_id>/<device_id>/<event>", m.Topic()))
		return
	}

	ownerID := parts[1]
	deviceID := parts[2]
	event := parts[3]

	var payload messagePayload
	if err := json.Unmarshal(m.Payload(), &payload); err != nil {
		payload = messagePayload{Value: string(m.Payload())}
	}

	msg := TelemetryMessage{
		OwnerID:    ownerID,
		DeviceID:   deviceID,
		Event:      event,
		Value:      payload.Value,
		Metadata:   payload.Metadata,
		Topic:      m.Topic(),
		ReceivedAt: time.Now().UTC(),
	}

	if event == HeartbeatEvent {
		status := payload.Status
		if status == "" {
			status = fltmodels.StatusActive
		}
		msg.Value = status
	}

	i.logger.Logger.Debug().Str("owner_id", ownerID).Str("device_id", deviceID).Str("event", event).Msg("Queuing message")
	i.msgCh <- msg
}

func (i *Ingestor) batchWriter(ctx context.Context) {
	batch := make([]TelemetryMessage, 0, i.cfg.BatchSize)
	timer := time.NewTimer(i.cfg.BatchWindow)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		i.logger.Logger.Info().Int("batch_size", len(batch)).Msg("Flushing batch to API Service")

		for _, msg := range batch {
			// Validate device exists via API
			deviceExists, err := i.apiClient.ValidateDevice(ctx, msg.OwnerID, msg.DeviceID)
			if err != nil {
				i.logger.Logger.Error().Err(err).Str("owner_id", msg.OwnerID).Str("device_id", msg.DeviceID).Msg("Failed to validate device via API")
				i.publishError(msg.OwnerID, msg.DeviceID, "device_validation_error", fmt.Sprintf("Failed to validate device %s: %v", msg.DeviceID, err))
				continue
			}
			if !deviceExists {
				i.logger.Logger.Warn().Str("owner_id", msg.OwnerID).Str("device_id", msg.DeviceID).Msg("Skipping message: device not found")
				i.publishError(msg.OwnerID, msg.DeviceID, "device_not_found", fmt.Sprintf("Device %s does not exist for owner %s", msg.DeviceID, msg.OwnerID))
				continue
			}

			if msg.Event == HeartbeatEvent {
				status, _ := msg.Value.(string)
				if err := i.apiClient.RecordHeartbeat(ctx, msg.OwnerID, msg.DeviceID, status); err != nil {
					i.logger.Logger.Error().Err(err).Str("owner_id", msg.OwnerID).Str("device_id", msg.DeviceID).Msg("Error recording heartbeat via API")
					i.publishError(msg.OwnerID, msg.DeviceID, "heartbeat_error", fmt.Sprintf("Failed to record heartbeat: %v", err))
				}
				continue
			}

			if err := i.apiClient.CreateLog(ctx, msg.OwnerID, msg.DeviceID, msg.Event, msg.Value, msg.Metadata); err != nil {
				i.logger.Logger.Error().Err(err).Str("owner_id", msg.OwnerID).Str("device_id", msg.DeviceID).Msg("Error creating log entry via API")
				i.publishError(msg.OwnerID, msg.DeviceID, "create_log_error", fmt.Sprintf("Failed to create log entry: %v", err))
			}
		}

		i.logger.Logger.Info().Int("count", len(batch)).Msg("Successfully processed messages")
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case msg, ok := <-i.msgCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, msg)
			if len(batch) >= i.cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(i.cfg.BatchWindow)
			}
		case <-timer.C:
			flush()
			timer.Reset(i.cfg.BatchWindow)
		}
	}
}

func (i *Ingestor) brokerURL() string {
	scheme := "tcp"
	if i.cfg.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, i.cfg.MQTT.BrokerHost, i.cfg.MQTT.BrokerPort)
}

func (i *Ingestor) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

// publishError publishes an error message to the error topic for device feedback
func (i *Ingestor) publishError(ownerID, deviceID, errorType, message string) {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return
	}

	errorPayload := map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"owner_id":   ownerID,
		"device_id":  deviceID,
		"timestamp":  time.Now().UTC(),
	}

	payloadJSON, err := json.Marshal(errorPayload)
	if err != nil {
		i.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := fmt.Sprintf("ingestor/errors/%s/%s", ownerID, deviceID)
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)

	if token.Wait() && token.Error() != nil {
		i.logger.Logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	} else {
		i.logger.Logger.Info().Str("topic", errorTopic).Str("message", message).Msg("Published error")
	}
}
