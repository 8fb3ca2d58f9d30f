package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"iot-device-service/internal/domain/models"
	"iot-device-service/internal/infrastructure/config"
	"iot-device-service/pkg/logger"
)

// 设备上报主题 devices/{owner}/{device}/...，{owner}/{device} 为UUID。
// 主题中的 owner 直接作为归属用户，服务端不再校验身份，
// 必须由 broker ACL 限制每个设备只能发布到自己 owner 的主题。
const (
	TopicDeviceHeartbeat = "devices/+/+/heartbeat"
	TopicDeviceLogs      = "devices/+/+/logs"
)

const ingestTimeout = 5 * time.Second

// InterfaceMQTTIngestService 通过MQTT接收设备心跳与日志
type InterfaceMQTTIngestService interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	HandleMessage(topic string, payload []byte) error
}

// Heartbeater 心跳处理方
type Heartbeater interface {
	Heartbeat(ctx context.Context, ownerID, id uuid.UUID) (*models.Device, error)
}

// LogAppender 日志处理方
type LogAppender interface {
	AppendLog(ctx context.Context, ownerID, deviceID uuid.UUID, input AppendLogInput) (*models.DeviceLog, error)
}

var errBadTopic = errors.New("unrecognised topic")

// MQTTIngestService 订阅设备主题并转交给设备与日志服务
type MQTTIngestService struct {
	cfg         config.MQTT
	client      mqtt.Client
	heartbeats  Heartbeater
	logs        LogAppender
	mu          sync.RWMutex
	isConnected bool
}

// NewMQTTIngestService 创建MQTT接入服务
func NewMQTTIngestService(cfg config.MQTT, heartbeats Heartbeater, logs LogAppender) *MQTTIngestService {
	s := &MQTTIngestService{cfg: cfg, heartbeats: heartbeats, logs: logs}
	s.setupMQTTClient()
	return s
}

func (s *MQTTIngestService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.BrokerURL)
	// 多实例部署时客户端ID不能重复
	opts.SetClientID(fmt.Sprintf("%s-%s", s.cfg.ClientID, uuid.NewString()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warning("[MQTT] 连接丢失: %v", err)
		s.setConnected(false)
	})

	// 重连后需要重新订阅
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("[MQTT] 成功连接到 %s", s.cfg.BrokerURL)
		s.setConnected(true)
		if err := s.subscribe(); err != nil {
			logger.Error("[MQTT] 订阅主题失败: %v", err)
		}
	})

	s.client = mqtt.NewClient(opts)
}

// Connect 连接到MQTT服务器，带有重试机制
func (s *MQTTIngestService) Connect() error {
	if s.IsConnected() {
		return nil
	}

	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		token := s.client.Connect()
		if token.WaitTimeout(5*time.Second) && token.Error() == nil {
			return nil
		}
		err = token.Error()
		if err == nil {
			err = errors.New("connect timeout")
		}
		backoff := time.Duration(1<<uint(i)) * time.Second
		logger.Warning("[MQTT] 连接尝试 %d/%d 失败: %v, 将在 %v 后重试", i+1, maxRetries, err, backoff)
		time.Sleep(backoff)
	}
	return fmt.Errorf("[MQTT] 连接失败，已尝试 %d 次: %w", maxRetries, err)
}

// Disconnect 断开与MQTT服务器的连接
func (s *MQTTIngestService) Disconnect() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	s.setConnected(false)
}

// IsConnected 当前是否已连接
func (s *MQTTIngestService) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected && s.client.IsConnected()
}

func (s *MQTTIngestService) setConnected(v bool) {
	s.mu.Lock()
	s.isConnected = v
	s.mu.Unlock()
}

func (s *MQTTIngestService) subscribe() error {
	filters := map[string]byte{
		TopicDeviceHeartbeat: s.cfg.QoS,
		TopicDeviceLogs:      s.cfg.QoS,
	}
	token := s.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.HandleMessage(msg.Topic(), msg.Payload()); err != nil {
			logger.L().Warn("mqtt message rejected", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	logger.Info("[MQTT] 已订阅主题: %s, %s", TopicDeviceHeartbeat, TopicDeviceLogs)
	return nil
}

// logPayload 日志主题的消息体
type logPayload struct {
	Event string          `json:"event"`
	Value json.RawMessage `json:"value"`
}

// HandleMessage 按主题分发一条设备消息
func (s *MQTTIngestService) HandleMessage(topic string, payload []byte) error {
	ownerID, deviceID, kind, err := parseDeviceTopic(topic)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	switch kind {
	case "heartbeat":
		_, err = s.heartbeats.Heartbeat(ctx, ownerID, deviceID)
		return err
	case "logs":
		var p logPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode log payload: %w", err)
		}
		if strings.TrimSpace(p.Event) == "" || len(p.Value) == 0 || string(p.Value) == "null" {
			return errors.New("event and value are required")
		}
		_, err = s.logs.AppendLog(ctx, ownerID, deviceID, AppendLogInput{Event: p.Event, Value: p.Value})
		return err
	}
	return errBadTopic
}

func parseDeviceTopic(topic string) (ownerID, deviceID uuid.UUID, kind string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "devices" {
		return uuid.Nil, uuid.Nil, "", errBadTopic
	}
	if ownerID, err = uuid.Parse(parts[1]); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("%w: %v", errBadTopic, err)
	}
	if deviceID, err = uuid.Parse(parts[2]); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("%w: %v", errBadTopic, err)
	}
	return ownerID, deviceID, parts[3], nil
}
