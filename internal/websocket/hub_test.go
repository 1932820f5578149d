package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/cctalk-service/internal/cctalk"
	"github.com/wfunc/cctalk-service/internal/service"
	"go.uber.org/zap"
)

// fakeDeviceService 测试用设备服务，只记录事件订阅者
type fakeDeviceService struct {
	handlers []func(service.DeviceEvent)
}

func (f *fakeDeviceService) Start(ctx context.Context) error { return nil }
func (f *fakeDeviceService) Stop(ctx context.Context) error  { return nil }
func (f *fakeDeviceService) List() []*service.DeviceStatus   { return nil }
func (f *fakeDeviceService) Get(name string) (*service.DeviceStatus, error) {
	return nil, service.ErrDeviceNotFound
}
func (f *fakeDeviceService) Identifiers(name string) (map[uint8]cctalk.Identifier, error) {
	return nil, service.ErrDeviceNotFound
}
func (f *fakeDeviceService) Counters(name string) (*service.DeviceCounters, error) {
	return nil, service.ErrDeviceNotFound
}
func (f *fakeDeviceService) SetAccept(name string, accept bool) error { return nil }
func (f *fakeDeviceService) Reset(name string) error                  { return nil }
func (f *fakeDeviceService) OnEvent(fn func(service.DeviceEvent)) {
	f.handlers = append(f.handlers, fn)
}

func (f *fakeDeviceService) emit(ev service.DeviceEvent) {
	for _, fn := range f.handlers {
		fn(ev)
	}
}

// HubTestSuite Hub测试套件。不建立真实WebSocket连接，
// 直接驱动Hub的内部注册与广播逻辑。
type HubTestSuite struct {
	suite.Suite
	hub *Hub
}

// SetupTest 每个测试前重建Hub
func (suite *HubTestSuite) SetupTest() {
	suite.hub = NewHub(zap.NewNop())
}

// recvMessage 从客户端发送队列取一条消息
func (suite *HubTestSuite) recvMessage(client *Client) *Message {
	select {
	case data := <-client.Send:
		var msg Message
		suite.Require().NoError(json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		suite.Require().Fail("未收到消息")
		return nil
	}
}

// 测试注册后收到连接成功消息
func (suite *HubTestSuite) TestRegisterSendsConnected() {
	client := NewClient(suite.hub, nil, 1)
	suite.hub.registerClient(client)

	suite.Equal(1, suite.hub.GetOnlineCount())

	msg := suite.recvMessage(client)
	suite.Equal(MessageTypeConnected, msg.Type)
	suite.NotZero(msg.Timestamp)
}

// 测试注销后连接数归零且通道关闭
func (suite *HubTestSuite) TestUnregister() {
	client := NewClient(suite.hub, nil, 1)
	suite.hub.registerClient(client)
	suite.hub.unregisterClient(client)

	suite.Equal(0, suite.hub.GetOnlineCount())

	_, ok := <-client.Send
	// 连接成功消息仍在队列里
	suite.True(ok)
	_, ok = <-client.Send
	suite.False(ok)

	// 重复注销无副作用
	suite.hub.unregisterClient(client)
}

// 测试订阅过滤：未订阅的设备消息不投递
func (suite *HubTestSuite) TestBroadcastFiltering() {
	all := NewClient(suite.hub, nil, 1)
	coinOnly := NewClient(suite.hub, nil, 2)
	suite.hub.registerClient(all)
	suite.hub.registerClient(coinOnly)
	suite.recvMessage(all)
	suite.recvMessage(coinOnly)

	sub, _ := json.Marshal(&Message{
		Type: MessageTypeSubscribe,
		Data: json.RawMessage(`{"devices":["coin-1"]}`),
	})
	coinOnly.handleMessage(sub)

	suite.hub.broadcastMessage(&Message{
		Type:       MessageTypeCredit,
		DeviceName: "bill-1",
		Timestamp:  time.Now().Unix(),
	})

	msg := suite.recvMessage(all)
	suite.Equal(MessageTypeCredit, msg.Type)
	suite.Equal("bill-1", msg.DeviceName)
	suite.Empty(coinOnly.Send)

	// 系统消息不过滤
	suite.hub.broadcastMessage(&Message{
		Type:      MessageTypePing,
		Timestamp: time.Now().Unix(),
	})
	suite.Equal(MessageTypePing, suite.recvMessage(all).Type)
	suite.Equal(MessageTypePing, suite.recvMessage(coinOnly).Type)
}

// 测试订阅与退订
func (suite *HubTestSuite) TestSubscribeUnsubscribe() {
	client := NewClient(suite.hub, nil, 1)
	suite.hub.registerClient(client)
	suite.recvMessage(client)

	// 未订阅时接收全部设备
	suite.True(client.subscribed("coin-1"))
	suite.True(client.subscribed("bill-1"))

	sub, _ := json.Marshal(&Message{
		Type: MessageTypeSubscribe,
		Data: json.RawMessage(`{"devices":["coin-1"]}`),
	})
	client.handleMessage(sub)
	suite.True(client.subscribed("coin-1"))
	suite.False(client.subscribed("bill-1"))

	// 空退订清空过滤
	unsub, _ := json.Marshal(&Message{
		Type: MessageTypeUnsubscribe,
		Data: json.RawMessage(`{"devices":[]}`),
	})
	client.handleMessage(unsub)
	suite.True(client.subscribed("bill-1"))
}

// 测试不支持的消息类型收到错误响应
func (suite *HubTestSuite) TestUnknownMessageType() {
	client := NewClient(suite.hub, nil, 1)
	suite.hub.registerClient(client)
	suite.recvMessage(client)

	bogus, _ := json.Marshal(&Message{Type: "bogus"})
	client.handleMessage(bogus)

	msg := suite.recvMessage(client)
	suite.Equal(MessageTypeError, msg.Type)
}

// 测试定向发送的错误分支
func (suite *HubTestSuite) TestSendToClient() {
	err := suite.hub.SendToClient("missing", &Message{Type: MessageTypePing})
	suite.ErrorIs(err, ErrClientNotFound)

	client := NewClient(suite.hub, nil, 1)
	suite.hub.registerClient(client)

	// 填满发送缓冲区
	for {
		if err := suite.hub.SendToClient(client.ID, &Message{Type: MessageTypePing}); err != nil {
			suite.ErrorIs(err, ErrSendBufferFull)
			break
		}
	}
}

// 测试设备服务事件接入广播通道
func (suite *HubTestSuite) TestBindDeviceService() {
	devices := &fakeDeviceService{}
	suite.hub.BindDeviceService(devices)

	at := time.Now()
	devices.emit(service.DeviceEvent{
		Type:       service.DeviceEventCredit,
		DeviceName: "coin-1",
		Category:   "coin_acceptor",
		Payload:    map[string]any{"amount": 1.0},
		Time:       at,
	})

	select {
	case msg := <-suite.hub.broadcast:
		suite.Equal(string(service.DeviceEventCredit), msg.Type)
		suite.Equal("coin-1", msg.DeviceName)
		suite.Equal(at.Unix(), msg.Timestamp)
		suite.JSONEq(`{"amount":1}`, string(msg.Data))
	case <-time.After(time.Second):
		suite.Fail("广播通道未收到设备事件")
	}
}

func TestHubTestSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}
