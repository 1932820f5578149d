package cctalk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ReconcileTestSuite 事件对账测试套件
type ReconcileTestSuite struct {
	suite.Suite
}

// newCoinFixtureReady 构造处于接收态、位置1配置了硬币的设备
func newCoinFixtureReady() *deviceFixture {
	f := newDeviceFixture(2, DeviceConfig{})
	ident, _ := ParseIdentifier("GE100A")
	ident.Scaling = CountryScaling{ScalingFactor: 1, DecimalPlaces: 2}
	f.dev.mu.Lock()
	f.dev.info = DeviceInfo{Category: CategoryCoinAcceptor}
	f.dev.identifiers = IdentifierTable{1: ident}
	f.dev.state = StateNormalAccepting
	f.dev.mu.Unlock()
	return f
}

// newBillFixtureReady 构造处于接收态、位置1配置了纸币的设备
func newBillFixtureReady() *deviceFixture {
	f := newDeviceFixture(40, DeviceConfig{})
	ident, _ := ParseIdentifier("GE0005A")
	ident.Scaling = CountryScaling{ScalingFactor: 100, DecimalPlaces: 2}
	f.dev.mu.Lock()
	f.dev.info = DeviceInfo{Category: CategoryBillValidator}
	f.dev.identifiers = IdentifierTable{1: ident}
	f.dev.state = StateNormalAccepting
	f.dev.mu.Unlock()
	return f
}

// entries5 补齐到设备固定返回的5条记录
func entries5(newest ...EventEntry) []EventEntry {
	out := append([]EventEntry(nil), newest...)
	for len(out) < EventBufferSize {
		out = append(out, EventEntry{})
	}
	return out
}

// cursorOf 读取宿主游标
func cursorOf(d *Device) hostCursor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// 测试上电对账：双方计数器都为0
func (suite *ReconcileTestSuite) TestPowerUp() {
	f := newCoinFixtureReady()
	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{Counter: 0, Entries: entries5()})

	cursor := cursorOf(f.dev)
	suite.Equal(byte(0), cursor.lastCounter)
	suite.True(cursor.everRead)
	suite.Equal(StateNormalAccepting, f.dev.State())
}

// 测试外部复位检测：宿主有游标而设备计数器归零
func (suite *ReconcileTestSuite) TestExternalResetDetected() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(7)

	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{Counter: 0, Entries: entries5()})
	suite.Equal(StateExternalReset, f.dev.State())

	cursor := cursorOf(f.dev)
	suite.Equal(byte(0), cursor.lastCounter)
	suite.False(cursor.everRead)
}

// 测试无新事件时不做任何处理
func (suite *ReconcileTestSuite) TestNoNewEvents() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(5)

	var credits []CreditEvent
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })

	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{
		Counter: 5,
		Entries: entries5(EventEntry{ResultA: 1, ResultB: 0}),
	})
	suite.Empty(credits)
	suite.Equal(byte(5), cursorOf(f.dev).lastCounter)
}

// 测试启动扫读：首次读取只记录不计币
func (suite *ReconcileTestSuite) TestStartupSweepSkipsCredits() {
	f := newCoinFixtureReady()

	var credits []CreditEvent
	var rawEvents []EventEntry
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })
	f.dev.OnDeviceEvent(func(_ Category, entry EventEntry) {
		rawEvents = append(rawEvents, entry)
	})

	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{
		Counter: 2,
		Entries: entries5(
			EventEntry{ResultA: 1, ResultB: 0},
			EventEntry{ResultA: 1, ResultB: 0},
		),
	})

	suite.Empty(credits)
	suite.Len(rawEvents, 2)
	suite.Equal(byte(2), cursorOf(f.dev).lastCounter)
}

// 测试常规增量：新投入按最旧在先的顺序计币
func (suite *ReconcileTestSuite) TestCoinCredits() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(3)

	var credits []CreditEvent
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })

	// 计数器3→5：两枚新硬币，最新在前
	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{
		Counter: 5,
		Entries: entries5(
			EventEntry{ResultA: 1, ResultB: 1}, // 最新
			EventEntry{ResultA: 1, ResultB: 0},
		),
	})

	suite.Len(credits, 2)
	suite.Equal(CategoryCoinAcceptor, credits[0].Category)
	suite.Equal("GE100A", credits[0].Identifier.IDString)
	suite.Equal(byte(5), cursorOf(f.dev).lastCounter)
}

// 测试计数器回绕跨越255
func (suite *ReconcileTestSuite) TestCounterWrap() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(254)

	var credits []CreditEvent
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })

	// 254→1：254→255→1共3个新事件
	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{
		Counter: 1,
		Entries: entries5(
			EventEntry{ResultA: 1, ResultB: 0},
			EventEntry{ResultA: 1, ResultB: 0},
			EventEntry{ResultA: 1, ResultB: 0},
		),
	})
	suite.Len(credits, 3)
	suite.Equal(byte(1), cursorOf(f.dev).lastCounter)
}

// 测试缓冲溢出：超出5条的事件被钳制并告警
func (suite *ReconcileTestSuite) TestBufferOverflowClamped() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(1)

	var credits []CreditEvent
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })

	// 计数器1→10：9个新事件，缓冲只有5条
	entries := make([]EventEntry, EventBufferSize)
	for i := range entries {
		entries[i] = EventEntry{ResultA: 1, ResultB: 0}
	}
	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{Counter: 10, Entries: entries})

	suite.Len(credits, EventBufferSize)
	suite.Equal(byte(10), cursorOf(f.dev).lastCounter)
}

// 测试未配置位置的投入被跳过
func (suite *ReconcileTestSuite) TestUnknownPositionSkipped() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(1)

	var credits []CreditEvent
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })

	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 9, ResultB: 0}),
	})
	suite.Empty(credits)
	suite.Equal(byte(2), cursorOf(f.dev).lastCounter)
}

// 测试去向不明的硬币事件触发批末自检
func (suite *ReconcileTestSuite) TestCoinUnknownDispositionTriggersSelfCheck() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(1)

	// 批末自检报故障，随后置主禁止进入诊断态
	f.port.queueReply(encodeReply(2, []byte{3}))
	f.port.queueReply(encodeReply(2, nil))

	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 0, ResultB: byte(CoinEventValidationTimeout)}),
	})

	suite.Equal(StateDiagnosticsPolling, f.dev.State())
	suite.Equal(byte(2), cursorOf(f.dev).lastCounter)
}

// 测试批末自检通过时维持原状态
func (suite *ReconcileTestSuite) TestSelfCheckOkKeepsState() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(1)

	f.port.queueReply(encodeReply(2, []byte{0}))

	f.dev.reconcile(CategoryCoinAcceptor, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 0, ResultB: byte(CoinEventMotorException)}),
	})
	suite.Equal(StateNormalAccepting, f.dev.State())
}

// 测试纸币接收计币
func (suite *ReconcileTestSuite) TestBillAcceptedCredit() {
	f := newBillFixtureReady()
	f.dev.commitCursor(1)

	var credits []CreditEvent
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })

	f.dev.reconcile(CategoryBillValidator, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 1, ResultB: byte(BillValidatedAndAccepted)}),
	})

	suite.Require().Len(credits, 1)
	suite.Equal(CategoryBillValidator, credits[0].Category)
	suite.InDelta(5.0, credits[0].Identifier.CurrencyValue(), 1e-9)
}

// 测试最新的暂存事件触发入箱路由
func (suite *ReconcileTestSuite) TestEscrowRoutedToStacker() {
	f := newBillFixtureReady()
	f.dev.commitCursor(1)

	f.port.queueReply(encodeReply(40, nil)) // RouteBill ACK

	f.dev.reconcile(CategoryBillValidator, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 1, ResultB: byte(BillValidatedHeldInEscrow)}),
	})

	route, err := DecodeFrame(f.port.writes[len(f.port.writes)-1])
	suite.Require().NoError(err)
	suite.Equal(HeaderRouteBill, route.Header)
	suite.Equal([]byte{byte(BillRouteToStacker)}, route.Payload)
}

// 测试拒收态下的暂存纸币被退回
func (suite *ReconcileTestSuite) TestEscrowReturnedWhenRejecting() {
	f := newBillFixtureReady()
	f.dev.mu.Lock()
	f.dev.state = StateNormalRejecting
	f.dev.mu.Unlock()
	f.dev.commitCursor(1)

	f.port.queueReply(encodeReply(40, nil))

	f.dev.reconcile(CategoryBillValidator, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 1, ResultB: byte(BillValidatedHeldInEscrow)}),
	})

	route, err := DecodeFrame(f.port.writes[len(f.port.writes)-1])
	suite.Require().NoError(err)
	suite.Equal([]byte{byte(BillRouteReturn)}, route.Payload)
}

// 测试放行判定拒绝时退回纸币
func (suite *ReconcileTestSuite) TestEscrowPredicateRejects() {
	f := newBillFixtureReady()
	f.dev.commitCursor(1)
	f.dev.SetBillAcceptPredicate(func(position byte, ident Identifier) bool {
		return ident.CurrencyValue() < 1.0
	})

	f.port.queueReply(encodeReply(40, nil))

	f.dev.reconcile(CategoryBillValidator, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 1, ResultB: byte(BillValidatedHeldInEscrow)}),
	})

	route, err := DecodeFrame(f.port.writes[len(f.port.writes)-1])
	suite.Require().NoError(err)
	suite.Equal([]byte{byte(BillRouteReturn)}, route.Payload)
}

// 测试非最新的暂存事件被忽略
func (suite *ReconcileTestSuite) TestStaleEscrowIgnored() {
	f := newBillFixtureReady()
	f.dev.commitCursor(1)

	var credits []CreditEvent
	f.dev.OnCredit(func(e CreditEvent) { credits = append(credits, e) })

	// 计数器1→3：暂存事件之后又有退回事件，暂存决定已过期
	f.dev.reconcile(CategoryBillValidator, EventBuffer{
		Counter: 3,
		Entries: entries5(
			EventEntry{ResultA: 0, ResultB: byte(BillErrReturnedFromEscrow)}, // 最新
			EventEntry{ResultA: 1, ResultB: byte(BillValidatedHeldInEscrow)},
		),
	})

	// 未下达路由命令
	suite.Empty(f.port.writes)
	suite.Empty(credits)
}

// 测试纸币欺诈事件触发自检
func (suite *ReconcileTestSuite) TestBillFraudTriggersSelfCheck() {
	f := newBillFixtureReady()
	f.dev.commitCursor(1)

	f.port.queueReply(encodeReply(40, []byte{byte(FaultOnStringSensor)}))
	f.port.queueReply(encodeReply(40, nil))

	f.dev.reconcile(CategoryBillValidator, EventBuffer{
		Counter: 2,
		Entries: entries5(EventEntry{ResultA: 0, ResultB: byte(BillErrStringFraudDetected)}),
	})
	suite.Equal(StateDiagnosticsPolling, f.dev.State())
}

// 测试自检报故障时暂存纸币被退回而非入箱
func (suite *ReconcileTestSuite) TestEscrowReturnedOnFault() {
	f := newBillFixtureReady()
	f.dev.commitCursor(1)

	f.port.queueReply(encodeReply(40, []byte{byte(FaultOnStacker)})) // 批末自检
	f.port.queueReply(encodeReply(40, nil))                          // RouteBill
	f.port.queueReply(encodeReply(40, nil))                          // 诊断态置主禁止

	// 计数器1→3：欺诈事件在前，暂存事件最新
	f.dev.reconcile(CategoryBillValidator, EventBuffer{
		Counter: 3,
		Entries: entries5(
			EventEntry{ResultA: 1, ResultB: byte(BillValidatedHeldInEscrow)}, // 最新
			EventEntry{ResultA: 0, ResultB: byte(BillErrTamper)},
		),
	})

	var routePayload []byte
	for _, wire := range f.port.writes {
		frame, err := DecodeFrame(wire)
		suite.Require().NoError(err)
		if frame.Header == HeaderRouteBill {
			routePayload = frame.Payload
		}
	}
	suite.Equal([]byte{byte(BillRouteReturn)}, routePayload)
	suite.Equal(StateDiagnosticsPolling, f.dev.State())
}

// 测试事件读取超时被静默跳过
func (suite *ReconcileTestSuite) TestPollEventsTimeoutSilent() {
	f := newCoinFixtureReady()
	f.dev.commitCursor(4)
	f.port.noEcho = true
	f.dev.cmds.Link().SetResponseTimeout(20 * time.Millisecond)

	f.dev.pollEvents()
	suite.Equal(StateNormalAccepting, f.dev.State())
	suite.Equal(byte(4), cursorOf(f.dev).lastCounter)
}

func TestReconcileTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcileTestSuite))
}
