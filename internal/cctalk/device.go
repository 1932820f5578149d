package cctalk

import (
	"sync"
	"time"

	"github.com/wfunc/cctalk-service/internal/errors"
	"github.com/wfunc/cctalk-service/internal/logger"
	"go.uber.org/zap"
)

// DeviceState 设备生命周期状态
type DeviceState int

// 状态定义
const (
	StateShutDown             DeviceState = iota // 已关停（初始态）
	StateUninitializedDown                       // 初始化时设备不在线
	StateInitialized                             // 初始化完成，待自检
	StateInitializationFailed                    // 初始化失败（终态）
	StateNormalAccepting                         // 正常轮询，接收投入
	StateNormalRejecting                         // 正常轮询，拒收投入
	StateDiagnosticsPolling                      // 故障诊断轮询
	StateUnexpectedDown                          // 链路意外中断
	StateExternalReset                           // 检测到设备被外部复位
)

var stateNames = map[DeviceState]string{
	StateShutDown:             "ShutDown",
	StateUninitializedDown:    "UninitializedDown",
	StateInitialized:          "Initialized",
	StateInitializationFailed: "InitializationFailed",
	StateNormalAccepting:      "NormalAccepting",
	StateNormalRejecting:      "NormalRejecting",
	StateDiagnosticsPolling:   "DiagnosticsPolling",
	StateUnexpectedDown:       "UnexpectedDown",
	StateExternalReset:        "ExternalReset",
}

// String 返回状态名称
func (s DeviceState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// 轮询时序常量
const (
	// DefaultPollingInterval 设备未给出有效建议时的正常轮询间隔
	DefaultPollingInterval = 100 * time.Millisecond

	// NotAlivePollingInterval 设备疑似离线时的慢速轮询间隔
	NotAlivePollingInterval = 1000 * time.Millisecond

	// MaxPollingInterval 正常轮询间隔上限
	MaxPollingInterval = 1000 * time.Millisecond

	// DefaultResetSettle 复位ACK后等待设备重启的默认时长
	DefaultResetSettle = 2000 * time.Millisecond

	// DefaultPositionCount 标识扫描的默认位置数
	DefaultPositionCount = 16
)

// BillAcceptPredicate 暂存纸币的放行判定。由宿主提供，须在一个
// 轮询间隔内返回，否则路由可能超时。
type BillAcceptPredicate func(position byte, identifier Identifier) bool

// CreditEvent 一次已确认的投入
type CreditEvent struct {
	Position   byte       `json:"position"`
	Identifier Identifier `json:"identifier"`
	Category   Category   `json:"category"`
	Time       time.Time  `json:"time"`
}

// StateChange 一次状态迁移
type StateChange struct {
	Old  DeviceState `json:"old"`
	New  DeviceState `json:"new"`
	Time time.Time   `json:"time"`
}

// DeviceInfo 初始化时读取的制造信息
type DeviceInfo struct {
	Category         Category `json:"category"`
	CategoryRaw      string   `json:"category_raw"`
	Manufacturer     string   `json:"manufacturer"`
	ProductCode      string   `json:"product_code"`
	BuildCode        string   `json:"build_code"`
	SoftwareRevision string   `json:"software_revision"`
	SerialNumber     uint32   `json:"serial_number"`
	CommsRelease     byte     `json:"comms_release"`
	CommsMajor       byte     `json:"comms_major"`
	CommsMinor       byte     `json:"comms_minor"`
}

// DeviceConfig 单台设备的配置
type DeviceConfig struct {
	Address            byte          `yaml:"address" mapstructure:"address"`
	Category           Category      `yaml:"-" mapstructure:"-"`
	NormalPollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	ResetSettle        time.Duration `yaml:"reset_settle" mapstructure:"reset_settle"`
}

// hostCursor 宿主侧事件游标
type hostCursor struct {
	lastCounter byte
	everRead    bool
}

// Device 单台受控设备。串行驱动：所有命令在轮询goroutine上
// 依次发出，外部只通过方法调用与回调交互。
type Device struct {
	cmds   *Commands
	config DeviceConfig
	logger *zap.Logger

	mu           sync.Mutex
	state        DeviceState
	info         DeviceInfo
	identifiers  IdentifierTable
	coinScaling  map[string]CountryScaling
	pollInterval time.Duration
	cursor       hostCursor
	wantAccept   bool

	billPredicate BillAcceptPredicate
	onCredit      func(CreditEvent)
	onStateChange func(StateChange)
	onDeviceEvent func(category Category, entry EventEntry)

	tickBusy bool
	execCh   chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewDevice 创建设备控制器。category为期望的设备类别，初始化时
// 与设备上报值比对，仅支持硬币接收器与纸币识别器。
func NewDevice(cmds *Commands, config DeviceConfig) *Device {
	if config.Address == 0 {
		config.Address = cmds.Address()
	}
	if config.ResetSettle == 0 {
		config.ResetSettle = DefaultResetSettle
	}
	return &Device{
		cmds:   cmds,
		config: config,
		state:  StateShutDown,
		// 硬币侧无按国别查询命令，内置格鲁吉亚拉里种子，宿主可注入更多
		coinScaling: map[string]CountryScaling{
			"GE": {ScalingFactor: 1, DecimalPlaces: 2},
		},
		pollInterval: DefaultPollingInterval,
		execCh:       make(chan func()),
		logger: logger.GetModuleLogger("cctalk.device").With(
			zap.Uint8("address", cmds.Address())),
	}
}

// SetBillAcceptPredicate 设置纸币放行判定
func (d *Device) SetBillAcceptPredicate(pred BillAcceptPredicate) {
	d.mu.Lock()
	d.billPredicate = pred
	d.mu.Unlock()
}

// OnCredit 注册投入确认回调
func (d *Device) OnCredit(fn func(CreditEvent)) {
	d.mu.Lock()
	d.onCredit = fn
	d.mu.Unlock()
}

// OnStateChange 注册状态迁移回调
func (d *Device) OnStateChange(fn func(StateChange)) {
	d.mu.Lock()
	d.onStateChange = fn
	d.mu.Unlock()
}

// OnDeviceEvent 注册原始事件回调（含拒收与状态通告）
func (d *Device) OnDeviceEvent(fn func(category Category, entry EventEntry)) {
	d.mu.Lock()
	d.onDeviceEvent = fn
	d.mu.Unlock()
}

// AddCoinScaling 注入硬币国别换算数据
func (d *Device) AddCoinScaling(country string, scaling CountryScaling) {
	d.mu.Lock()
	d.coinScaling[country] = scaling
	d.mu.Unlock()
}

// State 返回当前状态
func (d *Device) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Info 返回初始化时读取的制造信息
func (d *Device) Info() DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}

// Identifiers 返回标识表副本
func (d *Device) Identifiers() IdentifierTable {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := make(IdentifierTable, len(d.identifiers))
	for pos, ident := range d.identifiers {
		table[pos] = ident
	}
	return table
}

// PollInterval 返回当前正常轮询间隔
func (d *Device) PollInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pollInterval
}

// SetAccept 切换接收/拒收。设备在线时生效于下一个tick。
func (d *Device) SetAccept(accept bool) {
	d.mu.Lock()
	d.wantAccept = accept
	state := d.state
	d.mu.Unlock()
	d.logger.Info("切换接收状态",
		zap.Bool("accept", accept),
		zap.String("state", state.String()))
}

// Start 打开链路并启动轮询循环
func (d *Device) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := d.cmds.Link().Open(); err != nil {
		return err
	}

	d.mu.Lock()
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.pollLoop()
	d.logger.Info("设备控制器已启动")
	return nil
}

// Exec 在轮询goroutine上执行一段命令序列，与tick互斥。
// 设备未运行时拒绝执行。
func (d *Device) Exec(fn func(*Commands) error) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return errors.New(errors.ErrDeviceOffline, "设备未运行")
	}
	stopCh := d.stopCh
	d.mu.Unlock()

	resCh := make(chan error, 1)
	select {
	case d.execCh <- func() { resCh <- fn(d.cmds) }:
	case <-stopCh:
		return errors.New(errors.ErrDeviceOffline, "设备已停止")
	}

	select {
	case err := <-resCh:
		return err
	case <-stopCh:
		return errors.New(errors.ErrDeviceOffline, "设备已停止")
	}
}

// Stop 停止轮询并关闭链路。接收中的设备先置主禁止，
// 该步骤失败只记录日志。
func (d *Device) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	done := d.doneCh
	wasAccepting := d.state == StateNormalAccepting
	d.mu.Unlock()

	<-done

	if wasAccepting {
		if err := d.cmds.SetMasterInhibit(false); err != nil {
			d.logger.Warn("关停前置主禁止失败", zap.Error(err))
		}
	}

	d.setState(StateShutDown)
	err := d.cmds.Link().Close()
	d.logger.Info("设备控制器已停止")
	return err
}

// setState 迁移状态并触发回调
func (d *Device) setState(next DeviceState) {
	d.mu.Lock()
	old := d.state
	if old == next {
		d.mu.Unlock()
		return
	}
	d.state = next
	fn := d.onStateChange
	d.mu.Unlock()

	d.logger.Info("设备状态迁移",
		zap.String("from", old.String()),
		zap.String("to", next.String()))
	if fn != nil {
		fn(StateChange{Old: old, New: next, Time: time.Now()})
	}
}

// currentInterval 按状态返回本轮轮询间隔
func (d *Device) currentInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateShutDown, StateUninitializedDown, StateInitializationFailed,
		StateUnexpectedDown, StateExternalReset:
		return NotAlivePollingInterval
	default:
		return d.pollInterval
	}
}

// pollLoop 轮询主循环。tick串行执行，上一tick未完成时跳过新tick。
func (d *Device) pollLoop() {
	defer close(d.doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case job := <-d.execCh:
			job()
			continue
		case <-timer.C:
		}

		d.mu.Lock()
		busy := d.tickBusy
		if !busy {
			d.tickBusy = true
		}
		d.mu.Unlock()

		if !busy {
			d.tick()
			d.mu.Lock()
			d.tickBusy = false
			d.mu.Unlock()
		}

		timer.Reset(d.currentInterval())
	}
}

// tick 按当前状态执行一步动作
func (d *Device) tick() {
	switch d.State() {
	case StateShutDown, StateInitializationFailed:
		// 终态，无动作

	case StateUninitializedDown:
		if err := d.cmds.SimplePoll(); err == nil {
			d.initialize()
		}

	case StateUnexpectedDown, StateExternalReset:
		d.initialize()

	case StateInitialized:
		d.selfCheckTransition()

	case StateNormalAccepting, StateNormalRejecting:
		d.applyAcceptToggle()
		d.pollEvents()

	case StateDiagnosticsPolling:
		fault, _, err := d.cmds.PerformSelfCheck()
		if err != nil {
			d.escalateLinkError(err)
			return
		}
		if fault == FaultOk {
			d.logger.Info("故障已消除，恢复拒收态")
			d.enterRejecting()
		} else {
			d.logger.Warn("自检仍报故障", zap.String("fault", fault.String()))
		}
	}
}

// selfCheckTransition 初始化完成后的首次自检分流
func (d *Device) selfCheckTransition() {
	fault, _, err := d.cmds.PerformSelfCheck()
	if err != nil {
		d.escalateLinkError(err)
		return
	}
	if fault == FaultOk {
		d.enterRejecting()
	} else {
		d.logger.Warn("初始化自检报告故障", zap.String("fault", fault.String()))
		d.enterDiagnostics()
	}
}

// applyAcceptToggle 对齐宿主期望的接收状态
func (d *Device) applyAcceptToggle() {
	d.mu.Lock()
	want := d.wantAccept
	state := d.state
	d.mu.Unlock()

	if want && state == StateNormalRejecting {
		d.enterAccepting()
	} else if !want && state == StateNormalAccepting {
		d.enterRejecting()
	}
}

// enterAccepting 进入接收态：解除主禁止
func (d *Device) enterAccepting() {
	if err := d.cmds.SetMasterInhibit(true); err != nil {
		d.escalateLinkError(err)
		return
	}
	d.setState(StateNormalAccepting)
}

// enterRejecting 进入拒收态：置主禁止
func (d *Device) enterRejecting() {
	if err := d.cmds.SetMasterInhibit(false); err != nil {
		d.escalateLinkError(err)
		return
	}
	d.setState(StateNormalRejecting)
}

// enterDiagnostics 进入诊断态：先保守置主禁止
func (d *Device) enterDiagnostics() {
	if err := d.cmds.SetMasterInhibit(false); err != nil {
		d.escalateLinkError(err)
		return
	}
	d.setState(StateDiagnosticsPolling)
}

// escalateLinkError 链路类错误降级到意外离线，等下一tick重试初始化
func (d *Device) escalateLinkError(err error) {
	d.logger.Warn("链路异常", zap.Error(err))
	switch errors.GetCode(err) {
	case errors.ErrRequestTimeout, errors.ErrResponseTimeout,
		errors.ErrSerialPortWrite, errors.ErrSerialPortRead,
		errors.ErrPortClosed:
		d.setState(StateUnexpectedDown)
	default:
		// 结构/解码类错误由下一tick自然重试
	}
}

// Reset 下发软复位并等待设备重启，随后走重新初始化路径
func (d *Device) Reset() error {
	if err := d.cmds.ResetDevice(); err != nil {
		return err
	}
	time.Sleep(d.config.ResetSettle)
	d.mu.Lock()
	d.cursor = hostCursor{}
	d.mu.Unlock()
	d.setState(StateExternalReset)
	return nil
}

// initialize 执行完整初始化序列，任一步失败即中止
func (d *Device) initialize() {
	if err := d.cmds.SimplePoll(); err != nil {
		d.logger.Warn("设备不在线", zap.Error(err))
		d.setState(StateUninitializedDown)
		return
	}

	info, err := d.readInfo()
	if err != nil {
		d.failInitialization(err)
		return
	}
	if info.Category != CategoryCoinAcceptor && info.Category != CategoryBillValidator {
		d.failInitialization(errors.Newf(errors.ErrWrongCategory,
			"设备上报类别%q", info.CategoryRaw))
		return
	}
	if d.config.Category != CategoryUnknown && info.Category != d.config.Category {
		d.failInitialization(errors.Newf(errors.ErrWrongCategory,
			"期望%s，设备上报%s", d.config.Category, info.Category))
		return
	}

	interval, err := d.resolvePollInterval()
	if err != nil {
		d.failInitialization(err)
		return
	}

	table, err := d.scanIdentifiers(info.Category)
	if err != nil {
		d.failInitialization(err)
		return
	}

	if info.Category == CategoryBillValidator {
		if err := d.cmds.SetBillOperatingMode(BillOperatingMode{
			UseStacker: true,
			UseEscrow:  true,
		}); err != nil {
			d.failInitialization(err)
			return
		}
	}

	// 两个类别都需要放开全部位置
	if err := d.cmds.SetInhibitStatus(0xFFFF); err != nil {
		d.failInitialization(err)
		return
	}

	d.mu.Lock()
	d.info = info
	d.pollInterval = interval
	d.identifiers = table
	d.cursor = hostCursor{}
	d.mu.Unlock()

	d.logger.Info("设备初始化完成",
		zap.String("category", info.Category.String()),
		zap.String("manufacturer", info.Manufacturer),
		zap.String("product", info.ProductCode),
		zap.Uint32("serial", info.SerialNumber),
		zap.Duration("poll_interval", interval),
		zap.Int("identifiers", len(table)))
	d.setState(StateInitialized)
}

// failInitialization 初始化失败分流：设备仍在线进终态，
// 否则进可恢复的离线态。
func (d *Device) failInitialization(cause error) {
	d.logger.Error("设备初始化失败", zap.Error(cause))
	if err := d.cmds.SimplePoll(); err == nil {
		d.setState(StateInitializationFailed)
	} else {
		d.setState(StateUninitializedDown)
	}
}

// readInfo 读取类别与制造信息
func (d *Device) readInfo() (DeviceInfo, error) {
	var info DeviceInfo
	var err error

	info.Category, info.CategoryRaw, err = d.cmds.GetEquipmentCategory()
	if err != nil {
		return info, err
	}
	if info.ProductCode, err = d.cmds.GetProductCode(); err != nil {
		return info, err
	}
	if info.BuildCode, err = d.cmds.GetBuildCode(); err != nil {
		return info, err
	}
	if info.Manufacturer, err = d.cmds.GetManufacturer(); err != nil {
		return info, err
	}
	if info.SerialNumber, err = d.cmds.GetSerialNumber(); err != nil {
		return info, err
	}
	if info.SoftwareRevision, err = d.cmds.GetSoftwareRevision(); err != nil {
		return info, err
	}
	info.CommsRelease, info.CommsMajor, info.CommsMinor, err = d.cmds.GetCommsRevision()
	return info, err
}

// resolvePollInterval 确定正常轮询间隔：配置优先，否则取设备建议，
// 最终钳制在1毫秒到1秒之间。
func (d *Device) resolvePollInterval() (time.Duration, error) {
	interval := d.config.NormalPollInterval
	if interval == 0 {
		reported, err := d.cmds.GetPollingPriority()
		if err != nil {
			return 0, err
		}
		interval = reported
	}
	if interval < time.Millisecond || interval > MaxPollingInterval {
		interval = DefaultPollingInterval
	}
	return interval, nil
}

// scanIdentifiers 扫描各位置的标识并解析换算数据
func (d *Device) scanIdentifiers(category Category) (IdentifierTable, error) {
	positions := byte(DefaultPositionCount)
	if category == CategoryBillValidator {
		// 部分识别器经变量集上报实际位置数
		if vars, err := d.cmds.GetVariableSet(); err == nil &&
			len(vars) > 0 && vars[0] > 0 && vars[0] <= DefaultPositionCount {
			positions = vars[0]
		}
	}

	table := make(IdentifierTable)
	scalings := make(map[string]CountryScaling)

	for pos := byte(1); pos <= positions; pos++ {
		var raw string
		var err error
		if category == CategoryBillValidator {
			raw, err = d.cmds.GetBillID(pos)
		} else {
			raw, err = d.cmds.GetCoinID(pos)
		}
		if err != nil {
			return nil, err
		}
		if !UsableIDString(raw) {
			continue
		}

		ident, ok := ParseIdentifier(raw)
		if !ok {
			d.logger.Warn("标识字符串无法解析",
				zap.Uint8("position", pos),
				zap.String("id", raw))
			continue
		}

		if category == CategoryBillValidator {
			scaling, cached := scalings[ident.Country]
			if !cached {
				scaling, err = d.cmds.GetCountryScalingFactor(ident.Country)
				if err != nil {
					return nil, err
				}
				scalings[ident.Country] = scaling
			}
			if !scaling.Valid() {
				d.logger.Warn("国别码不受设备支持",
					zap.String("country", ident.Country))
				continue
			}
			ident.Scaling = scaling
		} else {
			d.mu.Lock()
			scaling, ok := d.coinScaling[ident.Country]
			d.mu.Unlock()
			if ok {
				ident.Scaling = scaling
			}
		}

		table[pos] = ident
	}
	return table, nil
}
