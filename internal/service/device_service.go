package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/cctalk-service/internal/cctalk"
	"github.com/wfunc/cctalk-service/internal/config"
	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/repository"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrDeviceNotFound = errors.New("设备不存在")
)

// sharedLine 一条物理串口线路。多台设备可以共享同一串口，
// 线路执行器与链路控制器按串口路径复用。
type sharedLine struct {
	serialDevice string
	worker       *cctalk.LineWorker
	link         *cctalk.LinkController
	observers    map[byte]func(cctalk.WireRecord)
}

// managedDevice 一台受管设备及其配置
type managedDevice struct {
	cfg    config.DeviceConfig
	cmds   *cctalk.Commands
	device *cctalk.Device
	line   *sharedLine
}

// deviceService 现金设备服务实现
type deviceService struct {
	configs    []config.DeviceConfig
	creditRepo repository.CreditRepository
	stateRepo  repository.DeviceStateRepository
	commsLog   CommsLogService
	log        *zap.Logger

	mu          sync.Mutex
	lines       map[string]*sharedLine
	devices     map[string]*managedDevice
	order       []string
	running     bool
	subscribers []func(DeviceEvent)
}

// NewDeviceService 创建现金设备服务
func NewDeviceService(
	configs []config.DeviceConfig,
	creditRepo repository.CreditRepository,
	stateRepo repository.DeviceStateRepository,
	commsLog CommsLogService,
	log *zap.Logger,
) DeviceService {
	return &deviceService{
		configs:    configs,
		creditRepo: creditRepo,
		stateRepo:  stateRepo,
		commsLog:   commsLog,
		log:        log,
		lines:      make(map[string]*sharedLine),
		devices:    make(map[string]*managedDevice),
	}
}

// categoryFromName 把配置中的类别名映射到协议类别
func categoryFromName(name string) (cctalk.Category, error) {
	switch name {
	case "coin_acceptor":
		return cctalk.CategoryCoinAcceptor, nil
	case "bill_validator":
		return cctalk.CategoryBillValidator, nil
	default:
		return cctalk.CategoryUnknown, fmt.Errorf("不支持的设备类别: %s", name)
	}
}

// billPredicateFor 按放行策略构造纸币判定函数
func (s *deviceService) billPredicateFor(name string, policy config.BillPolicy) cctalk.BillAcceptPredicate {
	switch policy.Mode {
	case "deny":
		return func(position byte, identifier cctalk.Identifier) bool {
			s.log.Info("纸币按策略拒收",
				zap.String("device", name),
				zap.String("id", identifier.IDString))
			return false
		}
	case "value_limit":
		limit := policy.MaxValue
		return func(position byte, identifier cctalk.Identifier) bool {
			amount := identifier.CurrencyValue()
			accept := amount <= limit
			if !accept {
				s.log.Info("纸币超过面值上限，拒收",
					zap.String("device", name),
					zap.String("id", identifier.IDString),
					zap.Float64("amount", amount),
					zap.Float64("limit", limit))
			}
			return accept
		}
	default: // always_accept
		return func(position byte, identifier cctalk.Identifier) bool {
			return true
		}
	}
}

// buildTopology 按配置构建线路与设备。重复调用无副作用。
func (s *deviceService) buildTopology() error {
	if len(s.devices) > 0 {
		return nil
	}

	for _, cfg := range s.configs {
		cfg := cfg
		category, err := categoryFromName(cfg.Category)
		if err != nil {
			return fmt.Errorf("设备%s: %w", cfg.Name, err)
		}

		line, ok := s.lines[cfg.SerialDevice]
		if !ok {
			worker := cctalk.NewLineWorker(&cctalk.SerialConfig{Port: cfg.SerialDevice})
			link := cctalk.NewLinkController(worker)
			line = &sharedLine{
				serialDevice: cfg.SerialDevice,
				worker:       worker,
				link:         link,
				observers:    make(map[byte]func(cctalk.WireRecord)),
			}
			// 共享线路上按目标地址把线路记录分发给对应设备的观察者
			link.SetWireObserver(func(rec cctalk.WireRecord) {
				if fn := line.observers[rec.Device]; fn != nil {
					fn(rec)
				}
			})
			s.lines[cfg.SerialDevice] = line
		}

		checksum := cctalk.ChecksumSimple8
		if cfg.Checksum16 {
			checksum = cctalk.ChecksumCRC16
		}
		line.link.SetOptions(cctalk.LinkOptions{
			Checksum:     checksum,
			DESEncrypted: cfg.DESEncrypted,
		})

		if s.commsLog != nil {
			line.observers[cfg.Address] = s.commsLog.WireObserverFor(
				cfg.Name, cfg.Category, cfg.SerialDevice, cfg.Logging)
		}

		cmds := cctalk.NewCommands(line.link, cfg.Address)
		device := cctalk.NewDevice(cmds, cctalk.DeviceConfig{
			Address:            cfg.Address,
			Category:           category,
			NormalPollInterval: cfg.PollInterval,
			ResetSettle:        cfg.ResetSettle,
		})

		if category == cctalk.CategoryBillValidator {
			device.SetBillAcceptPredicate(s.billPredicateFor(cfg.Name, cfg.BillPolicy))
		}
		device.SetAccept(cfg.AcceptOnBoot)

		md := &managedDevice{cfg: cfg, cmds: cmds, device: device, line: line}
		device.OnCredit(func(ev cctalk.CreditEvent) { s.handleCredit(md, ev) })
		device.OnStateChange(func(sc cctalk.StateChange) { s.handleStateChange(md, sc) })
		device.OnDeviceEvent(func(cat cctalk.Category, entry cctalk.EventEntry) {
			s.handleDeviceEvent(md, cat, entry)
		})

		s.devices[cfg.Name] = md
		s.order = append(s.order, cfg.Name)
	}

	return nil
}

// Start 启动全部设备
func (s *deviceService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := s.buildTopology(); err != nil {
		return err
	}

	started := make([]*managedDevice, 0, len(s.order))
	for _, name := range s.order {
		md := s.devices[name]
		if err := md.device.Start(); err != nil {
			s.log.Error("设备启动失败",
				zap.String("device", name),
				zap.String("serial", md.cfg.SerialDevice),
				zap.Error(err))
			for i := len(started) - 1; i >= 0; i-- {
				_ = started[i].device.Stop()
			}
			return fmt.Errorf("启动设备%s失败: %w", name, err)
		}
		started = append(started, md)
		s.log.Info("设备已启动",
			zap.String("device", name),
			zap.String("category", md.cfg.Category),
			zap.String("serial", md.cfg.SerialDevice),
			zap.Uint8("address", md.cfg.Address))
	}

	s.running = true
	return nil
}

// Stop 停止全部设备。共享线路在最后一台设备停止时关闭。
func (s *deviceService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	var firstErr error
	for i := len(s.order) - 1; i >= 0; i-- {
		md := s.devices[s.order[i]]
		if err := md.device.Stop(); err != nil {
			s.log.Warn("设备停止出错",
				zap.String("device", md.cfg.Name),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.running = false
	return firstErr
}

// List 列出全部设备状态
func (s *deviceService) List() []*DeviceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]*DeviceStatus, 0, len(s.order))
	for _, name := range s.order {
		statuses = append(statuses, s.statusLocked(s.devices[name]))
	}
	return statuses
}

// Get 获取单台设备状态
func (s *deviceService) Get(name string) (*DeviceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	md, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return s.statusLocked(md), nil
}

func (s *deviceService) statusLocked(md *managedDevice) *DeviceStatus {
	status := &DeviceStatus{
		Name:         md.cfg.Name,
		Category:     md.cfg.Category,
		SerialDevice: md.cfg.SerialDevice,
		Address:      md.cfg.Address,
		State:        md.device.State().String(),
		PollInterval: md.device.PollInterval(),
	}
	if info := md.device.Info(); info.Category != cctalk.CategoryUnknown {
		status.Info = &info
	}
	return status
}

// Identifiers 获取设备的标识表
func (s *deviceService) Identifiers(name string) (map[uint8]cctalk.Identifier, error) {
	md, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return md.device.Identifiers(), nil
}

// Counters 读取设备生命周期计数器。命令经由轮询goroutine串行执行。
func (s *deviceService) Counters(name string) (*DeviceCounters, error) {
	md, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	counters := &DeviceCounters{}
	err = md.device.Exec(func(c *cctalk.Commands) error {
		var err error
		if counters.Accepted, err = c.GetAcceptCounter(); err != nil {
			return err
		}
		if counters.Rejected, err = c.GetRejectCounter(); err != nil {
			return err
		}
		if counters.Fraud, err = c.GetFraudCounter(); err != nil {
			return err
		}
		if counters.Insertion, err = c.GetInsertionCounter(); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// SetAccept 切换设备接收/拒收
func (s *deviceService) SetAccept(name string, accept bool) error {
	md, err := s.lookup(name)
	if err != nil {
		return err
	}
	md.device.SetAccept(accept)
	return nil
}

// Reset 复位设备
func (s *deviceService) Reset(name string) error {
	md, err := s.lookup(name)
	if err != nil {
		return err
	}
	return md.device.Reset()
}

// OnEvent 订阅设备事件
func (s *deviceService) OnEvent(fn func(DeviceEvent)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

func (s *deviceService) lookup(name string) (*managedDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return md, nil
}

func (s *deviceService) broadcast(ev DeviceEvent) {
	s.mu.Lock()
	var subs []func(DeviceEvent)
	subs = append(subs, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// handleCredit 投入确认：落库并广播。回调在轮询goroutine上触发，
// 落库异步执行避免拖慢轮询。
func (s *deviceService) handleCredit(md *managedDevice, ev cctalk.CreditEvent) {
	s.log.Info("投入确认",
		zap.String("device", md.cfg.Name),
		zap.Uint8("position", ev.Position),
		zap.String("id", ev.Identifier.IDString),
		zap.Float64("amount", ev.Identifier.CurrencyValue()))

	go s.persistCredit(md, ev)

	s.broadcast(DeviceEvent{
		Type:       DeviceEventCredit,
		DeviceName: md.cfg.Name,
		Category:   md.cfg.Category,
		Payload:    ev,
		Time:       ev.Time,
	})
}

func (s *deviceService) persistCredit(md *managedDevice, ev cctalk.CreditEvent) {
	value, divisorExp := ev.Identifier.Value()
	divisor := uint16(1)
	for i := uint8(0); i < divisorExp; i++ {
		divisor *= 10
	}

	record := &models.CreditRecord{
		DeviceName:     md.cfg.Name,
		DeviceCategory: md.cfg.Category,
		Position:       ev.Position,
		Ident:          ev.Identifier.IDString,
		Country:        ev.Identifier.Country,
		ValueCode:      identValueCode(ev.Identifier.IDString),
		Amount:         ev.Identifier.CurrencyValue(),
		RawValue:       uint16(value),
		Divisor:        divisor,
		CreditedAt:     ev.Time,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.creditRepo.Create(ctx, record); err != nil {
		s.log.Error("投入流水落库失败",
			zap.String("device", md.cfg.Name),
			zap.String("id", ev.Identifier.IDString),
			zap.Error(err))
	}
}

// identValueCode 取标识字符串中的面值编码部分
func identValueCode(id string) string {
	switch len(id) {
	case 7:
		return id[2:6]
	case 6:
		return id[2:5]
	}
	return ""
}

// handleStateChange 状态迁移：落库并广播
func (s *deviceService) handleStateChange(md *managedDevice, sc cctalk.StateChange) {
	go func() {
		record := &models.DeviceStateRecord{
			DeviceName: md.cfg.Name,
			OldState:   sc.Old.String(),
			NewState:   sc.New.String(),
			ChangedAt:  sc.Time,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.stateRepo.Create(ctx, record); err != nil {
			s.log.Error("状态迁移落库失败",
				zap.String("device", md.cfg.Name),
				zap.Error(err))
		}
	}()

	s.broadcast(DeviceEvent{
		Type:       DeviceEventStateChange,
		DeviceName: md.cfg.Name,
		Category:   md.cfg.Category,
		Payload:    sc,
		Time:       sc.Time,
	})
}

// handleDeviceEvent 原始事件：按类别解码后广播
func (s *deviceService) handleDeviceEvent(md *managedDevice, cat cctalk.Category, entry cctalk.EventEntry) {
	var payload interface{}
	switch cat {
	case cctalk.CategoryBillValidator:
		payload = entry.BillEvent()
	default:
		payload = entry.CoinEvent()
	}

	s.broadcast(DeviceEvent{
		Type:       DeviceEventRaw,
		DeviceName: md.cfg.Name,
		Category:   md.cfg.Category,
		Payload:    payload,
		Time:       time.Now(),
	})
}
