package cctalk

import (
	"time"

	"github.com/wfunc/cctalk-service/internal/errors"
	"go.uber.org/zap"
)

// batchActions 一批事件处理过程中积累的批末动作
type batchActions struct {
	selfCheck    bool
	pendingRoute bool
	forceReject  bool
	routePos     byte
	routeIdent   Identifier
}

// pollEvents 正常轮询tick：读取事件缓冲并对账。
// 读响应超时按协议语义视为"本轮无话可说"，静默跳过。
func (d *Device) pollEvents() {
	category := d.Info().Category

	var buf EventBuffer
	var err error
	if category == CategoryBillValidator {
		buf, err = d.cmds.ReadBufferedBillEvents()
	} else {
		buf, err = d.cmds.ReadBufferedCredit()
	}
	if err != nil {
		if errors.GetCode(err) == errors.ErrResponseTimeout {
			return
		}
		d.escalateLinkError(err)
		return
	}

	d.reconcile(category, buf)
}

// reconcile 将设备的滚动事件缓冲与宿主游标对账。
// 规则按序判定：上电、外部复位、无新事件、启动扫读、常规增量。
func (d *Device) reconcile(category Category, buf EventBuffer) {
	d.mu.Lock()
	last := d.cursor.lastCounter
	accepting := d.state == StateNormalAccepting
	d.mu.Unlock()

	switch {
	case last == 0 && buf.Counter == 0:
		// 设备刚上电，无历史可处理
		d.commitCursor(0)
		return

	case last != 0 && buf.Counter == 0:
		// 设备被外部复位，期间的投入可能已丢失
		d.logger.Error("检测到设备外部复位，可能丢失投币计数",
			zap.Uint8("last_counter", last))
		d.mu.Lock()
		d.cursor = hostCursor{}
		d.mu.Unlock()
		d.setState(StateExternalReset)
		return

	case last == buf.Counter:
		// 无新事件
		return
	}

	// 启动扫读：宿主首次读取，事件属于上一个宿主进程，只记录不计币
	sweep := last == 0

	diff := buf.NewEventsSince(last)
	if diff > len(buf.Entries) {
		d.logger.Error("事件缓冲溢出，部分投入未被计数",
			zap.Uint8("last_counter", last),
			zap.Uint8("counter", buf.Counter),
			zap.Int("missed", diff-len(buf.Entries)))
		diff = len(buf.Entries)
	}

	var actions batchActions
	// 最新在前，从最旧的新事件开始处理
	for index := diff - 1; index >= 0; index-- {
		entry := buf.Entries[index]
		newest := index == 0
		d.notifyDeviceEvent(category, entry)

		if category == CategoryBillValidator {
			d.processBillEntry(entry, newest, sweep, accepting, &actions)
		} else {
			d.processCoinEntry(entry, sweep, accepting, &actions)
		}
	}

	d.finishBatch(&actions)
	d.commitCursor(buf.Counter)
}

// commitCursor 对账完成后推进宿主游标
func (d *Device) commitCursor(counter byte) {
	d.mu.Lock()
	d.cursor.lastCounter = counter
	d.cursor.everRead = true
	d.mu.Unlock()
}

// notifyDeviceEvent 向宿主转发原始事件
func (d *Device) notifyDeviceEvent(category Category, entry EventEntry) {
	d.mu.Lock()
	fn := d.onDeviceEvent
	d.mu.Unlock()
	if fn != nil {
		fn(category, entry)
	}
}

// emitCredit 发出一次投入确认
func (d *Device) emitCredit(position byte, ident Identifier) {
	d.mu.Lock()
	fn := d.onCredit
	category := d.info.Category
	d.mu.Unlock()

	d.logger.Info("投入确认",
		zap.Uint8("position", position),
		zap.String("id", ident.IDString),
		zap.Float64("amount", ident.CurrencyValue()))
	if fn != nil {
		fn(CreditEvent{
			Position:   position,
			Identifier: ident,
			Category:   category,
			Time:       time.Now(),
		})
	}
}

// processCoinEntry 处理一条硬币事件
func (d *Device) processCoinEntry(entry EventEntry, sweep, accepting bool, actions *batchActions) {
	if entry.IsError() {
		event := entry.CoinEvent()
		switch event.Code.Disposition() {
		case CoinDispositionAccepted:
			d.logger.Debug("硬币事件", zap.String("code", event.Code.String()))
		case CoinDispositionUnknown:
			d.logger.Warn("硬币事件码不明，安排自检",
				zap.String("code", event.Code.String()))
			actions.selfCheck = true
		default:
			d.logger.Info("硬币被拒收", zap.String("code", event.Code.String()))
		}
		return
	}

	event := entry.CoinEvent()
	d.mu.Lock()
	ident, ok := d.identifiers[event.Position]
	d.mu.Unlock()
	if !ok {
		// 该位置未配置标识，宁可少计不可错计
		d.logger.Warn("收到未配置位置的投入，跳过计币",
			zap.Uint8("position", event.Position))
		return
	}

	if !accepting && !sweep {
		d.logger.Warn("拒收态下仍收到投入",
			zap.Uint8("position", event.Position))
	}
	if sweep {
		d.logger.Info("启动扫读跳过历史投入",
			zap.Uint8("position", event.Position),
			zap.String("id", ident.IDString))
		return
	}
	d.emitCredit(event.Position, ident)
}

// processBillEntry 处理一条纸币事件
func (d *Device) processBillEntry(entry EventEntry, newest, sweep, accepting bool, actions *batchActions) {
	if entry.IsError() {
		event := entry.BillEvent()
		switch event.Kind {
		case BillEventKindStatus:
			d.logger.Debug("纸币状态通告", zap.String("code", event.ErrorCode.String()))
		case BillEventKindReject:
			d.logger.Info("纸币被拒收", zap.String("code", event.ErrorCode.String()))
		default:
			// 欺诈企图与致命错误都要求自检确认
			d.logger.Warn("纸币异常事件，安排自检",
				zap.String("code", event.ErrorCode.String()),
				zap.String("kind", event.Kind.String()))
			actions.selfCheck = true
		}
		return
	}

	event := entry.BillEvent()
	d.mu.Lock()
	ident, ok := d.identifiers[event.Position]
	d.mu.Unlock()

	switch event.SuccessCode {
	case BillValidatedAndAccepted:
		if !ok {
			d.logger.Warn("收到未配置位置的纸币，跳过计币",
				zap.Uint8("position", event.Position))
			return
		}
		if !accepting && !sweep {
			d.logger.Warn("拒收态下仍收到纸币",
				zap.Uint8("position", event.Position))
		}
		if sweep {
			d.logger.Info("启动扫读跳过历史纸币",
				zap.Uint8("position", event.Position),
				zap.String("id", ident.IDString))
			return
		}
		d.emitCredit(event.Position, ident)

	case BillValidatedHeldInEscrow:
		if !newest {
			// 批内已有后续事件，暂存决定已过期
			d.logger.Debug("暂存事件已过期，忽略",
				zap.Uint8("position", event.Position))
			return
		}
		actions.pendingRoute = true
		actions.routePos = event.Position
		actions.routeIdent = ident
		if !accepting || !ok {
			actions.forceReject = true
		}

	default:
		d.logger.Warn("纸币成功码不明",
			zap.Uint8("position", event.Position),
			zap.String("code", event.SuccessCode.String()))
	}
}

// finishBatch 批末动作，固定顺序：自检、路由决定、诊断迁移
func (d *Device) finishBatch(actions *batchActions) {
	fault := FaultOk
	if actions.selfCheck {
		var err error
		fault, _, err = d.cmds.PerformSelfCheck()
		if err != nil {
			d.logger.Warn("批末自检失败", zap.Error(err))
			fault = FaultUnspecified
		}
	}

	if actions.pendingRoute {
		route := BillRouteToStacker
		if fault != FaultOk || actions.forceReject {
			route = BillRouteReturn
		} else {
			d.mu.Lock()
			pred := d.billPredicate
			d.mu.Unlock()
			if pred != nil && !pred(actions.routePos, actions.routeIdent) {
				route = BillRouteReturn
			}
		}

		status, err := d.cmds.RouteBill(route)
		if err != nil {
			d.logger.Error("纸币路由失败",
				zap.String("route", route.String()),
				zap.Error(err))
		} else if status != BillRouted {
			d.logger.Warn("纸币路由未生效",
				zap.String("route", route.String()),
				zap.String("status", status.String()))
		} else {
			d.logger.Info("纸币已路由",
				zap.Uint8("position", actions.routePos),
				zap.String("route", route.String()))
		}
	}

	if fault != FaultOk {
		d.logger.Warn("自检报告故障，进入诊断轮询",
			zap.String("fault", fault.String()))
		d.enterDiagnostics()
	}
}
