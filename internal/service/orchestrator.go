package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/metrics"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// 状态迁移原因
const (
	reasonContentChanged = "content_changed"
	reasonInterrupted    = "interrupted"
	reasonDeleted        = "deleted"
)

// Options 编排器参数
type Options struct {
	Retry          RetryPolicy
	BatchTimeout   time.Duration
	MaxConcurrency int
	// Sleep / Now 测试时注入
	Sleep Sleeper
	Now   func() time.Time
}

func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		Retry:          RetryPolicyFromConfig(cfg),
		BatchTimeout:   cfg.BatchTimeout,
		MaxConcurrency: cfg.MaxConcurrencyPerPlatform,
	}
}

// SubmitRequest 一次批量同步的入参
type SubmitRequest struct {
	BusinessID string
	// Platforms 为空时使用全部已注册平台
	Platforms []string
	Mode      model.SyncMode
	// Rank 为 true 时按相关性排序并过滤掉低于 MinScore 的平台
	Rank     bool
	MinScore float64
}

type runningBatch struct {
	cancel context.CancelFunc
	done   chan struct{}
	report *model.BatchReport
}

// SyncOrchestrator 驱动每个 (商户, 平台) 完成 能力检查 -> 转换 -> 调用 -> 重试 -> 状态落库
type SyncOrchestrator struct {
	registry   *adapter.PlatformRegistry
	dispatcher *Dispatcher
	mappings   interfaces.MappingRepository
	businesses interfaces.BusinessRepository
	batches    interfaces.BatchRepository
	access     *PlatformAccess
	locker     PairLocker
	metrics    *metrics.SyncMetrics
	logger     *logrus.Logger
	opts       Options

	mu      sync.Mutex
	running map[string]*runningBatch
}

func NewSyncOrchestrator(
	registry *adapter.PlatformRegistry,
	mappings interfaces.MappingRepository,
	businesses interfaces.BusinessRepository,
	batches interfaces.BatchRepository,
	creds *CredentialStore,
	locker PairLocker,
	m *metrics.SyncMetrics,
	opts Options,
	logger *logrus.Logger,
) *SyncOrchestrator {
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &SyncOrchestrator{
		registry:   registry,
		dispatcher: NewDispatcher(registry.Capabilities(), m, logger),
		mappings:   mappings,
		businesses: businesses,
		batches:    batches,
		access:     NewPlatformAccess(registry.Capabilities(), creds, opts.MaxConcurrency, logger),
		locker:     locker,
		metrics:    m,
		logger:     logger,
		opts:       opts,
		running:    make(map[string]*runningBatch),
	}
}

// Access 平台调用出口，漂移检测与编排器共用
func (o *SyncOrchestrator) Access() *PlatformAccess {
	return o.access
}

// Submit 以 create/update 方式提交到目标平台，立即返回批次 ID，后台执行
func (o *SyncOrchestrator) Submit(ctx context.Context, businessID string, platforms []string) (string, error) {
	return o.Start(ctx, SubmitRequest{BusinessID: businessID, Platforms: platforms, Mode: model.ModeSubmit})
}

// Start 创建批次并在后台执行；批次不受调用方 ctx 取消影响，只受 batch_timeout 与 Cancel 控制
func (o *SyncOrchestrator) Start(ctx context.Context, req SubmitRequest) (string, error) {
	if req.Mode == "" {
		req.Mode = model.ModeSubmit
	}
	if req.Mode != model.ModeSubmit && req.Mode != model.ModeDiscover {
		return "", &model.ValidationError{Field: "mode", Message: "must be submit or discover"}
	}
	record, err := o.businesses.Get(ctx, req.BusinessID)
	if err != nil {
		return "", err
	}
	targets, err := o.targets(record, req)
	if err != nil {
		return "", err
	}

	batch := &model.SyncBatch{
		BatchUUID:  uuid.NewString(),
		BusinessID: record.ID,
		Mode:       req.Mode,
		State:      model.BatchRunning,
	}
	if err := o.batches.CreateBatch(ctx, batch, targets); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if o.opts.BatchTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, o.opts.BatchTimeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}
	rb := &runningBatch{cancel: cancel, done: make(chan struct{})}
	o.mu.Lock()
	o.running[batch.BatchUUID] = rb
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"batch_id":    batch.BatchUUID,
		"business_id": record.ID,
		"mode":        req.Mode,
		"platforms":   targets,
	}).Info("同步批次开始")

	go func() {
		defer cancel()
		rb.report = o.execute(runCtx, batch, record, targets)
		o.mu.Lock()
		delete(o.running, batch.BatchUUID)
		o.mu.Unlock()
		close(rb.done)
	}()
	return batch.BatchUUID, nil
}

// Run 同步执行一个批次并返回报告
func (o *SyncOrchestrator) Run(ctx context.Context, req SubmitRequest) (*model.BatchReport, error) {
	batchID, err := o.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Wait(ctx, batchID)
}

// Wait 等待批次结束；已结束的批次从存储中重建报告
func (o *SyncOrchestrator) Wait(ctx context.Context, batchID string) (*model.BatchReport, error) {
	o.mu.Lock()
	rb, ok := o.running[batchID]
	o.mu.Unlock()
	if ok {
		select {
		case <-rb.done:
			return rb.report, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.storedReport(ctx, batchID)
}

// Cancel 取消在途批次；仍处于 pending 的平台会回到 unsynced
func (o *SyncOrchestrator) Cancel(ctx context.Context, batchID string) error {
	o.mu.Lock()
	rb, ok := o.running[batchID]
	o.mu.Unlock()
	if ok {
		o.logger.WithField("batch_id", batchID).Info("取消同步批次")
		rb.cancel()
		return nil
	}
	// 已结束的批次取消为空操作
	_, err := o.batches.GetBatch(ctx, batchID)
	return err
}

// Status 批次内每个平台的当前状态
func (o *SyncOrchestrator) Status(ctx context.Context, batchID string) ([]model.PlatformStatus, error) {
	batch, err := o.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	items, err := o.batches.ListItems(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("查询批次明细失败: %w", err)
	}
	out := make([]model.PlatformStatus, 0, len(items))
	for _, item := range items {
		st := model.PlatformStatus{
			PlatformName: item.PlatformName,
			Status:       item.Status,
			Simulated:    item.Simulated,
		}
		if item.PlatformID != nil {
			st.PlatformID = *item.PlatformID
		}
		if item.LastError != nil {
			st.LastError = *item.LastError
		}
		m, err := o.mappings.Get(ctx, batch.BusinessID, item.PlatformName)
		switch {
		case err == nil:
			st.Status = m.Status
			st.PlatformID = m.RemoteID()
			st.LastError = m.Error()
			st.Simulated = m.Simulated
		case !errors.Is(err, model.ErrNotFound):
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// GetMapping 查询单个 (商户, 平台) 的同步状态
func (o *SyncOrchestrator) GetMapping(ctx context.Context, businessID, platform string) (*model.SyncMapping, error) {
	return o.mappings.Get(ctx, businessID, strings.ToLower(platform))
}

// Transitions 状态迁移日志
func (o *SyncOrchestrator) Transitions(ctx context.Context, businessID, platform string) ([]*model.SyncTransition, error) {
	return o.mappings.ListTransitions(ctx, businessID, strings.ToLower(platform))
}

// RankPlatforms 对全部已注册平台打分排序
func (o *SyncOrchestrator) RankPlatforms(ctx context.Context, businessID string) ([]ScoredPlatform, error) {
	record, err := o.businesses.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return Rank(record, o.registry.Profiles()), nil
}

func (o *SyncOrchestrator) targets(record *model.BusinessRecord, req SubmitRequest) ([]string, error) {
	requested := req.Platforms
	if len(requested) == 0 {
		requested = o.registry.ListRegisteredPlatforms()
	}
	seen := make(map[string]struct{}, len(requested))
	var out []string
	for _, p := range requested {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		if _, err := o.registry.GetAdapter(name); err != nil {
			return nil, err
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, &model.ValidationError{Field: "platforms", Message: "no target platform"}
	}
	if !req.Rank {
		return out, nil
	}

	profiles := make([]model.PlatformProfile, 0, len(out))
	for _, name := range out {
		profile, _ := o.registry.Profile(name)
		profile.Name = name
		profiles = append(profiles, profile)
	}
	ranked := Filter(Rank(record, profiles), req.MinScore)
	if len(ranked) == 0 {
		return nil, &model.ValidationError{Field: "platforms", Message: "no platform passes the relevance threshold"}
	}
	return Names(ranked), nil
}

func (o *SyncOrchestrator) execute(ctx context.Context, batch *model.SyncBatch, record *model.BusinessRecord, targets []string) *model.BatchReport {
	results := make([]model.PlatformResult, len(targets))
	var g errgroup.Group
	for i, platform := range targets {
		i, platform := i, platform
		g.Go(func() error {
			res := o.syncPair(ctx, batch, record, platform)
			if err := o.batches.SaveItem(context.WithoutCancel(ctx), batch.BatchUUID, res); err != nil {
				o.logger.WithError(err).WithFields(logrus.Fields{
					"batch_id": batch.BatchUUID,
					"platform": platform,
				}).Error("保存批次明细失败")
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := &model.BatchReport{
		BatchID:    batch.BatchUUID,
		BusinessID: record.ID,
		State:      model.BatchCompleted,
	}
	for _, res := range results {
		report.Add(res)
	}
	if ctx.Err() != nil {
		report.State = model.BatchCancelled
	}
	if err := o.batches.FinishBatch(context.WithoutCancel(ctx), batch.BatchUUID, report); err != nil {
		o.logger.WithError(err).WithField("batch_id", batch.BatchUUID).Error("结束批次失败")
	}
	o.metrics.ObserveBatch(string(report.State))
	o.logger.WithFields(logrus.Fields{
		"batch_id":  batch.BatchUUID,
		"state":     report.State,
		"submitted": report.Submitted,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"simulated": report.Simulated,
	}).Info("同步批次结束")
	return report
}

// pairRun 单个 (商户, 平台) 的执行上下文
type pairRun struct {
	o        *SyncOrchestrator
	batchID  string
	record   *model.BusinessRecord
	platform string
	adapter  interfaces.PlatformAdapter
	caps     model.PlatformCapabilities
	creds    *model.AuthCredentials
	mapping  *model.SyncMapping
	result   model.PlatformResult
	log      *logrus.Entry

	// photosHash 本次已上传照片的摘要，随 submitted 落库
	photosHash string
}

func (o *SyncOrchestrator) syncPair(ctx context.Context, batch *model.SyncBatch, record *model.BusinessRecord, platform string) model.PlatformResult {
	p := &pairRun{
		o:        o,
		batchID:  batch.BatchUUID,
		record:   record,
		platform: platform,
		result:   model.PlatformResult{PlatformName: platform, Status: model.SyncUnsynced},
		log: o.logger.WithFields(logrus.Fields{
			"batch_id":    batch.BatchUUID,
			"business_id": record.ID,
			"platform":    platform,
		}),
	}
	// DB 写入不随批次取消中断，否则会留下 pending
	dbCtx := context.WithoutCancel(ctx)

	a, err := o.registry.GetAdapter(platform)
	if err != nil {
		return p.failed(model.ReasonNotFound)
	}
	caps, err := o.registry.Capabilities().Lookup(platform)
	if err != nil {
		return p.failed(model.ReasonNotFound)
	}
	p.adapter, p.caps = a, caps

	release, ok, err := o.locker.TryLock(ctx, PairKey(record.ID, platform))
	if err != nil {
		p.log.WithError(err).Error("获取同步锁失败")
		return p.failed(model.ReasonUnexpected)
	}
	if !ok {
		p.log.Info("该平台已有同步在途，跳过")
		return p.skipped(dbCtx, model.ReasonAlreadyInProgress)
	}
	defer release()

	m, err := o.mappings.GetOrCreate(dbCtx, record.ID, platform)
	if err != nil {
		p.log.WithError(err).Error("获取同步映射失败")
		return p.failed(model.ReasonUnexpected)
	}
	p.mapping = m

	switch m.Status {
	case model.SyncPending:
		// 上次执行中断遗留的 pending，持锁后回收
		if err := p.transition(dbCtx, model.SyncUnsynced, reasonInterrupted, nil); err != nil {
			return p.failed(model.ReasonUnexpected)
		}
	case model.SyncSubmitted, model.SyncVerified:
		return p.skipped(dbCtx, model.ReasonAwaitingVerification)
	case model.SyncSynced:
		if m.ContentHash == record.ContentHash() {
			return p.skipped(dbCtx, model.ReasonAlreadySynced)
		}
		if err := p.transition(dbCtx, model.SyncStale, reasonContentChanged, nil); err != nil {
			return p.failed(model.ReasonUnexpected)
		}
	}

	if ctx.Err() != nil {
		return p.skipped(dbCtx, model.ReasonCancelled)
	}

	op := p.operation(batch.Mode)
	if !o.registry.Capabilities().CanPerform(platform, op) {
		p.log.WithField("operation", op).Warn("平台不支持该操作，未发起调用")
		return p.fail(dbCtx, model.ReasonUnsupportedOperation)
	}
	if missing := caps.MissingFields(record); len(missing) > 0 {
		p.log.WithField("missing", missing).Warn("档案缺少平台必填字段")
		return p.fail(dbCtx, model.ReasonValidation)
	}

	now := o.opts.Now()
	if err := p.transition(dbCtx, model.SyncPending, "", func(m *model.SyncMapping) {
		m.BatchID = p.batchID
		m.LastAttemptAt = &now
	}); err != nil {
		return p.failed(model.ReasonUnexpected)
	}

	p.creds, err = o.access.Credentials(ctx, a, record.TenantID)
	switch {
	case ctx.Err() != nil:
		return p.cancelled(dbCtx)
	case err != nil:
		p.log.WithError(err).Warn("获取平台凭证失败")
		return p.fail(dbCtx, model.ReasonAuthentication)
	}

	req := &model.ListingRequest{Credentials: p.creds, Record: record, PlatformID: m.RemoteID()}
	exec, simulated := p.perform(ctx, op, req)

	switch {
	case exec.Outcome == model.OutcomeSuccess:
		if op == model.OpCreate || op == model.OpUpdate {
			p.uploadPhotos(ctx, exec.Response)
		}
		return p.succeed(dbCtx, op, exec.Response, simulated)
	case ctx.Err() != nil:
		return p.cancelled(dbCtx)
	default:
		return p.fail(dbCtx, exec.Reason)
	}
}

// operation submit 模式无远端 ID 时 create，否则 update；discover 模式先 search 再 claim
func (p *pairRun) operation(mode model.SyncMode) model.Operation {
	if mode == model.ModeDiscover {
		if p.mapping.RemoteID() == "" {
			return model.OpSearch
		}
		return model.OpClaim
	}
	if p.mapping.RemoteID() == "" {
		return model.OpCreate
	}
	return model.OpUpdate
}

// perform 执行操作（含重试）；discover 路径 search 成功后继续 claim
func (p *pairRun) perform(ctx context.Context, op model.Operation, req *model.ListingRequest) (retryResult, bool) {
	if op != model.OpSearch {
		exec := p.o.invoke(ctx, p.adapter, op, req)
		p.result.Attempts += exec.Attempts
		return exec, exec.Response != nil && exec.Response.Simulated
	}

	req.Query = model.QueryFromRecord(p.record)
	exec := p.o.invoke(ctx, p.adapter, model.OpSearch, req)
	p.result.Attempts += exec.Attempts
	if exec.Outcome != model.OutcomeSuccess {
		return exec, false
	}
	simulated := exec.Response.Simulated
	if exec.Response.PlatformID == "" {
		p.log.Info("平台上未检索到该商户")
		exec.Outcome, exec.Reason = model.OutcomeFatal, model.ReasonNotDiscovered
		return exec, simulated
	}
	if !p.o.registry.Capabilities().CanPerform(p.platform, model.OpClaim) {
		return exec, simulated
	}

	req.PlatformID = exec.Response.PlatformID
	claim := p.o.invoke(ctx, p.adapter, model.OpClaim, req)
	p.result.Attempts += claim.Attempts
	if claim.Outcome == model.OutcomeSuccess && claim.Response.PlatformID == "" {
		claim.Response.PlatformID = req.PlatformID
	}
	return claim, simulated || (claim.Response != nil && claim.Response.Simulated)
}

// invoke 闸门 + 调度 + 重试；每次尝试单独占用并发槽位，退避期间不占用
func (o *SyncOrchestrator) invoke(ctx context.Context, a interfaces.PlatformAdapter, op model.Operation, req *model.ListingRequest) retryResult {
	platform := a.Name()
	onRetry := func(reason string, wait time.Duration) {
		o.metrics.ObserveRetry(platform, reason)
		o.logger.WithFields(logrus.Fields{
			"platform":  platform,
			"operation": op,
			"reason":    reason,
			"wait":      wait.String(),
		}).Warn("平台调用失败，退避后重试")
	}
	return o.opts.Retry.Run(ctx, o.opts.Sleep, o.opts.Now, onRetry, func(int) *model.PlatformResponse {
		var resp *model.PlatformResponse
		if err := o.access.Do(ctx, platform, func() { resp = o.dispatcher.Dispatch(ctx, a, op, req) }); err != nil {
			return model.Fail(op, model.ReasonRateLimited, 0)
		}
		return resp
	})
}

// uploadPhotos 商户页写入成功后同步照片；照片未变化时不重复上传，失败不影响商户页结果
func (p *pairRun) uploadPhotos(ctx context.Context, resp *model.PlatformResponse) {
	if len(p.record.Photos) == 0 || !p.o.registry.Capabilities().CanPerform(p.platform, model.OpPhotos) {
		return
	}
	hash := p.record.PhotosHash()
	if hash == p.mapping.PhotosHash {
		return
	}
	platformID := resp.PlatformID
	if platformID == "" {
		platformID = p.mapping.RemoteID()
	}
	exec := p.o.invoke(ctx, p.adapter, model.OpPhotos, &model.ListingRequest{
		Credentials: p.creds,
		Record:      p.record,
		PlatformID:  platformID,
	})
	if exec.Outcome != model.OutcomeSuccess {
		p.result.PhotosError = exec.Reason
		p.log.WithField("reason", exec.Reason).Warn("照片上传失败")
		return
	}
	p.photosHash = hash
	p.result.PhotosUploaded = len(p.record.Photos)
}

func (p *pairRun) transition(ctx context.Context, to model.SyncStatus, reason string, mutate func(m *model.SyncMapping)) error {
	from := p.mapping.Status
	if err := p.o.mappings.Transition(ctx, p.mapping, to, reason, mutate); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"from": from,
			"to":   to,
		}).Error("同步状态迁移失败")
		return err
	}
	p.o.metrics.ObserveTransition(string(from), string(to))
	return nil
}

func (p *pairRun) finish(outcome, reason string) model.PlatformResult {
	p.result.Outcome = outcome
	p.result.Error = reason
	if p.mapping != nil {
		p.result.Status = p.mapping.Status
		p.result.PlatformID = p.mapping.RemoteID()
		if outcome == model.ItemSubmitted {
			p.result.Simulated = p.mapping.Simulated
		}
	}
	p.o.metrics.ObserveOutcome(p.platform, outcome, reason)
	return p.result
}

// failed 映射无法落库时的失败结果
func (p *pairRun) failed(reason string) model.PlatformResult {
	return p.finish(model.ItemFailed, reason)
}

// skipped 不改变映射状态
func (p *pairRun) skipped(ctx context.Context, reason string) model.PlatformResult {
	if p.mapping == nil {
		if m, err := p.o.mappings.Get(ctx, p.record.ID, p.platform); err == nil {
			p.mapping = m
		}
	}
	return p.finish(model.ItemSkipped, reason)
}

// fail 迁移到 failed 并记录原因，错误计数 +1
func (p *pairRun) fail(ctx context.Context, reason string) model.PlatformResult {
	if reason == "" {
		reason = model.ReasonUnexpected
	}
	now := p.o.opts.Now()
	if err := p.transition(ctx, model.SyncFailed, reason, func(m *model.SyncMapping) {
		m.BatchID = p.batchID
		m.ErrorCount++
		m.LastError = &reason
		if m.LastAttemptAt == nil {
			m.LastAttemptAt = &now
		}
	}); err != nil {
		return p.failed(model.ReasonUnexpected)
	}
	p.log.WithField("reason", reason).Warn("平台同步失败")
	return p.finish(model.ItemFailed, reason)
}

// cancelled pending 回到 unsynced，之后重试总是安全的
func (p *pairRun) cancelled(ctx context.Context) model.PlatformResult {
	reason := model.ReasonCancelled
	if err := p.transition(ctx, model.SyncUnsynced, reason, func(m *model.SyncMapping) {
		m.LastError = &reason
	}); err != nil {
		return p.failed(model.ReasonUnexpected)
	}
	p.log.Info("批次已取消，平台回到 unsynced")
	return p.finish(model.ItemSkipped, reason)
}

// succeed pending -> submitted；无需验证的平台继续 -> synced
func (p *pairRun) succeed(ctx context.Context, op model.Operation, resp *model.PlatformResponse, simulated bool) model.PlatformResult {
	platformID := resp.PlatformID
	if platformID == "" {
		platformID = p.mapping.RemoteID()
	}
	if err := p.transition(ctx, model.SyncSubmitted, "", func(m *model.SyncMapping) {
		if platformID != "" {
			m.PlatformID = &platformID
		}
		m.Simulated = simulated
		m.LastError = nil
		if p.photosHash != "" {
			m.PhotosHash = p.photosHash
		}
	}); err != nil {
		return p.failed(model.ReasonUnexpected)
	}

	// 已有远端 ID 的更新不需要重新验证
	if p.caps.RequiresVerification && op != model.OpUpdate {
		p.log.WithField("platform_id", platformID).Info("已提交，等待平台验证")
		return p.finish(model.ItemSubmitted, "")
	}

	now := p.o.opts.Now()
	hash := p.record.ContentHash()
	if err := p.transition(ctx, model.SyncSynced, "", func(m *model.SyncMapping) {
		m.LastSuccessAt = &now
		m.ContentHash = hash
		m.ErrorCount = 0
	}); err != nil {
		return p.failed(model.ReasonUnexpected)
	}
	p.log.WithFields(logrus.Fields{
		"platform_id": platformID,
		"simulated":   simulated,
	}).Info("平台同步完成")
	return p.finish(model.ItemSubmitted, "")
}

// lockPair 单次操作（verify/delete）使用的同步锁
func (o *SyncOrchestrator) lockPair(ctx context.Context, businessID, platform string) (func(), error) {
	release, ok, err := o.locker.TryLock(ctx, PairKey(businessID, platform))
	if err != nil {
		return nil, fmt.Errorf("获取同步锁失败: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAlreadyInProgress, PairKey(businessID, platform))
	}
	return release, nil
}

// Verify 提交验证码：submitted -> verified -> synced；失败时映射保持 submitted
func (o *SyncOrchestrator) Verify(ctx context.Context, businessID, platform, code string) (*model.SyncMapping, error) {
	platform = strings.ToLower(platform)
	if strings.TrimSpace(code) == "" {
		return nil, &model.ValidationError{Field: "code", Message: "is required"}
	}
	a, err := o.registry.GetAdapter(platform)
	if err != nil {
		return nil, err
	}
	release, err := o.lockPair(ctx, businessID, platform)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := o.mappings.Get(ctx, businessID, platform)
	if err != nil {
		return nil, err
	}
	if m.Status != model.SyncSubmitted {
		return m, fmt.Errorf("%w: %s 当前状态为 %s", model.ErrInvalidTransition, PairKey(businessID, platform), m.Status)
	}
	if !o.registry.Capabilities().CanPerform(platform, model.OpVerify) {
		return m, fmt.Errorf("%w: %s 不支持 verify", model.ErrUnsupportedOperation, platform)
	}
	record, err := o.businesses.Get(ctx, businessID)
	if err != nil {
		return m, err
	}
	creds, err := o.access.Credentials(ctx, a, record.TenantID)
	if err != nil {
		return m, err
	}

	exec := o.invoke(ctx, a, model.OpVerify, &model.ListingRequest{
		Credentials:      creds,
		Record:           record,
		PlatformID:       m.RemoteID(),
		VerificationCode: code,
	})
	if exec.Outcome != model.OutcomeSuccess {
		return m, fmt.Errorf("验证%s失败: %w", platform, model.ReasonError(exec.Reason))
	}

	p := &pairRun{o: o, record: record, platform: platform, mapping: m, log: o.logger.WithFields(logrus.Fields{
		"business_id": businessID,
		"platform":    platform,
	})}
	if err := p.transition(ctx, model.SyncVerified, "", nil); err != nil {
		return m, err
	}
	now := o.opts.Now()
	hash := record.ContentHash()
	if err := p.transition(ctx, model.SyncSynced, "", func(m *model.SyncMapping) {
		m.LastSuccessAt = &now
		m.ContentHash = hash
		m.ErrorCount = 0
		m.LastError = nil
	}); err != nil {
		return m, err
	}
	p.log.Info("平台验证通过")
	return m, nil
}

// readOperations Invoke 允许的只读操作
var readOperations = map[model.Operation]bool{
	model.OpGet:       true,
	model.OpSearch:    true,
	model.OpReviews:   true,
	model.OpAnalytics: true,
}

// Invoke 对已同步的平台执行只读操作（get / reviews / analytics / search）
func (o *SyncOrchestrator) Invoke(ctx context.Context, businessID, platform string, op model.Operation) (*model.PlatformResponse, error) {
	platform = strings.ToLower(platform)
	if !readOperations[op] {
		return nil, &model.ValidationError{Field: "operation", Message: fmt.Sprintf("%s is not a read operation", op)}
	}
	a, err := o.registry.GetAdapter(platform)
	if err != nil {
		return nil, err
	}
	record, err := o.businesses.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	req := &model.ListingRequest{Record: record}
	if op == model.OpSearch {
		req.Query = model.QueryFromRecord(record)
	} else {
		m, err := o.mappings.Get(ctx, businessID, platform)
		if err != nil {
			return nil, err
		}
		if m.RemoteID() == "" {
			return nil, &model.NotFoundError{Kind: "platform_listing", Key: PairKey(businessID, platform)}
		}
		req.PlatformID = m.RemoteID()
	}
	if req.Credentials, err = o.access.Credentials(ctx, a, record.TenantID); err != nil {
		return nil, err
	}
	exec := o.invoke(ctx, a, op, req)
	return exec.Response, nil
}

// resetPath 从当前状态合法地回到 unsynced
func resetPath(from model.SyncStatus) []model.SyncStatus {
	switch from {
	case model.SyncSynced:
		return []model.SyncStatus{model.SyncStale, model.SyncPending, model.SyncUnsynced}
	case model.SyncSubmitted, model.SyncVerified:
		return []model.SyncStatus{model.SyncFailed, model.SyncPending, model.SyncUnsynced}
	case model.SyncPending:
		return []model.SyncStatus{model.SyncUnsynced}
	default:
		return []model.SyncStatus{model.SyncPending, model.SyncUnsynced}
	}
}

// Delete 删除远端商户页（平台支持时），映射回到 unsynced 并清空远端 ID
func (o *SyncOrchestrator) Delete(ctx context.Context, businessID, platform string) (*model.SyncMapping, error) {
	platform = strings.ToLower(platform)
	a, err := o.registry.GetAdapter(platform)
	if err != nil {
		return nil, err
	}
	release, err := o.lockPair(ctx, businessID, platform)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := o.mappings.Get(ctx, businessID, platform)
	if err != nil {
		return nil, err
	}
	if m.Status == model.SyncUnsynced && m.RemoteID() == "" {
		return m, nil
	}
	log := o.logger.WithFields(logrus.Fields{
		"business_id": businessID,
		"platform":    platform,
	})

	if m.RemoteID() != "" {
		if !o.registry.Capabilities().CanPerform(platform, model.OpDelete) {
			return m, fmt.Errorf("%w: %s 不支持 delete", model.ErrUnsupportedOperation, platform)
		}
		record, err := o.businesses.Get(ctx, businessID)
		if err != nil {
			return m, err
		}
		creds, err := o.access.Credentials(ctx, a, record.TenantID)
		if err != nil {
			return m, err
		}
		exec := o.invoke(ctx, a, model.OpDelete, &model.ListingRequest{
			Credentials: creds,
			Record:      record,
			PlatformID:  m.RemoteID(),
		})
		// 远端已不存在视为删除成功
		if exec.Outcome != model.OutcomeSuccess && exec.Reason != model.ReasonNotFound {
			return m, fmt.Errorf("删除%s商户页失败: %w", platform, model.ReasonError(exec.Reason))
		}
	}

	p := &pairRun{o: o, platform: platform, mapping: m, log: log}
	path := resetPath(m.Status)
	for i, to := range path {
		var mutate func(m *model.SyncMapping)
		if i == len(path)-1 {
			mutate = func(m *model.SyncMapping) {
				m.PlatformID = nil
				m.ContentHash = ""
				m.PhotosHash = ""
				m.Simulated = false
				m.LastError = nil
			}
		}
		if err := p.transition(ctx, to, reasonDeleted, mutate); err != nil {
			return m, err
		}
	}
	log.Info("平台商户页已删除")
	return m, nil
}

func (o *SyncOrchestrator) storedReport(ctx context.Context, batchID string) (*model.BatchReport, error) {
	batch, err := o.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	items, err := o.batches.ListItems(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("查询批次明细失败: %w", err)
	}
	report := &model.BatchReport{
		BatchID:    batch.BatchUUID,
		BusinessID: batch.BusinessID,
		State:      batch.State,
	}
	for _, item := range items {
		res := model.PlatformResult{
			PlatformName: item.PlatformName,
			Outcome:      item.Outcome,
			Status:       item.Status,
			Attempts:     item.Attempts,
			Simulated:    item.Simulated,
		}
		if item.PlatformID != nil {
			res.PlatformID = *item.PlatformID
		}
		if item.LastError != nil {
			res.Error = *item.LastError
		}
		report.Add(res)
	}
	return report, nil
}
