package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

// mockStore 直接在当前仓储集合上执行事务回调
type mockStore struct {
	repos *domain.Repositories
}

func (m *mockStore) Repos() *domain.Repositories {
	return m.repos
}

func (m *mockStore) Transaction(ctx context.Context, fn func(*domain.Repositories) error) error {
	return fn(m.repos)
}

var _ domain.Store = (*mockStore)(nil)

func volKey(controllerID int64, volume string) string {
	return fmt.Sprintf("%d/%s", controllerID, volume)
}

// mockScheduleRepo 内存计划表
type mockScheduleRepo struct {
	domain.ScheduleRepository
	rows    map[int64]*domain.Schedule
	nextID  int64
	updated []*domain.Schedule
	deleted []int64
	// lastRuns 记录水位线推进
	lastRuns map[int64]time.Time
}

func (m *mockScheduleRepo) List(ctx context.Context) ([]*domain.Schedule, error) {
	var out []*domain.Schedule
	for _, s := range m.rows {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockScheduleRepo) ListEnabled(ctx context.Context) ([]*domain.Schedule, error) {
	var out []*domain.Schedule
	for _, s := range m.rows {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) Get(ctx context.Context, id int64) (*domain.Schedule, error) {
	return m.rows[id], nil
}

func (m *mockScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	if m.rows == nil {
		m.rows = map[int64]*domain.Schedule{}
	}
	m.nextID++
	s.ID = m.nextID
	m.rows[s.ID] = s
	return s, nil
}

func (m *mockScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	m.rows[s.ID] = s
	m.updated = append(m.updated, s)
	return nil
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id int64) error {
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockScheduleRepo) UpdateLastRun(ctx context.Context, id int64, lastRun time.Time) error {
	if m.lastRuns == nil {
		m.lastRuns = map[int64]time.Time{}
	}
	m.lastRuns[id] = lastRun
	if s, ok := m.rows[id]; ok {
		s.LastRun = lastRun
	}
	return nil
}

// mockRunner 记录收到的备份请求
type mockRunner struct {
	mu       sync.Mutex
	requests []*domain.BackupRequest
	job      *domain.Job
	err      error
}

func (m *mockRunner) Run(ctx context.Context, req *domain.BackupRequest) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.job, m.err
}

func (m *mockRunner) Requests() []*domain.BackupRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.BackupRequest(nil), m.requests...)
}

var _ BackupRunner = (*mockRunner)(nil)

// mockStorage 以内存 map 模拟控制器上的快照集合
type mockStorage struct {
	domain.StorageClient
	// snapshots key 为 "controllerID/volume"
	snapshots map[string][]string
	// deleteErr 注入 DeleteSnapshot 失败
	deleteErr error
	// keepOnDelete 删除成功返回但快照保留，模拟存储侧删除未生效
	keepOnDelete bool
	deleted      []string
	// liveRelations 存储侧的真实复制关系，key 为源控制器ID
	liveRelations map[int64][]domain.SnapMirrorRelation
	// livePolicies 存储侧的复制策略，key 为策略 UUID
	livePolicies  map[string]*domain.SnapMirrorPolicy
	policyFetches int
	// flexClones 控制器上的克隆卷
	flexClones []string
	mounts     []domain.VolumeMount
	// volumeDeleteErr 注入 DeleteVolume 失败
	volumeDeleteErr error
	deletedVolumes  []string
	// createErr 注入 CreateSnapshot 失败
	createErr     error
	createOpts    []domain.SnapshotOptions
	lockSupported bool
	mirrorUpdates []string
}

func (m *mockStorage) ListSnapshots(ctx context.Context, controllerID int64, volume string) ([]string, error) {
	return m.snapshots[volKey(controllerID, volume)], nil
}

func (m *mockStorage) GetSnapMirrorPolicy(ctx context.Context, controllerID int64, policyUUID string) (*domain.SnapMirrorPolicy, error) {
	m.policyFetches++
	p, ok := m.livePolicies[policyUUID]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Retentions = append([]domain.SnapMirrorRetention(nil), p.Retentions...)
	return &cp, nil
}

func (m *mockStorage) ListSnapMirrorRelations(ctx context.Context, controllerID int64) ([]domain.SnapMirrorRelation, error) {
	return m.liveRelations[controllerID], nil
}

func (m *mockStorage) DeleteSnapshot(ctx context.Context, controllerID int64, volume, name string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	key := volKey(controllerID, volume)
	found := false
	var kept []string
	for _, s := range m.snapshots[key] {
		if s == name {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return domain.ErrSnapshotNotFound
	}
	if !m.keepOnDelete {
		m.snapshots[key] = kept
	}
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *mockStorage) CreateSnapshot(ctx context.Context, controllerID int64, volume, name string, opts domain.SnapshotOptions) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.snapshots == nil {
		m.snapshots = map[string][]string{}
	}
	key := volKey(controllerID, volume)
	m.snapshots[key] = append(m.snapshots[key], name)
	m.createOpts = append(m.createOpts, opts)
	return nil
}

func (m *mockStorage) VolumeSupportsLocking(ctx context.Context, controllerID int64, volume string) (bool, error) {
	return m.lockSupported, nil
}

func (m *mockStorage) TriggerSnapMirrorUpdate(ctx context.Context, controllerID int64, relationUUID string) error {
	m.mirrorUpdates = append(m.mirrorUpdates, relationUUID)
	return nil
}

func (m *mockStorage) ListFlexClones(ctx context.Context, controllerID int64) ([]string, error) {
	return m.flexClones, nil
}

func (m *mockStorage) GetVolumeMounts(ctx context.Context, controllerID int64) ([]domain.VolumeMount, error) {
	return m.mounts, nil
}

func (m *mockStorage) DeleteVolume(ctx context.Context, controllerID int64, volume string) error {
	if m.volumeDeleteErr != nil {
		return m.volumeDeleteErr
	}
	m.deletedVolumes = append(m.deletedVolumes, volume)
	return nil
}

// mockCompute 以内存 map 模拟计算集群各节点
type mockCompute struct {
	domain.ComputeClient
	// vms key 为 "host/storage"
	vms map[string][]domain.VM
	// offline 离线节点在线探测返回 false
	offline map[string]bool
	// unmountErrs 按节点注入卸载失败
	unmountErrs map[string]error
	// unmounted 记录成功卸载，元素为 "host/storage"
	unmounted []string
	// freezeErrs 按虚拟机注入冻结失败
	freezeErrs map[int]error
	frozen     []int
	thawed     []int
	// vmSnapshots 记录 hypervisor 快照，元素为 "vmID/name"
	vmSnapshots []string
}

func (m *mockCompute) FreezeVM(ctx context.Context, host string, vmID int) error {
	if err := m.freezeErrs[vmID]; err != nil {
		return err
	}
	m.frozen = append(m.frozen, vmID)
	return nil
}

func (m *mockCompute) ThawVM(ctx context.Context, host string, vmID int) error {
	m.thawed = append(m.thawed, vmID)
	return nil
}

func (m *mockCompute) SnapshotVM(ctx context.Context, host string, vmID int, name string, withMemory bool) error {
	m.vmSnapshots = append(m.vmSnapshots, fmt.Sprintf("%d/%s", vmID, name))
	return nil
}

func (m *mockCompute) HostOnline(ctx context.Context, host string) (bool, error) {
	return !m.offline[host], nil
}

func (m *mockCompute) ListVMs(ctx context.Context, host, storageName string) ([]domain.VM, error) {
	return m.vms[host+"/"+storageName], nil
}

func (m *mockCompute) UnmountStorage(ctx context.Context, host, storageName string) error {
	if err := m.unmountErrs[host]; err != nil {
		return err
	}
	m.unmounted = append(m.unmounted, host+"/"+storageName)
	return nil
}

// mockVolumeRepo 内存卷启用表
type mockVolumeRepo struct {
	domain.VolumeRepository
	enabled []*domain.EnabledVolume
}

func (m *mockVolumeRepo) ListEnabled(ctx context.Context, controllerID int64) ([]*domain.EnabledVolume, error) {
	return m.enabled, nil
}

func (m *mockVolumeRepo) Get(ctx context.Context, controllerID int64, volume string) (*domain.EnabledVolume, error) {
	for _, v := range m.enabled {
		if v.ControllerID == controllerID && v.VolumeName == volume {
			return v, nil
		}
	}
	return nil, nil
}

func (m *mockVolumeRepo) IsEnabled(ctx context.Context, controllerID int64, volume string) (bool, error) {
	v, err := m.Get(ctx, controllerID, volume)
	return v != nil, err
}

// mockMirrorRepo 内存复制关系缓存
type mockMirrorRepo struct {
	domain.SnapMirrorRepository
	// relations key 为 "controllerID/volume"（源端）
	relations    map[string]*domain.SnapMirrorRelation
	policies     map[string]*domain.SnapMirrorPolicy
	saved        []*domain.SnapMirrorPolicy
	replaceCalls int
}

func (m *mockMirrorRepo) RelationForSourceVolume(ctx context.Context, controllerID int64, volume string) (*domain.SnapMirrorRelation, error) {
	return m.relations[volKey(controllerID, volume)], nil
}

func (m *mockMirrorRepo) ListRelations(ctx context.Context) ([]*domain.SnapMirrorRelation, error) {
	var out []*domain.SnapMirrorRelation
	for _, r := range m.relations {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockMirrorRepo) ReplaceRelations(ctx context.Context, controllerID int64, relations []domain.SnapMirrorRelation) error {
	m.replaceCalls++
	if m.relations == nil {
		m.relations = map[string]*domain.SnapMirrorRelation{}
	}
	for key, r := range m.relations {
		if r.SourceControllerID == controllerID {
			delete(m.relations, key)
		}
	}
	for i := range relations {
		r := relations[i]
		m.relations[volKey(r.SourceControllerID, r.SourceVolume)] = &r
	}
	return nil
}

func (m *mockMirrorRepo) GetPolicy(ctx context.Context, controllerID int64, policyUUID string) (*domain.SnapMirrorPolicy, error) {
	return m.policies[policyUUID], nil
}

func (m *mockMirrorRepo) SavePolicy(ctx context.Context, p *domain.SnapMirrorPolicy) error {
	if m.policies == nil {
		m.policies = map[string]*domain.SnapMirrorPolicy{}
	}
	m.policies[p.UUID] = p
	m.saved = append(m.saved, p)
	return nil
}

// mockSnapshotRepo 内存快照跟踪表
type mockSnapshotRepo struct {
	domain.SnapshotRepository
	rows    map[string]*domain.TrackedSnapshot // key "jobID/name"
	nextID  int64
	updated []*domain.TrackedSnapshot
	created []*domain.TrackedSnapshot
	deleted []int64
}

func trackKey(jobID int64, name string) string {
	return fmt.Sprintf("%d/%s", jobID, name)
}

func (m *mockSnapshotRepo) GetByJobAndName(ctx context.Context, jobID int64, snapshot string) (*domain.TrackedSnapshot, error) {
	return m.rows[trackKey(jobID, snapshot)], nil
}

func (m *mockSnapshotRepo) Create(ctx context.Context, t *domain.TrackedSnapshot) (*domain.TrackedSnapshot, error) {
	if m.rows == nil {
		m.rows = map[string]*domain.TrackedSnapshot{}
	}
	m.nextID++
	t.ID = m.nextID
	m.rows[trackKey(t.JobID, t.SnapshotName)] = t
	m.created = append(m.created, t)
	return t, nil
}

func (m *mockSnapshotRepo) Update(ctx context.Context, t *domain.TrackedSnapshot) error {
	m.updated = append(m.updated, t)
	return nil
}

func (m *mockSnapshotRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

// mockJobRepo 记录作业级联删除调用
type mockJobRepo struct {
	domain.JobRepository
	finished       []*domain.Job
	deletedJobs    []int64
	deletedLogs    []int64
	deletedResults []int64
	jobs           map[int64]*domain.Job
	nextJobID      int64
	vmResults      []*domain.JobVMResult
	vmLogs         []*domain.JobVMLog
}

func (m *mockJobRepo) Create(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	if m.jobs == nil {
		m.jobs = map[int64]*domain.Job{}
	}
	m.nextJobID++
	j.ID = m.nextJobID
	m.jobs[j.ID] = j
	return j, nil
}

func (m *mockJobRepo) Update(ctx context.Context, j *domain.Job) error {
	m.jobs[j.ID] = j
	return nil
}

func (m *mockJobRepo) CreateVMResult(ctx context.Context, r *domain.JobVMResult) (*domain.JobVMResult, error) {
	r.ID = int64(len(m.vmResults) + 1)
	m.vmResults = append(m.vmResults, r)
	return r, nil
}

func (m *mockJobRepo) UpdateVMResult(ctx context.Context, r *domain.JobVMResult) error {
	return nil
}

func (m *mockJobRepo) AddVMLog(ctx context.Context, l *domain.JobVMLog) error {
	m.vmLogs = append(m.vmLogs, l)
	return nil
}

func (m *mockJobRepo) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Job, error) {
	return m.finished, nil
}

func (m *mockJobRepo) Delete(ctx context.Context, id int64) error {
	m.deletedJobs = append(m.deletedJobs, id)
	return nil
}

func (m *mockJobRepo) DeleteVMLogsByJob(ctx context.Context, jobID int64) error {
	m.deletedLogs = append(m.deletedLogs, jobID)
	return nil
}

func (m *mockJobRepo) DeleteVMResultsByJob(ctx context.Context, jobID int64) error {
	m.deletedResults = append(m.deletedResults, jobID)
	return nil
}

// mockClusterRepo 内存集群/控制器表
type mockClusterRepo struct {
	domain.ClusterRepository
	clusters    map[int64]*domain.Cluster
	controllers map[int64]*domain.Controller
}

func (m *mockClusterRepo) GetCluster(ctx context.Context, id int64) (*domain.Cluster, error) {
	return m.clusters[id], nil
}

func (m *mockClusterRepo) GetController(ctx context.Context, id int64) (*domain.Controller, error) {
	return m.controllers[id], nil
}

func (m *mockClusterRepo) ListControllers(ctx context.Context) ([]*domain.Controller, error) {
	var out []*domain.Controller
	for _, c := range m.controllers {
		out = append(out, c)
	}
	return out, nil
}

// mockBackupRepo 内存备份记录分组
type mockBackupRepo struct {
	domain.BackupRecordRepository
	expired       []*domain.BackupGroup
	countByJob    map[int64]int64
	deletedGroups []*domain.BackupGroup
	// bySnapshot key 为 "volume/snapshot"
	bySnapshot map[string]*domain.BackupRecord
	// byVolume key 为 "controllerID/volume"
	byVolume       map[string][]*domain.BackupRecord
	createdRecords []*domain.BackupRecord
}

func (m *mockBackupRepo) ListByVolume(ctx context.Context, controllerID int64, volume string) ([]*domain.BackupRecord, error) {
	return m.byVolume[volKey(controllerID, volume)], nil
}

func (m *mockBackupRepo) Create(ctx context.Context, r *domain.BackupRecord) (*domain.BackupRecord, error) {
	r.ID = int64(len(m.createdRecords) + 1)
	m.createdRecords = append(m.createdRecords, r)
	return r, nil
}

func (m *mockBackupRepo) FindBySourceSnapshot(ctx context.Context, volume, snapshot string) (*domain.BackupRecord, error) {
	return m.bySnapshot[volume+"/"+snapshot], nil
}

func (m *mockBackupRepo) ListExpiredGroups(ctx context.Context, now time.Time) ([]*domain.BackupGroup, error) {
	return m.expired, nil
}

func (m *mockBackupRepo) DeleteGroup(ctx context.Context, g *domain.BackupGroup) error {
	m.deletedGroups = append(m.deletedGroups, g)
	return nil
}

func (m *mockBackupRepo) CountByJob(ctx context.Context, jobID int64) (int64, error) {
	return m.countByJob[jobID], nil
}
