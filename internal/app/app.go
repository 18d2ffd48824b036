package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/catalog"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/auth"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/config"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/filestore"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/logger"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/middleware"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/itinerary"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/sequence"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/ticket"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/user"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/vehicle"
	"gorm.io/gorm"
)

// App 服务级装配：repo + service 的唯一构造入口。
type App struct {
	db  *gorm.DB
	log logger.Logger

	Catalog     *catalog.Repo
	Vehicles    *vehicle.Repo
	Users       *user.Repo
	Itineraries *itinerary.Repo
	Detector    *itinerary.Detector
	Sequences   *sequence.Service
	Tickets     *ticket.Service
}

// New 装配全部组件。对象存储未配置时证据 key 原样落库。
func New(db *gorm.DB, cfg *config.Config, log logger.Logger) (*App, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg is nil")
	}

	a := &App{
		db:          db,
		log:         log,
		Catalog:     catalog.NewRepo(db),
		Vehicles:    vehicle.NewRepo(db),
		Users:       user.NewRepo(db),
		Itineraries: itinerary.NewRepo(db),
		Sequences:   sequence.NewService(sequence.NewRepo(db)),
	}
	a.Detector = itinerary.NewDetector(a.Itineraries, a.Vehicles, log)

	opts := []ticket.Option{
		ticket.WithLogger(log),
		ticket.WithRefs(refsAdapter{catalog: a.Catalog, vehicles: a.Vehicles, users: a.Users}),
		ticket.WithNotifier(newBreakerNotifier(&logNotifier{log: log}, log)),
	}
	if cfg.Storage.Bucket != "" {
		store, err := filestore.NewS3Store(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to init evidence store: %w", err)
		}
		opts = append(opts, ticket.WithEvidenceStore(store))
	}
	a.Tickets = ticket.NewService(ticket.NewRepo(db), a.Sequences, a.Detector, auth.NewRoleAuthorizer(), opts...)

	return a, nil
}

// Migrate 按模型建表/升级表结构。
func (a *App) Migrate(ctx context.Context) error {
	return a.db.WithContext(ctx).AutoMigrate(
		&catalog.Shift{},
		&catalog.Route{},
		&catalog.Station{},
		&catalog.TicketStatusRef{},
		&catalog.SupplyStatusRef{},
		&vehicle.Vehicle{},
		&user.User{},
		&itinerary.Itinerary{},
		&itinerary.Execution{},
		&itinerary.ExceptionalRoute{},
		&sequence.Counter{},
		&ticket.Ticket{},
		&ticket.Supply{},
	)
}

// Seed 幂等写入基础数据：状态参考表 + 初始管理员（凭据为空则跳过）。
func (a *App) Seed(ctx context.Context, adminUser, adminPass string) error {
	if err := a.Catalog.SeedStatusRefs(ctx, ticket.TicketStatusCodes(), ticket.SupplyStatusCodes()); err != nil {
		return err
	}
	if adminUser != "" && adminPass != "" {
		if err := a.Users.EnsureAdmin(ctx, adminUser, adminPass); err != nil {
			return err
		}
	}
	return nil
}

// refsAdapter 把各 repo 收拢成 ticket 展示层需要的参考数据视图。
type refsAdapter struct {
	catalog  *catalog.Repo
	vehicles *vehicle.Repo
	users    *user.Repo
}

func (r refsAdapter) Shift(ctx context.Context, id uint) (*catalog.Shift, error) {
	return r.catalog.GetShift(ctx, id)
}

func (r refsAdapter) Station(ctx context.Context, id uint) (*catalog.Station, error) {
	return r.catalog.GetStation(ctx, id)
}

func (r refsAdapter) Vehicle(ctx context.Context, id uint) (*vehicle.Vehicle, error) {
	return r.vehicles.FindByID(ctx, id)
}

func (r refsAdapter) Person(ctx context.Context, id uint) (*user.User, error) {
	return r.users.FindByID(ctx, id)
}

// logNotifier 把状态变更事件写进结构化日志。
// 外部 webhook/消息队列接入时替换这里即可，Service 只认 Notifier 接口。
type logNotifier struct {
	log logger.Logger
}

func (n *logNotifier) Notify(ctx context.Context, event string, t *ticket.Ticket) error {
	if n.log != nil {
		n.log.WithFields(map[string]interface{}{
			"evento": event,
			"numero": t.Number,
			"estado": string(t.Status),
		}).Info("ticket event")
	}
	return nil
}

// breakerNotifier 给通知协作方套熔断：投递方持续失败时快速失败，
// 不让状态流转等待通知超时。
type breakerNotifier struct {
	inner   ticket.Notifier
	breaker *middleware.CircuitBreaker
	log     logger.Logger
}

func newBreakerNotifier(inner ticket.Notifier, log logger.Logger) *breakerNotifier {
	return &breakerNotifier{
		inner:   inner,
		breaker: middleware.NewCircuitBreaker("notifier", 5, 30*time.Second),
		log:     log,
	}
}

func (n *breakerNotifier) Notify(ctx context.Context, event string, t *ticket.Ticket) error {
	return n.breaker.Call(ctx, func() error {
		return n.inner.Notify(ctx, event, t)
	})
}
