package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/dispatcher"
	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/application/service"
	"github.com/garyjia/tutoring-backoffice/internal/domain/event"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/export"
	infraLark "github.com/garyjia/tutoring-backoffice/internal/infrastructure/external/lark"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/external/logadapter"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/external/sms"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/external/webhook"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/persistence/repository"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/worker"
	"github.com/garyjia/tutoring-backoffice/pkg/database"
	"github.com/garyjia/tutoring-backoffice/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the adapters to systems outside the service.
type ExternalBundle struct {
	// Webhook is nil when no payment URL is configured
	Webhook   port.PaymentWebhook
	SmsSender port.SmsSender
	Notifier  port.Notifier
	Exporter  port.PayrollExporter
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Dispatcher dispatcher.Dispatcher
	Payroll    *PayrollConfig
	SMS        *SMSConfig
	Logger     *zap.Logger
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Payroll    service.PayrollService
	PayrollCfg *PayrollConfig
	Logger     *zap.Logger
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).RunEmbedded()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied", zap.Int("count", applied))

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Teacher:      repository.NewTeacherRepository(sqlDB, logger),
		Service:      repository.NewServiceRepository(sqlDB, logger),
		Enrollment:   repository.NewEnrollmentRepository(sqlDB, logger),
		Assignment:   repository.NewAssignmentRepository(sqlDB, logger),
		Run:          repository.NewPayrollRunRepository(sqlDB, logger),
		LineItem:     repository.NewLineItemRepository(sqlDB, logger),
		SmsMessage:   repository.NewSmsMessageRepository(sqlDB, logger),
		Notification: repository.NewPaymentNotificationRepository(sqlDB, logger),
	}, nil
}

// ProvideExternal creates the webhook client, SMS sender, ops notifier and
// payroll exporter selected by configuration.
func ProvideExternal(cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{
		Exporter: export.NewXLSXExporter(cfg.Payroll.CompanyName, logger.Named("export")),
	}

	if cfg.Webhook.PaymentURL != "" {
		bundle.Webhook = webhook.NewPaymentClient(webhook.Config{
			URL:     cfg.Webhook.PaymentURL,
			Secret:  cfg.Webhook.Secret,
			Timeout: cfg.Webhook.Timeout,
		}, logger.Named("webhook"))
	} else {
		logger.Warn("Payment webhook URL not configured, paid runs will not be delivered")
	}

	switch cfg.SMS.Provider {
	case "twilio":
		bundle.SmsSender = sms.NewTwilioSender(sms.Config{
			APIURL:     cfg.SMS.APIURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
			Timeout:    cfg.SMS.Timeout,
		}, logger.Named("sms"))
	case "log", "":
		bundle.SmsSender = logadapter.NewSmsSender(logger.Named("sms"))
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
	}

	switch cfg.Notifier.Kind {
	case "lark":
		client := infraLark.NewSDKClient(infraLark.Config{
			AppID:     cfg.Notifier.LarkAppID,
			AppSecret: cfg.Notifier.LarkAppSecret,
			ChatID:    cfg.Notifier.LarkChatID,
			BaseURL:   cfg.Notifier.LarkBaseURL,
		}, logger.Named("lark"))
		bundle.Notifier = infraLark.NewNotifier(client, logger.Named("lark"))
	case "log", "":
		bundle.Notifier = logadapter.NewNotifier(logger.Named("ops"))
	default:
		return nil, fmt.Errorf("unknown notifier kind %q", cfg.Notifier.Kind)
	}

	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher")))), nil
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.External == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Payroll == nil || deps.SMS == nil {
		return nil, fmt.Errorf("payroll and sms config are required")
	}

	logger := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	return &ServiceBundle{
		Payroll: service.NewPayrollService(service.PayrollDeps{
			Teachers:    repos.Teacher,
			Services:    repos.Service,
			Enrollments: repos.Enrollment,
			Assignments: repos.Assignment,
			Runs:        repos.Run,
			LineItems:   repos.LineItem,
			TxManager:   deps.TxManager,
			Dispatcher:  deps.Dispatcher,
			Exporter:    deps.External.Exporter,
			Logger:      logger,
		}, service.PayrollOptions{
			PeriodAnchor:    deps.Payroll.PeriodAnchor,
			BulkConcurrency: deps.Payroll.BulkConcurrency,
		}),
		Enrollment: service.NewEnrollmentService(repos.Enrollment, repos.Assignment, deps.Dispatcher, logger),
		Sms: service.NewSmsService(deps.External.SmsSender, repos.SmsMessage, deps.Dispatcher, logger, service.SmsOptions{
			Company:           deps.SMS.CompanyName,
			TemplateOverrides: deps.SMS.Templates,
			Concurrency:       deps.SMS.Concurrency,
		}),
		Notification: service.NewPaymentNotificationService(
			repos.Run,
			repos.LineItem,
			repos.Teacher,
			repos.Notification,
			deps.External.Webhook,
			deps.External.Notifier,
			logger,
		),
		Announcer: service.NewOpsAnnouncer(deps.External.Notifier, logger),
	}, nil
}

// RegisterEventHandlers subscribes services to the domain events they react to.
func RegisterEventHandlers(disp dispatcher.Dispatcher, services *ServiceBundle) {
	disp.SubscribeNamed(event.TypeRunPaid, "payment-webhooks", services.Notification.HandleRunPaid)
	disp.SubscribeNamed(event.TypeRunGenerated, "ops-announcer", services.Announcer.Handle)
	disp.SubscribeNamed(event.TypeEnrollmentEnded, "ops-announcer", services.Announcer.Handle)
	disp.SubscribeNamed(event.TypeSmsBatchSent, "ops-announcer", services.Announcer.Handle)
}

// ProvideWorkers creates the background workers. Nothing is registered
// unless scheduled generation is on.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Logger == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}

	manager := worker.NewWorkerManager(deps.Logger)
	if deps.PayrollCfg != nil && deps.PayrollCfg.AutoGenerate {
		if deps.Payroll == nil {
			return nil, fmt.Errorf("payroll service is required for scheduled generation")
		}
		manager.Register(worker.NewPeriodScheduler(deps.Payroll, worker.PeriodSchedulerConfig{
			Schedule:   deps.PayrollCfg.Schedule,
			Location:   deps.PayrollCfg.Location,
			RunOnStart: true,
		}, deps.Logger.Named("scheduler")))
	}
	return manager, nil
}
