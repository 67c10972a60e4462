package services

import (
	"log/slog"

	"github.com/TechFest-2026/exam-session-service/internal/cache"
	"github.com/TechFest-2026/exam-session-service/internal/events"
	"github.com/TechFest-2026/exam-session-service/internal/questionsource"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

// ServiceManager bundles the engine's services behind one handle for wiring.
type ServiceManager interface {
	Session() SessionService
	Violation() ViolationService
	QuestionBank() QuestionBankService
	Export() ExportService
	Reminder() ReminderService
}

// ManagerConfig carries everything the services need beyond their
// collaborators.
type ManagerConfig struct {
	Session  SessionConfig
	Reminder ReminderConfig
	// MaxViolations is the auto-submit threshold.
	MaxViolations int
}

type serviceManager struct {
	session      SessionService
	violation    ViolationService
	questionBank QuestionBankService
	export       ExportService
	reminder     ReminderService
}

func NewServiceManager(
	repo repositories.Repository,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	source questionsource.Source,
	logger *slog.Logger,
	validator *utils.Validator,
	cfg ManagerConfig,
) ServiceManager {
	bank := NewQuestionBankService(repo, source, logger, validator)
	grader := NewGradingService(repo, logger)
	session := NewSessionService(repo, bank, grader, publisher, logger, validator, cfg.Session)

	return &serviceManager{
		session:      session,
		violation:    NewViolationService(repo, session, publisher, logger, cfg.MaxViolations),
		questionBank: bank,
		export:       NewExportService(session, bank, logger),
		reminder:     NewReminderService(cacheService, publisher, logger, cfg.Reminder),
	}
}

func (m *serviceManager) Session() SessionService           { return m.session }
func (m *serviceManager) Violation() ViolationService       { return m.violation }
func (m *serviceManager) QuestionBank() QuestionBankService { return m.questionBank }
func (m *serviceManager) Export() ExportService             { return m.export }
func (m *serviceManager) Reminder() ReminderService         { return m.reminder }
