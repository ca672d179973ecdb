package services

import (
	"freelance-market/internal/repository"

	"gorm.io/gorm"
)

// Services wires every service over one database handle
type Services struct {
	Repo          *repository.Repository
	Ledger        *LedgerService
	Notifications *NotificationService
	Auth          *AuthService
	Projects      *ProjectService
	Proposals     *ProposalService
	Decisions     *DecisionService
	Orders        *OrderService
}

// New builds the service graph. initialCredit is granted to new profiles.
func New(db *gorm.DB, initialCredit int64) *Services {
	repo := repository.NewRepository(db)
	ledger := NewLedgerService(repo)
	notifications := NewNotificationService(repo)

	return &Services{
		Repo:          repo,
		Ledger:        ledger,
		Notifications: notifications,
		Auth:          NewAuthService(repo, initialCredit),
		Projects:      NewProjectService(repo, ledger, notifications),
		Proposals:     NewProposalService(repo, ledger, notifications),
		Decisions:     NewDecisionService(repo, ledger, notifications),
		Orders:        NewOrderService(repo, ledger, notifications),
	}
}
