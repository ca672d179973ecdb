package services

import (
	"context"
	"fmt"
	"strings"

	"freelance-market/internal/models"
	"freelance-market/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderService sells catalog items for a credit placement fee
type OrderService struct {
	repo          *repository.Repository
	ledger        *LedgerService
	notifications *NotificationService
}

func NewOrderService(
	repo *repository.Repository,
	ledger *LedgerService,
	notifications *NotificationService,
) *OrderService {
	return &OrderService{repo: repo, ledger: ledger, notifications: notifications}
}

// CreateCatalog lists a new service offered by sellerID
func (s *OrderService) CreateCatalog(
	ctx context.Context,
	sellerID uuid.UUID,
	req *models.CreateCatalogRequest,
) (*models.Catalog, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	if !req.Price.IsPositive() {
		return nil, invalid("price", "must be greater than zero")
	}
	if req.OrderFee < 0 {
		return nil, invalid("order_fee", "must not be negative")
	}
	if _, err := s.repo.GetProfileByID(ctx, sellerID); err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}

	catalog := &models.Catalog{
		SellerID:    sellerID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		OrderFee:    req.OrderFee,
		Status:      models.CatalogStatusActive,
	}
	if err := s.repo.DB().WithContext(ctx).Create(catalog).Error; err != nil {
		return nil, fmt.Errorf("failed to create catalog item: %w", err)
	}
	return catalog, nil
}

// ListCatalogs returns active catalog items
func (s *OrderService) ListCatalogs(ctx context.Context, limit, offset int) ([]*models.Catalog, int64, error) {
	limit, offset = normalizePage(limit, offset)
	catalogs, total, err := s.repo.ListCatalogs(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list catalog: %w", err)
	}
	return catalogs, total, nil
}

// PlaceOrder debits the item's order fee from the buyer, creates the order and queues a
// notification for the seller, all in one database transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID, catalogID uuid.UUID) (*models.Order, error) {
	catalog, err := s.repo.GetCatalogByID(ctx, catalogID)
	if err != nil {
		return nil, notFound(err, ErrCatalogNotFound)
	}
	if catalog.Status != models.CatalogStatusActive {
		return nil, ErrCatalogInactive
	}
	if catalog.SellerID == buyerID {
		return nil, ErrForbidden
	}
	buyer, err := s.repo.GetProfileByID(ctx, buyerID)
	if err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}

	order := &models.Order{
		CatalogID: catalog.ID,
		BuyerID:   buyerID,
		SellerID:  catalog.SellerID,
		Price:     catalog.Price,
		FeePaid:   catalog.OrderFee,
		Status:    models.OrderStatusPlaced,
	}

	var fee *models.Transaction
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if order.FeePaid > 0 {
			fee, err = s.ledger.Debit(ctx, tx, buyerID, order.FeePaid,
				models.TransactionTypeOrderPlacementFee, LedgerRef{Type: "order", ID: order.ID})
			if err != nil {
				return err
			}
		}

		return s.notifications.Enqueue(ctx, tx, models.EventOrderPlaced, catalog.SellerID, order.ID,
			models.JSONB{
				"catalog_id":    catalog.ID.String(),
				"catalog_title": catalog.Title,
				"order_id":      order.ID.String(),
				"buyer_name":    buyer.DisplayName,
			})
	})
	if err != nil {
		return nil, err
	}

	observeLedger(fee)
	return order, nil
}

// ListOrders returns orders placed by buyerID
func (s *OrderService) ListOrders(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*models.Order, int64, error) {
	limit, offset = normalizePage(limit, offset)
	orders, total, err := s.repo.ListOrdersByBuyer(ctx, buyerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}
