package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"gorm.io/gorm"
)

// TourModel is the persistence model for tours
type TourModel struct {
	BaseModel
	Code         string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name         string          `gorm:"type:varchar(200);not null"`
	TotalRevenue decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TotalCost    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	GrossProfit  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Archived     bool            `gorm:"not null;default:false"`
	FinancialsAt *time.Time
}

// TableName returns the table name for GORM
func (TourModel) TableName() string {
	return "tours"
}

// ToDomain converts the persistence model to a domain Tour
func (m *TourModel) ToDomain() *finance.Tour {
	return &finance.Tour{
		BaseEntity:   m.BaseModel.ToDomain(),
		Code:         m.Code,
		Name:         m.Name,
		TotalRevenue: m.TotalRevenue,
		TotalCost:    m.TotalCost,
		GrossProfit:  m.GrossProfit,
		Archived:     m.Archived,
		FinancialsAt: m.FinancialsAt,
	}
}

// TourModelFromDomain creates a persistence model from a domain Tour
func TourModelFromDomain(t *finance.Tour) *TourModel {
	m := &TourModel{
		Code:         t.Code,
		Name:         t.Name,
		TotalRevenue: t.TotalRevenue,
		TotalCost:    t.TotalCost,
		GrossProfit:  t.GrossProfit,
		Archived:     t.Archived,
		FinancialsAt: t.FinancialsAt,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// OrderModel is the persistence model for booking orders
type OrderModel struct {
	BaseModel
	OrderNumber     string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	TourID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	TotalAmount     decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	PaidAmount      decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	RemainingAmount decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	PaymentStatus   finance.PaymentStatus `gorm:"type:varchar(20);not null;default:'unpaid'"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *finance.Order {
	return &finance.Order{
		BaseEntity:      m.BaseModel.ToDomain(),
		OrderNumber:     m.OrderNumber,
		TourID:          m.TourID,
		TotalAmount:     m.TotalAmount,
		PaidAmount:      m.PaidAmount,
		RemainingAmount: m.RemainingAmount,
		PaymentStatus:   m.PaymentStatus,
	}
}

// OrderModelFromDomain creates a persistence model from a domain Order
func OrderModelFromDomain(o *finance.Order) *OrderModel {
	m := &OrderModel{
		OrderNumber:     o.OrderNumber,
		TourID:          o.TourID,
		TotalAmount:     o.TotalAmount,
		PaidAmount:      o.PaidAmount,
		RemainingAmount: o.RemainingAmount,
		PaymentStatus:   o.PaymentStatus,
	}
	m.FromDomainBaseEntity(o.BaseEntity)
	return m
}

// ReceiptModel is the persistence model for customer receipts
type ReceiptModel struct {
	AggregateModel
	ReceiptNumber string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	OrderID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	TourID        uuid.UUID             `gorm:"type:uuid;index"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	ActualAmount  *decimal.Decimal      `gorm:"type:decimal(18,2)"`
	Status        finance.ReceiptStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod finance.PaymentMethod `gorm:"type:varchar(30);not null"`
	ReceiptDate   time.Time             `gorm:"not null"`
	ConfirmedBy   *uuid.UUID            `gorm:"type:uuid"`
	ConfirmedAt   *time.Time
	Remark        string         `gorm:"type:text"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt
func (m *ReceiptModel) ToDomain() *finance.Receipt {
	return &finance.Receipt{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ReceiptNumber:     m.ReceiptNumber,
		OrderID:           m.OrderID,
		TourID:            m.TourID,
		Amount:            m.Amount,
		ActualAmount:      m.ActualAmount,
		Status:            m.Status,
		PaymentMethod:     m.PaymentMethod,
		ReceiptDate:       m.ReceiptDate,
		ConfirmedBy:       m.ConfirmedBy,
		ConfirmedAt:       m.ConfirmedAt,
		DeletedAt:         deletedAtToDomain(m.DeletedAt),
		Remark:            m.Remark,
	}
}

// ReceiptModelFromDomain creates a persistence model from a domain Receipt
func ReceiptModelFromDomain(r *finance.Receipt) *ReceiptModel {
	m := &ReceiptModel{
		ReceiptNumber: r.ReceiptNumber,
		OrderID:       r.OrderID,
		TourID:        r.TourID,
		Amount:        r.Amount,
		ActualAmount:  r.ActualAmount,
		Status:        r.Status,
		PaymentMethod: r.PaymentMethod,
		ReceiptDate:   r.ReceiptDate,
		ConfirmedBy:   r.ConfirmedBy,
		ConfirmedAt:   r.ConfirmedAt,
		Remark:        r.Remark,
		DeletedAt:     deletedAtFromDomain(r.DeletedAt),
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	return m
}

// PaymentRequestModel is the persistence model for payment requests
type PaymentRequestModel struct {
	AggregateModel
	RequestNumber       string                       `gorm:"type:varchar(50);not null;uniqueIndex"`
	OrderID             uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Amount              decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	Status              finance.PaymentRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	SupplierType        finance.SupplierType         `gorm:"type:varchar(20);not null"`
	SupplierName        string                       `gorm:"type:varchar(200)"`
	Notes               string                       `gorm:"type:text"`
	DisbursementOrderID *uuid.UUID                   `gorm:"type:uuid;index"`
	DeletedAt           gorm.DeletedAt               `gorm:"index"`
}

// TableName returns the table name for GORM
func (PaymentRequestModel) TableName() string {
	return "payment_requests"
}

// ToDomain converts the persistence model to a domain PaymentRequest
func (m *PaymentRequestModel) ToDomain() *finance.PaymentRequest {
	return &finance.PaymentRequest{
		BaseAggregateRoot:   m.ToAggregateRoot(),
		RequestNumber:       m.RequestNumber,
		OrderID:             m.OrderID,
		Amount:              m.Amount,
		Status:              m.Status,
		SupplierType:        m.SupplierType,
		SupplierName:        m.SupplierName,
		Notes:               m.Notes,
		DisbursementOrderID: m.DisbursementOrderID,
		DeletedAt:           deletedAtToDomain(m.DeletedAt),
	}
}

// PaymentRequestModelFromDomain creates a persistence model from a domain PaymentRequest
func PaymentRequestModelFromDomain(pr *finance.PaymentRequest) *PaymentRequestModel {
	m := &PaymentRequestModel{
		RequestNumber:       pr.RequestNumber,
		OrderID:             pr.OrderID,
		Amount:              pr.Amount,
		Status:              pr.Status,
		SupplierType:        pr.SupplierType,
		SupplierName:        pr.SupplierName,
		Notes:               pr.Notes,
		DisbursementOrderID: pr.DisbursementOrderID,
		DeletedAt:           deletedAtFromDomain(pr.DeletedAt),
	}
	m.FromDomainAggregateRoot(pr.BaseAggregateRoot)
	return m
}

// DisbursementOrderModel is the persistence model for weekly disbursement batches
type DisbursementOrderModel struct {
	AggregateModel
	OrderNumber      string                          `gorm:"type:varchar(20);not null;uniqueIndex"`
	DisbursementDate time.Time                       `gorm:"type:date;not null;index"`
	Amount           decimal.Decimal                 `gorm:"type:decimal(18,2);not null"`
	Status           finance.DisbursementOrderStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Note             string                          `gorm:"type:text"`
	ConfirmedBy      *uuid.UUID                      `gorm:"type:uuid"`
	ConfirmedAt      *time.Time
	Items            []DisbursementOrderItemModel `gorm:"foreignKey:DisbursementOrderID;references:ID"`
	DeletedAt        gorm.DeletedAt               `gorm:"index"`
}

// TableName returns the table name for GORM
func (DisbursementOrderModel) TableName() string {
	return "disbursement_orders"
}

// DisbursementOrderItemModel records one member request of a batch, in insertion order
type DisbursementOrderItemModel struct {
	DisbursementOrderID uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentRequestID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Position            int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DisbursementOrderItemModel) TableName() string {
	return "disbursement_order_items"
}

// ToDomain converts the persistence model to a domain DisbursementOrder.
// Items must be preloaded.
func (m *DisbursementOrderModel) ToDomain() *finance.DisbursementOrder {
	ids := make([]uuid.UUID, len(m.Items))
	for i, item := range sortedItems(m.Items) {
		ids[i] = item.PaymentRequestID
	}
	return &finance.DisbursementOrder{
		BaseAggregateRoot: m.ToAggregateRoot(),
		OrderNumber:       m.OrderNumber,
		DisbursementDate:  finance.CalendarDate(m.DisbursementDate),
		PaymentRequestIDs: ids,
		Amount:            m.Amount,
		Status:            m.Status,
		Note:              m.Note,
		ConfirmedBy:       m.ConfirmedBy,
		ConfirmedAt:       m.ConfirmedAt,
	}
}

// DisbursementOrderModelFromDomain creates a persistence model from a domain DisbursementOrder
func DisbursementOrderModelFromDomain(o *finance.DisbursementOrder) *DisbursementOrderModel {
	m := &DisbursementOrderModel{
		OrderNumber:      o.OrderNumber,
		DisbursementDate: finance.CalendarDate(o.DisbursementDate),
		Amount:           o.Amount,
		Status:           o.Status,
		Note:             o.Note,
		ConfirmedBy:      o.ConfirmedBy,
		ConfirmedAt:      o.ConfirmedAt,
		Items:            DisbursementOrderItemsFromDomain(o),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	return m
}

// DisbursementOrderItemsFromDomain builds the membership rows of a batch
func DisbursementOrderItemsFromDomain(o *finance.DisbursementOrder) []DisbursementOrderItemModel {
	items := make([]DisbursementOrderItemModel, len(o.PaymentRequestIDs))
	for i, id := range o.PaymentRequestIDs {
		items[i] = DisbursementOrderItemModel{
			DisbursementOrderID: o.ID,
			PaymentRequestID:    id,
			Position:            i,
		}
	}
	return items
}

func sortedItems(items []DisbursementOrderItemModel) []DisbursementOrderItemModel {
	out := make([]DisbursementOrderItemModel, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// AllModels lists every model for AutoMigrate in tests and development
func AllModels() []any {
	return []any{
		&TourModel{},
		&OrderModel{},
		&ReceiptModel{},
		&PaymentRequestModel{},
		&DisbursementOrderModel{},
		&DisbursementOrderItemModel{},
	}
}
