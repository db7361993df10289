package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses are driven externally; the agent only reads them.
const (
	OrderCreated   = "created"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

// Refund lifecycle: PENDING -> APPROVED | REJECTED | PROCESSING.
const (
	RefundPending    = "PENDING"
	RefundApproved   = "APPROVED"
	RefundRejected   = "REJECTED"
	RefundProcessing = "PROCESSING"
)

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64      `bun:"user_id,notnull" json:"user_id"`
	Status        string     `bun:"status,notnull" json:"status"`
	PaymentMethod string     `bun:"payment_method,notnull" json:"payment_method"`
	PaidAmount    int64      `bun:"paid_amount,notnull" json:"paid_amount"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	DeliveredAt   *time.Time `bun:"delivered_at" json:"delivered_at,omitempty"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID         int64   `bun:"id,pk,autoincrement" json:"id"`
	OrderID    int64   `bun:"order_id,notnull" json:"order_id"`
	ProductID  int64   `bun:"product_id,notnull" json:"product_id"`
	Quantity   int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice  int64   `bun:"unit_price,notnull" json:"unit_price"`
	TaxPercent float64 `bun:"tax_percent,notnull" json:"tax_percent"`

	Product   *Product    `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
	Discounts []*Discount `bun:"m2m:order_discounts,join:OrderItem=Discount" json:"discounts,omitempty"`
}

// Discount carries exactly one of Percent or Amount, never both.
type Discount struct {
	bun.BaseModel `bun:"table:discounts,alias:d"`

	ID      int64    `bun:"id,pk,autoincrement" json:"id"`
	Code    string   `bun:"code,notnull" json:"code"`
	Percent *float64 `bun:"percent" json:"percent,omitempty"`
	Amount  *int64   `bun:"amount" json:"amount,omitempty"`
}

// OrderDiscount is the m2m join between items and discounts.
type OrderDiscount struct {
	bun.BaseModel `bun:"table:order_discounts,alias:od"`

	OrderItemID int64      `bun:"order_item_id,pk"`
	DiscountID  int64      `bun:"discount_id,pk"`
	OrderItem   *OrderItem `bun:"rel:belongs-to,join:order_item_id=id"`
	Discount    *Discount  `bun:"rel:belongs-to,join:discount_id=id"`
}

// Product.Quantity is nil for items whose stock is not tracked.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	Title       string  `bun:"title,notnull" json:"title"`
	Description *string `bun:"description" json:"description,omitempty"`
	Price       int64   `bun:"price,notnull" json:"price"`
	TaxPercent  float64 `bun:"tax_percent,notnull" json:"tax_percent"`
	Quantity    *int    `bun:"quantity" json:"quantity,omitempty"`
}

type Refund struct {
	bun.BaseModel `bun:"table:order_refunds,alias:r"`

	ID          int64      `bun:"id,pk,autoincrement" json:"id"`
	OrderItemID int64      `bun:"order_item_id,notnull" json:"order_item_id"`
	TaxonomyID  int64      `bun:"refund_taxonomy_id,notnull" json:"refund_taxonomy_id"`
	Reason      string     `bun:"reason,notnull" json:"reason"`
	Status      string     `bun:"status,notnull" json:"status"`
	Amount      int64      `bun:"amount,notnull" json:"amount"`
	Evidence    *string    `bun:"evidence" json:"evidence,omitempty"`
	ThreadID    *string    `bun:"thread_id" json:"thread_id,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	ProcessedAt *time.Time `bun:"processed_at" json:"processed_at,omitempty"`
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID      int64     `bun:"user_id,notnull" json:"user_id"`
	OrderID     int64     `bun:"order_id,notnull" json:"order_id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description *string   `bun:"description" json:"description,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
}

// TaxonomyEntry is one row of the closed refund reason set.
type TaxonomyEntry struct {
	bun.BaseModel `bun:"table:refund_taxonomy,alias:rt"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Reason      string `bun:"reason,notnull" json:"reason"`
	Description string `bun:"description,notnull" json:"description"`
}
