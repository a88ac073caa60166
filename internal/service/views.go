package service

import (
	"time"

	"github.com/comanda-app/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderView is the JSON shape of an order in API responses and realtime
// events. Paid and PaymentMethod are derived from the notes marker.
type OrderView struct {
	ID              uuid.UUID  `json:"id"`
	CompanyID       uuid.UUID  `json:"company_id"`
	TableID         *uuid.UUID `json:"table_id"`
	OrderType       string     `json:"order_type"`
	Status          string     `json:"status"`
	TotalAmount     string     `json:"total_amount"`
	Notes           *string    `json:"notes"`
	CustomerName    *string    `json:"customer_name"`
	CustomerPhone   *string    `json:"customer_phone"`
	CustomerAddress *string    `json:"customer_address"`
	CreatedBy       *uuid.UUID `json:"created_by"`
	Paid            bool       `json:"paid"`
	PaymentMethod   *string    `json:"payment_method"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func NewOrderView(o database.Order) OrderView {
	v := OrderView{
		ID:              o.ID,
		CompanyID:       o.CompanyID,
		TableID:         uuidPtr(o.TableID),
		OrderType:       string(o.OrderType),
		Status:          string(o.Status),
		TotalAmount:     numericToDecimal(o.TotalAmount).StringFixed(2),
		Notes:           textPtr(o.Notes),
		CustomerName:    textPtr(o.CustomerName),
		CustomerPhone:   textPtr(o.CustomerPhone),
		CustomerAddress: textPtr(o.CustomerAddress),
		CreatedBy:       uuidPtr(o.CreatedBy),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	paid, method := ParsePaymentMarker(o.Notes.String)
	v.Paid = paid
	if method != "" {
		v.PaymentMethod = &method
	}
	return v
}

// TableView is the JSON shape of a table.
type TableView struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Number    int32     `json:"number"`
	Capacity  int32     `json:"capacity"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewTableView(t database.RestaurantTable) TableView {
	return TableView{
		ID:        t.ID,
		CompanyID: t.CompanyID,
		Number:    t.Number,
		Capacity:  t.Capacity,
		Status:    string(t.Status),
		UpdatedAt: t.UpdatedAt,
	}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}
