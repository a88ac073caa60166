package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order mirrors the API's order representation.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	CompanyID       uuid.UUID       `json:"company_id"`
	TableID         *uuid.UUID      `json:"table_id"`
	OrderType       string          `json:"order_type"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Notes           *string         `json:"notes"`
	CustomerName    *string         `json:"customer_name"`
	CustomerPhone   *string         `json:"customer_phone"`
	CustomerAddress *string         `json:"customer_address"`
	CreatedBy       *uuid.UUID      `json:"created_by"`
	Paid            bool            `json:"paid"`
	PaymentMethod   *string         `json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Table struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Number    int32     `json:"number"`
	Capacity  int32     `json:"capacity"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransitionResult is the order after a status change or payment, with the
// table it touched, if any.
type TransitionResult struct {
	Order Order  `json:"order"`
	Table *Table `json:"table"`
}

// OrderFilter narrows ListOrders. Zero values are omitted.
type OrderFilter struct {
	Status  string
	Type    string
	TableID uuid.UUID
	Limit   int
	Offset  int
}

func (f OrderFilter) values() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.TableID != uuid.Nil {
		q.Set("table_id", f.TableID.String())
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

type CreateOrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
}

// CreateOrderRequest places a local (with TableID) or delivery order.
type CreateOrderRequest struct {
	OrderType       string            `json:"order_type"`
	TableID         *uuid.UUID        `json:"table_id,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerPhone   string            `json:"customer_phone,omitempty"`
	CustomerAddress string            `json:"customer_address,omitempty"`
	Items           []CreateOrderItem `json:"items"`
}

func companyPath(companyID uuid.UUID, rest string) string {
	return "/companies/" + companyID.String() + rest
}

func (c *Client) ListOrders(ctx context.Context, companyID uuid.UUID, f OrderFilter) ([]Order, error) {
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, companyPath(companyID, "/orders"), f.values(), nil, &out, true); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) GetOrder(ctx context.Context, companyID, orderID uuid.UUID) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, companyPath(companyID, "/orders/"+orderID.String()), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, companyID uuid.UUID, req CreateOrderRequest) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, companyPath(companyID, "/orders"), nil, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrderStatus moves an order through the workflow.
func (c *Client) UpdateOrderStatus(ctx context.Context, companyID, orderID uuid.UUID, status string) (*TransitionResult, error) {
	var out TransitionResult
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPatch, companyPath(companyID, "/orders/"+orderID.String()+"/status"), nil, body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pay finalizes a delivered order. method may be empty.
func (c *Client) Pay(ctx context.Context, companyID, orderID uuid.UUID, method string) (*TransitionResult, error) {
	var out TransitionResult
	var body any
	if method != "" {
		body = map[string]string{"payment_method": method}
	}
	if err := c.do(ctx, http.MethodPost, companyPath(companyID, "/orders/"+orderID.String()+"/payment"), nil, body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTables(ctx context.Context, companyID uuid.UUID) ([]Table, error) {
	var out []Table
	if err := c.do(ctx, http.MethodGet, companyPath(companyID, "/tables"), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}
