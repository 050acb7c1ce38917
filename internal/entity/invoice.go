package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// Invoice represents a committed invoice for data transfer between layers.
type Invoice struct {
	ID              uuid.UUID                 `json:"id"`
	InvoiceNumber   string                    `json:"invoice_number"`
	InvoiceDate     time.Time                 `json:"invoice_date"`
	ProviderID      uuid.UUID                 `json:"provider_id"`
	ProviderName    string                    `json:"provider_name"`
	Subtotal        decimal.Decimal           `json:"subtotal"`
	Tax             decimal.Decimal           `json:"tax"`
	Total           decimal.Decimal           `json:"total"`
	Status          constants.InvoiceStatus   `json:"status"`
	OCRText         string                    `json:"ocr_text,omitempty"`
	OCRConfidence   float64                   `json:"ocr_confidence"`
	RecognitionPath constants.RecognitionPath `json:"recognition_path"`
	Items           []InvoiceItem             `json:"items,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// InvoiceItem is one committed line bound to a catalog product.
type InvoiceItem struct {
	ID           uuid.UUID       `json:"id"`
	InvoiceID    uuid.UUID       `json:"invoice_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	StockUpdated bool            `json:"stock_updated"`
	CreatedNew   bool            `json:"created_new"`
}

// StockMovement records an inventory change caused by an invoice.
type StockMovement struct {
	ID        uuid.UUID              `json:"id"`
	ProductID uuid.UUID              `json:"product_id"`
	InvoiceID uuid.UUID              `json:"invoice_id"`
	Type      constants.MovementType `json:"type"`
	Quantity  decimal.Decimal        `json:"quantity"`
	CreatedAt time.Time              `json:"created_at"`
}

// Discrepancy records an item that needed a new catalog product.
type Discrepancy struct {
	ID          uuid.UUID                 `json:"id"`
	InvoiceID   uuid.UUID                 `json:"invoice_id"`
	ProductID   uuid.UUID                 `json:"product_id"`
	ProductName string                    `json:"product_name"`
	Type        constants.DiscrepancyType `json:"type"`
	CreatedAt   time.Time                 `json:"created_at"`
}
