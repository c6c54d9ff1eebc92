// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: shared columns (BaseModel, AggregateModel)
// - finance.go: tours, orders, receipts, payment requests and disbursement orders
//
// Repositories use persistence models for database operations and convert with
// the ToDomain / ...ModelFromDomain mappers.
package models
