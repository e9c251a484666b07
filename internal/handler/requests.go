package handler

import (
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Request payloads
// ============================================================

type clientRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Gender         string `json:"gender" validate:"omitempty,max=20"`
	Age            int    `json:"age" validate:"gte=0,lte=150"`
	Identification string `json:"identification" validate:"required,max=20"`
	Address        string `json:"address" validate:"omitempty,max=200"`
	Phone          string `json:"phone" validate:"omitempty,max=20"`
	Password       string `json:"password" validate:"omitempty,min=4,max=72"`
}

func (req clientRequest) input() domain.ClientInput {
	return domain.ClientInput{
		Person: domain.Person{
			Name:           req.Name,
			Gender:         req.Gender,
			Age:            req.Age,
			Identification: req.Identification,
			Address:        req.Address,
			Phone:          req.Phone,
		},
		Password: req.Password,
	}
}

type accountRequest struct {
	Number         string          `json:"number" validate:"required,min=10,max=30"`
	Type           string          `json:"type" validate:"required,max=50"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	ClientID       int64           `json:"client_id" validate:"required,gt=0"`
}

func (req accountRequest) input() domain.AccountInput {
	return domain.AccountInput{
		Number:         req.Number,
		Type:           req.Type,
		InitialBalance: req.InitialBalance,
		ClientID:       req.ClientID,
	}
}

type movementRequest struct {
	AccountID  int64            `json:"account_id" validate:"required,gt=0"`
	Kind       string           `json:"kind" validate:"required"`
	Value      *decimal.Decimal `json:"value"`
	OccurredAt *time.Time       `json:"occurred_at"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type activationRequest struct {
	AccountIDs []int64 `json:"account_ids" validate:"dive,gt=0"`
}
