package domain

import "time"

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
)

// ReferralBonus es el crédito fijo por referido completado.
const ReferralBonus int64 = 100

type Referral struct {
	ID               string         `json:"id"`
	ReferrerID       string         `json:"referrerId"`
	RefereeID        string         `json:"refereeId"`
	ReferralCodeUsed string         `json:"referralCodeUsed"`
	Status           ReferralStatus `json:"status"`
	BonusAmount      int64          `json:"bonusAmount"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func (r Referral) IsPending() bool {
	return r.Status == ReferralStatusPending
}

// ReferralStats resume el desempeño de un usuario como referidor.
type ReferralStats struct {
	ReferralCode     string       `json:"referralCode"`
	ReferralCount    int          `json:"referralCount"`
	ReferralEarnings int64        `json:"referralEarnings"`
	ReferredBy       *UserSummary `json:"referredBy"`
}

// UserSummary es la vista pública mínima de otro usuario.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
