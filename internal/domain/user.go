package domain

import "time"

type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	EmailVerifiedAt  *time.Time `json:"emailVerifiedAt,omitempty"`
	OtpCodeHash      string     `json:"-"`
	OtpExpiresAt     *time.Time `json:"-"`
	ResetVerified    bool       `json:"-"`
	ReferralCode     string     `json:"referralCode"`
	ReferralCount    int        `json:"referralCount"`
	ReferralEarnings int64      `json:"referralEarnings"`
	ReferredBy       *string    `json:"referredBy,omitempty"`
	CheckInEarnings  int64      `json:"checkInEarnings"`
	SpinEarnings     int64      `json:"spinEarnings"`
	LastCheckIn      *time.Time `json:"lastCheckIn,omitempty"`
	CheckInStreak    int        `json:"checkInStreak"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// IsVerified indica si el usuario ya confirmó su email. La transición es única.
func (u User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// HasActiveOTP indica si hay un código emitido pendiente de uso.
func (u User) HasActiveOTP() bool {
	return u.OtpCodeHash != "" && u.OtpExpiresAt != nil
}

// TotalEarnings es siempre derivado; nunca se persiste.
func (u User) TotalEarnings() int64 {
	return u.CheckInEarnings + u.SpinEarnings + u.ReferralEarnings
}

// Earnings devuelve el agregado de ganancias del usuario.
func (u User) Earnings() Earnings {
	return Earnings{
		CheckIn:  u.CheckInEarnings,
		Spin:     u.SpinEarnings,
		Referral: u.ReferralEarnings,
		Total:    u.TotalEarnings(),
	}
}
