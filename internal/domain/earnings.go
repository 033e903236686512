package domain

import "time"

type Earnings struct {
	CheckIn  int64 `json:"checkIn"`
	Spin     int64 `json:"spin"`
	Referral int64 `json:"referral"`
	Total    int64 `json:"total"`
}

// CheckInResult describe un check-in diario aplicado.
type CheckInResult struct {
	Reward        int64     `json:"reward"`
	CurrentStreak int       `json:"currentStreak"`
	CheckedInAt   time.Time `json:"checkedInAt"`
	TotalEarnings int64     `json:"totalEarnings"`
}

type CheckInStats struct {
	CheckInEarnings int64      `json:"checkInEarnings"`
	LastCheckIn     *time.Time `json:"lastCheckIn"`
	CurrentStreak   int        `json:"currentStreak"`
}

type SpinResult struct {
	Reward        int64 `json:"reward"`
	TotalEarnings int64 `json:"totalEarnings"`
}
