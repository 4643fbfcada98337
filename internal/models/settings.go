package models

// Setting keys understood by the engine.
const (
	SettingTrialDays          = "trial_days"
	SettingReferralBonusDays  = "referral_bonus_days"
	SettingFreeDailyTrafficMB = "free_daily_traffic_mb"
	SettingFreeDeviceLimit    = "free_device_limit"
	SettingVIPDeviceLimit     = "vip_device_limit"
	SettingVIPPriceUSDT       = "vip_price_usdt"
	SettingVIPDurationDays    = "vip_duration_days"
	SettingBrandName          = "brand_name"
)

// DefaultSettings are compiled-in values used when a key is absent from the
// store. They are also seeded on first start so admins can edit them.
var DefaultSettings = map[string]string{
	SettingTrialDays:          "3",
	SettingReferralBonusDays:  "5",
	SettingFreeDailyTrafficMB: "1024",
	SettingFreeDeviceLimit:    "2",
	SettingVIPDeviceLimit:     "5",
	SettingVIPPriceUSDT:       "5.00",
	SettingVIPDurationDays:    "30",
	SettingBrandName:          "JetsFlare",
}

const (
	// ReferralCodeAlphabet and ReferralCodeLength fix the referral code
	// space at 36^8 (~2.8e12) values.
	ReferralCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	ReferralCodeLength   = 8

	// ReferralCodeAttempts bounds the generate-and-check loop.
	ReferralCodeAttempts = 100
)

// DashboardStats is the admin dashboard aggregate.
type DashboardStats struct {
	TotalUsers   int64   `json:"total_users"`
	FreeUsers    int64   `json:"free_users"`
	VIPUsers     int64   `json:"vip_users"`
	BlockedUsers int64   `json:"blocked_users"`
	ActiveUsers  int64   `json:"active_users"`
	NodesTotal   int64   `json:"nodes_total"`
	NodesOnline  int64   `json:"nodes_online"`
	RevenueTotal float64 `json:"revenue_total"`
	Revenue30d   float64 `json:"revenue_30d"`
}
