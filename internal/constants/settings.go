package constants

const (
	// App Settings (stored in app_settings, not per account)
	SettingActiveAccount = "active_account"

	// Default Settings Values
	DefaultDailyCapacity     = 1.0
	DefaultExemptionApplies  = false
	DefaultExemptionDays     = 7
	DefaultTimezone          = "Local" // Use system local timezone by default
	DefaultCalculationMethod = "MWL"
	DefaultMadhab            = MadhabHanafi

	// Schools of jurisprudence, kept for prayer-time lookups
	MadhabHanafi = "hanafi"
	MadhabShafi  = "shafi"
)
