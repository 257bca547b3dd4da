package config

var Cfg Config

type Config struct {
	Mode          string
	ApiListen     string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SiteBrand     string

	Email    EmailConfig
	Metering MeteringConfig
}

type EmailConfig struct {
	From     string
	Nickname string
	SMTPHost string
	SMTPPort string
	Username string
	Password string
}

type MeteringConfig struct {
	Disable bool
	// cron specs for the periodic settlement jobs
	MeteringCrontab string
	ExpiryCrontab   string
	ReportCrontab   string
	// minutes a job may hold its task lock before it is considered stuck
	LockExpireMinutes int
	// days ahead of expiration to warn prepaid resource owners
	ExpiryAheadDays int
}
