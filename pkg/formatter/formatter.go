package formatter

const (
	TimeFormatDatetime = "2006-01-02 15:04:05"
	TimeFormatDateOnly = "2006-01-02"
	TimeFormatMonth    = "2006-01"
)
