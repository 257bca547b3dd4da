package metering

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 定时任务最近一次运行耗时 (秒)
	taskRunSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timed_task_run_seconds",
		Help: "Duration of the last run of each timed task in seconds",
	}, []string{"task"})

	// 定时任务运行次数 (按结果)
	taskRunTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timed_task_run_total",
		Help: "Completed timed task runs by outcome",
	}, []string{"task", "result"})

	// 任务锁竞争次数
	taskLockContentionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timed_task_lock_contention_total",
		Help: "Acquire attempts refused because another host held the task lock",
	}, []string{"task"})

	// 最近一个计量周期写入的计费行数
	meteringSettledRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "metering_settled_rows",
		Help: "Accrual rows written by the last metering cycle",
	})

	// 最近一个计量周期生成的日结算单数
	meteringDailyStatements = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "metering_daily_statements",
		Help: "Daily statements generated by the last metering cycle",
	})
)

func init() {
	prometheus.MustRegister(taskRunSeconds)
	prometheus.MustRegister(taskRunTotal)
	prometheus.MustRegister(taskLockContentionTotal)
	prometheus.MustRegister(meteringSettledRows)
	prometheus.MustRegister(meteringDailyStatements)
}
