package config

import (
	"pos.GO/cron/jobs"
)

// Map of job names to job functions
type CronJob struct {
	Schedule string
	Job      func(...string)
}

var CronJobs = map[string]CronJob{
	"edgepoll": {Schedule: "@every 3s", Job: jobs.EdgePollJob},
	"autosync": {Schedule: "@every 30s", Job: jobs.AutoSyncJob},
	// Add more jobs here
}
