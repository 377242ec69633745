// Package historicaltime schedules actions against a virtual [time.Time]
// clock. It is the usual way to replay timestamped work, or to test code
// built on timers, without waiting on the wall clock. Cron expressions are
// evaluated against the virtual clock too.
package historicaltime
