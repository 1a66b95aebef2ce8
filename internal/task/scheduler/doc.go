// Package scheduler triggers repeating interval jobs (robfig/cron) and named
// one-shot delayed jobs. A one-shot submitted under an existing name replaces
// the pending one.
package scheduler
