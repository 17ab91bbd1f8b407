package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tekst_task_polls_total",
		Help: "Task status poll cycles run",
	})

	pollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tekst_task_poll_errors_total",
		Help: "Task status poll cycles that failed and were absorbed",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tekst_task_transitions_total",
		Help: "Observed task status changes by new status",
	}, []string{"status"})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tekst_task_downloads_total",
		Help: "Export artifact downloads by result",
	}, []string{"result"})
)
