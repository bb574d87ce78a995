// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus instrumentation. A nil
// *Metrics is valid everywhere it's used: every recording method is a
// no-op on a nil receiver, so instrumentation is opt-in.
type Metrics struct {
	runsStarted     *prometheus.CounterVec
	stepsCompleted  *prometheus.CounterVec
	pauses          *prometheus.CounterVec
	advanceDuration *prometheus.HistogramVec
}

// NewMetrics registers the orchestrator's metrics against reg and returns a
// Metrics instance ready to pass to NewOrchestrator. Passing a nil reg
// disables registration (the caller likely already has a shared registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stepwise_runs_started_total",
			Help: "Number of workflow runs started, labeled by workflow_id.",
		}, []string{"workflow_id"}),
		stepsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stepwise_steps_completed_total",
			Help: "Number of steps executed, labeled by step type and outcome.",
		}, []string{"type", "status"}),
		pauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stepwise_pauses_total",
			Help: "Number of times a run paused, labeled by waiting_for reason.",
		}, []string{"waiting_for"}),
		advanceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "stepwise_advance_step_duration_seconds",
			Help: "Duration of a single advance-loop iteration, labeled by step type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.runsStarted, m.stepsCompleted, m.pauses, m.advanceDuration)
	}
	return m
}

func (m *Metrics) recordRunStarted(workflowID string) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(workflowID).Inc()
}

func (m *Metrics) recordStep(stepType StepType, status RunStepStatus, seconds float64) {
	if m == nil {
		return
	}
	m.stepsCompleted.WithLabelValues(string(stepType), string(status)).Inc()
	m.advanceDuration.WithLabelValues(string(stepType)).Observe(seconds)
}

func (m *Metrics) recordPause(waitingFor string) {
	if m == nil {
		return
	}
	m.pauses.WithLabelValues(waitingFor).Inc()
}
