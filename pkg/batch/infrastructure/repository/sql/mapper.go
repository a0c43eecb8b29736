package sql

import (
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

func toAttemptEntity(r *model.AttemptRecord) *AttemptEntity {
	e := &AttemptEntity{
		ID:         r.ID,
		Experiment: r.Experiment,
		StepID:     r.StepID,
		Attempt:    r.Attempt,
		Transient:  r.Transient,
		Outcome:    string(r.Outcome),
		TimeStep:   r.TimeStep,
		SubStep:    r.SubStep,
		Damping:    r.Damping,
		StartedAt:  r.StartedAt.UTC(),
		Message:    r.Message,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt.UTC()
		e.FinishedAt = &finished
	}
	return e
}

func toAttemptRecord(e *AttemptEntity) *model.AttemptRecord {
	r := &model.AttemptRecord{
		ID:         e.ID,
		Experiment: e.Experiment,
		StepID:     e.StepID,
		Attempt:    e.Attempt,
		Transient:  e.Transient,
		Outcome:    model.Outcome(e.Outcome),
		TimeStep:   e.TimeStep,
		SubStep:    e.SubStep,
		Damping:    e.Damping,
		StartedAt:  e.StartedAt.UTC(),
		Message:    e.Message,
	}
	if e.FinishedAt != nil {
		r.FinishedAt = e.FinishedAt.UTC()
	}
	return r
}

func toAttemptRecords(entities []AttemptEntity) []*model.AttemptRecord {
	out := make([]*model.AttemptRecord, 0, len(entities))
	for i := range entities {
		out = append(out, toAttemptRecord(&entities[i]))
	}
	return out
}
