package sql

import "time"

// AttemptTable is the ledger table created by the wrfcycle migrations.
const AttemptTable = "wrfcycle_attempt"

// AttemptEntity is the persistence model of model.AttemptRecord.
type AttemptEntity struct {
	ID         string     `gorm:"column:id;primaryKey"`
	Experiment string     `gorm:"column:experiment"`
	StepID     string     `gorm:"column:step_id"`
	Attempt    int        `gorm:"column:attempt"`
	Transient  int        `gorm:"column:transient"`
	Outcome    string     `gorm:"column:outcome"`
	TimeStep   float64    `gorm:"column:time_step"`
	SubStep    int        `gorm:"column:sub_step"`
	Damping    float64    `gorm:"column:damping"`
	StartedAt  time.Time  `gorm:"column:started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
	Message    string     `gorm:"column:message"`
}

func (AttemptEntity) TableName() string {
	return AttemptTable
}

// mutableColumns are rewritten when a record is saved again after its outcome is known.
var mutableColumns = []string{"outcome", "time_step", "sub_step", "damping", "finished_at", "message"}
