// Package sql persists the attempt ledger in a relational database through the GORM adapter.
package sql

import (
	"context"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

const moduleName = "ledger"

// SQLAttemptRepository implements repository.AttemptRepository.
type SQLAttemptRepository struct {
	dbResolver database.DBConnectionResolver
	// dbName is the adapter.database connection holding the ledger.
	dbName string
}

// NewSQLAttemptRepository creates a repository on the connection named by ledger.db_ref.
func NewSQLAttemptRepository(dbResolver database.DBConnectionResolver, cfg *config.Config) *SQLAttemptRepository {
	return &SQLAttemptRepository{
		dbResolver: dbResolver,
		dbName:     cfg.Wrfcycle.Ledger.DBRef,
	}
}

func (r *SQLAttemptRepository) connection(ctx context.Context) (database.DBConnection, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to resolve DB connection '%s'", r.dbName, err)
	}
	return conn, nil
}

// wrap turns a driver error into a CycleError; a missing table asks for the migration.
func (r *SQLAttemptRepository) wrap(conn database.DBConnection, op string, err error) error {
	if conn.IsTableNotExistError(err) {
		return exception.ConfigErrorf(moduleName, "table %s does not exist on '%s', run 'wrfcycle migrate'", AttemptTable, r.dbName, err)
	}
	return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to %s", op, err)
}

// SaveAttempt implements repository.AttemptRepository.
func (r *SQLAttemptRepository) SaveAttempt(ctx context.Context, record *model.AttemptRecord) error {
	conn, err := r.connection(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecuteUpsert(ctx, toAttemptEntity(record), AttemptTable, []string{"id"}, mutableColumns); err != nil {
		return r.wrap(conn, "save attempt "+record.ID, err)
	}
	return nil
}

// FindAttemptsByStep implements repository.AttemptRepository.
func (r *SQLAttemptRepository) FindAttemptsByStep(ctx context.Context, experiment, stepID string) ([]*model.AttemptRecord, error) {
	return r.find(ctx, map[string]interface{}{"experiment": experiment, "step_id": stepID})
}

// FindAll implements repository.AttemptRepository.
func (r *SQLAttemptRepository) FindAll(ctx context.Context, experiment string) ([]*model.AttemptRecord, error) {
	return r.find(ctx, map[string]interface{}{"experiment": experiment})
}

func (r *SQLAttemptRepository) find(ctx context.Context, query map[string]interface{}) ([]*model.AttemptRecord, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}
	var entities []AttemptEntity
	if err := conn.ExecuteQuery(ctx, &entities, query, "started_at ASC, id ASC"); err != nil {
		return nil, r.wrap(conn, "query attempts", err)
	}
	return toAttemptRecords(entities), nil
}

var _ repository.AttemptRepository = (*SQLAttemptRepository)(nil)
