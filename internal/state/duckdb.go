package state

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// DuckDBStore persists position state in a DuckDB table keyed by symbol.
// Useful when several bots share one state database or when state should be
// queryable alongside recorded market data.
type DuckDBStore struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewDuckDBStore opens (or creates) a DuckDB database at path and prepares
// the position_state table. Use ":memory:" for an ephemeral store in tests.
func NewDuckDBStore(path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to open state database at %s", path)
	}

	store := &DuckDBStore{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

func (s *DuckDBStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS position_state (
			symbol TEXT PRIMARY KEY,
			is_in_position BOOLEAN,
			entry_price DOUBLE,
			last_updated TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailure, "failed to create position_state table", err)
	}

	return nil
}

// Load reads the state for a symbol. A missing row yields the flat default.
func (s *DuckDBStore) Load(symbol string) (types.PositionState, error) {
	query := s.sq.
		Select("symbol", "is_in_position", "entry_price", "last_updated").
		From("position_state").
		Where(squirrel.Eq{"symbol": symbol})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return types.PositionState{}, errors.Wrap(errors.ErrCodePersistenceFailure, "failed to build state query", err)
	}

	var (
		loaded      types.PositionState
		entryPrice  sql.NullFloat64
		lastUpdated time.Time
	)

	row := s.db.QueryRow(sqlQuery, args...)
	if err := row.Scan(&loaded.Symbol, &loaded.IsInPosition, &entryPrice, &lastUpdated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.NewPositionState(symbol), nil
		}

		return types.PositionState{}, errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to load state for %s", symbol)
	}

	loaded.LastUpdated = lastUpdated
	if entryPrice.Valid {
		loaded.EntryPrice = &entryPrice.Float64
	}

	if err := loaded.Validate(); err != nil {
		return types.PositionState{}, errors.Wrapf(errors.ErrCodeStateCorrupted, err, "stored state for %s violates invariants", symbol)
	}

	return loaded, nil
}

// Save overwrites the record for the state's symbol.
func (s *DuckDBStore) Save(st types.PositionState) error {
	if err := st.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailure, "refusing to persist invalid state", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailure, "failed to begin transaction", err)
	}

	deleteQuery, deleteArgs, err := s.sq.
		Delete("position_state").
		Where(squirrel.Eq{"symbol": st.Symbol}).
		ToSql()
	if err != nil {
		_ = tx.Rollback()

		return errors.Wrap(errors.ErrCodePersistenceFailure, "failed to build delete query", err)
	}

	if _, err := tx.Exec(deleteQuery, deleteArgs...); err != nil {
		_ = tx.Rollback()

		return errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to clear state for %s", st.Symbol)
	}

	var entryPrice any
	if st.EntryPrice != nil {
		entryPrice = *st.EntryPrice
	}

	insertQuery, insertArgs, err := s.sq.
		Insert("position_state").
		Columns("symbol", "is_in_position", "entry_price", "last_updated").
		Values(st.Symbol, st.IsInPosition, entryPrice, st.LastUpdated).
		ToSql()
	if err != nil {
		_ = tx.Rollback()

		return errors.Wrap(errors.ErrCodePersistenceFailure, "failed to build insert query", err)
	}

	if _, err := tx.Exec(insertQuery, insertArgs...); err != nil {
		_ = tx.Rollback()

		return errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to persist state for %s", st.Symbol)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailure, "failed to commit state transaction", err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
