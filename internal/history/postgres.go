package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/types"
)

// decisionRow is the decision_records table. Decision payloads are stored
// verbatim as jsonb.
type decisionRow struct {
	ID         string         `gorm:"type:varchar(36);primaryKey"`
	Pair       string         `gorm:"type:varchar(32);not null;index"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;index"`
	Indicators datatypes.JSON `gorm:"type:jsonb"`
	Trading    datatypes.JSON `gorm:"type:jsonb"`
	Lending    datatypes.JSON `gorm:"type:jsonb"`
	Executions datatypes.JSON `gorm:"type:jsonb"`
	ExecutedAt *time.Time     `gorm:"type:timestamptz"`
}

func (decisionRow) TableName() string {
	return "decision_records"
}

type PostgresStore struct {
	db *gorm.DB
}

var _ interfaces.HistoryStore = (*PostgresStore)(nil)

// OpenPostgres connects and migrates the decision_records table.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgresStore(db)
}

// NewPostgresStore migrates the decision_records table on db and returns a store over it.
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&decisionRow{}); err != nil {
		return nil, fmt.Errorf("migrate decision_records: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) Append(ctx context.Context, rec *types.DecisionRecord) (string, error) {
	row, err := toRow(rec)
	if err != nil {
		return "", err
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", fmt.Errorf("insert decision record: %w", err)
	}
	return row.ID, nil
}

// Amend only touches rows that have not been executed yet, so a second
// amend of the same record fails.
func (s *PostgresStore) Amend(ctx context.Context, id string, patch types.ExecutionPatch) error {
	results, err := json.Marshal(patch.Results)
	if err != nil {
		return fmt.Errorf("encode execution results: %w", err)
	}
	executedAt := patch.ExecutedAt.UTC()
	res := s.db.WithContext(ctx).
		Model(&decisionRow{}).
		Where("id = ? AND executed_at IS NULL", id).
		Updates(map[string]any{
			"executions":  datatypes.JSON(results),
			"executed_at": executedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("amend decision record: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&decisionRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("amend decision record: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", types.ErrRecordNotFound, id)
	}
	return fmt.Errorf("%w: %s", types.ErrAlreadyAmended, id)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*types.DecisionRecord, error) {
	var row decisionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision record: %w", err)
	}
	return fromRow(&row)
}

func (s *PostgresStore) Query(ctx context.Context, f types.HistoryFilter) ([]types.DecisionRecord, error) {
	q := s.db.WithContext(ctx).Model(&decisionRow{}).Order("created_at DESC")
	if f.Pair != "" {
		q = q.Where("pair = ?", f.Pair)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []decisionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query decision records: %w", err)
	}
	out := make([]types.DecisionRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func toRow(rec *types.DecisionRecord) (*decisionRow, error) {
	if rec == nil {
		return nil, errors.New("nil decision record")
	}
	row := &decisionRow{
		ID:         rec.ID,
		Pair:       rec.Pair,
		CreatedAt:  rec.CreatedAt.UTC(),
		ExecutedAt: rec.ExecutedAt,
	}
	var err error
	if row.Indicators, err = jsonColumn(rec.Indicators); err != nil {
		return nil, err
	}
	if row.Trading, err = jsonColumn(rec.Trading); err != nil {
		return nil, err
	}
	if row.Lending, err = jsonColumn(rec.Lending); err != nil {
		return nil, err
	}
	if len(rec.Executions) > 0 {
		if row.Executions, err = jsonColumn(&rec.Executions); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func fromRow(row *decisionRow) (*types.DecisionRecord, error) {
	rec := &types.DecisionRecord{
		ID:         row.ID,
		Pair:       row.Pair,
		CreatedAt:  row.CreatedAt.UTC(),
		ExecutedAt: row.ExecutedAt,
	}
	for _, col := range []struct {
		name string
		data datatypes.JSON
		dst  any
	}{
		{"indicators", row.Indicators, &rec.Indicators},
		{"trading", row.Trading, &rec.Trading},
		{"lending", row.Lending, &rec.Lending},
		{"executions", row.Executions, &rec.Executions},
	} {
		if len(col.data) == 0 {
			continue
		}
		if err := json.Unmarshal(col.data, col.dst); err != nil {
			return nil, fmt.Errorf("decode %s column: %w", col.name, err)
		}
	}
	return rec, nil
}

// jsonColumn encodes v, mapping nil pointers to SQL NULL.
func jsonColumn[T any](v *T) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}
	return datatypes.JSON(b), nil
}
