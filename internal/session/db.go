package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/internal/common/config"
	"github.com/glebarez/sqlite"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sessionRow is sized to fit the MySQL MEMORY engine, which has no TEXT columns
type sessionRow struct {
	ID        string    `gorm:"column:id;type:varchar(128);primaryKey"`
	Data      string    `gorm:"column:data;type:varchar(16000);not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// DBStore implements Store on a relational database through gorm
type DBStore struct {
	logger *zap.Logger
	cfg    *config.DatabaseConfig
	table  string
	db     *gorm.DB
}

var _ Store = (*DBStore)(nil)

// NewDBStore validates the database type. The connection is opened by Init.
func NewDBStore(logger *zap.Logger, cfg *config.StoreConfig) (*DBStore, error) {
	switch cfg.Database.Type {
	case cnst.DatabaseTypeMySQL, cnst.DatabaseTypePostgres, cnst.DatabaseTypeSQLite:
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrInvalidDatabaseType, cfg.Database.Type)
	}
	table := cfg.Table
	if table == "" {
		table = cnst.DefaultSessionTable
	}
	return &DBStore{
		logger: logger.Named("session.store.db"),
		cfg:    &cfg.Database,
		table:  table,
	}, nil
}

func (s *DBStore) dialector() gorm.Dialector {
	switch s.cfg.Type {
	case cnst.DatabaseTypeMySQL:
		return mysql.Open(s.cfg.GetDSN())
	case cnst.DatabaseTypePostgres:
		return postgres.Open(s.cfg.GetDSN())
	default:
		return sqlite.Open(s.cfg.GetDSN())
	}
}

// Init opens the database, drops the session table and recreates it.
// On MySQL the table uses the MEMORY engine.
func (s *DBStore) Init(ctx context.Context) error {
	db, err := gorm.Open(s.dialector(), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	if s.cfg.Type == cnst.DatabaseTypeSQLite {
		// a second connection to :memory: would see an empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	db = db.WithContext(ctx)
	if err := db.Migrator().DropTable(s.table); err != nil {
		return fmt.Errorf("failed to drop session table: %w", err)
	}
	create := db.Table(s.table)
	if s.cfg.Type == cnst.DatabaseTypeMySQL {
		create = create.Set("gorm:table_options", "ENGINE=MEMORY DEFAULT CHARSET=utf8mb4")
	}
	if err := create.Migrator().CreateTable(&sessionRow{}); err != nil {
		return fmt.Errorf("failed to create session table: %w", err)
	}

	s.db = db.WithContext(context.Background())
	s.logger.Info("session table ready",
		zap.String("type", s.cfg.Type),
		zap.String("table", s.table))
	return nil
}

func (s *DBStore) Create(ctx context.Context, snap *Snapshot) error {
	data, err := encodeData(snap.Data)
	if err != nil {
		return err
	}
	row := &sessionRow{ID: snap.ID, Data: data}
	if err := s.db.WithContext(ctx).Table(s.table).Create(row).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %w", ErrSessionExists, err)
		}
		return err
	}
	return nil
}

func (s *DBStore) Read(ctx context.Context, id string) (*Record, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := decodeData(row.Data)
	if err != nil {
		return nil, err
	}
	return &Record{ID: row.ID, Data: data, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

func (s *DBStore) Update(ctx context.Context, snap *Snapshot) error {
	data, err := encodeData(snap.Data)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Table(s.table).
		Where("id = ?", snap.ID).
		Updates(map[string]any{"data": data, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *DBStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Delete(&sessionRow{}).Error
}

func (s *DBStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isDuplicateKey(err error) bool {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
