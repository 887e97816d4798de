package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/mango-go/internal/storage"
	"github.com/rovshanmuradov/mango-go/internal/storage/models"
)

// gormLogger adapts zap to GORM's logger.Interface.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

func (p *postgresStorage) RunMigrations() error {
	// Advisory lock keeps concurrent daemon starts from racing the
	// schema migration.
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(217)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(217)")

	err = p.db.AutoMigrate(
		&models.MarketRecord{},
		&models.BankSnapshot{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (p *postgresStorage) UpsertMarket(ctx context.Context, market *models.MarketRecord) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "public_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "market_index", "serum_program", "serum_market_external",
			"base_token_index", "quote_token_index", "updated_slot", "updated_at",
		}),
	}).Create(market).Error
}

func (p *postgresStorage) GetMarket(ctx context.Context, publicKey string) (*models.MarketRecord, error) {
	var record models.MarketRecord
	err := p.db.WithContext(ctx).Where("public_key = ?", publicKey).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *postgresStorage) ListMarkets(ctx context.Context, group string) ([]*models.MarketRecord, error) {
	var records []*models.MarketRecord
	err := p.db.WithContext(ctx).
		Where("group_key = ?", group).
		Order("market_index asc").
		Find(&records).Error
	return records, err
}

func (p *postgresStorage) SaveBankSnapshot(ctx context.Context, snapshot *models.BankSnapshot) error {
	return p.db.WithContext(ctx).Create(snapshot).Error
}

func (p *postgresStorage) LatestBankSnapshot(ctx context.Context, group string, tokenIndex uint16) (*models.BankSnapshot, error) {
	var snapshot models.BankSnapshot
	err := p.db.WithContext(ctx).
		Where("group_key = ? AND token_index = ?", group, tokenIndex).
		Order("slot desc").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
