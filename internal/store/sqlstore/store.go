package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"moto-yard/internal/parking"
)

type Config struct {
	Driver      string
	DatabaseURL string
	Debug       bool
}

// Store keeps the sector catalog and placement log in a SQL database.
type Store struct {
	db *gorm.DB
}

func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&sectorRow{}, &placementRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) FetchSectors(ctx context.Context) ([]parking.Sector, error) {
	var rows []sectorRow
	if err := s.db.WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, wrap("fetch sectors", err)
	}

	sectors := make([]parking.Sector, len(rows))
	for i, r := range rows {
		sectors[i] = parking.Sector{ID: r.ID, Code: r.Code}
	}
	return sectors, nil
}

// SeedSectors upserts catalog entries by ID.
func (s *Store) SeedSectors(ctx context.Context, sectors []parking.Sector) error {
	if len(sectors) == 0 {
		return nil
	}
	rows := make([]sectorRow, len(sectors))
	for i, sec := range sectors {
		rows[i] = sectorRow{ID: sec.ID, Code: parking.NormalizeCode(sec.Code)}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code"}),
	}).Create(&rows).Error
	return wrap("seed sectors", err)
}

func (s *Store) CreateSector(ctx context.Context, sec parking.Sector) (parking.Sector, error) {
	row := sectorRow{ID: sec.ID, Code: parking.NormalizeCode(sec.Code)}
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return parking.Sector{}, fmt.Errorf("create sector: %w: %s", parking.ErrSlotExists, row.Code)
	}
	if err != nil {
		return parking.Sector{}, wrap("create sector", err)
	}
	return parking.Sector{ID: row.ID, Code: row.Code}, nil
}

func (s *Store) DeleteSector(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&sectorRow{})
	if res.Error != nil {
		return wrap("delete sector", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete sector: %w: %s", parking.ErrNotFound, id)
	}
	return nil
}

func (s *Store) FetchPlacements(ctx context.Context) ([]parking.Placement, error) {
	var rows []placementRow
	if err := s.db.WithContext(ctx).Order("sequence").Find(&rows).Error; err != nil {
		return nil, wrap("fetch placements", err)
	}

	placements := make([]parking.Placement, len(rows))
	for i, r := range rows {
		placements[i] = r.toPlacement()
	}
	return placements, nil
}

func (s *Store) CreatePlacement(ctx context.Context, p parking.Placement) (parking.Placement, error) {
	row := toRow(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return parking.Placement{}, wrap("create placement", err)
	}
	return row.toPlacement(), nil
}

func (s *Store) DiscardPlacement(ctx context.Context, p parking.Placement) error {
	err := s.db.WithContext(ctx).Where("id = ?", p.ID).Delete(&placementRow{}).Error
	return wrap("discard placement", err)
}

func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", op, parking.ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, parking.ErrTransient, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, parking.ErrIO, err)
	}
}
