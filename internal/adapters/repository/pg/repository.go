package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

// Dialects accepted by Open.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// uniqueViolation is the postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Repository is the gorm-backed store for players, job rows, chat and roles.
type Repository struct {
	db *gorm.DB
}

var (
	_ ports.PlayerRepository    = (*Repository)(nil)
	_ ports.JobStatusRepository = (*Repository)(nil)
	_ ports.ChatRepository      = (*Repository)(nil)
)

// Open connects with the given dialect. dsn is a postgres URL or a sqlite path.
func Open(dialect, dsn string) (*Repository, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Migrate creates or updates the schema.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&domain.Player{}, &domain.PlayerJob{}, &domain.ChatMessage{}, &domain.Admin{})
}

// DB returns the underlying gorm DB instance
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Player methods
func (r *Repository) GetPlayer(ctx context.Context, userID string) (*domain.Player, error) {
	var player domain.Player
	if err := r.db.WithContext(ctx).First(&player, "id = ?", userID).Error; err != nil {
		return nil, mapError(err)
	}
	return &player, nil
}

func (r *Repository) CreatePlayer(ctx context.Context, userID, username string) (*domain.Player, error) {
	player := domain.NewPlayer(userID, username)
	if err := r.db.WithContext(ctx).Create(&player).Error; err != nil {
		return nil, mapError(err)
	}
	return &player, nil
}

func (r *Repository) UpdatePlayer(ctx context.Context, userID string, update domain.PlayerUpdate) error {
	cols := update.Columns()
	if len(cols) == 0 {
		return nil
	}
	cols["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).Table(domain.Player{}.TableName()).Where("id = ?", userID).Updates(cols)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Admin{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GrantAdmin adds userID to the role table. Granting twice is not an error.
func (r *Repository) GrantAdmin(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Create(&domain.Admin{UserID: userID}).Error
	if err = mapError(err); errors.Is(err, ports.ErrAlreadyExists) {
		return nil
	}
	return err
}

// Job status methods
func (r *Repository) ListPlayerJobs(ctx context.Context, userID string) ([]domain.PlayerJob, error) {
	var rows []domain.PlayerJob
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) UpsertPlayerJob(ctx context.Context, userID, jobID string, update domain.PlayerJobUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.PlayerJob
		err := tx.Where("user_id = ? AND job_id = ?", userID, jobID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = domain.PlayerJob{UserID: userID, JobID: jobID, Status: domain.JobStatusAvailable}
			update.ApplyTo(&row)
			return mapError(tx.Create(&row).Error)
		}
		if err != nil {
			return err
		}

		cols := update.Columns()
		if len(cols) == 0 {
			return nil
		}
		cols["updated_at"] = time.Now()
		return tx.Model(&domain.PlayerJob{}).Where("id = ?", row.ID).Updates(cols).Error
	})
}

func (r *Repository) DeletePlayerJobs(ctx context.Context, userID string, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND job_id IN ?", userID, jobIDs).
		Delete(&domain.PlayerJob{}).Error
}

// Chat methods
func (r *Repository) InsertChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	return mapError(r.db.WithContext(ctx).Create(msg).Error)
}

// ListRecentChat returns the newest limit messages, oldest first.
func (r *Repository) ListRecentChat(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	var msgs []*domain.ChatMessage
	if err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ports.ErrAlreadyExists
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ports.ErrAlreadyExists
	}
	// Older sqlite drivers do not translate constraint errors.
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ports.ErrAlreadyExists
	}
	return err
}
