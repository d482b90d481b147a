package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forgeyard/forge_api/model"
	"github.com/forgeyard/forge_api/shared"
)

type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	database string
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		host := shared.GetEnvString("DB_HOST", "localhost")
		port := shared.GetEnvString("DB_PORT", "5432")
		user := shared.GetEnvString("DB_USER", "postgres")
		password := shared.GetEnvString("DB_PASSWORD", "postgres")
		dbname := shared.GetEnvString("DB_NAME", "forge_api")
		sslmode := shared.GetEnvString("DB_SSLMODE", "disable")
		timezone := shared.GetEnvString("DB_TIMEZONE", "UTC")

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, user, password, dbname, port, sslmode, timezone)
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})

		if err == nil {
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				if pingErr := sqlDB.Ping(); pingErr == nil {
					log.Println("Successfully connected to database")
					break
				} else {
					err = pingErr
				}
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			return fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
		}

		log.Printf("Database connection failed, retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
	}

	models := []interface{}{
		&model.User{},
		&model.Package{},
	}

	if err = ds.db.AutoMigrate(models...); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
	if ds.db != nil {
		if sqlDB, err := ds.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError
		errorType = "TRANSACTION_ERROR"
	default:
		if strings.Contains(err.Error(), "duplicate key") {
			statusCode = http.StatusConflict
			errorType = "UNIQUE_CONSTRAINT"
		} else {
			statusCode = http.StatusInternalServerError
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return fmt.Errorf("%s: %w", errorType, err)
}

// ==================== USER QUERIES ====================

func (ds *PostgresService) GetUserByUsername(username string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *PostgresService) GetUser(userID string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *PostgresService) CreateUser(user *model.User) error {
	return ds.db.Create(user).Error
}

func (ds *PostgresService) UpdateUser(user *model.User) error {
	user.UpdatedAt = time.Now()
	return ds.db.Save(user).Error
}

func (ds *PostgresService) DeleteUser(userID string) error {
	return ds.db.Where("id = ?", userID).Delete(&model.User{}).Error
}

// ==================== PACKAGE QUERIES ====================

func (ds *PostgresService) CreatePackage(pkg *model.Package) error {
	return ds.db.Create(pkg).Error
}

func (ds *PostgresService) GetPackage(id string) (*model.Package, error) {
	var pkg model.Package
	if err := ds.db.Where("id = ?", id).First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (ds *PostgresService) GetPackageByNameVersion(name, version string) (*model.Package, error) {
	var pkg model.Package
	if err := ds.db.Where("name = ? AND version = ?", name, version).First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (ds *PostgresService) ListPackages(query string, page, limit int) ([]model.Package, int64, error) {
	var packages []model.Package
	var total int64

	q := ds.db.Model(&model.Package{})
	if query != "" {
		q = q.Where("name LIKE ?", "%"+query+"%")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.Order("name, version").Offset(offset).Limit(limit).Find(&packages).Error; err != nil {
		return nil, 0, err
	}

	return packages, total, nil
}

func (ds *PostgresService) DeletePackage(id string) error {
	return ds.db.Where("id = ?", id).Delete(&model.Package{}).Error
}

func (ds *PostgresService) ResetRegistry() error {
	return ds.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Package{}).Error
}
