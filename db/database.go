package db

import (
	"database/sql"
	"fmt"
	"time"

	"WaveFM/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// DB is the process-wide database handle. Initialized once at startup and
// shared read-only thereafter; repositories receive it by injection.
var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxIdleConns(10)
	DB.SetMaxOpenConns(100)
	DB.SetConnMaxLifetime(time.Hour)

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// CloseDB closes the database handle.
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
