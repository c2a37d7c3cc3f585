package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	config "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Config"
)

// HealthChecker provides health check functionality
type HealthChecker struct {
	db          *sql.DB
	mongoClient *mongo.Client
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB) *HealthChecker {
	return &HealthChecker{db: db}
}

// WithMongo attaches a Mongo client so the log store is included in checks
func (h *HealthChecker) WithMongo(client *mongo.Client) *HealthChecker {
	h.mongoClient = client
	return h
}

// PingPostgres checks if the PostgreSQL connection is healthy
func (h *HealthChecker) PingPostgres(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return h.db.PingContext(ctx)
}

// PingMongo checks if the MongoDB connection is healthy
func (h *HealthChecker) PingMongo(ctx context.Context) error {
	if h.mongoClient == nil {
		return fmt.Errorf("mongo client is nil")
	}
	return h.mongoClient.Ping(ctx, readpref.Primary())
}

// CheckDatabaseHealth performs a comprehensive database health check
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if err := h.PingPostgres(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Check if we can execute a simple query
	var result int
	err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	return nil
}

// GetHealthStatus returns the current health status
func (h *HealthChecker) GetHealthStatus(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
		"checks":    make(map[string]interface{}),
	}
	checks := status["checks"].(map[string]interface{})

	overallStatus := "ok"

	if h.db != nil {
		dbStatus := "ok"
		if err := h.CheckDatabaseHealth(ctx); err != nil {
			dbStatus = "error"
			overallStatus = "degraded"
			checks["postgres"] = map[string]interface{}{
				"status": dbStatus,
				"error":  err.Error(),
			}
		} else {
			checks["postgres"] = map[string]interface{}{
				"status": dbStatus,
			}
		}
	}

	if h.mongoClient != nil {
		mongoStatus := "ok"
		if err := h.PingMongo(ctx); err != nil {
			mongoStatus = "error"
			overallStatus = "degraded"
			checks["mongo"] = map[string]interface{}{
				"status": mongoStatus,
				"error":  err.Error(),
			}
		} else {
			checks["mongo"] = map[string]interface{}{
				"status": mongoStatus,
			}
		}
	}

	status["status"] = overallStatus

	return status
}

// DatabaseManager handles database operations
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// ConnectMongoWithTimeout creates a MongoDB client with a timeout context
func ConnectMongoWithTimeout(cfg *config.MongoConfig, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}

	return client, nil
}

// CreateTables creates the required tables if they don't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Create users table
	createUsersTable := `
		CREATE TABLE IF NOT EXISTS users (
			user_id     TEXT PRIMARY KEY,
			username    TEXT NOT NULL UNIQUE,
			email       TEXT NOT NULL UNIQUE,
			password    TEXT NOT NULL,
			role        TEXT NOT NULL,
			active      BOOLEAN NOT NULL DEFAULT true,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	// Create devices table
	createDevicesTable := `
		CREATE TABLE IF NOT EXISTS devices (
			device_id      TEXT PRIMARY KEY,
			owner_id       TEXT NOT NULL,
			name           TEXT NOT NULL,
			device_type    TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'active',
			last_active_at TIMESTAMPTZ,
			metadata       JSONB NOT NULL DEFAULT '{}',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			FOREIGN KEY (owner_id) REFERENCES users(user_id) ON DELETE CASCADE
		);
	`

	// Create device_logs table
	createDeviceLogsTable := `
		CREATE TABLE IF NOT EXISTS device_logs (
			log_id     TEXT PRIMARY KEY,
			device_id  TEXT NOT NULL,
			event      TEXT NOT NULL,
			value      JSONB,
			ts         TIMESTAMPTZ NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			FOREIGN KEY (device_id) REFERENCES devices(device_id) ON DELETE CASCADE
		);
	`

	// Create indexes
	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_devices_owner ON devices (owner_id);
		CREATE INDEX IF NOT EXISTS idx_devices_status_last_active ON devices (status, last_active_at);
		CREATE INDEX IF NOT EXISTS idx_device_logs_device_ts_desc ON device_logs (device_id, ts DESC);
		CREATE INDEX IF NOT EXISTS idx_device_logs_device_event_ts_desc ON device_logs (device_id, event, ts DESC);
		CREATE INDEX IF NOT EXISTS idx_device_logs_value_gin ON device_logs USING GIN (value);
	`

	queries := []string{
		createUsersTable,
		createDevicesTable,
		createDeviceLogsTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (dm *DatabaseManager) Close() error {
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}
