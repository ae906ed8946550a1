package model

import "time"

// DatabaseConfig holds connection parameters for a target database under test.
type DatabaseConfig struct {
	ID        int64     `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	Host      string    `json:"host"       db:"host"`
	Port      int       `json:"port"       db:"port"`
	User      string    `json:"user"       db:"db_user"`
	Password  string    `json:"-"          db:"password"`
	DBName    string    `json:"db_name"    db:"db_name"`
	Charset   string    `json:"charset"    db:"charset"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RedisConfig holds connection parameters for a target Redis under test.
type RedisConfig struct {
	ID        int64     `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	Host      string    `json:"host"       db:"host"`
	Port      int       `json:"port"       db:"port"`
	Password  string    `json:"-"          db:"password"`
	DB        int       `json:"db"         db:"db"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EmailConfig holds SMTP parameters for report delivery. Exactly one active
// row is the observed convention; it is not enforced.
type EmailConfig struct {
	ID        int64     `json:"id"         db:"id"`
	Host      string    `json:"host"       db:"host"`
	Port      int       `json:"port"       db:"port"`
	Username  string    `json:"username"   db:"username"`
	Password  string    `json:"-"          db:"password"`
	UseTLS    bool      `json:"use_tls"    db:"use_tls"`
	Sender    string    `json:"sender"     db:"sender"`
	IsActive  bool      `json:"is_active"  db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
