package database

// users.id is the Telegram user ID, not a surrogate key: every inbound call
// already carries it and the bot never sees users from another transport.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY,
    username VARCHAR(255),
    balance DECIMAL(12,2) NOT NULL DEFAULT 0,
    role TINYINT NOT NULL DEFAULT 0,
    total_numbers INT NOT NULL DEFAULT 0,
    is_banned TINYINT(1) NOT NULL DEFAULT 0,
    referrer_id BIGINT,
    referral_bonus_received TINYINT(1) NOT NULL DEFAULT 0,
    referral_earned DECIMAL(12,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tariffs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    price DECIMAL(12,2) NOT NULL,
    duration_min INT NOT NULL DEFAULT 25,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tariff_extra_minutes (
    tariff_id BIGINT PRIMARY KEY,
    extra_minutes INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (tariff_id) REFERENCES tariffs(id)
);

CREATE TABLE IF NOT EXISTS numbers (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    phone VARCHAR(32) NOT NULL,
    tariff_id BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'queued',
    real_outcome VARCHAR(16),
    is_priority TINYINT(1) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    taken_at TIMESTAMP NULL,
    finished_at TIMESTAMP NULL,
    UNIQUE KEY uniq_user_phone (user_id, phone),
    KEY idx_status_queue (status, is_priority, created_at),
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (tariff_id) REFERENCES tariffs(id)
);

CREATE TABLE IF NOT EXISTS withdrawals (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    username VARCHAR(255),
    amount DECIMAL(12,2) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    payment_method VARCHAR(64),
    payment_details VARCHAR(255),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    processed_at TIMESTAMP NULL,
    processed_by BIGINT,
    comment VARCHAR(512),
    KEY idx_user_status (user_id, status),
    FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS referrals (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    referrer_id BIGINT NOT NULL,
    referred_id BIGINT NOT NULL,
    first_completed TINYINT(1) NOT NULL DEFAULT 0,
    bonus_paid TINYINT(1) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_referrer_referred (referrer_id, referred_id),
    FOREIGN KEY (referrer_id) REFERENCES users(id),
    FOREIGN KEY (referred_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS settings (
    ` + "`key`" + ` VARCHAR(64) PRIMARY KEY,
    value TEXT
);
`

// defaultSettings are seeded once; existing rows win.
var defaultSettings = map[string]string{
	"priority_price":   "0.5",
	"priority_name":    "PRIORITY",
	"fake_queue":       "0",
	"night_mode":       "0",
	"weekend_mode":     "0",
	"system_message":   "",
	"min_withdrawal":   "1.0",
	"payment_methods":  "CryptoBot",
	"referral_bonus":   "0.5",
	"referral_enabled": "1",
}
