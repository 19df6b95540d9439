package config

import (
	"log"
	"os"
)

// Config carries every external credential and tunable the services need.
// It is loaded once in main and injected into constructors; nothing in the
// services reads the environment directly.
type Config struct {
	HTTPPort string
	MongoURI string
	DBName   string
	SiteURL  string

	JWTSecret string

	YocoSecretKey string
	YocoBaseURL   string

	ZeptoAPIURL string
	ZeptoAPIKey string
	EmailFrom   string

	SMSProvider         string // "smsportal" or "bulksms"
	SMSPortalURL        string
	SMSPortalClientID   string
	SMSPortalAPISecret  string
	BulkSMSURL          string
	BulkSMSToken        string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

func Load() *Config {
	cfg := &Config{
		HTTPPort: getEnv("PORT", "8080"),
		MongoURI: getEnv("MONGOURI", ""),
		DBName:   getEnv("DB_NAME", "clanfunddb"),
		SiteURL:  getEnv("SITE_URL", "http://localhost:8080"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		YocoSecretKey: getEnv("YOCO_SECRET_KEY", ""),
		YocoBaseURL:   getEnv("YOCO_BASE_URL", "https://payments.yoco.com/api"),

		ZeptoAPIURL: getEnv("ZEPTO_API_URL", ""),
		ZeptoAPIKey: getEnv("ZEPTO_API_KEY", ""),
		EmailFrom:   getEnv("EMAIL_FROM", "noreply@clanfund.co.za"),

		SMSProvider:        getEnv("SMS_PROVIDER", "bulksms"),
		SMSPortalURL:       getEnv("SMSPORTAL_URL", "https://rest.smsportal.com/bulkmessages"),
		SMSPortalClientID:  getEnv("SMSPORTAL_CLIENT_ID", ""),
		SMSPortalAPISecret: getEnv("SMSPORTAL_API_SECRET", ""),
		BulkSMSURL:         getEnv("BULKSMS_URL", "https://api.bulksms.com/v1/messages"),
		BulkSMSToken:       getEnv("BULKSMS_TOKEN", ""),

		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
	}

	if cfg.MongoURI == "" {
		log.Fatal("MONGOURI environment variable not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}
	if cfg.YocoSecretKey == "" {
		log.Println("Warning: YOCO_SECRET_KEY not set, card payments will fail")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
