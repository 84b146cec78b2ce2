package config

import (
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Upload            Upload        `yaml:"upload"`
	PostsPerPage      int           `yaml:"posts_per_page"`
	JwtTTL            time.Duration `yaml:"jwt_ttl"`
	GCInterval        time.Duration `yaml:"gc_interval"`
	GCSafetyThreshold time.Duration `yaml:"gc_safety_threshold"` // orphaned files younger than this are kept, they may be mid-upload
	LogLevel          string        `yaml:"log_level"`
	LogJSON           bool          `yaml:"log_json"`
	HttpPort          string        `yaml:"http_port"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	SecureCookies     bool          `yaml:"secure_cookies"` // also enables HSTS
}

// Upload describes where and what post images may be stored.
type Upload struct {
	Root              string   `yaml:"root"`
	AutoCreate        bool     `yaml:"auto_create"`
	AllowedMimeTypes  []string `yaml:"allowed_mime_types"`
	AllowedExtensions []string `yaml:"allowed_extensions"` // without leading dot
	DefaultExtension  string   `yaml:"default_extension"`
	MaxSizeBytes      int64    `yaml:"max_size_bytes"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Private struct {
	Pg                Pg     `yaml:"pg"`
	JwtKey            string `yaml:"jwt_key"`
	AdminPasswordHash string `yaml:"admin_password_hash"` // bcrypt
}

var (
	DefaultAllowedMimeTypes  = []string{"image/jpeg", "image/jpg", "image/png"}
	DefaultAllowedExtensions = []string{"jpg", "jpeg", "png"}
)

const (
	DefaultExtension    = "jpg"
	DefaultPostsPerPage = 10
	DefaultHttpPort     = "8080"

	// Unreferenced files younger than this may belong to an upload whose row is not committed yet.
	DefaultGCSafetyThreshold = 10 * time.Minute
)

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) JwtTTL() time.Duration {
	return s.Public.JwtTTL
}

// WithDefaults fills empty allow-lists and normalizes extensions.
func (u Upload) WithDefaults() Upload {
	if len(u.AllowedMimeTypes) == 0 {
		u.AllowedMimeTypes = append([]string(nil), DefaultAllowedMimeTypes...)
	}
	if len(u.AllowedExtensions) == 0 {
		u.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}
	exts := make([]string, 0, len(u.AllowedExtensions))
	for _, e := range u.AllowedExtensions {
		exts = append(exts, normalizeExtension(e))
	}
	u.AllowedExtensions = exts

	u.DefaultExtension = normalizeExtension(u.DefaultExtension)
	if u.DefaultExtension == "" {
		u.DefaultExtension = DefaultExtension
	}
	return u
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func (p *Public) applyDefaults() {
	p.Upload = p.Upload.WithDefaults()
	if p.PostsPerPage <= 0 {
		p.PostsPerPage = DefaultPostsPerPage
	}
	if p.HttpPort == "" {
		p.HttpPort = DefaultHttpPort
	}
	if p.GCSafetyThreshold <= 0 {
		p.GCSafetyThreshold = DefaultGCSafetyThreshold
	}
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file: " + configPath)
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file: " + configPath)
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)
	public.applyDefaults()

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	if public.Upload.Root == "" {
		panic("upload.root must be set")
	}

	return &Config{Public: public, Private: private}
}
