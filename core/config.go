package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env              string
	Build            string
	Debug            bool
	TestMode         bool
	AppName          string
	SecretKey        string
	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	RollbarToken     string
	SendgridAPIKey   string
	WorkDir          string

	PasswordResetTimeoutDelta time.Duration

	Server struct {
		Address                   string
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	Database struct {
		Engine       string // mongo | memory
		URI          string
		Name         string
		Timeout      time.Duration
		Transactions bool
	}

	Realtime struct {
		SurrealURL       string
		SurrealNamespace string
		SurrealDatabase  string
		SurrealUser      string
		SurrealPass      string
	}

	Workflow struct {
		ApprovalThreshold     float64
		MilestoneReleaseRatio float64
		ProgressDeleteWindow  time.Duration
	}
}

// NewConfig reads the configuration from the environment (prefixed with $ENV) and the
// optional config/.env.<env> file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "PM-AJAY")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "n2v!k7#q$pmajay-x0t9*4b@r^d8e+3uz(l5w)y6c=hs1&fg")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "PM-AJAY <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "pmajay")
	v.SetDefault("database.timeout", 10*time.Second)
	v.SetDefault("database.transactions", false)

	v.SetDefault("realtime.surrealUrl", "")
	v.SetDefault("realtime.surrealNamespace", "pmajay")
	v.SetDefault("realtime.surrealDatabase", "notifications")
	v.SetDefault("realtime.surrealUser", "root")
	v.SetDefault("realtime.surrealPass", "root")

	v.SetDefault("workflow.approvalThreshold", 100000.0)
	v.SetDefault("workflow.milestoneReleaseRatio", 0.25)
	v.SetDefault("workflow.progressDeleteWindow", 24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "memory")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridAPIKey:  v.GetString("sendgridApiKey"),
		WorkDir:         wd,

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}
	if from, err := mail.ParseAddress(v.GetString("defaultFromEmail")); err == nil {
		conf.DefaultFromEmail = *from
	} else {
		conf.DefaultFromEmail = mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}

	conf.Server.Address = v.GetString("server.address")
	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")

	conf.Database.Engine = strings.ToLower(v.GetString("database.engine"))
	conf.Database.URI = v.GetString("database.uri")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.Timeout = v.GetDuration("database.timeout")
	conf.Database.Transactions = v.GetBool("database.transactions")

	conf.Realtime.SurrealURL = v.GetString("realtime.surrealUrl")
	conf.Realtime.SurrealNamespace = v.GetString("realtime.surrealNamespace")
	conf.Realtime.SurrealDatabase = v.GetString("realtime.surrealDatabase")
	conf.Realtime.SurrealUser = v.GetString("realtime.surrealUser")
	conf.Realtime.SurrealPass = v.GetString("realtime.surrealPass")

	conf.Workflow.ApprovalThreshold = v.GetFloat64("workflow.approvalThreshold")
	conf.Workflow.MilestoneReleaseRatio = v.GetFloat64("workflow.milestoneReleaseRatio")
	conf.Workflow.ProgressDeleteWindow = v.GetDuration("workflow.progressDeleteWindow")

	return conf
}

// NewTestConfig returns the configuration used by tests: in-memory storage and default workflow values.
func NewTestConfig() *Config {
	_ = os.Setenv("ENV", "TEST")
	return NewConfig()
}
