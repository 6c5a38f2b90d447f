package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign session and OAuth state tokens
    SessionTTLDays int    // session cookie lifetime in days
    TokenSecret    string // secret the stored OAuth tokens are sealed with

    SecondMeClientID     string // OAuth client id registered with SecondMe
    SecondMeClientSecret string // OAuth client secret
    SecondMeAPIBase      string // API base URL (empty = library default)
    SecondMeAuthorizeURL string // browser authorize URL (empty = library default)
    BaseURL              string // public URL of this server, used for the OAuth redirect

    ChatTimeout   time.Duration // bound on token refresh + one chat completion
    EventsEnabled bool          // publish/consume negotiation.finished over RabbitMQ
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),                // environment (dev/test/prod)
        Port:           must("APP_PORT"),               // port to bind the HTTP server
        DBUser:         must("DB_USER"),                // database user
        DBPass:         os.Getenv("DB_PASS"),           // database password (empty allowed)
        DBHost:         must("DB_HOST"),                // database host
        DBPort:         must("DB_PORT"),                // database port
        DBName:         must("DB_NAME"),                // database name
        JWTSecret:      must("JWT_SECRET"),             // secret used for signing JWTs
        SessionTTLDays: mustInt("SESSION_TTL_DAYS"),    // session lifetime in days
        TokenSecret:    envStr("TOKEN_SECRET", must("JWT_SECRET")),

        SecondMeClientID:     must("SECONDME_CLIENT_ID"),
        SecondMeClientSecret: must("SECONDME_CLIENT_SECRET"),
        SecondMeAPIBase:      os.Getenv("SECONDME_API_BASE"),
        SecondMeAuthorizeURL: os.Getenv("SECONDME_AUTHORIZE_URL"),
        BaseURL:              strings.TrimRight(envStr("BASE_URL", "http://localhost:"+os.Getenv("APP_PORT")), "/"),

        ChatTimeout:   envDur("CHAT_TIMEOUT", 60*time.Second),
        EventsEnabled: envBool("EVENTS_ENABLED", false),
    }
}

// SessionTTL is the session lifetime as a duration.
func (c Config) SessionTTL() time.Duration {
    return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

// RedirectURI is the absolute OAuth callback URL.
func (c Config) RedirectURI() string {
    return c.BaseURL + "/v1/auth/callback"
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool {
    return c.Env == "prod" || strings.HasPrefix(c.BaseURL, "https://")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
