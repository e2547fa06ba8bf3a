package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env
// y opcionalmente archivo). Se carga una vez en main y se pasa explícitamente;
// el núcleo no lee estado global.
type Config struct {
	App       AppConfig
	DB        DBConfig
	HTTP      HTTPConfig
	VeriFactu VeriFactuConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
	// Token estático de acceso a la API (el chequeo de credenciales queda
	// fuera del núcleo; esto solo protege la superficie HTTP de apoyo).
	APIToken string
}

// VeriFactuConfig configuración del suministro VeriFactu a la AEAT.
type VeriFactuConfig struct {
	CertPath      string // Certificado de cliente PEM (mTLS con la AEAT)
	KeyPath       string // Llave privada PEM (vacío = cert+key en un archivo)
	LogFile       string // Log de auditoría de interacciones (vacío = solo stdout)
	SaveResponses string // Directorio para volcar sobres y respuestas (vacío = off)
	SweepSeconds  int    // Periodo del barrido de pendientes

	// Identidad del sistema informático (bloque SistemaInformatico).
	SoftwareCompanyName   string
	SoftwareCompanyNIF    string
	SoftwareName          string
	SoftwareID            string // se trunca a 2 caracteres
	SoftwareVersion       string
	SoftwareInstallNumber string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde
// archivo .env). Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "verifactu-api"),
			APIToken: getString(v, "API_TOKEN", ""),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "verifactu"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		VeriFactu: VeriFactuConfig{
			CertPath:              getString(v, "VERIFACTU_CERT_PATH", ""),
			KeyPath:               getString(v, "VERIFACTU_KEY_PATH", ""),
			LogFile:               getString(v, "VERIFACTU_LOG_FILE", ""),
			SaveResponses:         getString(v, "VERIFACTU_SAVE_RESPONSES", ""),
			SweepSeconds:          getInt(v, "VERIFACTU_SWEEP_SECONDS", 60),
			SoftwareCompanyName:   getString(v, "SOFTWARE_COMPANY_NAME", ""),
			SoftwareCompanyNIF:    getString(v, "SOFTWARE_COMPANY_NIF", ""),
			SoftwareName:          getString(v, "SOFTWARE_NAME", ""),
			SoftwareID:            getString(v, "SOFTWARE_ID", ""),
			SoftwareVersion:       getString(v, "SOFTWARE_VERSION", ""),
			SoftwareInstallNumber: getString(v, "SOFTWARE_INSTALL_NUMBER", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate exige la identidad del software y el certificado en entornos que
// envían a la AEAT; en development se permite arrancar sin ellos.
func (c *Config) validate() error {
	if c.App.Env == "development" {
		return nil
	}
	if c.VeriFactu.CertPath == "" {
		return fmt.Errorf("config: VERIFACTU_CERT_PATH es obligatorio")
	}
	missing := []string{}
	for k, val := range map[string]string{
		"SOFTWARE_COMPANY_NAME":   c.VeriFactu.SoftwareCompanyName,
		"SOFTWARE_COMPANY_NIF":    c.VeriFactu.SoftwareCompanyNIF,
		"SOFTWARE_NAME":           c.VeriFactu.SoftwareName,
		"SOFTWARE_ID":             c.VeriFactu.SoftwareID,
		"SOFTWARE_VERSION":        c.VeriFactu.SoftwareVersion,
		"SOFTWARE_INSTALL_NUMBER": c.VeriFactu.SoftwareInstallNumber,
	} {
		if val == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: faltan datos del sistema informático: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
