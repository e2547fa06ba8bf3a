package http_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/facturasoft/verifactu-api/internal/interfaces/http"
)

const testAPIToken = "test-api-token-for-unit-tests"

// buildTestApp construye una aplicación Fiber mínima con una ruta protegida
// por TokenMiddleware y un handler dummy que devuelve 200 si pasa.
func buildTestApp(apiToken string) *fiber.App {
	app := fiber.New()
	app.Get("/protected", apphttp.TokenMiddleware(apiToken), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestTokenMiddleware_TokenValido(t *testing.T) {
	app := buildTestApp(testAPIToken)
	resp := doRequest(t, app, "Bearer "+testAPIToken)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenMiddleware_BearerEnMinusculas(t *testing.T) {
	app := buildTestApp(testAPIToken)
	resp := doRequest(t, app, "bearer "+testAPIToken)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode,
		"el esquema Bearer no distingue mayúsculas")
}

func TestTokenMiddleware_SinAuthHeader_Retorna401(t *testing.T) {
	app := buildTestApp(testAPIToken)
	resp := doRequest(t, app, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "MISSING_TOKEN")
}

func TestTokenMiddleware_TokenIncorrecto_Retorna401(t *testing.T) {
	app := buildTestApp(testAPIToken)
	resp := doRequest(t, app, "Bearer otro-token-distinto")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "INVALID_TOKEN")
}

func TestTokenMiddleware_FormatoInvalido_Retorna401(t *testing.T) {
	app := buildTestApp(testAPIToken)
	resp := doRequest(t, app, testAPIToken) // sin esquema Bearer
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "INVALID_TOKEN")
}

func TestTokenMiddleware_SinTokenConfigurado_Retorna401(t *testing.T) {
	// Con API_TOKEN vacío la API queda cerrada, no abierta.
	app := buildTestApp("")
	resp := doRequest(t, app, "Bearer "+testAPIToken)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
