package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appverifactu "github.com/facturasoft/verifactu-api/internal/application/verifactu"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/postgres"
	httpRouter "github.com/facturasoft/verifactu-api/internal/interfaces/http"
	"github.com/facturasoft/verifactu-api/pkg/config"
	"github.com/facturasoft/verifactu-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Certificado de cliente para mTLS con la AEAT. En development se permite
	// arrancar sin él; cualquier envío real fallará en el handshake.
	var cert tls.Certificate
	if cfg.VeriFactu.CertPath != "" {
		cert, err = aeat.LoadCertFromPEM(cfg.VeriFactu.CertPath, cfg.VeriFactu.KeyPath)
		if err != nil {
			log.Fatal().Err(err).Msg("certificado VeriFactu")
		}
	} else {
		log.Warn().Msg("sin certificado VeriFactu: los envíos a la AEAT fallarán")
	}

	var clientOpts []aeat.ClientOption
	if cfg.VeriFactu.SaveResponses != "" {
		clientOpts = append(clientOpts, aeat.WithSaveDir(cfg.VeriFactu.SaveResponses))
	}
	client := aeat.NewClient(cert, log.Zerolog(), clientOpts...)

	software := aeat.NewSoftware(
		cfg.VeriFactu.SoftwareCompanyName,
		cfg.VeriFactu.SoftwareCompanyNIF,
		cfg.VeriFactu.SoftwareName,
		cfg.VeriFactu.SoftwareID,
		cfg.VeriFactu.SoftwareVersion,
		cfg.VeriFactu.SoftwareInstallNumber,
	)
	builder := aeat.NewRecordBuilder(software)
	audit := logger.NewAuditFile(cfg.VeriFactu.LogFile, log)

	submitUC := appverifactu.NewSubmitUseCase(companyRepo, invoiceRepo, builder, client, audit, log)
	queryUC := appverifactu.NewQueryUseCase(companyRepo, client)
	intakeUC := appverifactu.NewIntakeUseCase(companyRepo, invoiceRepo, txRunner)

	// Barrido periódico de pendientes; singleton para que nunca se solapen
	// dos barridos (el throttling por empresa lo decide next_send).
	if cfg.VeriFactu.SweepSeconds > 0 {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler")
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(time.Duration(cfg.VeriFactu.SweepSeconds)*time.Second),
			gocron.NewTask(func() {
				if _, err := submitUC.ProcessPending(context.Background()); err != nil {
					log.Error().Err(err).Msg("barrido de pendientes")
				}
			}),
			gocron.WithName("verifactu-sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("programar barrido")
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		IntakeUC: intakeUC,
		SubmitUC: submitUC,
		QueryUC:  queryUC,
		APIToken: cfg.App.APIToken,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
