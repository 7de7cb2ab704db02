package main

import (
	availabilityhandler "parkd/internal/availability/handler"
	availabilityrepo "parkd/internal/availability/repository"
	availabilityservice "parkd/internal/availability/service"
	availabilityvalidator "parkd/internal/availability/validator"
	employeesrepo "parkd/internal/employees/repository"
	overviewhandler "parkd/internal/overview/handler"
	overviewservice "parkd/internal/overview/service"
	reservationshandler "parkd/internal/reservations/handler"
	reservationsrepo "parkd/internal/reservations/repository"
	reservationsservice "parkd/internal/reservations/service"
	reservationsvalidator "parkd/internal/reservations/validator"
	spotshandler "parkd/internal/spots/handler"
	spotsrepo "parkd/internal/spots/repository"
	spotsservice "parkd/internal/spots/service"
	spotsvalidator "parkd/internal/spots/validator"
	"parkd/pkg/app"
	"parkd/pkg/config"
	"parkd/pkg/contracts"
	"parkd/pkg/kafka"
	kafkaconfig "parkd/pkg/kafka/config"
)

const ServiceName = "parkd"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting parkd service")

	appHandler := initHandlers(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(appHandler, spotshandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log))
	serverApp.Run()
}

func initHandlers(cfg *config.Config) contracts.Handler {
	employeeRepo := employeesrepo.NewMongoEmployeeRepository(cfg)
	spotRepo := spotsrepo.NewMongoSpotRepository(cfg)
	availabilityRepo := availabilityrepo.NewMongoAvailabilityRepository(cfg)
	reservationRepo := reservationsrepo.NewMongoReservationRepository(cfg)
	lockRepo := reservationsrepo.NewReservationLockRepository(cfg)

	spotService := spotsservice.NewSpotService(
		spotRepo,
		employeeRepo,
		spotsvalidator.NewSpotValidator(cfg.Log),
		cfg,
	)

	availabilityService := availabilityservice.NewAvailabilityService(
		availabilityRepo,
		spotRepo,
		reservationRepo,
		newReleaseNotifier(cfg),
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		cfg,
	)

	reservationService := reservationsservice.NewReservationService(
		reservationRepo,
		lockRepo,
		availabilityRepo,
		spotRepo,
		employeeRepo,
		reservationsvalidator.NewReservationValidator(cfg.Log),
		cfg,
	)

	overviewService := overviewservice.NewOverviewService(
		availabilityRepo,
		reservationRepo,
		spotRepo,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return contracts.Compose(
		spotshandler.NewSpotHandler(spotService, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
		reservationshandler.NewReservationHandler(reservationService, cfg.Log),
		overviewhandler.NewOverviewHandler(overviewService, cfg.Log),
	)
}

// newReleaseNotifier wires the Kafka producer when brokers are configured.
// Without brokers the service runs fine; release events are simply not
// published.
func newReleaseNotifier(cfg *config.Config) availabilityservice.Notifier {
	kafkaCfg := kafkaconfig.Load()
	if len(kafkaCfg.Brokers) == 0 {
		cfg.Log.Warn("No Kafka brokers configured, release notifications disabled")
		return nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.NotificationsTopic, kafkaCfg.NotificationsDLQTopic)
	if err != nil {
		cfg.Log.Error("Failed to create Kafka producer, release notifications disabled", "error", err)
		return nil
	}

	cfg.Log.Info("Release notifier initialized", "topic", kafkaCfg.NotificationsTopic)
	return availabilityservice.NewKafkaNotifier(producer, ServiceName)
}
